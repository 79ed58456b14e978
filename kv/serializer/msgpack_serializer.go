package serializer

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hatlonely/entmap/entity"
)

// MsgPackSerializer 实体快照先编码为 protobuf，再作为 msgpack bin 保存
type MsgPackSerializer struct{}

func NewMsgPackSerializer() *MsgPackSerializer {
	return &MsgPackSerializer{}
}

func (s *MsgPackSerializer) Serialize(v any) ([]byte, error) {
	if e, ok := v.(*entity.Entity); ok {
		data, err := NewEntitySerializer().Serialize(e)
		if err != nil {
			return nil, err
		}
		return msgpack.Marshal(data)
	}
	return msgpack.Marshal(v)
}

func (s *MsgPackSerializer) Deserialize(data []byte, v any) error {
	if e, ok := v.(*entity.Entity); ok {
		var snapshot []byte
		if err := msgpack.Unmarshal(data, &snapshot); err != nil {
			return err
		}
		return NewEntitySerializer().Deserialize(snapshot, e)
	}
	return msgpack.Unmarshal(data, v)
}
