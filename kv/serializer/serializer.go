package serializer

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
)

// Serializer 把值编码为字节，kv 存储中保存的对象和实体快照都经过它
type Serializer interface {
	Serialize(v any) ([]byte, error)
	// Deserialize 解码到 v，v 必须是指针
	Deserialize(data []byte, v any) error
}

func init() {
	ref.MustRegisterT[*JSONSerializer](NewJSONSerializer)
	ref.MustRegisterT[*BSONSerializer](NewBSONSerializer)
	ref.MustRegisterT[*MsgPackSerializer](NewMsgPackSerializer)
	ref.MustRegisterT[*ProtobufSerializer](NewProtobufSerializer)
	ref.MustRegisterT[*EntitySerializer](NewEntitySerializer)
}

// NewSerializerWithOptions 按配置创建 serializer，options 为 nil 时使用 msgpack
func NewSerializerWithOptions(options *ref.TypeOptions) (Serializer, error) {
	if options == nil {
		return NewMsgPackSerializer(), nil
	}

	serializer, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	if serializer == nil {
		return nil, errors.New("serializer is nil")
	}
	s, ok := serializer.(Serializer)
	if !ok {
		return nil, errors.Errorf("%T is not a Serializer", serializer)
	}
	return s, nil
}
