package serializer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

type ProtobufSerializer struct{}

func NewProtobufSerializer() *ProtobufSerializer {
	return &ProtobufSerializer{}
}

func (s *ProtobufSerializer) Serialize(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Errorf("%T is not a proto.Message", v)
	}
	return proto.Marshal(m)
}

func (s *ProtobufSerializer) Deserialize(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return errors.Errorf("%T is not a proto.Message", v)
	}
	return proto.Unmarshal(data, m)
}
