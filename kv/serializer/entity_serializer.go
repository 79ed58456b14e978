package serializer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hatlonely/entmap/entity"
)

// EntitySerializer 通过 protobuf Struct 编码通用实体，保留 int64 和时间类型
type EntitySerializer struct{}

func NewEntitySerializer() *EntitySerializer {
	return &EntitySerializer{}
}

func (s *EntitySerializer) Serialize(v any) ([]byte, error) {
	e, ok := v.(*entity.Entity)
	if !ok || e == nil {
		return nil, errors.Errorf("%T is not a *entity.Entity", v)
	}
	pb, err := e.ToProto()
	if err != nil {
		return nil, errors.WithMessage(err, "entity.ToProto failed")
	}
	return proto.Marshal(pb)
}

func (s *EntitySerializer) Deserialize(data []byte, v any) error {
	target, ok := v.(*entity.Entity)
	if !ok || target == nil {
		return errors.Errorf("%T is not a *entity.Entity", v)
	}
	var pb structpb.Struct
	if err := proto.Unmarshal(data, &pb); err != nil {
		return errors.Wrap(err, "proto.Unmarshal failed")
	}
	e, err := entity.FromProto(&pb)
	if err != nil {
		return errors.WithMessage(err, "entity.FromProto failed")
	}
	*target = *e
	return nil
}
