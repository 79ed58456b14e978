package serializer

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatlonely/entmap/entity"
)

// BSONSerializer 只能编码结构体和 map 这类文档值，实体快照保存在 entity 字段
type BSONSerializer struct{}

type bsonEntity struct {
	Entity []byte `bson:"entity"`
}

func NewBSONSerializer() *BSONSerializer {
	return &BSONSerializer{}
}

func (s *BSONSerializer) Serialize(v any) ([]byte, error) {
	if e, ok := v.(*entity.Entity); ok {
		data, err := NewEntitySerializer().Serialize(e)
		if err != nil {
			return nil, err
		}
		return bson.Marshal(&bsonEntity{Entity: data})
	}
	return bson.Marshal(v)
}

func (s *BSONSerializer) Deserialize(data []byte, v any) error {
	if e, ok := v.(*entity.Entity); ok {
		var doc bsonEntity
		if err := bson.Unmarshal(data, &doc); err != nil {
			return err
		}
		return NewEntitySerializer().Deserialize(doc.Entity, e)
	}
	return bson.Unmarshal(data, v)
}
