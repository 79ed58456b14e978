package strgen

import (
	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
)

func init() {
	ref.MustRegisterT[*UUIDGenerator](NewUUIDGeneratorWithOptions)
	ref.MustRegisterT[*ULIDGenerator](NewULIDGeneratorWithOptions)
}

// StrGenerator 生成字符串 id，用于操作 id 等不需要有序的场景
type StrGenerator interface {
	Generate() string
}

// NewStrGeneratorWithOptions 按配置创建生成器，nil 使用 ULIDGenerator
func NewStrGeneratorWithOptions(options *ref.TypeOptions) (StrGenerator, error) {
	if options == nil {
		return NewULIDGeneratorWithOptions(nil), nil
	}
	generator, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	g, ok := generator.(StrGenerator)
	if !ok {
		return nil, errors.Errorf("%T is not a StrGenerator", generator)
	}
	return g, nil
}
