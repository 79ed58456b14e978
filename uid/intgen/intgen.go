package intgen

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
)

func init() {
	ref.MustRegisterT[*SequenceGenerator](NewSequenceGeneratorWithOptions)
	ref.MustRegisterT[*SnowflakeGenerator](NewSnowflakeGeneratorWithOptions)
	ref.MustRegisterT[*RedisGenerator](NewRedisGeneratorWithOptions)
}

// IntGenerator 为新对象分配 id，生成的 id 总是大于 0
// sequence 区分不同的 id 序列，通常是实体定义的全名
type IntGenerator interface {
	Generate(ctx context.Context, sequence string) (int64, error)
}

// NewIntGeneratorWithOptions 按配置创建 id 生成器，nil 使用 SnowflakeGenerator
func NewIntGeneratorWithOptions(options *ref.TypeOptions) (IntGenerator, error) {
	if options == nil {
		return NewSnowflakeGeneratorWithOptions(nil), nil
	}
	generator, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	g, ok := generator.(IntGenerator)
	if !ok {
		return nil, errors.Errorf("%T is not an IntGenerator", generator)
	}
	return g, nil
}
