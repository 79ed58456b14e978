package intgen

import (
	"context"
	"sync"
	"sync/atomic"
)

type SequenceGeneratorOptions struct {
	// Start 每个序列生成的第一个 id
	Start int64 `cfg:"start" def:"1"`
}

// SequenceGenerator 进程内的递增序列，每个 sequence 独立计数
type SequenceGenerator struct {
	start    int64
	counters sync.Map
}

func NewSequenceGeneratorWithOptions(options *SequenceGeneratorOptions) *SequenceGenerator {
	start := int64(1)
	if options != nil && options.Start > 0 {
		start = options.Start
	}
	return &SequenceGenerator{start: start}
}

func (g *SequenceGenerator) Generate(_ context.Context, sequence string) (int64, error) {
	v, _ := g.counters.LoadOrStore(sequence, new(atomic.Int64))
	return g.start + v.(*atomic.Int64).Add(1) - 1, nil
}
