package strgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ULIDGeneratorOptions struct {
	// Lowercase 输出小写
	Lowercase bool `cfg:"lowercase"`
}

// ULIDGenerator 按时间有序的 26 位 ULID，同一毫秒内单调递增
type ULIDGenerator struct {
	mu        sync.Mutex
	entropy   *ulid.MonotonicEntropy
	lowercase bool
}

func NewULIDGeneratorWithOptions(options *ULIDGeneratorOptions) *ULIDGenerator {
	if options == nil {
		options = &ULIDGeneratorOptions{}
	}
	return &ULIDGenerator{
		entropy:   ulid.Monotonic(rand.Reader, 0),
		lowercase: options.Lowercase,
	}
}

func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()

	if g.lowercase {
		return strings.ToLower(id.String())
	}
	return id.String()
}
