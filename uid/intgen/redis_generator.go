package intgen

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisGeneratorOptions struct {
	Endpoint string `cfg:"endpoint" def:"localhost:6379"`
	Password string `cfg:"password"`
	DB       int    `cfg:"db"`
	// KeyPrefix 序列在 redis 中的键前缀，完整的键为 KeyPrefix + sequence
	KeyPrefix string        `cfg:"keyPrefix" def:"entmap:sequence:"`
	Timeout   time.Duration `cfg:"timeout" def:"3s"`
}

// RedisGenerator 基于 redis INCR 的分布式序列，每个 sequence 一个计数器，生成的 id 连续递增
type RedisGenerator struct {
	client    redis.UniversalClient
	keyPrefix string
	timeout   time.Duration
}

func NewRedisGeneratorWithOptions(options *RedisGeneratorOptions) *RedisGenerator {
	if options == nil {
		options = &RedisGeneratorOptions{}
	}
	if options.Endpoint == "" {
		options.Endpoint = "localhost:6379"
	}
	if options.KeyPrefix == "" {
		options.KeyPrefix = "entmap:sequence:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     options.Endpoint,
		Password: options.Password,
		DB:       options.DB,
	})
	return NewRedisGeneratorWithClient(client, options.KeyPrefix, options.Timeout)
}

func NewRedisGeneratorWithClient(client redis.UniversalClient, keyPrefix string, timeout time.Duration) *RedisGenerator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisGenerator{client: client, keyPrefix: keyPrefix, timeout: timeout}
}

// Generate redis 不可用时返回错误，不降级为本地生成
func (g *RedisGenerator) Generate(ctx context.Context, sequence string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	id, err := g.client.Incr(ctx, g.keyPrefix+sequence).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "redis incr %s failed", g.keyPrefix+sequence)
	}
	return id, nil
}

// Reset 把序列设置为 last，下一个 id 为 last+1，用于从已有数据恢复序列
func (g *RedisGenerator) Reset(ctx context.Context, sequence string, last int64) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.client.Set(ctx, g.keyPrefix+sequence, last, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s failed", g.keyPrefix+sequence)
	}
	return nil
}

func (g *RedisGenerator) Close() error {
	return g.client.Close()
}
