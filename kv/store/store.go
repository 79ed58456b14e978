package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrConditionFailed = errors.New("condition failed")
)

// setOptions 写入时的选项
type setOptions struct {
	Expiration time.Duration
	IfNotExist bool
}

type SetOption func(*setOptions)

// WithExpiration 设置过期时间，不支持过期的后端会忽略
func WithExpiration(expiration time.Duration) SetOption {
	return func(options *setOptions) {
		options.Expiration = expiration
	}
}

func WithIfNotExist() SetOption {
	return func(options *setOptions) {
		options.IfNotExist = true
	}
}

func newSetOptions(opts []SetOption) *setOptions {
	options := &setOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Store 字符串键、字节值的 KV 存储，值的编码由调用方通过 kv/serializer 完成
type Store interface {
	// Set 设置键值对，WithIfNotExist 时键存在则返回 ErrConditionFailed
	Set(ctx context.Context, key string, value []byte, opts ...SetOption) error
	// Get 获取键对应的值，键不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Del 删除键，键不存在时也返回成功
	Del(ctx context.Context, key string) error
	// BatchGet 批量获取，返回每个键的值和错误
	BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error)
	Close() error
}

func init() {
	ref.MustRegisterT[*MapStore](NewMapStoreWithOptions)
	ref.MustRegisterT[*FreeCacheStore](NewFreeCacheStoreWithOptions)
	ref.MustRegisterT[*RedisStore](NewRedisStoreWithOptions)
	ref.MustRegisterT[*BoltDBStore](NewBoltDBStoreWithOptions)
	ref.MustRegisterT[*LevelDBStore](NewLevelDBStoreWithOptions)
	ref.MustRegisterT[*PebbleStore](NewPebbleStoreWithOptions)
	ref.MustRegisterT[*TieredStore](NewTieredStoreWithOptions)
	ref.MustRegisterT[*ObservableStore](NewObservableStoreWithOptions)
}

// NewStoreWithOptions 按配置创建存储，namespace 为 github.com/hatlonely/entmap/kv/store
func NewStoreWithOptions(options *ref.TypeOptions) (Store, error) {
	store, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	s, ok := store.(Store)
	if !ok {
		return nil, errors.Errorf("%T is not a Store", store)
	}
	return s, nil
}

// batchGet 逐个调用 Get，用于没有原生批量读的后端
func batchGet(ctx context.Context, s Store, keys []string) ([][]byte, []error, error) {
	vals := make([][]byte, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		vals[i], errs[i] = s.Get(ctx, key)
	}
	return vals, errs, nil
}
