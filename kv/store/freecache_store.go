package store

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/pkg/errors"
)

type FreeCacheStoreOptions struct {
	// Size 缓存大小，单位字节，freecache 最小 512KB
	Size int `cfg:"size" def:"33554432"`
	// DefaultTTL 未指定过期时间时使用，0 表示不过期
	DefaultTTL time.Duration `cfg:"defaultTTL"`
}

// FreeCacheStore 基于 freecache 的内存缓存，通常作为 TieredStore 的第一层
type FreeCacheStore struct {
	cache      *freecache.Cache
	defaultTTL time.Duration
}

func NewFreeCacheStoreWithOptions(options *FreeCacheStoreOptions) (*FreeCacheStore, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	return &FreeCacheStore{
		cache:      freecache.NewCache(options.Size),
		defaultTTL: options.DefaultTTL,
	}, nil
}

func (s *FreeCacheStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	options := newSetOptions(opts)

	expiration := options.Expiration
	if expiration == 0 {
		expiration = s.defaultTTL
	}

	if options.IfNotExist {
		existing, err := s.cache.GetOrSet([]byte(key), value, int(expiration.Seconds()))
		if err != nil {
			return errors.Wrap(err, "freecache.GetOrSet failed")
		}
		if existing != nil {
			return ErrConditionFailed
		}
		return nil
	}

	if err := s.cache.Set([]byte(key), value, int(expiration.Seconds())); err != nil {
		return errors.Wrap(err, "freecache.Set failed")
	}
	return nil
}

func (s *FreeCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "freecache.Get failed")
	}
	return value, nil
}

func (s *FreeCacheStore) Del(ctx context.Context, key string) error {
	s.cache.Del([]byte(key))
	return nil
}

func (s *FreeCacheStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	return batchGet(ctx, s, keys)
}

func (s *FreeCacheStore) Close() error {
	s.cache.Clear()
	return nil
}
