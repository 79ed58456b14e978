package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisStoreOptions struct {
	// Endpoint 单机 host:port 地址
	Endpoint string `cfg:"endpoint"`
	// Endpoints 集群节点地址，Endpoint 为空时使用
	Endpoints []string `cfg:"endpoints"`
	// KeyPrefix 所有键的前缀，多个服务共用一个 redis 时区分命名空间
	KeyPrefix string `cfg:"keyPrefix"`
	// DefaultTTL 未指定过期时间时使用，0 表示不过期
	DefaultTTL time.Duration `cfg:"defaultTTL"`

	Username string `cfg:"username"`
	Password string `cfg:"password"`
	DB       int    `cfg:"db" def:"0"`

	// MaxRetries -1 禁用重试
	MaxRetries      int           `cfg:"maxRetries" def:"3"`
	MinRetryBackoff time.Duration `cfg:"minRetryBackoff" def:"8ms"`
	MaxRetryBackoff time.Duration `cfg:"maxRetryBackoff" def:"512ms"`
	DialTimeout     time.Duration `cfg:"dialTimeout" def:"5s"`
	ReadTimeout     time.Duration `cfg:"readTimeout" def:"3s"`
	WriteTimeout    time.Duration `cfg:"writeTimeout" def:"3s"`

	PoolSize        int           `cfg:"poolSize" def:"100"`
	PoolTimeout     time.Duration `cfg:"poolTimeout" def:"4s"`
	MinIdleConns    int           `cfg:"minIdleConns" def:"0"`
	MaxIdleConns    int           `cfg:"maxIdleConns" def:"0"`
	ConnMaxIdleTime time.Duration `cfg:"connMaxIdleTime" def:"30m"`
	// MaxRedirects 集群模式下 MOVED/ASK 重定向的最大次数
	MaxRedirects int `cfg:"maxRedirects" def:"3"`
}

type RedisStore struct {
	client     redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
}

func NewRedisStoreWithOptions(options *RedisStoreOptions) (*RedisStore, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	var client redis.UniversalClient
	if options.Endpoint != "" {
		client = redis.NewClient(&redis.Options{
			Addr:            options.Endpoint,
			Username:        options.Username,
			Password:        options.Password,
			DB:              options.DB,
			MaxRetries:      options.MaxRetries,
			MinRetryBackoff: options.MinRetryBackoff,
			MaxRetryBackoff: options.MaxRetryBackoff,
			DialTimeout:     options.DialTimeout,
			ReadTimeout:     options.ReadTimeout,
			WriteTimeout:    options.WriteTimeout,
			PoolSize:        options.PoolSize,
			PoolTimeout:     options.PoolTimeout,
			MinIdleConns:    options.MinIdleConns,
			MaxIdleConns:    options.MaxIdleConns,
			ConnMaxIdleTime: options.ConnMaxIdleTime,
		})
	} else if len(options.Endpoints) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           options.Endpoints,
			Username:        options.Username,
			Password:        options.Password,
			MaxRetries:      options.MaxRetries,
			DialTimeout:     options.DialTimeout,
			ReadTimeout:     options.ReadTimeout,
			WriteTimeout:    options.WriteTimeout,
			PoolSize:        options.PoolSize,
			PoolTimeout:     options.PoolTimeout,
			MinIdleConns:    options.MinIdleConns,
			MaxIdleConns:    options.MaxIdleConns,
			ConnMaxIdleTime: options.ConnMaxIdleTime,
			MaxRedirects:    options.MaxRedirects,
		})
	} else {
		return nil, errors.New("endpoint or endpoints must be set")
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis.client.Ping failed")
	}

	return NewRedisStoreWithClient(client, options.KeyPrefix, options.DefaultTTL), nil
}

// NewRedisStoreWithClient 复用已有的客户端，Close 时会关闭该客户端
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, defaultTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	options := newSetOptions(opts)

	expiration := options.Expiration
	if expiration == 0 {
		expiration = s.defaultTTL
	}

	if options.IfNotExist {
		ok, err := s.client.SetNX(ctx, s.key(key), value, expiration).Result()
		if err != nil {
			return errors.Wrap(err, "redis.SetNX failed")
		}
		if !ok {
			return ErrConditionFailed
		}
		return nil
	}

	if err := s.client.Set(ctx, s.key(key), value, expiration).Err(); err != nil {
		return errors.Wrap(err, "redis.Set failed")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis.Get failed")
	}
	return value, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrap(err, "redis.Del failed")
	}
	return nil
}

// BatchGet 单机模式使用 MGET，集群模式下键可能分布在不同 slot，使用 pipeline
func (s *RedisStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}

	vals := make([][]byte, len(keys))
	errs := make([]error, len(keys))

	if _, ok := s.client.(*redis.ClusterClient); ok {
		cmds := make([]*redis.StringCmd, len(keys))
		_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, key := range keys {
				cmds[i] = pipe.Get(ctx, s.key(key))
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, nil, errors.Wrap(err, "redis.Pipelined failed")
		}
		for i, cmd := range cmds {
			vals[i], errs[i] = cmd.Bytes()
			if errors.Is(errs[i], redis.Nil) {
				vals[i], errs[i] = nil, ErrKeyNotFound
			}
		}
		return vals, errs, nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.key(key)
	}
	results, err := s.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, nil, errors.Wrap(err, "redis.MGet failed")
	}
	for i, result := range results {
		switch v := result.(type) {
		case string:
			vals[i] = []byte(v)
		case nil:
			errs[i] = ErrKeyNotFound
		default:
			errs[i] = errors.Errorf("unexpected mget value %T", result)
		}
	}
	return vals, errs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
