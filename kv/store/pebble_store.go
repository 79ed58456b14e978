package store

import (
	"context"
	"sync"

	"github.com/cockroachdb/fifo"
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

type PebbleStoreOptions struct {
	// DBPath 数据库目录
	DBPath string `cfg:"dbPath" validate:"required"`
	// SetWithoutSync 写入后不 fsync
	SetWithoutSync bool `cfg:"setWithoutSync"`
	// CacheSize block cache 大小，0 使用 pebble 默认值
	CacheSize int64 `cfg:"cacheSize"`
	// LoadBlockConcurrency 同时从磁盘加载 block 的上限，0 不限制
	LoadBlockConcurrency int64 `cfg:"loadBlockConcurrency"`
	MemTableSize         int   `cfg:"memTableSize"`
	MaxOpenFiles         int   `cfg:"maxOpenFiles"`
	BytesPerSync         int   `cfg:"bytesPerSync"`
	DisableWAL           bool  `cfg:"disableWAL"`
	ReadOnly             bool  `cfg:"readOnly"`
	ErrorIfNotExists     bool  `cfg:"errorIfNotExists"`
}

// PebbleStore 基于 pebble 的嵌入式存储，不支持过期
type PebbleStore struct {
	db           *pebble.DB
	writeOptions *pebble.WriteOptions
	// pebble 没有条件写，IfNotExist 的读和写在锁内完成
	mu sync.Mutex
}

func NewPebbleStoreWithOptions(options *PebbleStoreOptions) (*PebbleStore, error) {
	if options == nil || options.DBPath == "" {
		return nil, errors.New("dbPath is required")
	}

	pebbleOptions := &pebble.Options{
		MemTableSize:     uint64(options.MemTableSize),
		MaxOpenFiles:     options.MaxOpenFiles,
		BytesPerSync:     options.BytesPerSync,
		DisableWAL:       options.DisableWAL,
		ReadOnly:         options.ReadOnly,
		ErrorIfNotExists: options.ErrorIfNotExists,
	}
	if options.CacheSize > 0 {
		cache := pebble.NewCache(options.CacheSize)
		defer cache.Unref()
		pebbleOptions.Cache = cache
	}
	if options.LoadBlockConcurrency > 0 {
		pebbleOptions.LoadBlockSema = fifo.NewSemaphore(options.LoadBlockConcurrency)
	}

	db, err := pebble.Open(options.DBPath, pebbleOptions)
	if err != nil {
		return nil, errors.Wrapf(err, "pebble.Open failed. path: %s", options.DBPath)
	}

	writeOptions := pebble.Sync
	if options.SetWithoutSync {
		writeOptions = pebble.NoSync
	}

	return &PebbleStore{db: db, writeOptions: writeOptions}, nil
}

func (s *PebbleStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	options := newSetOptions(opts)

	if options.IfNotExist {
		s.mu.Lock()
		defer s.mu.Unlock()

		_, closer, err := s.db.Get([]byte(key))
		if err == nil {
			_ = closer.Close()
			return ErrConditionFailed
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return errors.Wrap(err, "pebble.Get failed")
		}
	}

	if err := s.db.Set([]byte(key), value, s.writeOptions); err != nil {
		return errors.Wrap(err, "pebble.Set failed")
	}
	return nil
}

func (s *PebbleStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "pebble.Get failed")
	}
	defer closer.Close()

	// closer 关闭后 data 不再有效
	return append([]byte(nil), data...), nil
}

func (s *PebbleStore) Del(ctx context.Context, key string) error {
	if err := s.db.Delete([]byte(key), s.writeOptions); err != nil {
		return errors.Wrap(err, "pebble.Delete failed")
	}
	return nil
}

func (s *PebbleStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	return batchGet(ctx, s, keys)
}

func (s *PebbleStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "pebble.Close failed")
	}
	return nil
}
