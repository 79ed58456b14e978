package store

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

type LevelDBStoreOptions struct {
	// DBPath 数据库目录
	DBPath string `cfg:"dbPath" validate:"required"`

	// BlockCacher lru 或 none
	BlockCacher        string `cfg:"blockCacher" validate:"omitempty,oneof=lru none"`
	BlockCacheCapacity int    `cfg:"blockCacheCapacity"`
	BlockSize          int    `cfg:"blockSize"`
	// Compression default、snappy 或 none
	Compression            string `cfg:"compression" validate:"omitempty,oneof=default snappy none"`
	OpenFilesCacheCapacity int    `cfg:"openFilesCacheCapacity"`
	WriteBuffer            int    `cfg:"writeBuffer"`
	// Strict 多个值用 | 连接，例如 manifest|journal
	Strict         string `cfg:"strict"`
	NoSync         bool   `cfg:"noSync"`
	ReadOnly       bool   `cfg:"readOnly"`
	ErrorIfMissing bool   `cfg:"errorIfMissing"`
}

// LevelDBStore 基于 goleveldb 的嵌入式存储，不支持过期
type LevelDBStore struct {
	db *leveldb.DB
	// leveldb 没有条件写，IfNotExist 的读和写在锁内完成
	mu sync.Mutex
}

func NewLevelDBStoreWithOptions(options *LevelDBStoreOptions) (*LevelDBStore, error) {
	if options == nil || options.DBPath == "" {
		return nil, errors.New("dbPath is required")
	}

	blockCacher, err := leveldbParseCacher(options.BlockCacher)
	if err != nil {
		return nil, errors.WithMessage(err, "leveldbParseCacher failed")
	}
	compression, err := leveldbParseCompression(options.Compression)
	if err != nil {
		return nil, errors.WithMessage(err, "leveldbParseCompression failed")
	}
	strict, err := leveldbParseStrict(options.Strict)
	if err != nil {
		return nil, errors.WithMessage(err, "leveldbParseStrict failed")
	}

	db, err := leveldb.OpenFile(options.DBPath, &opt.Options{
		BlockCacher:            blockCacher,
		BlockCacheCapacity:     options.BlockCacheCapacity,
		BlockSize:              options.BlockSize,
		Compression:            compression,
		OpenFilesCacheCapacity: options.OpenFilesCacheCapacity,
		WriteBuffer:            options.WriteBuffer,
		Strict:                 strict,
		NoSync:                 options.NoSync,
		ReadOnly:               options.ReadOnly,
		ErrorIfMissing:         options.ErrorIfMissing,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "leveldb.OpenFile failed. path: %s", options.DBPath)
	}

	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	options := newSetOptions(opts)

	if options.IfNotExist {
		s.mu.Lock()
		defer s.mu.Unlock()

		exists, err := s.db.Has([]byte(key), nil)
		if err != nil {
			return errors.Wrap(err, "leveldb.Has failed")
		}
		if exists {
			return ErrConditionFailed
		}
	}

	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return errors.Wrap(err, "leveldb.Put failed")
	}
	return nil
}

func (s *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "leveldb.Get failed")
	}
	return value, nil
}

func (s *LevelDBStore) Del(ctx context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return errors.Wrap(err, "leveldb.Delete failed")
	}
	return nil
}

// BatchGet 在同一个快照上读取
func (s *LevelDBStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	snapshot, err := s.db.GetSnapshot()
	if err != nil {
		return nil, nil, errors.Wrap(err, "leveldb.GetSnapshot failed")
	}
	defer snapshot.Release()

	vals := make([][]byte, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		vals[i], errs[i] = snapshot.Get([]byte(key), nil)
		if errors.Is(errs[i], leveldb.ErrNotFound) {
			errs[i] = ErrKeyNotFound
		}
	}
	return vals, errs, nil
}

func (s *LevelDBStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "leveldb.Close failed")
	}
	return nil
}

func leveldbParseStrict(strict string) (opt.Strict, error) {
	m := map[string]opt.Strict{
		"manifest":         opt.StrictManifest,
		"journal_checksum": opt.StrictJournalChecksum,
		"journal":          opt.StrictJournal,
		"block_checksum":   opt.StrictBlockChecksum,
		"compaction":       opt.StrictCompaction,
		"reader":           opt.StrictReader,
		"recovery":         opt.StrictRecovery,
		"override":         opt.StrictOverride,
		"all":              opt.StrictAll,
		"default":          opt.DefaultStrict,
		"none":             opt.NoStrict,
	}

	if strict == "" {
		return opt.DefaultStrict, nil
	}

	var result opt.Strict
	for _, val := range strings.Split(strict, "|") {
		v, ok := m[strings.TrimSpace(val)]
		if !ok {
			return 0, errors.Errorf("invalid strict value: %s", val)
		}
		result |= v
	}
	return result, nil
}

func leveldbParseCompression(compression string) (opt.Compression, error) {
	switch compression {
	case "", "default":
		return opt.DefaultCompression, nil
	case "none":
		return opt.NoCompression, nil
	case "snappy":
		return opt.SnappyCompression, nil
	}
	return 0, errors.Errorf("invalid compression value: %s", compression)
}

func leveldbParseCacher(cacher string) (opt.Cacher, error) {
	switch cacher {
	case "":
		return opt.DefaultBlockCacher, nil
	case "lru":
		return opt.LRUCacher, nil
	case "none":
		return opt.NoCacher, nil
	}
	return nil, errors.Errorf("invalid cacher value: %s", cacher)
}
