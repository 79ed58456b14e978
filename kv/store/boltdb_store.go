package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

type BoltDBStoreOptions struct {
	// DBPath 数据库文件路径，文件不存在时自动创建
	DBPath string `cfg:"dbPath" validate:"required"`
	// BucketName 存放数据的桶
	BucketName string `cfg:"bucketName" def:"default"`
	// Timeout 获取文件锁的等待时间，0 表示一直等待
	Timeout time.Duration `cfg:"timeout"`
	// NoSync 不在每次提交后 fsync，写入更快但宕机可能丢数据
	NoSync bool `cfg:"noSync"`
	// NoFreelistSync 不把 freelist 写入磁盘
	NoFreelistSync bool `cfg:"noFreelistSync"`
	// FreelistType array 或 hashmap
	FreelistType string `cfg:"freelistType" validate:"omitempty,oneof=array hashmap"`
	ReadOnly     bool   `cfg:"readOnly"`
	// InitialMmapSize 足够大时读事务不会阻塞写事务
	InitialMmapSize int `cfg:"initialMmapSize" validate:"min=0"`
}

// BoltDBStore 单文件的嵌入式存储，不支持过期
type BoltDBStore struct {
	db         *bolt.DB
	bucketName []byte
}

func NewBoltDBStoreWithOptions(options *BoltDBStoreOptions) (*BoltDBStore, error) {
	if options == nil || options.DBPath == "" {
		return nil, errors.New("dbPath is required")
	}

	directory := filepath.Dir(options.DBPath)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.Wrapf(err, "os.MkdirAll failed. directory: %s", directory)
	}

	db, err := bolt.Open(options.DBPath, 0600, &bolt.Options{
		Timeout:         options.Timeout,
		NoSync:          options.NoSync,
		NoFreelistSync:  options.NoFreelistSync,
		FreelistType:    bolt.FreelistType(options.FreelistType),
		ReadOnly:        options.ReadOnly,
		InitialMmapSize: options.InitialMmapSize,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt.Open failed. dbPath: %s", options.DBPath)
	}

	bucketName := options.BucketName
	if bucketName == "" {
		bucketName = "default"
	}
	store := &BoltDBStore{db: db, bucketName: []byte(bucketName)}

	if !options.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(store.bucketName)
			return err
		})
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create bucket failed")
		}
	}

	return store, nil
}

func (s *BoltDBStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	options := newSetOptions(opts)

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return errors.Errorf("bucket %s not found", s.bucketName)
		}
		if options.IfNotExist && bucket.Get([]byte(key)) != nil {
			return ErrConditionFailed
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *BoltDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return ErrKeyNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrKeyNotFound
		}
		// 事务结束后 data 不再有效
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltDBStore) Del(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

// BatchGet 在同一个读事务中读取
func (s *BoltDBStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	vals := make([][]byte, len(keys))
	errs := make([]error, len(keys))

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		for i, key := range keys {
			var data []byte
			if bucket != nil {
				data = bucket.Get([]byte(key))
			}
			if data == nil {
				errs[i] = ErrKeyNotFound
				continue
			}
			vals[i] = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "bolt.View failed")
	}
	return vals, errs, nil
}

func (s *BoltDBStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close database failed")
	}
	s.db = nil
	return nil
}

var _ Store = (*BoltDBStore)(nil)
