package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
)

const (
	WritePolicyWriteThrough = "writeThrough"
	WritePolicyWriteBack    = "writeBack"
)

type TieredStoreOptions struct {
	// Tiers 按优先级从高到低排列，第一层通常是内存缓存，最后一层是持久化存储
	Tiers []*ref.TypeOptions `cfg:"tiers" validate:"required,min=1,dive,required"`

	// WritePolicy
	//   - writeThrough: 同步写入所有层
	//   - writeBack: 只同步写第一层，其他层异步写入
	WritePolicy string `cfg:"writePolicy" def:"writeThrough" validate:"oneof=writeThrough writeBack"`

	// Promote 从下层读到数据后写回上层
	Promote bool `cfg:"promote" def:"true"`
}

// TieredStore 多级存储，读取时从上往下查找
type TieredStore struct {
	tiers       []Store
	writePolicy string
	promote     bool
}

func NewTieredStoreWithOptions(options *TieredStoreOptions) (*TieredStore, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	tiers := make([]Store, 0, len(options.Tiers))
	for i, tierOptions := range options.Tiers {
		tier, err := NewStoreWithOptions(tierOptions)
		if err != nil {
			for _, created := range tiers {
				_ = created.Close()
			}
			return nil, errors.WithMessagef(err, "failed to create tier %d", i)
		}
		tiers = append(tiers, tier)
	}

	return NewTieredStore(tiers, options.WritePolicy, options.Promote)
}

// NewTieredStore 使用已创建的存储组合多级存储
func NewTieredStore(tiers []Store, writePolicy string, promote bool) (*TieredStore, error) {
	if len(tiers) == 0 {
		return nil, errors.New("at least one tier is required")
	}
	if writePolicy == "" {
		writePolicy = WritePolicyWriteThrough
	}
	if writePolicy != WritePolicyWriteThrough && writePolicy != WritePolicyWriteBack {
		return nil, errors.Errorf("invalid write policy: %s", writePolicy)
	}

	return &TieredStore{
		tiers:       tiers,
		writePolicy: writePolicy,
		promote:     promote,
	}, nil
}

func (ts *TieredStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	if ts.writePolicy == WritePolicyWriteBack {
		if err := ts.tiers[0].Set(ctx, key, value, opts...); err != nil {
			return err
		}
		if len(ts.tiers) > 1 {
			go ts.setTiers(context.WithoutCancel(ctx), ts.tiers[1:], key, value, opts...)
		}
		return nil
	}

	// writeThrough 先写最下层，条件写以持久层的结果为准，上层直接覆盖
	last := len(ts.tiers) - 1
	if err := ts.tiers[last].Set(ctx, key, value, opts...); err != nil {
		return err
	}
	expiration := WithExpiration(newSetOptions(opts).Expiration)
	for i := last - 1; i >= 0; i-- {
		if err := ts.tiers[i].Set(ctx, key, value, expiration); err != nil {
			return errors.WithMessagef(err, "set tier %d failed", i)
		}
	}
	return nil
}

func (ts *TieredStore) Get(ctx context.Context, key string) ([]byte, error) {
	var lastErr error = ErrKeyNotFound
	for i, tier := range ts.tiers {
		value, err := tier.Get(ctx, key)
		if err == nil {
			if ts.promote && i > 0 {
				go ts.setTiers(context.WithoutCancel(ctx), ts.tiers[:i], key, value)
			}
			return value, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			// 继续尝试下一层
			lastErr = err
		}
	}
	return nil, lastErr
}

// Del 删除所有层，返回最后一个错误
func (ts *TieredStore) Del(ctx context.Context, key string) error {
	var lastErr error
	for _, tier := range ts.tiers {
		if err := tier.Del(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (ts *TieredStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	return batchGet(ctx, ts, keys)
}

func (ts *TieredStore) Close() error {
	var errs []error
	for i, tier := range ts.tiers {
		if err := tier.Close(); err != nil {
			errs = append(errs, errors.WithMessagef(err, "failed to close tier %d", i))
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}

// TierCount 返回层数
func (ts *TieredStore) TierCount() int {
	return len(ts.tiers)
}

// GetFromTier 从指定层读取，用于测试和排查
func (ts *TieredStore) GetFromTier(ctx context.Context, tier int, key string) ([]byte, error) {
	if tier < 0 || tier >= len(ts.tiers) {
		return nil, errors.Errorf("invalid tier index: %d", tier)
	}
	return ts.tiers[tier].Get(ctx, key)
}

func (ts *TieredStore) setTiers(ctx context.Context, tiers []Store, key string, value []byte, opts ...SetOption) {
	for _, tier := range tiers {
		_ = tier.Set(ctx, key, value, opts...)
	}
}
