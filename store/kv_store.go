package store

import (
	"context"
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/convert"
	"github.com/hatlonely/entmap/entity"
	kvstore "github.com/hatlonely/entmap/kv/store"
	"github.com/hatlonely/entmap/kv/serializer"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/schema"
)

// KVStore 把对象转换成通用实体快照后保存到 kv 存储，键为 <plugin>.<name>:<id>
// belongsTo 字段保存为引用的 id，读取时重新解析；hasMany 字段不保存
type KVStore struct {
	kv         kvstore.Store
	service    *convert.EntityService
	serializer serializer.Serializer
	expiration time.Duration
	log        logger.Logger
}

type KVStoreOption func(*KVStore)

// WithSerializer 替换实体快照的编码，默认使用 serializer.EntitySerializer
func WithSerializer(s serializer.Serializer) KVStoreOption {
	return func(store *KVStore) {
		store.serializer = s
	}
}

// WithExpiration 快照的过期时间，kv 作为缓存使用时设置
func WithExpiration(expiration time.Duration) KVStoreOption {
	return func(store *KVStore) {
		store.expiration = expiration
	}
}

func WithLogger(log logger.Logger) KVStoreOption {
	return func(store *KVStore) {
		store.log = logger.OrDiscard(log)
	}
}

func NewKVStore(kv kvstore.Store, service *convert.EntityService, opts ...KVStoreOption) *KVStore {
	s := &KVStore{
		kv:         kv,
		service:    service,
		serializer: serializer.NewEntitySerializer(),
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loadingKey struct{}

// enter 记录正在加载的键，循环引用时返回 false
func enter(ctx context.Context, key string) (context.Context, bool) {
	loading, _ := ctx.Value(loadingKey{}).(map[string]struct{})
	if _, ok := loading[key]; ok {
		return ctx, false
	}
	next := make(map[string]struct{}, len(loading)+1)
	for k := range loading {
		next[k] = struct{}{}
	}
	next[key] = struct{}{}
	return context.WithValue(ctx, loadingKey{}, next), true
}

func (s *KVStore) Lookup(ctx context.Context, rt reflect.Type, id int64) (any, error) {
	dd, err := s.service.Registry().ForType(rt)
	if err != nil {
		return nil, err
	}
	key := objectKey(dd.FullName(), id)

	ctx, ok := enter(ctx, key)
	if !ok {
		// 循环引用只保留 id
		class, err := dd.ClassForEntity()
		if err != nil {
			return nil, err
		}
		stub := reflect.New(class).Interface()
		if err := s.service.SetID(dd, stub, id); err != nil {
			return nil, err
		}
		s.log.DebugContext(ctx, "cyclic reference resolved to id", "key", key)
		return stub, nil
	}

	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "get %s failed", key)
	}

	e := entity.New()
	if err := s.serializer.Deserialize(data, e); err != nil {
		return nil, errors.WithMessagef(err, "deserialize %s failed", key)
	}
	e.SetID(id)

	obj, err := s.service.ConvertToDatabaseEntity(ctx, dd, e, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s failed", key)
	}
	return obj, nil
}

func (s *KVStore) Save(ctx context.Context, dd *schema.DataDefinition, obj any) error {
	id, err := idForSave(dd, obj)
	if err != nil {
		return err
	}
	e, err := s.service.ConvertToGenericEntity(dd, obj)
	if err != nil {
		return err
	}
	for _, fd := range dd.Fields() {
		switch t := fd.Type().(type) {
		case *schema.HasManyType:
			e.RemoveField(fd.Name())
		case *schema.BelongsToType:
			v := e.Field(fd.Name())
			if v == nil {
				continue
			}
			refID, err := t.IDOf(v)
			if err != nil {
				return errors.WithMessagef(err, "%s #%d field %q", dd.FullName(), id, fd.Name())
			}
			e.SetField(fd.Name(), refID)
		}
	}

	data, err := s.serializer.Serialize(e)
	if err != nil {
		return errors.WithMessagef(err, "serialize %s #%d failed", dd.FullName(), id)
	}

	var opts []kvstore.SetOption
	if s.expiration > 0 {
		opts = append(opts, kvstore.WithExpiration(s.expiration))
	}
	if err := s.kv.Set(ctx, objectKey(dd.FullName(), id), data, opts...); err != nil {
		return errors.WithMessagef(err, "set %s #%d failed", dd.FullName(), id)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, dd *schema.DataDefinition, id int64) error {
	if err := s.kv.Del(ctx, objectKey(dd.FullName(), id)); err != nil {
		return errors.WithMessagef(err, "del %s #%d failed", dd.FullName(), id)
	}
	return nil
}
