package dataaccess

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/entmap/convert"
	"github.com/hatlonely/entmap/entity"
	"github.com/hatlonely/entmap/executor"
	kvstore "github.com/hatlonely/entmap/kv/store"
	"github.com/hatlonely/entmap/kv/serializer"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/schema"
	"github.com/hatlonely/entmap/search"
	"github.com/hatlonely/entmap/store"
	"github.com/hatlonely/entmap/uid/intgen"
	"github.com/hatlonely/entmap/uid/strgen"
	"github.com/hatlonely/entmap/validate"
)

var (
	// ErrValidation 实体校验失败，字段错误写在实体上
	ErrValidation = errors.New("validation failed")
	// ErrNoExecutor 没有配置执行器时不能查询
	ErrNoExecutor = errors.New("executor is not configured")
)

// DataAccessService 组合实体转换、校验、对象存储和查询执行器，对外只暴露通用实体
type DataAccessService struct {
	service   *convert.EntityService
	objects   store.ObjectStore
	executor  executor.Executor
	indexer   executor.Indexer
	validator *validate.Validator
	ids       intgen.IntGenerator
	opIDs     strgen.StrGenerator

	cache      kvstore.Store
	cacheTTL   time.Duration
	serializer serializer.Serializer

	log     logger.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type Option func(*DataAccessService)

// WithExecutor 设置查询执行器，同时用于唯一性校验
// 执行器实现了 executor.Indexer 时，保存和删除会同步执行器中的记录
func WithExecutor(e executor.Executor) Option {
	return func(s *DataAccessService) {
		s.executor = e
		if indexer, ok := e.(executor.Indexer); ok {
			s.indexer = indexer
		}
	}
}

// WithIndexer 单独设置记录同步的目标，传入 nil 关闭同步
func WithIndexer(indexer executor.Indexer) Option {
	return func(s *DataAccessService) {
		s.indexer = indexer
	}
}

func WithValidator(v *validate.Validator) Option {
	return func(s *DataAccessService) {
		s.validator = v
	}
}

func WithIDGenerator(g intgen.IntGenerator) Option {
	return func(s *DataAccessService) {
		s.ids = g
	}
}

func WithOperationIDGenerator(g strgen.StrGenerator) Option {
	return func(s *DataAccessService) {
		s.opIDs = g
	}
}

// WithCache 缓存 Get 返回的通用实体，保存和删除时失效
func WithCache(cache kvstore.Store, ttl time.Duration) Option {
	return func(s *DataAccessService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *DataAccessService) {
		s.log = logger.OrDiscard(log)
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *DataAccessService) {
		s.metrics = metrics
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *DataAccessService) {
		s.tracer = tracer
	}
}

func NewDataAccessService(service *convert.EntityService, objects store.ObjectStore, opts ...Option) *DataAccessService {
	s := &DataAccessService{
		service:    service,
		objects:    objects,
		ids:        intgen.NewSnowflakeGeneratorWithOptions(nil),
		opIDs:      strgen.NewULIDGeneratorWithOptions(nil),
		serializer: serializer.NewEntitySerializer(),
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		var vopts []validate.Option
		if s.executor != nil {
			vopts = append(vopts, validate.WithCounter(s.executor))
		}
		s.validator = validate.NewValidator(vopts...)
	}
	return s
}

func cacheKey(dd *schema.DataDefinition, id int64) string {
	return "entity:" + dd.FullName() + ":" + strconv.FormatInt(id, 10)
}

// Get 读取实体，包括已软删除的实体，不存在时返回 store.ErrNotFound
func (s *DataAccessService) Get(ctx context.Context, dd *schema.DataDefinition, id int64) (*entity.Entity, error) {
	var e *entity.Entity
	err := s.observe(ctx, "get", dd.FullName(), func(ctx context.Context) error {
		if cached := s.getCache(ctx, dd, id); cached != nil {
			e = cached
			return nil
		}

		obj, err := store.Get(ctx, s.objects, dd, id)
		if err != nil {
			return err
		}
		if e, err = s.service.ConvertToGenericEntity(dd, obj); err != nil {
			return err
		}
		s.setCache(ctx, dd, e)
		return nil
	})
	return e, err
}

// Save 校验并保存实体。没有 id 时新建并分配 id，有 id 时更新已有对象中出现的字段
// 保存之后同步执行器中的记录
// 校验失败返回 ErrValidation，字段错误写入 e
func (s *DataAccessService) Save(ctx context.Context, dd *schema.DataDefinition, e *entity.Entity) (*entity.Entity, error) {
	var saved *entity.Entity
	err := s.observe(ctx, "save", dd.FullName(), func(ctx context.Context) error {
		var existing any
		if e.HasID() {
			obj, err := store.Get(ctx, s.objects, dd, e.ID())
			if err != nil {
				return err
			}
			existing = obj
		}

		ok, err := s.validator.Validate(ctx, dd, e, existing)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrValidation, "%s: %v", dd.FullName(), e.Errors())
		}

		obj, err := s.service.ConvertToDatabaseEntity(ctx, dd, e, existing)
		if err != nil {
			return err
		}
		if existing == nil {
			id, err := s.ids.Generate(ctx, dd.FullName())
			if err != nil {
				return errors.WithMessagef(err, "generate id for %s failed", dd.FullName())
			}
			if err := s.service.SetID(dd, obj, id); err != nil {
				return err
			}
		}

		if err := s.objects.Save(ctx, dd, obj); err != nil {
			return err
		}
		saved, err = s.service.ConvertToGenericEntity(dd, obj)
		if err != nil {
			return err
		}
		s.invalidate(ctx, dd, saved.ID())
		e.SetID(saved.ID())
		return s.index(ctx, dd, saved)
	})
	return saved, err
}

// Delete 软删除，只设置删除标记后保存，并从执行器中移除；任一 id 不存在时返回 store.ErrNotFound，之前的 id 已经删除
func (s *DataAccessService) Delete(ctx context.Context, dd *schema.DataDefinition, ids ...int64) error {
	return s.observe(ctx, "delete", dd.FullName(), func(ctx context.Context) error {
		for _, id := range ids {
			obj, err := store.Get(ctx, s.objects, dd, id)
			if err != nil {
				return err
			}
			if err := s.service.SetDeleted(dd, obj); err != nil {
				return err
			}
			if err := s.objects.Save(ctx, dd, obj); err != nil {
				return err
			}
			s.invalidate(ctx, dd, id)
			if err := s.unindex(ctx, dd, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Purge 物理删除
func (s *DataAccessService) Purge(ctx context.Context, dd *schema.DataDefinition, ids ...int64) error {
	return s.observe(ctx, "purge", dd.FullName(), func(ctx context.Context) error {
		for _, id := range ids {
			if err := s.objects.Delete(ctx, dd, id); err != nil {
				return err
			}
			s.invalidate(ctx, dd, id)
			if err := s.unindex(ctx, dd, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Find 执行查询，按记录的 id 读取对象并转换为通用实体
// 对象不存在或已删除的记录被跳过，并从总数中扣除；有 grid 时只保留 grid 的列
func (s *DataAccessService) Find(ctx context.Context, criteria *search.Criteria) (*search.ResultPage[*entity.Entity], error) {
	def := criteria.DataDefinition()
	name := def.PluginIdentifier() + "." + def.Name()

	var page *search.ResultPage[*entity.Entity]
	err := s.observe(ctx, "find", name, func(ctx context.Context) error {
		if s.executor == nil {
			return ErrNoExecutor
		}
		dd, err := s.service.Registry().Get(def.PluginIdentifier(), def.Name())
		if err != nil {
			return err
		}
		class, err := dd.ClassForEntity()
		if err != nil {
			return err
		}

		records, err := s.executor.Find(ctx, criteria)
		if err != nil {
			return errors.WithMessagef(err, "execute %s failed", criteria)
		}

		var grid []string
		if g := criteria.GridDefinition(); g != nil {
			grid = g.Columns
		}

		total := records.Total
		entities := make([]*entity.Entity, 0, len(records.Entities))
		for _, record := range records.Entities {
			id, err := executor.RecordID(record, dd.IdentifierField())
			if err != nil {
				return err
			}
			obj, err := s.objects.Lookup(ctx, class, id)
			if err != nil {
				return err
			}
			if obj == nil {
				s.log.WarnContext(ctx, "record without object", "definition", name, "id", id)
				total--
				continue
			}
			deleted, err := s.service.IsDeleted(dd, obj)
			if err != nil {
				return err
			}
			if deleted {
				total--
				continue
			}
			e, err := s.service.ConvertToGenericEntity(dd, obj)
			if err != nil {
				return err
			}
			if grid != nil {
				e = project(e, grid)
			}
			entities = append(entities, e)
		}

		if s.metrics != nil {
			s.metrics.resultSize.WithLabelValues(name).Observe(float64(len(entities)))
		}
		page = search.NewResultPage(total, entities)
		return nil
	})
	return page, err
}

// Count 满足条件的记录数
func (s *DataAccessService) Count(ctx context.Context, criteria *search.Criteria) (int64, error) {
	def := criteria.DataDefinition()
	var n int64
	err := s.observe(ctx, "count", def.PluginIdentifier()+"."+def.Name(), func(ctx context.Context) error {
		if s.executor == nil {
			return ErrNoExecutor
		}
		var err error
		n, err = s.executor.Count(ctx, criteria)
		return err
	})
	return n, err
}

func project(e *entity.Entity, columns []string) *entity.Entity {
	p := entity.NewWithID(e.ID())
	p.SetDeleted(e.IsDeleted())
	for _, column := range columns {
		if v, ok := e.Lookup(column); ok {
			p.SetField(column, v)
		}
	}
	return p
}

// getCache 缓存读取失败只记录日志
func (s *DataAccessService) getCache(ctx context.Context, dd *schema.DataDefinition, id int64) *entity.Entity {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, cacheKey(dd, id))
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			s.log.WarnContext(ctx, "cache get failed", "definition", dd.FullName(), "id", id, "error", err.Error())
		}
		return nil
	}
	e := entity.New()
	if err := s.serializer.Deserialize(data, e); err != nil {
		s.log.WarnContext(ctx, "cache entry corrupted", "definition", dd.FullName(), "id", id, "error", err.Error())
		return nil
	}
	return e
}

func (s *DataAccessService) setCache(ctx context.Context, dd *schema.DataDefinition, e *entity.Entity) {
	if s.cache == nil {
		return
	}
	data, err := s.serializer.Serialize(e)
	if err != nil {
		s.log.WarnContext(ctx, "cache serialize failed", "definition", dd.FullName(), "id", e.ID(), "error", err.Error())
		return
	}
	var opts []kvstore.SetOption
	if s.cacheTTL > 0 {
		opts = append(opts, kvstore.WithExpiration(s.cacheTTL))
	}
	if err := s.cache.Set(ctx, cacheKey(dd, e.ID()), data, opts...); err != nil {
		s.log.WarnContext(ctx, "cache set failed", "definition", dd.FullName(), "id", e.ID(), "error", err.Error())
	}
}

func (s *DataAccessService) invalidate(ctx context.Context, dd *schema.DataDefinition, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(dd, id)); err != nil {
		s.log.WarnContext(ctx, "cache invalidate failed", "definition", dd.FullName(), "id", id, "error", err.Error())
	}
}
