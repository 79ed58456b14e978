package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/hatlonely/entmap/cfg"
	"github.com/hatlonely/entmap/convert"
	"github.com/hatlonely/entmap/dataaccess"
	"github.com/hatlonely/entmap/dictionary"
	"github.com/hatlonely/entmap/executor"
	"github.com/hatlonely/entmap/kv/serializer"
	kvstore "github.com/hatlonely/entmap/kv/store"
	"github.com/hatlonely/entmap/log"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/ref"
	"github.com/hatlonely/entmap/schema"
	"github.com/hatlonely/entmap/store"
	"github.com/hatlonely/entmap/uid/intgen"
	"github.com/hatlonely/entmap/uid/strgen"
	"github.com/hatlonely/entmap/validate"
)

// Options 应用配置
//
//	loggers:
//	  default:
//	    namespace: github.com/hatlonely/entmap/log/logger
//	    type: SLog
//	    options: {level: info, format: json}
//	schemaDir: schema
//	dictionaryDir: dictionary
//	store:
//	  namespace: github.com/hatlonely/entmap/kv/store
//	  type: BoltDBStore
//	  options: {filePath: data/entity.db}
//	executor:
//	  namespace: github.com/hatlonely/entmap/executor
//	  type: SQLExecutor
//	  options: {driver: sqlite3, dsn: data/search.db}
type Options struct {
	Loggers log.Options `cfg:"loggers"`

	SchemaDir         string `cfg:"schemaDir" validate:"required"`
	DictionaryDir     string `cfg:"dictionaryDir"`
	WatchDictionaries bool   `cfg:"watchDictionaries"`

	// Store 保存对象快照的 kv 存储，为空时使用内存存储
	Store *ref.TypeOptions `cfg:"store"`
	// Serializer 对象快照的编码，为空时使用 EntitySerializer
	Serializer *ref.TypeOptions `cfg:"serializer"`
	// Executor 为空时不支持查询和唯一性检查
	Executor             *ref.TypeOptions `cfg:"executor"`
	IDGenerator          *ref.TypeOptions `cfg:"idGenerator"`
	OperationIDGenerator *ref.TypeOptions `cfg:"operationIdGenerator"`

	// Cache 缓存 Get 读取的通用实体
	Cache    *ref.TypeOptions `cfg:"cache"`
	CacheTTL time.Duration    `cfg:"cacheTTL" def:"5m"`

	Validator validate.Options `cfg:"validator"`

	EnableMetrics bool   `cfg:"enableMetrics"`
	MetricsName   string `cfg:"metricsName" def:"entmap"`
	EnableTracing bool   `cfg:"enableTracing"`
}

// App 按配置组装的所有组件，Close 时按创建的逆序释放
type App struct {
	Logs       *log.LogManager
	Catalog    *dictionary.Catalog
	Registry   *schema.Registry
	Service    *convert.EntityService
	Objects    *store.KVStore
	Executor   executor.Executor
	DataAccess *dataaccess.DataAccessService

	log     logger.Logger
	watcher *dictionary.Watcher
	cancel  context.CancelFunc
	closers []func() error
}

// NewApp 从配置文件创建
func NewApp(ctx context.Context, filename string) (*App, error) {
	c, err := cfg.NewConfig(filename)
	if err != nil {
		return nil, errors.WithMessage(err, "cfg.NewConfig failed")
	}
	var options Options
	if err := c.ConvertTo(&options); err != nil {
		return nil, errors.WithMessagef(err, "invalid config %s", filename)
	}
	return NewAppWithOptions(ctx, &options)
}

func NewAppWithOptions(ctx context.Context, options *Options) (_ *App, err error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.Logs, err = log.NewLogManagerWithOptions(options.Loggers); err != nil {
		return nil, errors.WithMessage(err, "create loggers failed")
	}
	a.log = a.Logs.GetDefault()

	if err = a.initCatalog(options); err != nil {
		return nil, err
	}

	kv, err := newKVStore(options.Store)
	if err != nil {
		return nil, errors.WithMessage(err, "create store failed")
	}
	a.closers = append(a.closers, kv.Close)

	a.Registry = schema.NewRegistry()
	a.Service = convert.NewEntityService(a.Registry, convert.WithLogger(a.Logs.GetLogger("convert")))
	storeOpts := []store.KVStoreOption{store.WithLogger(a.Logs.GetLogger("store"))}
	if options.Serializer != nil {
		s, err := serializer.NewSerializerWithOptions(options.Serializer)
		if err != nil {
			return nil, errors.WithMessage(err, "create serializer failed")
		}
		storeOpts = append(storeOpts, store.WithSerializer(s))
	}
	a.Objects = store.NewKVStore(kv, a.Service, storeOpts...)

	factory := schema.NewFieldTypeFactory(a.Registry, schema.WithObjectLookup(a.Objects), schema.WithDictionary(a.Catalog))
	dds, err := schema.NewLoader(factory).LoadDir(ctx, options.SchemaDir)
	if err != nil {
		return nil, errors.WithMessage(err, "load schema failed")
	}
	a.Registry.Seal()
	if err = a.Registry.Verify(); err != nil {
		return nil, errors.WithMessage(err, "verify schema failed")
	}
	a.log.Info("schema loaded", "dir", options.SchemaDir, "definitions", len(dds))

	if options.Executor != nil {
		if a.Executor, err = executor.NewExecutorWithOptions(options.Executor); err != nil {
			return nil, errors.WithMessage(err, "create executor failed")
		}
		a.closers = append(a.closers, a.Executor.Close)
	}

	if a.DataAccess, err = a.newDataAccess(options); err != nil {
		return nil, err
	}

	if a.watcher != nil {
		var watchCtx context.Context
		watchCtx, a.cancel = context.WithCancel(context.Background())
		go a.watcher.Run(watchCtx)
	}
	return a, nil
}

func (a *App) initCatalog(options *Options) (err error) {
	if options.DictionaryDir == "" {
		a.Catalog, err = dictionary.NewCatalog()
		return errors.WithMessage(err, "create catalog failed")
	}

	if a.Catalog, err = dictionary.LoadDir(options.DictionaryDir); err != nil {
		return errors.WithMessage(err, "load dictionaries failed")
	}
	a.log.Info("dictionaries loaded", "dir", options.DictionaryDir, "dictionaries", a.Catalog.Names())

	if !options.WatchDictionaries {
		return nil
	}
	if a.watcher, err = dictionary.NewWatcher(options.DictionaryDir, a.Catalog, a.Logs.GetLogger("dictionary")); err != nil {
		return errors.WithMessage(err, "watch dictionaries failed")
	}
	a.closers = append(a.closers, a.watcher.Close)
	return nil
}

func newKVStore(options *ref.TypeOptions) (kvstore.Store, error) {
	if options == nil {
		return kvstore.NewMapStoreWithOptions(), nil
	}
	return kvstore.NewStoreWithOptions(options)
}

func (a *App) newDataAccess(options *Options) (*dataaccess.DataAccessService, error) {
	opts := []dataaccess.Option{dataaccess.WithLogger(a.Logs.GetLogger("dataaccess"))}

	var vopts []validate.Option
	if a.Executor != nil {
		opts = append(opts, dataaccess.WithExecutor(a.Executor))
		vopts = append(vopts, validate.WithCounter(a.Executor))
	}
	validatorOptions := options.Validator
	opts = append(opts, dataaccess.WithValidator(validate.NewValidatorWithOptions(&validatorOptions, vopts...)))

	if options.IDGenerator != nil {
		ids, err := intgen.NewIntGeneratorWithOptions(options.IDGenerator)
		if err != nil {
			return nil, errors.WithMessage(err, "create id generator failed")
		}
		opts = append(opts, dataaccess.WithIDGenerator(ids))
	}
	if options.OperationIDGenerator != nil {
		opIDs, err := strgen.NewStrGeneratorWithOptions(options.OperationIDGenerator)
		if err != nil {
			return nil, errors.WithMessage(err, "create operation id generator failed")
		}
		opts = append(opts, dataaccess.WithOperationIDGenerator(opIDs))
	}

	if options.Cache != nil {
		cache, err := kvstore.NewStoreWithOptions(options.Cache)
		if err != nil {
			return nil, errors.WithMessage(err, "create cache failed")
		}
		a.closers = append(a.closers, cache.Close)
		opts = append(opts, dataaccess.WithCache(cache, options.CacheTTL))
	}

	if options.EnableMetrics {
		name := options.MetricsName
		if name == "" {
			name = "entmap"
		}
		opts = append(opts, dataaccess.WithMetrics(dataaccess.NewMetrics(name, prometheus.DefaultRegisterer)))
	}
	if options.EnableTracing {
		opts = append(opts, dataaccess.WithTracer(otel.Tracer("github.com/hatlonely/entmap/dataaccess")))
	}

	return dataaccess.NewDataAccessService(a.Service, a.Objects, opts...), nil
}

// Close 停止字典监听并关闭所有存储，返回第一个错误
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
