package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/entmap/log"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/ref"
)

type ObservableStoreOptions struct {
	// Store 被包装的存储
	Store *ref.TypeOptions `cfg:"store" validate:"required"`
	// Logger 为空时使用 log.Default()
	Logger *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics" def:"true"`
	EnableLogging bool `cfg:"enableLogging" def:"true"`
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Name 指标名前缀，同时作为日志和 span 的 component
	Name string `cfg:"name" def:"store"`
}

// ObservableMetrics 存储操作的 prometheus 指标
type ObservableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	batchSize         *prometheus.HistogramVec
}

// NewObservableMetrics 创建并注册指标，同名指标已注册时复用已有的
func NewObservableMetrics(name string, registerer prometheus.Registerer) *ObservableMetrics {
	return &ObservableMetrics{
		operationCounter: registerCollector(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"operation", "status"},
		)),
		operationDuration: registerCollector(registerer, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of store operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation"},
		)),
		batchSize: registerCollector(registerer, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_batch_size",
				Help:    "Number of keys in batch operations",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"operation"},
		)),
	}
}

func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObservableStore 为任意 Store 增加指标、日志和追踪
type ObservableStore struct {
	store Store

	name    string
	logger  logger.Logger
	metrics *ObservableMetrics
	tracer  trace.Tracer
}

func NewObservableStoreWithOptions(options *ObservableStoreOptions) (*ObservableStore, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	store, err := NewStoreWithOptions(options.Store)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying store")
	}

	var l logger.Logger
	if options.EnableLogging {
		l = log.Default()
		if options.Logger != nil {
			if l, err = log.NewLoggerWithOptions(options.Logger); err != nil {
				_ = store.Close()
				return nil, errors.WithMessage(err, "failed to create logger")
			}
		}
	}

	var metrics *ObservableMetrics
	if options.EnableMetrics {
		metrics = NewObservableMetrics(options.Name, prometheus.DefaultRegisterer)
	}

	var tracer trace.Tracer
	if options.EnableTracing {
		tracer = otel.Tracer("github.com/hatlonely/entmap/kv/store")
	}

	return NewObservableStore(store, options.Name, l, metrics, tracer), nil
}

// NewObservableStore 包装已创建的存储，logger、metrics、tracer 为 nil 时不启用对应能力
func NewObservableStore(store Store, name string, l logger.Logger, metrics *ObservableMetrics, tracer trace.Tracer) *ObservableStore {
	if l != nil {
		l = l.WithGroup("observableStore")
	}
	return &ObservableStore{
		store:   store,
		name:    name,
		logger:  l,
		metrics: metrics,
		tracer:  tracer,
	}
}

// observe 记录一次操作，batchSize 小于 0 表示非批量操作
func (obs *ObservableStore) observe(ctx context.Context, operation string, batchSize int, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if obs.tracer != nil {
		attrs := []attribute.KeyValue{
			attribute.String("component", obs.name),
			attribute.String("operation", operation),
		}
		if batchSize >= 0 {
			attrs = append(attrs, attribute.Int("batch_size", batchSize))
		}
		ctx, span = obs.tracer.Start(ctx, "store."+operation, trace.WithAttributes(attrs...))
		defer span.End()
	}

	err := fn(ctx)
	// 键不存在是正常结果
	failed := err != nil && !errors.Is(err, ErrKeyNotFound)
	duration := time.Since(start)

	if span != nil {
		if failed {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.metrics != nil {
		status := "success"
		if failed {
			status = "error"
		} else if err != nil {
			status = "miss"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
		if batchSize >= 0 {
			obs.metrics.batchSize.WithLabelValues(operation).Observe(float64(batchSize))
		}
	}

	if obs.logger != nil {
		if failed {
			obs.logger.ErrorContext(ctx, "store operation failed",
				"component", obs.name,
				"operation", operation,
				"durationMs", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.DebugContext(ctx, "store operation completed",
				"component", obs.name,
				"operation", operation,
				"durationMs", duration.Milliseconds(),
			)
		}
	}

	return err
}

func (obs *ObservableStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	return obs.observe(ctx, "set", -1, func(ctx context.Context) error {
		return obs.store.Set(ctx, key, value, opts...)
	})
}

func (obs *ObservableStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := obs.observe(ctx, "get", -1, func(ctx context.Context) error {
		var err error
		value, err = obs.store.Get(ctx, key)
		return err
	})
	return value, err
}

func (obs *ObservableStore) Del(ctx context.Context, key string) error {
	return obs.observe(ctx, "del", -1, func(ctx context.Context) error {
		return obs.store.Del(ctx, key)
	})
}

func (obs *ObservableStore) BatchGet(ctx context.Context, keys []string) ([][]byte, []error, error) {
	var vals [][]byte
	var errs []error
	err := obs.observe(ctx, "batchGet", len(keys), func(ctx context.Context) error {
		var err error
		vals, errs, err = obs.store.BatchGet(ctx, keys)
		return err
	})
	return vals, errs, err
}

func (obs *ObservableStore) Close() error {
	return obs.observe(context.Background(), "close", -1, func(ctx context.Context) error {
		return obs.store.Close()
	})
}
