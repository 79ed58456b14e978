package dataaccess

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/entmap/store"
)

// Metrics 数据访问操作的 prometheus 指标
type Metrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	resultSize        *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标，同名指标已注册时复用已有的
func NewMetrics(name string, registerer prometheus.Registerer) *Metrics {
	return &Metrics{
		operationCounter: registerCollector(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of data access operations",
			},
			[]string{"operation", "definition", "status"},
		)),
		operationDuration: registerCollector(registerer, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of data access operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation", "definition"},
		)),
		resultSize: registerCollector(registerer, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_result_size",
				Help:    "Number of entities returned by find",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"definition"},
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

// status 校验失败和对象不存在属于业务结果，不计为错误
func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, store.ErrNotFound):
		return "notFound"
	}
	return "error"
}

// observe 为一次操作生成操作 id，并记录 span、指标和日志
func (s *DataAccessService) observe(ctx context.Context, operation string, definition string, fn func(context.Context) error) error {
	start := time.Now()
	opID := s.opIDs.Generate()

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "dataaccess."+operation, trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("definition", definition),
			attribute.String("operationId", opID),
		))
		defer span.End()
	}

	err := fn(ctx)
	st := status(err)
	duration := time.Since(start)

	if span != nil {
		if st == "error" {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if s.metrics != nil {
		s.metrics.operationCounter.WithLabelValues(operation, definition, st).Inc()
		s.metrics.operationDuration.WithLabelValues(operation, definition).Observe(duration.Seconds())
	}

	switch st {
	case "error":
		s.log.ErrorContext(ctx, "data access failed",
			"operationId", opID,
			"operation", operation,
			"definition", definition,
			"durationMs", duration.Milliseconds(),
			"error", err.Error(),
		)
	default:
		s.log.DebugContext(ctx, "data access completed",
			"operationId", opID,
			"operation", operation,
			"definition", definition,
			"status", st,
			"durationMs", duration.Milliseconds(),
		)
	}
	return err
}
