package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/ref"
)

type failingStore struct {
	*MapStore
}

func (s failingStore) Set(ctx context.Context, key string, value []byte, opts ...SetOption) error {
	return errors.New("disk full")
}

func TestObservableStore(t *testing.T) {
	ctx := context.Background()

	Convey("ObservableStore", t, func() {
		var buf bytes.Buffer
		l, err := logger.NewSLogWithWriter(&buf, &logger.SLogOptions{Level: "debug", Format: "json"})
		So(err, ShouldBeNil)

		metrics := NewObservableMetrics("entity_cache", prometheus.NewRegistry())
		tracer := noop.NewTracerProvider().Tracer("test")

		Convey("记录成功", func() {
			s := NewObservableStore(NewMapStoreWithOptions(), "entityCache", l, metrics, tracer)
			So(s.Set(ctx, "k", []byte("v")), ShouldBeNil)
			value, err := s.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(string(value), ShouldEqual, "v")

			So(testutil.ToFloat64(metrics.operationCounter.WithLabelValues("set", "success")), ShouldBeGreaterThan, 0)
			So(buf.String(), ShouldContainSubstring, "store operation completed")
		})

		Convey("未命中不算错误", func() {
			s := NewObservableStore(NewMapStoreWithOptions(), "entityCache", l, metrics, tracer)
			_, err := s.Get(ctx, "missing")
			So(errors.Is(err, ErrKeyNotFound), ShouldBeTrue)
			So(testutil.ToFloat64(metrics.operationCounter.WithLabelValues("get", "miss")), ShouldEqual, 1)
			So(buf.String(), ShouldNotContainSubstring, "store operation failed")
		})

		Convey("记录失败", func() {
			s := NewObservableStore(failingStore{NewMapStoreWithOptions()}, "entityCache", l, metrics, nil)
			So(s.Set(ctx, "k", []byte("v")), ShouldNotBeNil)
			So(testutil.ToFloat64(metrics.operationCounter.WithLabelValues("set", "error")), ShouldEqual, 1)
			So(buf.String(), ShouldContainSubstring, "disk full")
		})

		Convey("批量操作记录大小", func() {
			s := NewObservableStore(NewMapStoreWithOptions(), "entityCache", nil, metrics, nil)
			_, _, err := s.BatchGet(ctx, []string{"a", "b"})
			So(err, ShouldBeNil)
			So(testutil.CollectAndCount(metrics.batchSize), ShouldEqual, 1)
		})
	})

	Convey("同名指标复用", t, func() {
		registry := prometheus.NewRegistry()
		m1 := NewObservableMetrics("orders", registry)
		m2 := NewObservableMetrics("orders", registry)
		So(m1.operationCounter, ShouldPointTo, m2.operationCounter)
	})

	Convey("按配置创建", t, func() {
		s, err := NewObservableStoreWithOptions(&ObservableStoreOptions{
			Store:         &ref.TypeOptions{Namespace: "github.com/hatlonely/entmap/kv/store", Type: "MapStore"},
			Name:          "entmap_observable_test",
			EnableMetrics: true,
			EnableLogging: true,
			EnableTracing: true,
		})
		So(err, ShouldBeNil)
		So(s.Set(ctx, "k", []byte("v")), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		_, err = NewObservableStoreWithOptions(nil)
		So(err, ShouldNotBeNil)
		_, err = NewObservableStoreWithOptions(&ObservableStoreOptions{
			Store: &ref.TypeOptions{Namespace: "github.com/hatlonely/entmap/kv/store", Type: "EtcdStore"},
		})
		So(err, ShouldNotBeNil)
	})
}
