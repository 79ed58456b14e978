package storage

import (
	"testing"
	"time"

	"github.com/hatlonely/entmap/ref"
	. "github.com/smartystreets/goconvey/convey"
)

type redisOptions struct {
	Addr    string        `cfg:"addr" def:"localhost:6379"`
	DB      int           `cfg:"db"`
	Timeout time.Duration `cfg:"timeout"`
}

type serviceOptions struct {
	Name     string            `cfg:"name" validate:"required"`
	Port     int64             `cfg:"port"`
	Ratio    float32           `cfg:"ratio"`
	Enable   bool              `cfg:"enable"`
	Since    time.Time         `cfg:"since"`
	Labels   map[string]string `cfg:"labels"`
	Backends []*redisOptions   `cfg:"backends"`
	Store    ref.TypeOptions   `cfg:"store"`
	Ignored  string            `cfg:"-"`
	Untagged string
}

var document = map[string]any{
	"name":   "entmap",
	"port":   8080,
	"ratio":  0.5,
	"enable": "true",
	"since":  "2024-05-01",
	"labels": map[string]any{"env": "test", "version": 2},
	"backends": []any{
		map[string]any{"addr": "10.0.0.1:6379", "db": 1, "timeout": "100ms"},
		map[string]any{"db": 2},
	},
	"store": map[string]any{
		"namespace": "github.com/hatlonely/entmap/kv/store",
		"type":      "RedisStore",
		"options":   map[string]any{"addr": "127.0.0.1:6379", "db": 3},
	},
	"Ignored":  "x",
	"untagged": "y",
}

func TestMapStorage(t *testing.T) {
	Convey("MapStorage", t, func() {
		s := NewMapStorage(document)

		Convey("ConvertTo 结构体", func() {
			var options serviceOptions
			So(s.ConvertTo(&options), ShouldBeNil)
			So(options.Name, ShouldEqual, "entmap")
			So(options.Port, ShouldEqual, 8080)
			So(options.Ratio, ShouldEqual, float32(0.5))
			So(options.Enable, ShouldBeTrue)
			So(options.Since, ShouldEqual, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
			So(options.Labels, ShouldResemble, map[string]string{"env": "test", "version": "2"})
			So(options.Backends, ShouldHaveLength, 2)
			So(options.Backends[0].Timeout, ShouldEqual, 100*time.Millisecond)
			So(options.Backends[1].Addr, ShouldEqual, "")
			So(options.Ignored, ShouldEqual, "")
			So(options.Untagged, ShouldEqual, "y")

			Convey("TypeOptions 的 Options 保留为 Storage", func() {
				So(options.Store.Type, ShouldEqual, "RedisStore")
				sub, ok := options.Store.Options.(Storage)
				So(ok, ShouldBeTrue)
				var redis redisOptions
				So(sub.ConvertTo(&redis), ShouldBeNil)
				So(redis.Addr, ShouldEqual, "127.0.0.1:6379")
				So(redis.DB, ShouldEqual, 3)
			})
		})

		Convey("Sub", func() {
			var db int
			So(s.Sub("backends[0].db").ConvertTo(&db), ShouldBeNil)
			So(db, ShouldEqual, 1)

			var env string
			So(s.Sub("labels.env").ConvertTo(&env), ShouldBeNil)
			So(env, ShouldEqual, "test")

			So(s.Sub(""), ShouldEqual, s)
			So(s.Sub("missing.key").(*MapStorage).Data(), ShouldBeNil)
			So(s.Sub("backends[9]").(*MapStorage).Data(), ShouldBeNil)
		})

		Convey("类型错误", func() {
			var options serviceOptions
			err := NewMapStorage(map[string]any{"backends": "oops"}).ConvertTo(&options)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "backends")

			So(s.ConvertTo(options), ShouldNotBeNil)
		})
	})
}

func TestValidateStorage(t *testing.T) {
	Convey("ValidateStorage", t, func() {
		Convey("默认值与校验", func() {
			s := NewValidateStorage(NewMapStorage(document))
			var options serviceOptions
			So(s.ConvertTo(&options), ShouldBeNil)
			So(options.Backends[1].Addr, ShouldEqual, "localhost:6379")

			var redis redisOptions
			So(s.Sub("backends[1]").ConvertTo(&redis), ShouldBeNil)
			So(redis.Addr, ShouldEqual, "localhost:6379")
		})

		Convey("校验失败", func() {
			s := NewValidateStorage(NewMapStorage(map[string]any{"port": 1}))
			var options serviceOptions
			err := s.ConvertTo(&options)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "validate failed")
		})
	})
}
