package def

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type storeOptions struct {
	Type    string        `def:"map"`
	Prefix  string        `def:"entity"`
	Timeout time.Duration `def:"200ms"`
	Retries int           `def:"3"`
	Ratio   float64       `def:"0.5"`
	Enable  *bool         `def:"true"`
	Tags    []string      `def:"a, b"`
	Since   time.Time     `def:"2024-01-02"`

	Redis  redisOptions
	Tiered *redisOptions
	Fields []fieldOptions
}

type redisOptions struct {
	Addr string `def:"localhost:6379"`
	DB   int
}

type fieldOptions struct {
	Name    string
	Default string `def:"-"`
}

func TestSetDefaults(t *testing.T) {
	Convey("SetDefaults", t, func() {
		Convey("零值字段设置为默认值", func() {
			options := &storeOptions{Fields: []fieldOptions{{Name: "a"}, {Name: "b", Default: "x"}}}
			So(SetDefaults(options), ShouldBeNil)
			So(options.Type, ShouldEqual, "map")
			So(options.Prefix, ShouldEqual, "entity")
			So(options.Timeout, ShouldEqual, 200*time.Millisecond)
			So(options.Retries, ShouldEqual, 3)
			So(options.Ratio, ShouldEqual, 0.5)
			So(*options.Enable, ShouldBeTrue)
			So(options.Tags, ShouldResemble, []string{"a", "b"})
			So(options.Since, ShouldEqual, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			So(options.Redis.Addr, ShouldEqual, "localhost:6379")
			So(options.Tiered, ShouldBeNil)
			So(options.Fields[0].Default, ShouldEqual, "-")
			So(options.Fields[1].Default, ShouldEqual, "x")
		})

		Convey("非零值保持不变", func() {
			options := &storeOptions{Type: "redis", Retries: 5, Tiered: &redisOptions{}}
			So(SetDefaults(options), ShouldBeNil)
			So(options.Type, ShouldEqual, "redis")
			So(options.Retries, ShouldEqual, 5)
			So(options.Tiered.Addr, ShouldEqual, "localhost:6379")
		})

		Convey("非法参数", func() {
			So(SetDefaults(nil), ShouldNotBeNil)
			So(SetDefaults(storeOptions{}), ShouldNotBeNil)
			So(SetDefaults(&struct {
				N int `def:"abc"`
			}{}), ShouldNotBeNil)
		})
	})
}
