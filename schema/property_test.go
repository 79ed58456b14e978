package schema

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type tagged struct {
	ID       int64
	Title    string `entity:"name"`
	Name     string
	Hidden   string `entity:"-"`
	Count    *int
	Ratio    float32
	Tags     []string
	internal string
}

func TestProperty(t *testing.T) {
	Convey("属性匹配", t, func() {
		Convey("entity tag 优先于字段名", func() {
			obj := &tagged{Title: "title", Name: "name"}
			v, err := GetProperty(obj, "name")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "title")

			v, err = GetProperty(obj, "Name")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "name")
		})

		Convey("忽略大小写", func() {
			v, err := GetProperty(&tagged{Ratio: 0.5}, "RATIO")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, float32(0.5))
		})

		Convey("忽略 - 和未导出字段", func() {
			So(HasProperty(&tagged{}, "Hidden"), ShouldBeFalse)
			So(HasProperty(&tagged{}, "internal"), ShouldBeFalse)
			So(HasProperty(&tagged{}, "Tags"), ShouldBeTrue)
		})

		Convey("非结构体", func() {
			_, err := GetProperty(42, "id")
			So(errors.Is(err, ErrStructural), ShouldBeTrue)
			var obj *tagged
			_, err = GetProperty(obj, "id")
			So(errors.Is(err, ErrStructural), ShouldBeTrue)
		})

		Convey("属性类型", func() {
			rt, err := PropertyType(reflect.TypeOf(&tagged{}), "count")
			So(err, ShouldBeNil)
			So(rt, ShouldEqual, reflect.TypeOf((*int)(nil)))
			_, err = PropertyType(reflect.TypeOf(&tagged{}), "missing")
			So(errors.Is(err, ErrStructural), ShouldBeTrue)
		})
	})

	Convey("读取 nil", t, func() {
		v, err := GetProperty(&tagged{}, "Count")
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)

		v, err = GetProperty(&tagged{}, "Tags")
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)
	})

	Convey("赋值", t, func() {
		obj := &tagged{}

		Convey("数值适配", func() {
			So(SetProperty(obj, "ID", 7), ShouldBeNil)
			So(obj.ID, ShouldEqual, 7)
			So(SetProperty(obj, "Ratio", int64(2)), ShouldBeNil)
			So(obj.Ratio, ShouldEqual, float32(2))
			So(SetProperty(obj, "Count", int64(3)), ShouldBeNil)
			So(*obj.Count, ShouldEqual, 3)
		})

		Convey("slice 逐项转换", func() {
			So(SetProperty(obj, "Tags", []any{"a", "b"}), ShouldBeNil)
			So(obj.Tags, ShouldResemble, []string{"a", "b"})
		})

		Convey("nil 清空可空属性", func() {
			n := 1
			obj.Count = &n
			obj.Tags = []string{"a"}
			So(SetProperty(obj, "Count", nil), ShouldBeNil)
			So(SetProperty(obj, "Tags", nil), ShouldBeNil)
			So(obj.Count, ShouldBeNil)
			So(obj.Tags, ShouldBeNil)
		})

		Convey("nil 写入不可空属性", func() {
			obj.Name = "Mr X"
			err := SetProperty(obj, "Name", nil)
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
			So(obj.Name, ShouldEqual, "Mr X")
		})

		Convey("类型不匹配", func() {
			So(errors.Is(SetProperty(obj, "Name", 1), ErrTypeMismatch), ShouldBeTrue)
			So(errors.Is(SetProperty(obj, "ID", "1"), ErrTypeMismatch), ShouldBeTrue)
			So(errors.Is(SetProperty(obj, "ID", 1.5), ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("host 必须是指针", func() {
			So(errors.Is(SetProperty(tagged{}, "Name", "x"), ErrStructural), ShouldBeTrue)
			So(errors.Is(SetProperty(obj, "missing", "x"), ErrStructural), ShouldBeTrue)
		})
	})
}
