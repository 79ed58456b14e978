package ref

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type Product struct {
	ID   int64
	Name string
}

func TestTypeRegistry(t *testing.T) {
	Convey("类型注册与解析", t, func() {
		name := RegisterType[Product]()
		So(name, ShouldEqual, "github.com/hatlonely/entmap/ref.Product")

		Convey("全限定名解析", func() {
			rt, err := ResolveType(name)
			So(err, ShouldBeNil)
			So(rt, ShouldEqual, reflect.TypeOf(Product{}))
		})

		Convey("指针形式的名字也可以解析", func() {
			rt, err := ResolveType("*" + name)
			So(err, ShouldBeNil)
			So(rt.Name(), ShouldEqual, "Product")
		})

		Convey("指针类型注册为元素类型", func() {
			So(RegisterType[*Product](), ShouldEqual, name)
		})

		Convey("未注册的类型", func() {
			_, err := ResolveType("github.com/hatlonely/entmap/ref.Missing")
			So(errors.Is(err, ErrTypeNotFound), ShouldBeTrue)
		})

		Convey("TypeName", func() {
			So(TypeName(reflect.TypeOf(&Product{})), ShouldEqual, name)
			So(TypeName(reflect.TypeOf(0)), ShouldEqual, "int")
		})
	})
}
