package schema

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistry(t *testing.T) {
	Convey("注册和查询", t, func() {
		f := newFixture()

		dd, err := f.registry.Get("sales", "order")
		So(err, ShouldBeNil)
		So(dd, ShouldEqual, f.order)
		So(f.registry.MustGet("crm", "customer"), ShouldEqual, f.customer)

		_, err = f.registry.Get("sales", "invoice")
		So(errors.Is(err, ErrStructural), ShouldBeTrue)
		So(func() { f.registry.MustGet("sales", "invoice") }, ShouldPanic)

		var names []string
		for _, dd := range f.registry.List() {
			names = append(names, dd.FullName())
		}
		So(names, ShouldResemble, []string{"crm.customer", "sales.line", "sales.order"})
	})

	Convey("按类型查找", t, func() {
		f := newFixture()
		dd, err := f.registry.ForType(reflectTypeOf[Order]())
		So(err, ShouldBeNil)
		So(dd, ShouldEqual, f.order)

		dd, err = f.registry.ForType(reflectTypeOf[*Line]())
		So(err, ShouldBeNil)
		So(dd, ShouldEqual, f.line)

		_, err = f.registry.ForType(reflectTypeOf[tagged]())
		So(errors.Is(err, ErrStructural), ShouldBeTrue)
	})

	Convey("Seal 之后只读", t, func() {
		f := newFixture()
		So(f.registry.Sealed(), ShouldBeTrue)
		dd := mustDefinition(NewDataDefinition("crm", "contact", customerType))
		So(errors.Is(f.registry.Register(dd), ErrStructural), ShouldBeTrue)
	})

	Convey("重复注册", t, func() {
		r := NewRegistry()
		dd := mustDefinition(NewDataDefinition("crm", "customer", customerType))
		So(r.Register(dd), ShouldBeNil)
		So(errors.Is(r.Register(dd), ErrStructural), ShouldBeTrue)
		So(r.Sealed(), ShouldBeFalse)
	})

	Convey("Verify", t, func() {
		Convey("完整的 schema", func() {
			So(newFixture().registry.Verify(), ShouldBeNil)
		})

		Convey("引用未注册的定义", func() {
			r := NewRegistry()
			factory := NewFieldTypeFactory(r)
			So(r.Register(mustDefinition(NewDataDefinition("sales", "line", lineType, WithFields(
				NewFieldDefinition("Order").WithType(factory.BelongsToType("sales", "order")),
			)))), ShouldBeNil)
			So(errors.Is(r.Verify(), ErrStructural), ShouldBeTrue)
			So(errors.Is(r.VerifyReferences(), ErrStructural), ShouldBeTrue)
		})

		Convey("只检查引用时不解析类型", func() {
			r := NewRegistry()
			factory := NewFieldTypeFactory(r)
			So(r.Register(
				mustDefinition(NewDataDefinition("crm", "customer", "github.com/acme/crm.Customer")),
				mustDefinition(NewDataDefinition("sales", "order", "github.com/acme/sales.Order", WithFields(
					NewFieldDefinition("customer").WithType(factory.BelongsToType("crm", "customer")),
				))),
			), ShouldBeNil)
			So(r.VerifyReferences(), ShouldBeNil)
			So(errors.Is(r.Verify(), ErrStructural), ShouldBeTrue)
		})

		Convey("属性不存在", func() {
			r := NewRegistry()
			factory := NewFieldTypeFactory(r)
			So(r.Register(mustDefinition(NewDataDefinition("crm", "customer", customerType, WithFields(
				NewFieldDefinition("Email").WithType(factory.StringType()),
			)))), ShouldBeNil)
			So(errors.Is(r.Verify(), ErrStructural), ShouldBeTrue)
		})

		Convey("join 字段不存在", func() {
			r := NewRegistry()
			factory := NewFieldTypeFactory(r)
			So(r.Register(
				mustDefinition(NewDataDefinition("sales", "order", orderType, WithFields(
					NewFieldDefinition("Lines").WithType(factory.HasManyType("sales", "line", "Order")),
				))),
				mustDefinition(NewDataDefinition("sales", "line", lineType)),
			), ShouldBeNil)
			So(errors.Is(r.Verify(), ErrStructural), ShouldBeTrue)
		})
	})
}
