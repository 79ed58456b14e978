package schema

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/entmap/ref"
	"github.com/hatlonely/entmap/search"
)

type noIdentifier struct {
	Name string
}

var noIdentifierType = ref.RegisterType[noIdentifier]()

func TestNewDataDefinition(t *testing.T) {
	f := newFixture()

	Convey("默认值", t, func() {
		dd := f.order
		So(dd.PluginIdentifier(), ShouldEqual, "sales")
		So(dd.Name(), ShouldEqual, "order")
		So(dd.FullName(), ShouldEqual, "sales.order")
		So(dd.String(), ShouldEqual, "sales.order")
		So(dd.TypeName(), ShouldEqual, orderType)
		So(dd.IdentifierField(), ShouldEqual, "id")
		So(dd.TableName(), ShouldEqual, "sales_order")
		So(dd.DeletedField(), ShouldEqual, "deleted")
	})

	Convey("选项", t, func() {
		dd, err := NewDataDefinition("crm", "customer", customerType,
			WithIdentifierField("ID"), WithTableName("customers"), WithDeletedField("Deleted"))
		So(err, ShouldBeNil)
		So(dd.IdentifierField(), ShouldEqual, "ID")
		So(dd.TableName(), ShouldEqual, "customers")
		So(dd.DeletedField(), ShouldEqual, "Deleted")
	})

	Convey("非法定义", t, func() {
		name := NewFieldDefinition("Name").WithType(f.factory.StringType())
		cases := []struct {
			plugin, name, typeName string
			opts                   []DataDefinitionOption
		}{
			{"", "customer", customerType, nil},
			{"crm", "", customerType, nil},
			{"crm", "customer", "", nil},
			{"crm", "customer", customerType, []DataDefinitionOption{WithIdentifierField("")}},
			{"crm", "customer", customerType, []DataDefinitionOption{WithFields(name, name)}},
			{"crm", "customer", customerType, []DataDefinitionOption{WithFields(NewFieldDefinition("id").WithType(f.factory.IntegerType()))}},
			{"crm", "customer", customerType, []DataDefinitionOption{WithFields(NewFieldDefinition("Name"))}},
			{"crm", "customer", customerType, []DataDefinitionOption{WithFields(NewFieldDefinition(""))}},
		}
		for _, c := range cases {
			_, err := NewDataDefinition(c.plugin, c.name, c.typeName, c.opts...)
			So(errors.Is(err, ErrStructural), ShouldBeTrue)
		}
	})

	Convey("字段", t, func() {
		fd, err := f.order.Field("State")
		So(err, ShouldBeNil)
		So(fd.Default(), ShouldEqual, "draft")
		So(f.order.HasField("State"), ShouldBeTrue)

		_, err = f.order.Field("Missing")
		So(errors.Is(err, ErrStructural), ShouldBeTrue)

		fields := f.order.Fields()
		So(len(fields), ShouldEqual, 9)
		So(fields[0].Name(), ShouldEqual, "number")
		So(fields[8].Name(), ShouldEqual, "Lines")

		fields[0] = nil
		So(f.order.Fields()[0], ShouldNotBeNil)
	})

	Convey("FieldDefinition 写时复制", t, func() {
		base := NewFieldDefinition("Name")
		fd := base.WithType(f.factory.StringType()).WithRequired().WithUnique().WithReadOnly().WithValidation("max=8")
		So(base.Type(), ShouldBeNil)
		So(base.Required(), ShouldBeFalse)
		So(fd.Required(), ShouldBeTrue)
		So(fd.Unique(), ShouldBeTrue)
		So(fd.ReadOnly(), ShouldBeTrue)
		So(fd.Validation(), ShouldEqual, "max=8")
		So(fd.IsBelongsTo(), ShouldBeFalse)
		So(NewFieldDefinition("c").WithType(f.factory.BelongsToType("crm", "customer")).IsBelongsTo(), ShouldBeTrue)
	})
}

func TestClassForEntity(t *testing.T) {
	f := newFixture()

	Convey("解析具体类型", t, func() {
		class, err := f.order.ClassForEntity()
		So(err, ShouldBeNil)
		So(class, ShouldEqual, reflectTypeOf[Order]())
	})

	Convey("解析失败被缓存", t, func() {
		dd := mustDefinition(NewDataDefinition("crm", "ghost", "github.com/acme/crm.Ghost"))
		_, err := dd.ClassForEntity()
		So(errors.Is(err, ErrStructural), ShouldBeTrue)

		ref.RegisterType[Customer]()
		_, again := dd.ClassForEntity()
		So(again, ShouldEqual, err)
	})

	Convey("缺少 id 属性", t, func() {
		dd := mustDefinition(NewDataDefinition("crm", "noid", noIdentifierType))
		_, err := dd.ClassForEntity()
		So(errors.Is(err, ErrStructural), ShouldBeTrue)
	})
}

func TestIDAndDeleted(t *testing.T) {
	f := newFixture()

	Convey("id", t, func() {
		id, err := f.customer.IDOf(&Customer{ID: 3})
		So(err, ShouldBeNil)
		So(id, ShouldEqual, 3)

		id, err = f.customer.IDOf(Customer{})
		So(err, ShouldBeNil)
		So(id, ShouldEqual, 0)
	})

	Convey("软删除", t, func() {
		deleted, err := f.customer.IsDeleted(&Customer{Deleted: true})
		So(err, ShouldBeNil)
		So(deleted, ShouldBeTrue)

		deleted, err = f.order.IsDeleted(&Order{})
		So(err, ShouldBeNil)
		So(deleted, ShouldBeFalse)
	})
}

func TestFind(t *testing.T) {
	f := newFixture()

	Convey("默认查询条件", t, func() {
		c := f.order.Find()
		So(c.DataDefinition(), ShouldEqual, f.order)
		So(c.FirstResult(), ShouldEqual, 0)
		So(c.MaxResults(), ShouldEqual, search.DefaultMaxResults)
		So(c.Order().Field(), ShouldEqual, "id")
		So(c.Order().Ascending(), ShouldBeTrue)
		So(c.Restrictions(), ShouldBeEmpty)

		c2, err := c.RestrictedWith(search.Eq("number", "SO-1"))
		So(err, ShouldBeNil)
		So(len(c2.Restrictions()), ShouldEqual, 1)
		So(f.order.Find().Restrictions(), ShouldBeEmpty)
	})
}
