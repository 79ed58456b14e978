package schema

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPrimitiveConvert(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	Convey("基础类型转换", t, func() {
		Convey("string", func() {
			v, err := f.factory.StringType().Convert(ctx, "Mr X")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "Mr X")

			_, err = f.factory.StringType().Convert(ctx, 12)
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("integer", func() {
			for _, raw := range []any{12, int8(12), uint16(12), 12.0, "12", " 12 "} {
				v, err := f.factory.IntegerType().Convert(ctx, raw)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, int64(12))
			}
			for _, raw := range []any{12.5, "twelve", true, uint64(math.MaxUint64), float64(math.MaxInt64)} {
				_, err := f.factory.IntegerType().Convert(ctx, raw)
				So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
			}
		})

		Convey("decimal", func() {
			v, err := f.factory.DecimalType().Convert(ctx, 3)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 3.0)
			v, err = f.factory.DecimalType().Convert(ctx, "2.5")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 2.5)
			_, err = f.factory.DecimalType().Convert(ctx, "abc")
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("boolean", func() {
			v, err := f.factory.BooleanType().Convert(ctx, "true")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, true)
			_, err = f.factory.BooleanType().Convert(ctx, 1)
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("date", func() {
			v, err := f.factory.DateType().Convert(ctx, "2024-03-01")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

			now := time.Now()
			v, err = f.factory.DateType().Convert(ctx, &now)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, now)

			_, err = f.factory.DateType().Convert(ctx, "yesterday")
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
		})

		Convey("enum", func() {
			ft := f.factory.EnumType("draft", "accepted")
			So(EnumValues(ft), ShouldResemble, []string{"draft", "accepted"})
			v, err := ft.Convert(ctx, "accepted")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "accepted")
			_, err = ft.Convert(ctx, "rejected")
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
			So(EnumValues(f.factory.StringType()), ShouldBeNil)
		})

		Convey("dictionary", func() {
			ft := f.factory.DictionaryType("units")
			So(DictionaryName(ft), ShouldEqual, "units")
			v, err := ft.Convert(ctx, "kg")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "kg")
			_, err = ft.Convert(ctx, "lb")
			So(errors.Is(err, ErrTypeMismatch), ShouldBeTrue)
			_, err = f.factory.DictionaryType("colors").Convert(ctx, "red")
			So(errors.Is(err, ErrStructural), ShouldBeTrue)
		})

		Convey("nil 表示清空", func() {
			for _, ft := range []FieldType{
				f.factory.StringType(), f.factory.IntegerType(), f.factory.DecimalType(),
				f.factory.BooleanType(), f.factory.DateType(), f.factory.EnumType("a"),
			} {
				v, err := ft.Convert(ctx, nil)
				So(err, ShouldBeNil)
				So(v, ShouldBeNil)
				So(ft.IsReference(), ShouldBeFalse)
			}
		})
	})

	Convey("读取原始值", t, func() {
		price := 9.5
		order := &Order{ID: 3, Number: "SO-1", Quantity: 2, Price: &price, State: "draft"}
		v, err := f.factory.StringType().Read(order, "number")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, "SO-1")

		v, err = f.factory.DecimalType().Read(order, "Price")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 9.5)

		v, err = f.factory.IntegerType().Read(order, "quantity")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, 2)

		_, err = f.factory.StringType().Read(order, "missing")
		So(errors.Is(err, ErrStructural), ShouldBeTrue)
	})
}

func TestByName(t *testing.T) {
	f := newFixture()

	Convey("按类型名构造", t, func() {
		for _, kind := range []Kind{KindString, KindInteger, KindDecimal, KindBoolean, KindDate} {
			ft, err := f.factory.ByName(kind, TypeArgs{})
			So(err, ShouldBeNil)
			So(ft.Kind(), ShouldEqual, kind)
		}

		ft, err := f.factory.ByName(KindBelongsTo, TypeArgs{Plugin: "crm", Entity: "customer", Lazy: true})
		So(err, ShouldBeNil)
		So(ft.(*BelongsToType).Lazy(), ShouldBeTrue)

		ft, err = f.factory.ByName(KindHasMany, TypeArgs{Plugin: "sales", Entity: "line", JoinField: "Order"})
		So(err, ShouldBeNil)
		So(ft.(*HasManyType).JoinField(), ShouldEqual, "Order")

		for kind, args := range map[Kind]TypeArgs{
			KindEnum:       {},
			KindDictionary: {},
			KindBelongsTo:  {Plugin: "crm"},
			KindHasMany:    {Plugin: "sales", Entity: "line"},
			"blob":         {},
		} {
			_, err := f.factory.ByName(kind, args)
			So(errors.Is(err, ErrStructural), ShouldBeTrue)
		}
	})
}
