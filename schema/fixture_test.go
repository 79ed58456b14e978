package schema

import (
	"context"
	"reflect"
	"time"

	"github.com/hatlonely/entmap/dictionary"
	"github.com/hatlonely/entmap/ref"
)

type Customer struct {
	ID      int64
	Name    string
	Deleted bool
}

type Order struct {
	ID       int64
	Number   string `entity:"number"`
	Quantity int
	Price    *float64
	Paid     bool
	Created  time.Time
	State    string
	Unit     string
	Customer *Customer
	Lines    []*Line
}

type Line struct {
	ID      int64
	Product string
	Order   *Order
}

var (
	customerType = ref.RegisterType[Customer]()
	orderType    = ref.RegisterType[Order]()
	lineType     = ref.RegisterType[Line]()
)

type fakeLookup struct {
	objects map[reflect.Type]map[int64]any
	calls   int
}

func newFakeLookup(objects ...any) *fakeLookup {
	l := &fakeLookup{objects: map[reflect.Type]map[int64]any{}}
	for _, obj := range objects {
		rt := reflect.TypeOf(obj).Elem()
		if l.objects[rt] == nil {
			l.objects[rt] = map[int64]any{}
		}
		id := reflect.ValueOf(obj).Elem().FieldByName("ID").Int()
		l.objects[rt][id] = obj
	}
	return l
}

func (l *fakeLookup) Lookup(_ context.Context, rt reflect.Type, id int64) (any, error) {
	l.calls++
	obj, ok := l.objects[rt][id]
	if !ok {
		return nil, nil
	}
	return obj, nil
}

type fixture struct {
	registry *Registry
	factory  *FieldTypeFactory
	lookup   *fakeLookup
	customer *DataDefinition
	order    *DataDefinition
	line     *DataDefinition
}

func newFixture(objects ...any) *fixture {
	catalog, err := dictionary.NewCatalog(&dictionary.Dictionary{
		Name:  "units",
		Items: []dictionary.Item{{Code: "kg"}, {Code: "pcs"}},
	})
	if err != nil {
		panic(err)
	}

	f := &fixture{registry: NewRegistry(), lookup: newFakeLookup(objects...)}
	f.factory = NewFieldTypeFactory(f.registry, WithObjectLookup(f.lookup), WithDictionary(catalog))

	f.customer = mustDefinition(NewDataDefinition("crm", "customer", customerType, WithFields(
		NewFieldDefinition("Name").WithType(f.factory.StringType()).WithRequired(),
	)))
	f.order = mustDefinition(NewDataDefinition("sales", "order", orderType, WithFields(
		NewFieldDefinition("number").WithType(f.factory.StringType()).WithRequired().WithUnique(),
		NewFieldDefinition("Quantity").WithType(f.factory.IntegerType()),
		NewFieldDefinition("Price").WithType(f.factory.DecimalType()),
		NewFieldDefinition("Paid").WithType(f.factory.BooleanType()),
		NewFieldDefinition("Created").WithType(f.factory.DateType()),
		NewFieldDefinition("State").WithType(f.factory.EnumType("draft", "accepted")).WithDefault("draft"),
		NewFieldDefinition("Unit").WithType(f.factory.DictionaryType("units")),
		NewFieldDefinition("Customer").WithType(f.factory.BelongsToType("crm", "customer")),
		NewFieldDefinition("Lines").WithType(f.factory.HasManyType("sales", "line", "Order")),
	)))
	f.line = mustDefinition(NewDataDefinition("sales", "line", lineType, WithFields(
		NewFieldDefinition("Product").WithType(f.factory.StringType()),
		NewFieldDefinition("Order").WithType(f.factory.LazyBelongsToType("sales", "order")),
	)))

	if err := f.registry.Register(f.customer, f.order, f.line); err != nil {
		panic(err)
	}
	f.registry.Seal()
	return f
}

func reflectTypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func mustDefinition(dd *DataDefinition, err error) *DataDefinition {
	if err != nil {
		panic(err)
	}
	return dd
}
