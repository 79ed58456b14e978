package schema

import (
	"context"
	"reflect"

	"github.com/hatlonely/entmap/dictionary"
)

// Kind 字段类型
type Kind string

const (
	KindString     Kind = "string"
	KindInteger    Kind = "integer"
	KindDecimal    Kind = "decimal"
	KindBoolean    Kind = "boolean"
	KindDate       Kind = "date"
	KindEnum       Kind = "enum"
	KindDictionary Kind = "dictionary"
	KindBelongsTo  Kind = "belongsTo"
	KindHasMany    Kind = "hasMany"
)

// FieldType 字段类型处理器，变体固定，只能由本包实现
type FieldType interface {
	Kind() Kind
	// Read 读取 host 的属性原始值，不做类型转换；属性不存在返回 ErrStructural
	Read(host any, property string) (any, error)
	// Convert 校验并转换通用值，返回可以写入对象属性的值；nil 表示清空
	Convert(ctx context.Context, raw any) (any, error)
	// IsReference 是否引用其他实体
	IsReference() bool

	sealed()
}

// ObjectLookup 对象存储查询接口，只在解析引用时使用
// 对象不存在时返回 (nil, nil)
type ObjectLookup interface {
	Lookup(ctx context.Context, rt reflect.Type, id int64) (any, error)
}

// FieldTypeFactory 构造字段类型，引用类型共享 registry、对象存储和字典
type FieldTypeFactory struct {
	registry   *Registry
	lookup     ObjectLookup
	dictionary *dictionary.Catalog
}

type FieldTypeFactoryOption func(*FieldTypeFactory)

func WithObjectLookup(lookup ObjectLookup) FieldTypeFactoryOption {
	return func(f *FieldTypeFactory) {
		f.lookup = lookup
	}
}

func WithDictionary(catalog *dictionary.Catalog) FieldTypeFactoryOption {
	return func(f *FieldTypeFactory) {
		f.dictionary = catalog
	}
}

func NewFieldTypeFactory(registry *Registry, opts ...FieldTypeFactoryOption) *FieldTypeFactory {
	f := &FieldTypeFactory{registry: registry}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FieldTypeFactory) StringType() FieldType {
	return stringType{}
}

func (f *FieldTypeFactory) IntegerType() FieldType {
	return integerType{}
}

func (f *FieldTypeFactory) DecimalType() FieldType {
	return decimalType{}
}

func (f *FieldTypeFactory) BooleanType() FieldType {
	return booleanType{}
}

func (f *FieldTypeFactory) DateType() FieldType {
	return dateType{}
}

func (f *FieldTypeFactory) EnumType(values ...string) FieldType {
	return &enumType{values: append([]string(nil), values...)}
}

func (f *FieldTypeFactory) DictionaryType(name string) FieldType {
	return &dictionaryType{name: name, catalog: f.dictionary}
}

func (f *FieldTypeFactory) BelongsToType(plugin, entityName string) *BelongsToType {
	return &BelongsToType{plugin: plugin, entity: entityName, registry: f.registry, lookup: f.lookup}
}

// LazyBelongsToType 读取时只返回引用的 id，不展开
func (f *FieldTypeFactory) LazyBelongsToType(plugin, entityName string) *BelongsToType {
	t := f.BelongsToType(plugin, entityName)
	t.lazy = true
	return t
}

func (f *FieldTypeFactory) HasManyType(plugin, entityName, joinField string) *HasManyType {
	return &HasManyType{plugin: plugin, entity: entityName, joinField: joinField, registry: f.registry, lookup: f.lookup}
}

// TypeArgs 从配置构造字段类型时的参数
type TypeArgs struct {
	Values     []string
	Dictionary string
	Plugin     string
	Entity     string
	JoinField  string
	Lazy       bool
}

// ByName 根据类型名构造字段类型
func (f *FieldTypeFactory) ByName(kind Kind, args TypeArgs) (FieldType, error) {
	switch kind {
	case KindString:
		return f.StringType(), nil
	case KindInteger:
		return f.IntegerType(), nil
	case KindDecimal:
		return f.DecimalType(), nil
	case KindBoolean:
		return f.BooleanType(), nil
	case KindDate:
		return f.DateType(), nil
	case KindEnum:
		if len(args.Values) == 0 {
			return nil, structuralf("enum type requires values")
		}
		return f.EnumType(args.Values...), nil
	case KindDictionary:
		if args.Dictionary == "" {
			return nil, structuralf("dictionary type requires dictionary name")
		}
		return f.DictionaryType(args.Dictionary), nil
	case KindBelongsTo:
		if args.Plugin == "" || args.Entity == "" {
			return nil, structuralf("belongsTo type requires plugin and entity")
		}
		if args.Lazy {
			return f.LazyBelongsToType(args.Plugin, args.Entity), nil
		}
		return f.BelongsToType(args.Plugin, args.Entity), nil
	case KindHasMany:
		if args.Plugin == "" || args.Entity == "" || args.JoinField == "" {
			return nil, structuralf("hasMany type requires plugin, entity and joinField")
		}
		return f.HasManyType(args.Plugin, args.Entity, args.JoinField), nil
	}
	return nil, structuralf("unknown field type %q", kind)
}
