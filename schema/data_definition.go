package schema

import (
	"reflect"
	"sync"

	"github.com/hatlonely/entmap/ref"
	"github.com/hatlonely/entmap/search"
)

const (
	DefaultIdentifierField = "id"
	DefaultDeletedField    = "deleted"
)

// DataDefinition 一类实体的 schema：字段、id 字段以及对应的具体类型
// 启动时构造，之后只读
type DataDefinition struct {
	plugin       string
	name         string
	typeName     string
	identifier   string
	table        string
	deletedField string

	fields []*FieldDefinition
	index  map[string]*FieldDefinition

	classOnce sync.Once
	class     reflect.Type
	classErr  error
}

type DataDefinitionOption func(*DataDefinition)

func WithFields(fields ...*FieldDefinition) DataDefinitionOption {
	return func(dd *DataDefinition) {
		dd.fields = append(dd.fields, fields...)
	}
}

func WithIdentifierField(name string) DataDefinitionOption {
	return func(dd *DataDefinition) {
		dd.identifier = name
	}
}

// WithTableName 执行器使用的表名/集合名/索引名，默认为 plugin_name
func WithTableName(table string) DataDefinitionOption {
	return func(dd *DataDefinition) {
		dd.table = table
	}
}

// WithDeletedField 软删除标记对应的属性名
func WithDeletedField(name string) DataDefinitionOption {
	return func(dd *DataDefinition) {
		dd.deletedField = name
	}
}

// NewDataDefinition typeName 为具体类型的全限定名，需要通过 ref.RegisterType 注册，
// 在第一次调用 ClassForEntity 时解析
func NewDataDefinition(plugin, name, typeName string, opts ...DataDefinitionOption) (*DataDefinition, error) {
	dd := &DataDefinition{
		plugin:       plugin,
		name:         name,
		typeName:     typeName,
		identifier:   DefaultIdentifierField,
		deletedField: DefaultDeletedField,
	}
	for _, opt := range opts {
		opt(dd)
	}

	if dd.plugin == "" || dd.name == "" {
		return nil, structuralf("plugin and name are required")
	}
	if dd.typeName == "" {
		return nil, structuralf("%s: type name is required", dd.FullName())
	}
	if dd.identifier == "" {
		return nil, structuralf("%s: identifier field is required", dd.FullName())
	}
	if dd.table == "" {
		dd.table = dd.plugin + "_" + dd.name
	}

	dd.index = make(map[string]*FieldDefinition, len(dd.fields))
	for _, fd := range dd.fields {
		if fd == nil || fd.Name() == "" {
			return nil, structuralf("%s: field name is required", dd.FullName())
		}
		if fd.Type() == nil {
			return nil, structuralf("%s: field %q has no type", dd.FullName(), fd.Name())
		}
		if fd.Name() == dd.identifier {
			return nil, structuralf("%s: field %q collides with identifier", dd.FullName(), fd.Name())
		}
		if _, ok := dd.index[fd.Name()]; ok {
			return nil, structuralf("%s: duplicate field %q", dd.FullName(), fd.Name())
		}
		dd.index[fd.Name()] = fd
	}

	return dd, nil
}

func (dd *DataDefinition) PluginIdentifier() string { return dd.plugin }
func (dd *DataDefinition) Name() string             { return dd.name }
func (dd *DataDefinition) TypeName() string         { return dd.typeName }
func (dd *DataDefinition) IdentifierField() string  { return dd.identifier }
func (dd *DataDefinition) TableName() string        { return dd.table }
func (dd *DataDefinition) DeletedField() string     { return dd.deletedField }

// FullName plugin.name
func (dd *DataDefinition) FullName() string {
	return dd.plugin + "." + dd.name
}

func (dd *DataDefinition) String() string {
	return dd.FullName()
}

// Field 按名字获取字段定义，未知字段返回 ErrStructural
func (dd *DataDefinition) Field(name string) (*FieldDefinition, error) {
	fd, ok := dd.index[name]
	if !ok {
		return nil, structuralf("field %q is not defined in %s", name, dd.FullName())
	}
	return fd, nil
}

func (dd *DataDefinition) HasField(name string) bool {
	_, ok := dd.index[name]
	return ok
}

// Fields 按声明顺序返回字段
func (dd *DataDefinition) Fields() []*FieldDefinition {
	return append([]*FieldDefinition(nil), dd.fields...)
}

// ClassForEntity 解析并缓存具体类型，解析失败返回 ErrStructural，失败结果同样被缓存
func (dd *DataDefinition) ClassForEntity() (reflect.Type, error) {
	dd.classOnce.Do(func() {
		rt, err := ref.ResolveType(dd.typeName)
		if err != nil {
			dd.classErr = structuralf("%s: cannot resolve class %q: %v", dd.FullName(), dd.typeName, err)
			return
		}
		if rt.Kind() != reflect.Struct {
			dd.classErr = structuralf("%s: class %v is not a struct", dd.FullName(), rt)
			return
		}
		if _, ok := findProperty(rt, dd.identifier); !ok {
			dd.classErr = structuralf("%s: class %v has no identifier property %q", dd.FullName(), rt, dd.identifier)
			return
		}
		dd.class = rt
	})
	return dd.class, dd.classErr
}

// Find 返回作用于当前定义的默认查询条件
func (dd *DataDefinition) Find() *search.Criteria {
	return search.NewCriteria(dd)
}

// IDOf 读取对象的 id，未设置时返回 0
func (dd *DataDefinition) IDOf(obj any) (int64, error) {
	v, err := GetProperty(obj, dd.identifier)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return toInt64(v)
}

// IsDeleted 读取软删除标记，类型没有该属性时视为未删除
func (dd *DataDefinition) IsDeleted(obj any) (bool, error) {
	if dd.deletedField == "" || !HasProperty(obj, dd.deletedField) {
		return false, nil
	}
	v, err := GetProperty(obj, dd.deletedField)
	if err != nil || v == nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, structuralf("%s: deleted property %q is not a bool", dd.FullName(), dd.deletedField)
	}
	return b, nil
}
