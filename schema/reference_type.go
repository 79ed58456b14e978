package schema

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/entity"
)

// BelongsToType 多对一引用，通用形式下展开为一层的嵌套实体
type BelongsToType struct {
	plugin   string
	entity   string
	lazy     bool
	registry *Registry
	lookup   ObjectLookup
}

func (t *BelongsToType) Kind() Kind        { return KindBelongsTo }
func (t *BelongsToType) IsReference() bool { return true }
func (t *BelongsToType) sealed()           {}

func (t *BelongsToType) Plugin() string { return t.plugin }
func (t *BelongsToType) Entity() string { return t.entity }
func (t *BelongsToType) Lazy() bool     { return t.lazy }

// Definition 被引用实体的定义
func (t *BelongsToType) Definition() (*DataDefinition, error) {
	if t.registry == nil {
		return nil, structuralf("no registry bound to belongsTo %s.%s", t.plugin, t.entity)
	}
	return t.registry.Get(t.plugin, t.entity)
}

// Read 返回引用对象的浅层实体：只包含被引用对象自身的字段，
// 其中的 belongsTo 字段只保留 id，hasMany 字段被忽略
func (t *BelongsToType) Read(host any, property string) (any, error) {
	v, err := GetProperty(host, property)
	if err != nil || v == nil {
		return nil, err
	}
	if t.lazy {
		return t.IDOf(v)
	}
	dd, err := t.Definition()
	if err != nil {
		return nil, err
	}
	return ShallowEntity(dd, v)
}

// IDOf 提取引用的 id，ref 可以是 id、实体或者具体对象
func (t *BelongsToType) IDOf(ref any) (int64, error) {
	switch r := ref.(type) {
	case nil:
		return 0, nil
	case *entity.Entity:
		if r == nil {
			return 0, nil
		}
		return r.ID(), nil
	}
	if isNumber(ref) {
		return toInt64(ref)
	}
	dd, err := t.Definition()
	if err != nil {
		return 0, err
	}
	return dd.IDOf(ref)
}

// ResolveID 通过对象存储解析 id，对象不存在返回 ErrReferenceNotFound
func (t *BelongsToType) ResolveID(ctx context.Context, id int64) (any, error) {
	dd, err := t.Definition()
	if err != nil {
		return nil, err
	}
	return resolve(ctx, t.lookup, dd, id)
}

func (t *BelongsToType) Convert(ctx context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	dd, err := t.Definition()
	if err != nil {
		return nil, err
	}
	return convertReference(ctx, t.lookup, dd, raw)
}

// HasManyType 一对多引用，通用形式下为被引用对象的 id 列表
type HasManyType struct {
	plugin    string
	entity    string
	joinField string
	registry  *Registry
	lookup    ObjectLookup
}

func (t *HasManyType) Kind() Kind        { return KindHasMany }
func (t *HasManyType) IsReference() bool { return true }
func (t *HasManyType) sealed()           {}

func (t *HasManyType) Plugin() string    { return t.plugin }
func (t *HasManyType) Entity() string    { return t.entity }
func (t *HasManyType) JoinField() string { return t.joinField }

func (t *HasManyType) Definition() (*DataDefinition, error) {
	if t.registry == nil {
		return nil, structuralf("no registry bound to hasMany %s.%s", t.plugin, t.entity)
	}
	return t.registry.Get(t.plugin, t.entity)
}

func (t *HasManyType) Read(host any, property string) (any, error) {
	v, err := GetProperty(host, property)
	if err != nil || v == nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, structuralf("hasMany property %q is not a slice", property)
	}
	dd, err := t.Definition()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		id, err := dd.IDOf(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Convert 接受 id、实体或者具体对象组成的列表，返回具体对象指针的 slice
func (t *HasManyType) Convert(ctx context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, mismatchf("list expected for hasMany, got %T", raw)
	}
	dd, err := t.Definition()
	if err != nil {
		return nil, err
	}
	class, err := dd.ClassForEntity()
	if err != nil {
		return nil, err
	}

	out := reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(class)), 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		obj, err := convertReference(ctx, t.lookup, dd, rv.Index(i).Interface())
		if err != nil {
			return nil, errors.WithMessagef(err, "item %d", i)
		}
		if obj == nil {
			return nil, mismatchf("hasMany item %d is nil", i)
		}
		out = reflect.Append(out, reflect.ValueOf(obj))
	}
	return out.Interface(), nil
}

func convertReference(ctx context.Context, lookup ObjectLookup, dd *DataDefinition, raw any) (any, error) {
	switch r := raw.(type) {
	case nil:
		return nil, nil
	case *entity.Entity:
		if r == nil {
			return nil, nil
		}
		if !r.HasID() {
			return nil, mismatchf("referenced entity %s has no id", dd.Name())
		}
		return resolve(ctx, lookup, dd, r.ID())
	}

	if isNumber(raw) || reflect.ValueOf(raw).Kind() == reflect.String {
		id, err := toInt64(raw)
		if err != nil {
			return nil, err
		}
		return resolve(ctx, lookup, dd, id)
	}

	class, err := dd.ClassForEntity()
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(raw)
	switch rv.Type() {
	case reflect.PointerTo(class):
		if rv.IsNil() {
			return nil, nil
		}
		return raw, nil
	case class:
		ptr := reflect.New(class)
		ptr.Elem().Set(rv)
		return ptr.Interface(), nil
	}
	return nil, mismatchf("cannot reference %s with %T", dd.Name(), raw)
}

func resolve(ctx context.Context, lookup ObjectLookup, dd *DataDefinition, id int64) (any, error) {
	if lookup == nil {
		return nil, structuralf("no object lookup configured to resolve %s", dd.Name())
	}
	class, err := dd.ClassForEntity()
	if err != nil {
		return nil, err
	}
	obj, err := lookup.Lookup(ctx, class, id)
	if err != nil {
		return nil, errors.WithMessagef(err, "lookup %s #%d failed", dd.Name(), id)
	}
	if obj == nil {
		return nil, errors.Wrapf(ErrReferenceNotFound, "%s #%d", dd.Name(), id)
	}
	return obj, nil
}

// ShallowEntity 将对象转成一层的实体，引用字段不展开
func ShallowEntity(dd *DataDefinition, obj any) (*entity.Entity, error) {
	id, err := dd.IDOf(obj)
	if err != nil {
		return nil, err
	}

	e := entity.NewWithID(id)
	for _, fd := range dd.Fields() {
		switch ft := fd.Type().(type) {
		case *HasManyType:
			continue
		case *BelongsToType:
			v, err := GetProperty(obj, fd.Name())
			if err != nil {
				return nil, err
			}
			if v == nil {
				e.SetField(fd.Name(), nil)
				continue
			}
			refID, err := ft.IDOf(v)
			if err != nil {
				return nil, err
			}
			e.SetField(fd.Name(), refID)
		default:
			v, err := ft.Read(obj, fd.Name())
			if err != nil {
				return nil, err
			}
			e.SetField(fd.Name(), v)
		}
	}

	deleted, err := dd.IsDeleted(obj)
	if err != nil {
		return nil, err
	}
	e.SetDeleted(deleted)
	return e, nil
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
