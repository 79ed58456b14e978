package schema

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// 属性匹配顺序：entity tag、字段名、忽略大小写的字段名

type propertyKey struct {
	rt   reflect.Type
	name string
}

var propertyCache sync.Map

var timeType = reflect.TypeOf(time.Time{})

func findProperty(rt reflect.Type, name string) ([]int, bool) {
	k := propertyKey{rt: rt, name: name}
	if v, ok := propertyCache.Load(k); ok {
		index := v.([]int)
		return index, index != nil
	}

	index := lookupProperty(rt, name)
	propertyCache.Store(k, index)
	return index, index != nil
}

func lookupProperty(rt reflect.Type, name string) []int {
	fields := reflect.VisibleFields(rt)

	for _, f := range fields {
		if !f.IsExported() {
			continue
		}
		if tag := strings.Split(f.Tag.Get("entity"), ",")[0]; tag != "" && tag == name {
			return f.Index
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && f.Tag.Get("entity") != "-" && f.Name == name {
			return f.Index
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && f.Tag.Get("entity") != "-" && strings.EqualFold(f.Name, name) {
			return f.Index
		}
	}
	return nil
}

// structOf 解引用 host，返回结构体值
func structOf(host any) (reflect.Value, error) {
	rv := reflect.ValueOf(host)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, structuralf("host object is nil %T", host)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, structuralf("host object %T is not a struct", host)
	}
	return rv, nil
}

func propertyValue(host any, name string) (reflect.Value, error) {
	rv, err := structOf(host)
	if err != nil {
		return reflect.Value{}, err
	}
	index, ok := findProperty(rv.Type(), name)
	if !ok {
		return reflect.Value{}, structuralf("property %q not found on %v", name, rv.Type())
	}
	fv, err := rv.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, structuralf("property %q not reachable on %v: %v", name, rv.Type(), err)
	}
	return fv, nil
}

// HasProperty 判断 host 是否有对应属性
func HasProperty(host any, name string) bool {
	_, err := propertyValue(host, name)
	return err == nil
}

// GetProperty 读取属性原始值，不做类型转换
// nil 指针、nil slice、nil map 返回 nil；指向基础类型的指针会被解引用
func GetProperty(host any, name string) (any, error) {
	fv, err := propertyValue(host, name)
	if err != nil {
		return nil, err
	}
	return rawValue(fv), nil
}

func rawValue(fv reflect.Value) any {
	switch fv.Kind() {
	case reflect.Ptr:
		if fv.IsNil() {
			return nil
		}
		if fv.Elem().Kind() == reflect.Struct && fv.Elem().Type() != timeType {
			return fv.Interface()
		}
		return fv.Elem().Interface()
	case reflect.Interface, reflect.Slice, reflect.Map:
		if fv.IsNil() {
			return nil
		}
	}
	return fv.Interface()
}

// SetProperty 给属性赋值，host 必须是非 nil 的结构体指针
func SetProperty(host any, name string, value any) error {
	if rv := reflect.ValueOf(host); rv.Kind() != reflect.Ptr || rv.IsNil() {
		return structuralf("host object %T is not a settable pointer", host)
	}
	fv, err := propertyValue(host, name)
	if err != nil {
		return err
	}
	if !fv.CanSet() {
		return structuralf("property %q is not settable", name)
	}
	if err := assign(fv, value); err != nil {
		return mismatchf("property %q: %v", name, err)
	}
	return nil
}

// PropertyType 返回属性的类型
func PropertyType(rt reflect.Type, name string) (reflect.Type, error) {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, structuralf("%v is not a struct", rt)
	}
	index, ok := findProperty(rt, name)
	if !ok {
		return nil, structuralf("property %q not found on %v", name, rt)
	}
	return rt.FieldByIndex(index).Type, nil
}

type assignError struct {
	from any
	to   reflect.Type
}

func (e *assignError) Error() string {
	return "cannot assign " + reflect.TypeOf(e.from).String() + " to " + e.to.String()
}

// assign 将 v 写入 dst，只做无损的数值、命名类型、指针和 slice 适配
func assign(dst reflect.Value, v any) error {
	if v == nil {
		switch dst.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return &nilAssignError{to: dst.Type()}
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Ptr:
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				dst.Set(reflect.Zero(dst.Type()))
				return nil
			}
			return assign(dst, rv.Elem().Interface())
		}
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if rv.Uint() > 1<<63-1 {
				return &assignError{from: v, to: dst.Type()}
			}
			n = int64(rv.Uint())
		default:
			return &assignError{from: v, to: dst.Type()}
		}
		if dst.OverflowInt(n) {
			return &assignError{from: v, to: dst.Type()}
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if rv.Int() < 0 {
				return &assignError{from: v, to: dst.Type()}
			}
			n = uint64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = rv.Uint()
		default:
			return &assignError{from: v, to: dst.Type()}
		}
		if dst.OverflowUint(n) {
			return &assignError{from: v, to: dst.Type()}
		}
		dst.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		var f float64
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		default:
			return &assignError{from: v, to: dst.Type()}
		}
		if dst.OverflowFloat(f) {
			return &assignError{from: v, to: dst.Type()}
		}
		dst.SetFloat(f)
		return nil
	case reflect.String, reflect.Bool:
		if rv.Kind() == dst.Kind() {
			dst.Set(rv.Convert(dst.Type()))
			return nil
		}
	case reflect.Slice:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			break
		}
		out := reflect.MakeSlice(dst.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := assign(out.Index(i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	}

	return &assignError{from: v, to: dst.Type()}
}

type nilAssignError struct {
	to reflect.Type
}

func (e *nilAssignError) Error() string {
	return "cannot assign nil to non-nullable " + e.to.String()
}
