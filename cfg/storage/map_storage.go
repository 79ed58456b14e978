package storage

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hatlonely/entmap/ref"
	"github.com/pkg/errors"
)

var (
	durationType    = reflect.TypeOf(time.Duration(0))
	timeType        = reflect.TypeOf(time.Time{})
	typeOptionsType = reflect.TypeOf(ref.TypeOptions{})
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// MapStorage 基于 map 和 slice 的配置数据，由 json/yaml/toml/ini 解码得到
type MapStorage struct {
	data any
}

func NewMapStorage(data any) *MapStorage {
	return &MapStorage{data: data}
}

// Data 原始数据
func (ms *MapStorage) Data() any {
	return ms.data
}

func (ms *MapStorage) Sub(key string) Storage {
	if key == "" {
		return ms
	}

	current := ms.data
	for _, k := range parseKey(key) {
		current = childOf(current, k)
		if current == nil {
			break
		}
	}
	return NewMapStorage(current)
}

// ConvertTo 数据为空时不修改 object
func (ms *MapStorage) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	return convertValue(ms.data, rv.Elem(), "")
}

// parseKey "a.b[0].c" => [a b 0 c]
func parseKey(key string) []string {
	var keys []string
	for _, part := range strings.Split(key, ".") {
		for part != "" {
			idx := strings.IndexByte(part, '[')
			if idx < 0 {
				keys = append(keys, part)
				break
			}
			if idx > 0 {
				keys = append(keys, part[:idx])
			}
			end := strings.IndexByte(part, ']')
			if end < idx {
				keys = append(keys, part[idx+1:])
				break
			}
			keys = append(keys, part[idx+1:end])
			part = part[end+1:]
		}
	}
	return keys
}

func childOf(data any, key string) any {
	switch v := data.(type) {
	case map[string]any:
		return v[key]
	case map[any]any:
		return v[key]
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil
		}
		return v[idx]
	}
	return nil
}

func convertValue(src any, dst reflect.Value, path string) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem(), path)
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) && dst.Kind() != reflect.Interface {
		dst.Set(sv)
		return nil
	}

	switch dst.Type() {
	case durationType:
		return convertDuration(sv, dst, path)
	case timeType:
		return convertTime(sv, dst, path)
	}

	switch dst.Kind() {
	case reflect.Interface:
		dst.Set(sv)
		return nil
	case reflect.Struct:
		return convertStruct(sv, dst, path)
	case reflect.Map:
		return convertMap(sv, dst, path)
	case reflect.Slice:
		return convertSlice(sv, dst, path)
	case reflect.String:
		switch sv.Kind() {
		case reflect.String:
			dst.SetString(sv.String())
			return nil
		case reflect.Int, reflect.Int64, reflect.Float64, reflect.Bool:
			dst.SetString(toString(src))
			return nil
		}
	case reflect.Bool:
		switch sv.Kind() {
		case reflect.Bool:
			dst.SetBool(sv.Bool())
			return nil
		case reflect.String:
			b, err := strconv.ParseBool(sv.String())
			if err != nil {
				return errors.Wrapf(err, "%s: invalid bool", path)
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return convertNumber(sv, dst, path)
	}

	return errors.Errorf("%s: cannot convert %v to %v", path, sv.Type(), dst.Type())
}

func toString(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func convertNumber(sv reflect.Value, dst reflect.Value, path string) error {
	if sv.Kind() == reflect.String {
		f, err := strconv.ParseFloat(sv.String(), 64)
		if err != nil {
			return errors.Wrapf(err, "%s: invalid number", path)
		}
		sv = reflect.ValueOf(f)
	}
	if !sv.CanConvert(dst.Type()) || sv.Kind() == reflect.Bool {
		return errors.Errorf("%s: cannot convert %v to %v", path, sv.Type(), dst.Type())
	}
	dst.Set(sv.Convert(dst.Type()))
	return nil
}

func convertDuration(sv reflect.Value, dst reflect.Value, path string) error {
	switch sv.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(sv.String())
		if err != nil {
			return errors.Wrapf(err, "%s: invalid duration", path)
		}
		dst.SetInt(int64(d))
		return nil
	case reflect.Int, reflect.Int64:
		dst.SetInt(sv.Int())
		return nil
	}
	return errors.Errorf("%s: cannot convert %v to time.Duration", path, sv.Type())
}

func convertTime(sv reflect.Value, dst reflect.Value, path string) error {
	switch sv.Kind() {
	case reflect.String:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, sv.String()); err == nil {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return errors.Errorf("%s: invalid time %q", path, sv.String())
	case reflect.Int, reflect.Int64:
		dst.Set(reflect.ValueOf(time.Unix(sv.Int(), 0)))
		return nil
	}
	return errors.Errorf("%s: cannot convert %v to time.Time", path, sv.Type())
}

func convertMap(sv reflect.Value, dst reflect.Value, path string) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("%s: expect map, got %v", path, sv.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	iter := sv.MapRange()
	for iter.Next() {
		key := reflect.New(dst.Type().Key()).Elem()
		if err := convertValue(iter.Key().Interface(), key, path); err != nil {
			return err
		}
		val := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(iter.Value().Interface(), val, joinPath(path, toKey(iter.Key()))); err != nil {
			return err
		}
		dst.SetMapIndex(key, val)
	}
	return nil
}

func convertSlice(sv reflect.Value, dst reflect.Value, path string) error {
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return errors.Errorf("%s: expect list, got %v", path, sv.Type())
	}
	slice := reflect.MakeSlice(dst.Type(), sv.Len(), sv.Len())
	for i := 0; i < sv.Len(); i++ {
		if err := convertValue(sv.Index(i).Interface(), slice.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	dst.Set(slice)
	return nil
}

// convertStruct 字段名依次匹配 cfg/json/yaml/toml/ini tag，再按字段名忽略大小写匹配
// ref.TypeOptions 的 Options 字段保留为 Storage，由构造函数按自己的参数类型转换
func convertStruct(sv reflect.Value, dst reflect.Value, path string) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("%s: expect map, got %v", path, sv.Type())
	}

	values := map[string]any{}
	iter := sv.MapRange()
	for iter.Next() {
		values[toKey(iter.Key())] = iter.Value().Interface()
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := dst.Field(i)
		if !fv.CanSet() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		value, ok := values[name]
		if !ok {
			for k, v := range values {
				if strings.EqualFold(k, name) {
					value, ok = v, true
					break
				}
			}
		}
		if !ok {
			continue
		}

		if rt == typeOptionsType && field.Name == "Options" {
			fv.Set(reflect.ValueOf(NewMapStorage(value)))
			continue
		}
		if err := convertValue(value, fv, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"cfg", "json", "yaml", "toml", "ini"} {
		if v, ok := field.Tag.Lookup(tag); ok {
			if name := strings.Split(v, ",")[0]; name != "" {
				return name
			}
		}
	}
	return field.Name
}

func toKey(v reflect.Value) string {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	return toString(v.Interface())
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
