package def

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// SetDefaults 根据 def tag 为零值字段设置默认值，嵌套结构体递归处理
func SetDefaults(object any) error {
	if object == nil {
		return errors.New("object cannot be nil")
	}
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("object must be a non-nil pointer, got %T", object)
	}
	return setDefaults(rv.Elem())
}

func setDefaults(rv reflect.Value) error {
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return setDefaults(rv.Elem())
	}
	if rv.Kind() == reflect.Slice {
		for i := 0; i < rv.Len(); i++ {
			if err := setDefaults(rv.Index(i)); err != nil {
				return errors.WithMessagef(err, "index %d", i)
			}
		}
		return nil
	}
	if rv.Kind() != reflect.Struct || rv.Type() == reflect.TypeOf(time.Time{}) {
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := rv.Field(i)
		if !fv.CanSet() {
			continue
		}

		tag, ok := field.Tag.Lookup("def")
		if ok && fv.IsZero() {
			target := fv
			if fv.Kind() == reflect.Ptr {
				target = reflect.New(fv.Type().Elem()).Elem()
			}
			if err := setValue(target, tag); err != nil {
				return errors.WithMessagef(err, "field %s", field.Name)
			}
			if fv.Kind() == reflect.Ptr {
				fv.Set(target.Addr())
			}
		}

		switch fv.Kind() {
		case reflect.Struct, reflect.Ptr, reflect.Slice:
			if err := setDefaults(fv); err != nil {
				return errors.WithMessagef(err, "field %s", field.Name)
			}
		}
	}
	return nil
}

func setValue(rv reflect.Value, value string) error {
	if rv.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", value)
		}
		rv.SetInt(int64(d))
		return nil
	}
	if rv.Type() == reflect.TypeOf(time.Time{}) {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				rv.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return errors.Errorf("invalid time %q", value)
	}

	switch rv.Kind() {
	case reflect.String:
		rv.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "invalid bool %q", value)
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 0, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid int %q", value)
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 0, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid uint %q", value)
		}
		rv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid float %q", value)
		}
		rv.SetFloat(f)
	case reflect.Slice:
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(rv.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := setValue(slice.Index(i), strings.TrimSpace(part)); err != nil {
				return errors.WithMessagef(err, "index %d", i)
			}
		}
		rv.Set(slice)
	default:
		return errors.Errorf("unsupported default value type %v", rv.Type())
	}
	return nil
}
