package schema

import (
	"context"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/dictionary"
)

// DateLayouts 日期字段接受的字符串格式
var DateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// primitive 基础类型共用的读取逻辑
type primitive struct{}

func (primitive) Read(host any, property string) (any, error) {
	return GetProperty(host, property)
}

func (primitive) IsReference() bool {
	return false
}

func (primitive) sealed() {}

type stringType struct{ primitive }

func (stringType) Kind() Kind { return KindString }

func (stringType) Convert(_ context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.String {
		return nil, mismatchf("string expected, got %T", raw)
	}
	return rv.String(), nil
}

type integerType struct{ primitive }

func (integerType) Kind() Kind { return KindInteger }

func (integerType) Convert(_ context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	n, err := toInt64(raw)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func toInt64(raw any) (int64, error) {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, mismatchf("integer %v overflows int64", raw)
		}
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, mismatchf("integer expected, got %v", raw)
		}
		return int64(f), nil
	case reflect.String:
		n, err := strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
		if err != nil {
			return 0, mismatchf("integer expected, got %q", rv.String())
		}
		return n, nil
	}
	return 0, mismatchf("integer expected, got %T", raw)
}

type decimalType struct{ primitive }

func (decimalType) Kind() Kind { return KindDecimal }

func (decimalType) Convert(_ context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		if err != nil {
			return nil, mismatchf("decimal expected, got %q", rv.String())
		}
		return f, nil
	}
	return nil, mismatchf("decimal expected, got %T", raw)
}

type booleanType struct{ primitive }

func (booleanType) Kind() Kind { return KindBoolean }

func (booleanType) Convert(_ context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		b, err := strconv.ParseBool(strings.TrimSpace(rv.String()))
		if err != nil {
			return nil, mismatchf("boolean expected, got %q", rv.String())
		}
		return b, nil
	}
	return nil, mismatchf("boolean expected, got %T", raw)
}

type dateType struct{ primitive }

func (dateType) Kind() Kind { return KindDate }

func (dateType) Convert(_ context.Context, raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case string:
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, nil
			}
		}
		return nil, mismatchf("date expected, got %q", v)
	}
	return nil, mismatchf("date expected, got %T", raw)
}

type enumType struct {
	primitive
	values []string
}

func (*enumType) Kind() Kind { return KindEnum }

// Values 允许的枚举值
func (t *enumType) Values() []string {
	return append([]string(nil), t.values...)
}

func (t *enumType) Convert(_ context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.String {
		return nil, mismatchf("enum value expected, got %T", raw)
	}
	for _, v := range t.values {
		if v == rv.String() {
			return v, nil
		}
	}
	return nil, mismatchf("%q is not one of %v", rv.String(), t.values)
}

type dictionaryType struct {
	primitive
	name    string
	catalog *dictionary.Catalog
}

func (*dictionaryType) Kind() Kind { return KindDictionary }

// Dictionary 字典名
func (t *dictionaryType) Dictionary() string {
	return t.name
}

func (t *dictionaryType) Convert(_ context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.String {
		return nil, mismatchf("dictionary code expected, got %T", raw)
	}
	ok, err := t.catalog.Contains(t.name, rv.String())
	if errors.Is(err, dictionary.ErrDictionaryNotFound) {
		return nil, structuralf("dictionary %q is not loaded", t.name)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mismatchf("%q is not a code of dictionary %q", rv.String(), t.name)
	}
	return rv.String(), nil
}

// EnumValues 返回枚举字段允许的值，非枚举类型返回 nil
func EnumValues(t FieldType) []string {
	if e, ok := t.(*enumType); ok {
		return e.Values()
	}
	return nil
}

// DictionaryName 返回字典字段使用的字典名，非字典类型返回空串
func DictionaryName(t FieldType) string {
	if d, ok := t.(*dictionaryType); ok {
		return d.name
	}
	return ""
}
