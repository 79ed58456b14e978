package validator

import (
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Default 进程内共享的 validator 实例，字段名取 cfg tag
func Default() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			if name := field.Tag.Get("cfg"); name != "" && name != "-" {
				return name
			}
			return field.Name
		})
	})
	return validate
}

// ValidateStruct 校验结构体，nil 或者非结构体直接返回 nil
func ValidateStruct(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct || rv.Type() == reflect.TypeOf(time.Time{}) {
		return nil
	}
	return Default().Struct(rv.Interface())
}
