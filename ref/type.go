package ref

import (
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ErrTypeNotFound = errors.New("type not found")

var types sync.Map

// TypeName 返回类型的全限定名，形如 github.com/acme/app/model.Product
func TypeName(rt reflect.Type) string {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.PkgPath() == "" {
		return rt.Name()
	}
	return rt.PkgPath() + "." + rt.Name()
}

// RegisterType 注册具体类型，之后可以通过全限定名解析
func RegisterType[T any]() string {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	name := TypeName(rt)
	types.Store(name, rt)
	return name
}

// ResolveType 通过全限定名解析已注册的结构体类型
func ResolveType(name string) (reflect.Type, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "*")
	if v, ok := types.Load(name); ok {
		return v.(reflect.Type), nil
	}
	return nil, errors.Wrapf(ErrTypeNotFound, "type %q", name)
}
