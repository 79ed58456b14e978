package ref

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Convertable 可以转换成构造函数参数的配置数据，例如 cfg/storage.MapStorage
type Convertable interface {
	// ConvertTo 将配置数据写入 object，object 为指向目标对象的指针
	ConvertTo(object any) error
}

// TypeOptions 通过 namespace + type 描述一个可构造的组件
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

// constructor 包装一个 NewXxx 函数，支持以下签名：
//
//	func() T
//	func() (T, error)
//	func(options O) T
//	func(options O) (T, error)
type constructor struct {
	fn        reflect.Value
	argType   reflect.Type
	withError bool
}

func newConstructor(fn any) (*constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor must be a function, got %T", fn)
	}

	ft := fv.Type()
	if ft.NumIn() > 1 {
		return nil, errors.Errorf("constructor accepts at most 1 parameter, got %d", ft.NumIn())
	}
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return nil, errors.Errorf("constructor must return 1 or 2 values, got %d", ft.NumOut())
	}
	if ft.NumOut() == 2 && !ft.Out(1).Implements(errorType) {
		return nil, errors.New("second return value of constructor must be error")
	}

	c := &constructor{fn: fv, withError: ft.NumOut() == 2}
	if ft.NumIn() == 1 {
		c.argType = ft.In(0)
	}
	return c, nil
}

func (c *constructor) call(options any) (any, error) {
	var args []reflect.Value
	if c.argType != nil {
		arg, err := c.prepareArg(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	out := c.fn.Call(args)
	if c.withError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// prepareArg 把 options 转换成构造函数需要的参数类型
func (c *constructor) prepareArg(options any) (reflect.Value, error) {
	if options == nil {
		if c.argType.Kind() == reflect.Ptr {
			return reflect.New(c.argType.Elem()), nil
		}
		return reflect.Zero(c.argType), nil
	}

	if convertable, ok := options.(Convertable); ok {
		target := reflect.New(c.argType)
		if c.argType.Kind() == reflect.Ptr {
			target = reflect.New(c.argType.Elem())
		}
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "convert options to %v failed", c.argType)
		}
		if c.argType.Kind() == reflect.Ptr {
			return target, nil
		}
		return target.Elem(), nil
	}

	rv := reflect.ValueOf(options)
	if !rv.Type().AssignableTo(c.argType) {
		return reflect.Value{}, errors.Errorf("options type %T is not assignable to %v", options, c.argType)
	}
	return rv, nil
}

var constructors sync.Map

func key(namespace, typ string) string {
	return namespace + ":" + typ
}

// Register 注册构造函数，同一个 key 重复注册相同函数会被忽略，注册不同函数返回错误
func Register(namespace string, typ string, fn any) error {
	c, err := newConstructor(fn)
	if err != nil {
		return errors.WithMessagef(err, "register %s failed", key(namespace, typ))
	}

	if v, loaded := constructors.LoadOrStore(key(namespace, typ), c); loaded {
		if v.(*constructor).fn.Pointer() != c.fn.Pointer() {
			return errors.Errorf("constructor for %s already registered with different function", key(namespace, typ))
		}
	}
	return nil
}

// RegisterT 以 T 的包路径和类型名作为 namespace 和 type 注册
func RegisterT[T any](fn any) error {
	namespace, typ, err := nameOf[T]()
	if err != nil {
		return err
	}
	return Register(namespace, typ, fn)
}

func MustRegister(namespace string, typ string, fn any) {
	if err := Register(namespace, typ, fn); err != nil {
		panic(err)
	}
}

func MustRegisterT[T any](fn any) {
	if err := RegisterT[T](fn); err != nil {
		panic(err)
	}
}

// New 根据 namespace + type 创建对象
func New(namespace string, typ string, options any) (any, error) {
	v, ok := constructors.Load(key(namespace, typ))
	if !ok {
		return nil, errors.Errorf("constructor not found for %s", key(namespace, typ))
	}
	return v.(*constructor).call(options)
}

// NewWithTypeOptions 根据 TypeOptions 创建对象
func NewWithTypeOptions(options *TypeOptions) (any, error) {
	if options == nil {
		return nil, errors.New("type options is nil")
	}
	return New(options.Namespace, options.Type, options.Options)
}

func NewT[T any](options any) (T, error) {
	var zero T
	namespace, typ, err := nameOf[T]()
	if err != nil {
		return zero, err
	}

	obj, err := New(namespace, typ, options)
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("created object %T is not of type %T", obj, zero)
	}
	return t, nil
}

func nameOf[T any]() (string, string, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.PkgPath() == "" || rt.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for %v", rt)
	}
	return rt.PkgPath(), rt.Name(), nil
}
