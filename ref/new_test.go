package ref

import (
	"errors"
	"reflect"
	"testing"
)

type Value struct {
	Name string
}

type Options struct {
	Name string
}

func NewValue(options *Options) (*Value, error) {
	if options.Name == "" {
		return nil, errors.New("name cannot be empty")
	}
	return &Value{Name: options.Name}, nil
}

func NewDefaultValue() *Value {
	return &Value{Name: "default"}
}

// fakeConvertable 模拟配置存储
type fakeConvertable struct {
	name string
}

func (f fakeConvertable) ConvertTo(object any) error {
	options, ok := object.(*Options)
	if !ok {
		return errors.New("unexpected target")
	}
	options.Name = f.name
	return nil
}

func TestRegisterAndNew(t *testing.T) {
	if err := Register("test", "Value", NewValue); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := Register("test", "DefaultValue", NewDefaultValue); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		typ      string
		options  any
		wantErr  bool
		expected string
	}{
		{name: "with options", typ: "Value", options: &Options{Name: "registered"}, expected: "registered"},
		{name: "without options", typ: "DefaultValue", expected: "default"},
		{name: "convertable options", typ: "Value", options: fakeConvertable{name: "converted"}, expected: "converted"},
		{name: "constructor error", typ: "Value", options: &Options{}, wantErr: true},
		{name: "nil options", typ: "Value", options: nil, wantErr: true},
		{name: "wrong options type", typ: "Value", options: "oops", wantErr: true},
		{name: "not registered", typ: "Missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := New("test", tt.typ, tt.options)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := obj.(*Value).Name; got != tt.expected {
				t.Errorf("New() got name = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRegisterTAndNewT(t *testing.T) {
	if err := RegisterT[*Value](NewValue); err != nil {
		t.Fatalf("RegisterT() error = %v", err)
	}

	v, err := NewT[*Value](&Options{Name: "generic"})
	if err != nil {
		t.Fatalf("NewT() error = %v", err)
	}
	if v.Name != "generic" {
		t.Errorf("NewT() got name = %v, want generic", v.Name)
	}

	obj, err := NewWithTypeOptions(&TypeOptions{
		Namespace: "github.com/hatlonely/entmap/ref",
		Type:      "Value",
		Options:   &Options{Name: "type-options"},
	})
	if err != nil {
		t.Fatalf("NewWithTypeOptions() error = %v", err)
	}
	if obj.(*Value).Name != "type-options" {
		t.Errorf("NewWithTypeOptions() got %v", obj)
	}

	if _, err := NewWithTypeOptions(nil); err == nil {
		t.Error("NewWithTypeOptions(nil) should fail")
	}
}

func TestDuplicateRegister(t *testing.T) {
	if err := Register("test-duplicate", "Value", NewValue); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := Register("test-duplicate", "Value", NewValue); err != nil {
		t.Errorf("same function should be skipped, got %v", err)
	}
	if err := Register("test-duplicate", "Value", NewDefaultValue); err == nil {
		t.Error("different function should fail")
	}
}

func TestMustRegisterPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustRegister() should panic on invalid constructor")
		}
	}()
	MustRegister("test-panic", "NotAFunc", 42)
}

func TestNewConstructor(t *testing.T) {
	tests := []struct {
		name    string
		fn      any
		wantErr bool
	}{
		{name: "no params one result", fn: func() int { return 1 }},
		{name: "one param two results", fn: func(o *Options) (*Value, error) { return nil, nil }},
		{name: "not a function", fn: "string", wantErr: true},
		{name: "too many params", fn: func(a, b int) int { return a + b }, wantErr: true},
		{name: "no results", fn: func() {}, wantErr: true},
		{name: "second result not error", fn: func() (int, int) { return 1, 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newConstructor(tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newConstructor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.fn.Kind() != reflect.Func {
				t.Error("constructor should wrap a function")
			}
		})
	}
}
