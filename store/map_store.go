package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
	"github.com/hatlonely/entmap/schema"
)

// MapStore 进程内的对象存储，保存和读取时都会浅拷贝对象
type MapStore struct {
	mu      sync.RWMutex
	objects map[string]any
}

func NewMapStore() *MapStore {
	return &MapStore{objects: map[string]any{}}
}

func (s *MapStore) Lookup(ctx context.Context, rt reflect.Type, id int64) (any, error) {
	s.mu.RLock()
	obj, ok := s.objects[objectKey(ref.TypeName(rt), id)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return shallowCopy(obj), nil
}

func (s *MapStore) Save(ctx context.Context, dd *schema.DataDefinition, obj any) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("save %s: %T is not a pointer to struct", dd.FullName(), obj)
	}
	id, err := idForSave(dd, obj)
	if err != nil {
		return err
	}
	class, err := dd.ClassForEntity()
	if err != nil {
		return err
	}
	if rv.Elem().Type() != class {
		return errors.Errorf("save %s: %T is not a *%v", dd.FullName(), obj, class)
	}

	s.mu.Lock()
	s.objects[objectKey(ref.TypeName(class), id)] = shallowCopy(obj)
	s.mu.Unlock()
	return nil
}

func (s *MapStore) Delete(ctx context.Context, dd *schema.DataDefinition, id int64) error {
	class, err := dd.ClassForEntity()
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.objects, objectKey(ref.TypeName(class), id))
	s.mu.Unlock()
	return nil
}

// Len 返回对象数量
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func shallowCopy(obj any) any {
	rv := reflect.ValueOf(obj)
	c := reflect.New(rv.Elem().Type())
	c.Elem().Set(rv.Elem())
	return c.Interface()
}
