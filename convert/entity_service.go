package convert

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/entity"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/schema"
)

// EntityService 在具体对象和通用实体之间转换，字段读写都经过字段类型分发
// 无状态，可以并发使用
type EntityService struct {
	registry *schema.Registry
	log      logger.Logger
}

type Option func(*EntityService)

func WithLogger(log logger.Logger) Option {
	return func(s *EntityService) {
		s.log = logger.OrDiscard(log)
	}
}

func NewEntityService(registry *schema.Registry, opts ...Option) *EntityService {
	s := &EntityService{registry: registry, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry 返回实体定义的注册表
func (s *EntityService) Registry() *schema.Registry {
	return s.registry
}

// GetField 读取字段，belongsTo 字段返回浅层的嵌套实体
// 对象上没有同名属性时返回 schema.ErrStructural
func (s *EntityService) GetField(obj any, fd *schema.FieldDefinition) (any, error) {
	if fd == nil {
		return nil, errors.Wrap(schema.ErrStructural, "field definition is nil")
	}
	v, err := fd.Type().Read(obj, fd.Name())
	if err != nil {
		return nil, errors.WithMessagef(err, "get field %q", fd.Name())
	}
	return v, nil
}

// SetField 校验并转换 raw 后写入对象属性，nil 表示清空
func (s *EntityService) SetField(ctx context.Context, obj any, fd *schema.FieldDefinition, raw any) error {
	if fd == nil {
		return errors.Wrap(schema.ErrStructural, "field definition is nil")
	}
	if !schema.HasProperty(obj, fd.Name()) {
		return errors.Wrapf(schema.ErrStructural, "set field %q: property not found on %T", fd.Name(), obj)
	}
	v, err := fd.Type().Convert(ctx, raw)
	if err != nil {
		return errors.WithMessagef(err, "set field %q", fd.Name())
	}
	if err := schema.SetProperty(obj, fd.Name(), v); err != nil {
		return errors.WithMessagef(err, "set field %q", fd.Name())
	}
	return nil
}

func (s *EntityService) GetID(dd *schema.DataDefinition, obj any) (int64, error) {
	return dd.IDOf(obj)
}

func (s *EntityService) SetID(dd *schema.DataDefinition, obj any, id int64) error {
	return schema.SetProperty(obj, dd.IdentifierField(), id)
}

// SetDeleted 软删除，只设置删除标记
func (s *EntityService) SetDeleted(dd *schema.DataDefinition, obj any) error {
	return schema.SetProperty(obj, dd.DeletedField(), true)
}

func (s *EntityService) IsDeleted(dd *schema.DataDefinition, obj any) (bool, error) {
	return dd.IsDeleted(obj)
}

// ConvertToGenericEntity 按数据定义的字段顺序读取对象，引用字段只展开一层
func (s *EntityService) ConvertToGenericEntity(dd *schema.DataDefinition, obj any) (*entity.Entity, error) {
	id, err := s.GetID(dd, obj)
	if err != nil {
		return nil, errors.WithMessagef(err, "convert %s to entity failed", dd.FullName())
	}

	e := entity.NewWithID(id)
	for _, fd := range dd.Fields() {
		v, err := s.GetField(obj, fd)
		if err != nil {
			return nil, errors.WithMessagef(err, "convert %s #%d to entity failed", dd.FullName(), id)
		}
		e.SetField(fd.Name(), v)
	}

	deleted, err := dd.IsDeleted(obj)
	if err != nil {
		return nil, errors.WithMessagef(err, "convert %s #%d to entity failed", dd.FullName(), id)
	}
	e.SetDeleted(deleted)
	return e, nil
}

// ConvertToDatabaseEntity 把实体中出现的字段写入对象
// existing 不为 nil 时保留其 id，所有字段都成功后才会修改 existing；否则新建对象并使用实体的 id
// 实体带删除标记时设置对象的删除标记，已有的删除标记不会被清除
// 调用方需要先完成校验
func (s *EntityService) ConvertToDatabaseEntity(ctx context.Context, dd *schema.DataDefinition, e *entity.Entity, existing any) (any, error) {
	if e == nil {
		return nil, errors.Wrapf(schema.ErrStructural, "convert nil entity to %s", dd.FullName())
	}
	class, err := dd.ClassForEntity()
	if err != nil {
		return nil, err
	}

	var target reflect.Value
	if existing != nil {
		ev := reflect.ValueOf(existing)
		if ev.Type() != reflect.PointerTo(class) || ev.IsNil() {
			return nil, errors.Wrapf(schema.ErrStructural, "existing object %T is not a *%v", existing, class)
		}
		target = reflect.New(class)
		target.Elem().Set(ev.Elem())
	} else {
		target = reflect.New(class)
		if err := s.SetID(dd, target.Interface(), e.ID()); err != nil {
			return nil, errors.WithMessagef(err, "convert entity to %s failed", dd.FullName())
		}
	}

	obj := target.Interface()
	for _, name := range e.FieldNames() {
		fd, err := dd.Field(name)
		if err != nil {
			return nil, errors.WithMessagef(err, "convert entity to %s failed", dd.FullName())
		}
		if err := s.SetField(ctx, obj, fd, e.Field(name)); err != nil {
			s.log.DebugContext(ctx, "convert entity failed", "definition", dd.FullName(), "id", e.ID(), "field", name, "error", err)
			return nil, errors.WithMessagef(err, "convert entity to %s failed", dd.FullName())
		}
	}
	if e.IsDeleted() && dd.DeletedField() != "" && schema.HasProperty(obj, dd.DeletedField()) {
		if err := s.SetDeleted(dd, obj); err != nil {
			return nil, errors.WithMessagef(err, "convert entity to %s failed", dd.FullName())
		}
	}

	if existing != nil {
		reflect.ValueOf(existing).Elem().Set(target.Elem())
		return existing, nil
	}
	return obj, nil
}
