package validate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/entity"
	"github.com/hatlonely/entmap/schema"
	"github.com/hatlonely/entmap/search"
)

// 写入实体的错误信息
const (
	MessageRequired = "required"
	MessageReadOnly = "readOnly"
	MessageInvalid  = "invalid"
	MessageNotFound = "notFound"
	MessageUnique   = "unique"
)

// Counter 统计满足条件的记录数，用于唯一性检查，通常由 executor 实现
type Counter interface {
	Count(ctx context.Context, criteria *search.Criteria) (int64, error)
}

type Options struct {
	// CheckReferences 为 true 时 belongsTo 引用的对象必须存在
	CheckReferences bool `cfg:"checkReferences" def:"true"`
	// FailFast 为 true 时遇到第一个字段错误就停止
	FailFast bool `cfg:"failFast"`
}

// Validator 在转换为具体对象之前校验通用实体，字段错误写入实体本身
type Validator struct {
	options  *Options
	validate *validator.Validate
	counter  Counter
}

type Option func(*Validator)

// WithCounter 开启唯一性检查
func WithCounter(counter Counter) Option {
	return func(v *Validator) {
		v.counter = counter
	}
}

func WithValidate(validate *validator.Validate) Option {
	return func(v *Validator) {
		v.validate = validate
	}
}

func NewValidatorWithOptions(options *Options, opts ...Option) *Validator {
	if options == nil {
		options = &Options{CheckReferences: true}
	}
	v := &Validator{options: options, validate: validator.New(validator.WithRequiredStructEnabled())}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func NewValidator(opts ...Option) *Validator {
	return NewValidatorWithOptions(nil, opts...)
}

// Validate 校验实体，existing 为 nil 表示新建，此时会给缺失的字段填充默认值
// 校验失败返回 false，错误信息写入 e；返回的 error 只表示 schema 错误或者依赖的服务失败
func (v *Validator) Validate(ctx context.Context, dd *schema.DataDefinition, e *entity.Entity, existing any) (bool, error) {
	e.ClearErrors()
	creating := existing == nil

	for _, name := range e.FieldNames() {
		if !dd.HasField(name) {
			return false, errors.Wrapf(schema.ErrStructural, "field %q is not defined in %s", name, dd.FullName())
		}
	}

	if creating {
		applyDefaults(dd, e)
	}

	for _, fd := range dd.Fields() {
		if err := v.validateField(ctx, dd, fd, e, existing, creating); err != nil {
			return false, errors.WithMessagef(err, "validate %s.%s failed", dd.FullName(), fd.Name())
		}
		if v.options.FailFast && !e.IsValid() {
			break
		}
	}
	return e.IsValid(), nil
}

func applyDefaults(dd *schema.DataDefinition, e *entity.Entity) {
	for _, fd := range dd.Fields() {
		if fd.Default() == nil {
			continue
		}
		if _, ok := e.Lookup(fd.Name()); !ok {
			e.SetField(fd.Name(), fd.Default())
		}
	}
}

func (v *Validator) validateField(ctx context.Context, dd *schema.DataDefinition, fd *schema.FieldDefinition, e *entity.Entity, existing any, creating bool) error {
	raw, present := e.Lookup(fd.Name())

	if fd.Required() && isEmpty(raw) && (creating || present) {
		e.AddError(fd.Name(), MessageRequired)
		return nil
	}
	if !present {
		return nil
	}

	if fd.ReadOnly() && !creating {
		current, err := fd.Type().Read(existing, fd.Name())
		if err != nil {
			return err
		}
		if !sameValue(current, raw) {
			e.AddError(fd.Name(), MessageReadOnly)
			return nil
		}
	}

	if raw == nil {
		return nil
	}

	if fd.Type().IsReference() && !v.options.CheckReferences {
		return nil
	}
	converted, err := fd.Type().Convert(ctx, raw)
	switch {
	case errors.Is(err, schema.ErrTypeMismatch):
		e.AddError(fd.Name(), MessageInvalid)
		return nil
	case errors.Is(err, schema.ErrReferenceNotFound):
		e.AddError(fd.Name(), MessageNotFound)
		return nil
	case err != nil:
		return err
	}

	if fd.Validation() != "" && !fd.Type().IsReference() {
		if err := v.validate.VarCtx(ctx, converted, fd.Validation()); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return errors.Wrapf(schema.ErrStructural, "invalid validation tag %q: %v", fd.Validation(), err)
			}
			e.AddError(fd.Name(), MessageInvalid+"."+verrs[0].Tag())
			return nil
		}
	}

	if fd.Unique() && v.counter != nil && !fd.Type().IsReference() {
		criteria, err := dd.Find().RestrictedWith(&search.CompareRestriction{Field: fd.Name(), Op: search.OpEq, Value: converted})
		if err != nil {
			return err
		}
		if e.HasID() {
			if criteria, err = criteria.RestrictedWith(&search.CompareRestriction{Field: dd.IdentifierField(), Op: search.OpNe, Value: e.ID()}); err != nil {
				return err
			}
		}
		n, err := v.counter.Count(ctx, criteria)
		if err != nil {
			return errors.WithMessage(err, "count failed")
		}
		if n > 0 {
			e.AddError(fd.Name(), MessageUnique)
		}
	}
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// sameValue 比较对象上的原始值和实体中的值，引用按 id 比较
func sameValue(current, raw any) bool {
	if isEmpty(current) || isEmpty(raw) {
		return isEmpty(current) == isEmpty(raw)
	}
	if ce, ok := current.(*entity.Entity); ok {
		current = ce.ID()
	}
	if re, ok := raw.(*entity.Entity); ok {
		raw = re.ID()
	}
	return fmt.Sprint(current) == fmt.Sprint(raw)
}
