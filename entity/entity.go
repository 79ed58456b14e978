package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Entity 通用实体，由 id、字段和删除标记组成
// id 为 0 表示尚未持久化
type Entity struct {
	id      int64
	fields  map[string]any
	deleted bool

	errors       map[string]string
	globalErrors []string
}

func New() *Entity {
	return &Entity{fields: map[string]any{}}
}

func NewWithID(id int64) *Entity {
	return &Entity{id: id, fields: map[string]any{}}
}

// NewWithFields 使用给定字段创建实体，fields 会被复制
func NewWithFields(id int64, fields map[string]any) *Entity {
	e := NewWithID(id)
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

func (e *Entity) ID() int64 {
	return e.id
}

func (e *Entity) HasID() bool {
	return e.id != 0
}

// SetID 显式修改 id，这是构造之后唯一修改 id 的途径
func (e *Entity) SetID(id int64) {
	e.id = id
}

// Field 返回字段值，字段不存在时返回 nil
func (e *Entity) Field(name string) any {
	return e.fields[name]
}

// Lookup 返回字段值以及字段是否存在
func (e *Entity) Lookup(name string) (any, bool) {
	v, ok := e.fields[name]
	return v, ok
}

func (e *Entity) SetField(name string, value any) {
	if e.fields == nil {
		e.fields = map[string]any{}
	}
	e.fields[name] = value
}

func (e *Entity) RemoveField(name string) {
	delete(e.fields, name)
}

// Fields 返回字段的副本
func (e *Entity) Fields() map[string]any {
	fields := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	return fields
}

// FieldNames 返回排序后的字段名
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.fields))
	for k := range e.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (e *Entity) StringField(name string) string {
	if s, ok := e.fields[name].(string); ok {
		return s
	}
	return ""
}

// EntityField 返回 belongsTo 字段展开后的嵌套实体
func (e *Entity) EntityField(name string) *Entity {
	if v, ok := e.fields[name].(*Entity); ok {
		return v
	}
	return nil
}

func (e *Entity) IsDeleted() bool {
	return e.deleted
}

func (e *Entity) SetDeleted(deleted bool) {
	e.deleted = deleted
}

// AddError 记录字段级校验错误，同一字段只保留第一条
func (e *Entity) AddError(field string, message string) {
	if e.errors == nil {
		e.errors = map[string]string{}
	}
	if _, ok := e.errors[field]; !ok {
		e.errors[field] = message
	}
}

func (e *Entity) AddGlobalError(message string) {
	e.globalErrors = append(e.globalErrors, message)
}

func (e *Entity) Error(field string) string {
	return e.errors[field]
}

func (e *Entity) Errors() map[string]string {
	errs := make(map[string]string, len(e.errors))
	for k, v := range e.errors {
		errs[k] = v
	}
	return errs
}

func (e *Entity) GlobalErrors() []string {
	return append([]string(nil), e.globalErrors...)
}

func (e *Entity) IsValid() bool {
	return len(e.errors) == 0 && len(e.globalErrors) == 0
}

func (e *Entity) ClearErrors() {
	e.errors = nil
	e.globalErrors = nil
}

// Copy 浅拷贝，嵌套实体共享
func (e *Entity) Copy() *Entity {
	c := NewWithFields(e.id, e.fields)
	c.deleted = e.deleted
	return c
}

// Equal 比较 id、删除标记和字段，嵌套实体递归比较
func (e *Entity) Equal(o *Entity) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.id != o.id || e.deleted != o.deleted || len(e.fields) != len(o.fields) {
		return false
	}
	for k, v := range e.fields {
		ov, ok := o.fields[k]
		if !ok {
			return false
		}
		ve, vok := v.(*Entity)
		oe, ook := ov.(*Entity)
		if vok || ook {
			if !ve.Equal(oe) {
				return false
			}
			continue
		}
		if fmt.Sprint(v) != fmt.Sprint(ov) {
			return false
		}
	}
	return true
}

func (e *Entity) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity{id=%d", e.id)
	for _, k := range e.FieldNames() {
		fmt.Fprintf(&b, ", %s=%v", k, e.fields[k])
	}
	if e.deleted {
		b.WriteString(", deleted")
	}
	b.WriteString("}")
	return b.String()
}
