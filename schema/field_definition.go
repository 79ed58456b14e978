package schema

// FieldDefinition 数据定义中的一个字段，构造之后不可变
// With 系列方法返回修改后的副本，用于组装 schema
type FieldDefinition struct {
	name       string
	typ        FieldType
	required   bool
	unique     bool
	readOnly   bool
	defaultVal any
	validation string
}

func NewFieldDefinition(name string) *FieldDefinition {
	return &FieldDefinition{name: name}
}

func (fd *FieldDefinition) clone() *FieldDefinition {
	c := *fd
	return &c
}

func (fd *FieldDefinition) WithType(t FieldType) *FieldDefinition {
	c := fd.clone()
	c.typ = t
	return c
}

func (fd *FieldDefinition) WithRequired() *FieldDefinition {
	c := fd.clone()
	c.required = true
	return c
}

func (fd *FieldDefinition) WithUnique() *FieldDefinition {
	c := fd.clone()
	c.unique = true
	return c
}

func (fd *FieldDefinition) WithReadOnly() *FieldDefinition {
	c := fd.clone()
	c.readOnly = true
	return c
}

// WithDefault 新建实体时缺失字段使用的默认值
func (fd *FieldDefinition) WithDefault(v any) *FieldDefinition {
	c := fd.clone()
	c.defaultVal = v
	return c
}

// WithValidation go-playground/validator 的校验 tag，例如 "max=64"
func (fd *FieldDefinition) WithValidation(tag string) *FieldDefinition {
	c := fd.clone()
	c.validation = tag
	return c
}

func (fd *FieldDefinition) Name() string       { return fd.name }
func (fd *FieldDefinition) Type() FieldType    { return fd.typ }
func (fd *FieldDefinition) Required() bool     { return fd.required }
func (fd *FieldDefinition) Unique() bool       { return fd.unique }
func (fd *FieldDefinition) ReadOnly() bool     { return fd.readOnly }
func (fd *FieldDefinition) Default() any       { return fd.defaultVal }
func (fd *FieldDefinition) Validation() string { return fd.validation }

// IsBelongsTo 是否是多对一引用字段
func (fd *FieldDefinition) IsBelongsTo() bool {
	_, ok := fd.typ.(*BelongsToType)
	return ok
}
