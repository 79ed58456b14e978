package schema

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hatlonely/entmap/cfg"
	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/pkg/errors"
)

// LoaderOptions schema 文档
//
//	definitions:
//	  - plugin: sales
//	    name: order
//	    type: github.com/acme/sales.Order
//	    fields:
//	      - {name: number, type: string, required: true, unique: true}
//	      - {name: state, type: enum, values: [draft, accepted], default: draft}
//	      - {name: customer, type: belongsTo, plugin: crm, entity: customer}
//	      - {name: lines, type: hasMany, plugin: sales, entity: orderLine, joinField: order}
type LoaderOptions struct {
	Definitions []*DefinitionOptions `cfg:"definitions" validate:"dive"`
}

type DefinitionOptions struct {
	Plugin     string          `cfg:"plugin" validate:"required"`
	Name       string          `cfg:"name" validate:"required"`
	Type       string          `cfg:"type" validate:"required"`
	Identifier string          `cfg:"identifier" def:"id"`
	Table      string          `cfg:"table"`
	Deleted    string          `cfg:"deleted" def:"deleted"`
	Fields     []*FieldOptions `cfg:"fields" validate:"dive"`
}

type FieldOptions struct {
	Name       string   `cfg:"name" validate:"required"`
	Type       Kind     `cfg:"type" validate:"required,oneof=string integer decimal boolean date enum dictionary belongsTo hasMany"`
	Required   bool     `cfg:"required"`
	Unique     bool     `cfg:"unique"`
	ReadOnly   bool     `cfg:"readOnly"`
	Default    any      `cfg:"default"`
	Validation string   `cfg:"validation"`
	Values     []string `cfg:"values"`
	Dictionary string   `cfg:"dictionary"`
	Plugin     string   `cfg:"plugin"`
	Entity     string   `cfg:"entity"`
	JoinField  string   `cfg:"joinField"`
	Lazy       bool     `cfg:"lazy"`
}

// Loader 从配置文档构造数据定义并注册到 factory 所属的 Registry
type Loader struct {
	factory *FieldTypeFactory
}

func NewLoader(factory *FieldTypeFactory) *Loader {
	return &Loader{factory: factory}
}

// Load 构造并注册 s 中的所有定义，任何一个失败则都不注册
func (l *Loader) Load(ctx context.Context, s storage.Storage) ([]*DataDefinition, error) {
	var options LoaderOptions
	if err := storage.NewValidateStorage(s).ConvertTo(&options); err != nil {
		return nil, errors.Wrapf(ErrStructural, "invalid schema document: %v", err)
	}

	dds := make([]*DataDefinition, 0, len(options.Definitions))
	for _, do := range options.Definitions {
		dd, err := l.Build(ctx, do)
		if err != nil {
			return nil, err
		}
		dds = append(dds, dd)
	}
	if err := l.factory.registry.Register(dds...); err != nil {
		return nil, err
	}
	return dds, nil
}

// LoadFile 按后缀选择解码器，支持 json/yaml/toml/ini
func (l *Loader) LoadFile(ctx context.Context, filename string) ([]*DataDefinition, error) {
	c, err := cfg.NewConfig(filename)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s failed", filename)
	}
	dds, err := l.Load(ctx, c.Storage())
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s failed", filename)
	}
	return dds, nil
}

// LoadDir 按文件名顺序加载目录下的 json/yaml/toml 文件
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]*DataDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s failed", dir)
	}
	var names []string
	for _, entry := range entries {
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml", ".toml":
			if !entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
	}
	sort.Strings(names)

	var dds []*DataDefinition
	for _, name := range names {
		loaded, err := l.LoadFile(ctx, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		dds = append(dds, loaded...)
	}
	return dds, nil
}

// Build 只构造不注册
func (l *Loader) Build(ctx context.Context, options *DefinitionOptions) (*DataDefinition, error) {
	fields := make([]*FieldDefinition, 0, len(options.Fields))
	for _, fo := range options.Fields {
		fd, err := l.buildField(ctx, fo)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s.%s", options.Plugin, options.Name)
		}
		fields = append(fields, fd)
	}

	opts := []DataDefinitionOption{WithFields(fields...)}
	if options.Identifier != "" {
		opts = append(opts, WithIdentifierField(options.Identifier))
	}
	if options.Table != "" {
		opts = append(opts, WithTableName(options.Table))
	}
	if options.Deleted != "" {
		opts = append(opts, WithDeletedField(options.Deleted))
	}
	return NewDataDefinition(options.Plugin, options.Name, options.Type, opts...)
}

func (l *Loader) buildField(ctx context.Context, options *FieldOptions) (*FieldDefinition, error) {
	typ, err := l.factory.ByName(options.Type, TypeArgs{
		Values:     options.Values,
		Dictionary: options.Dictionary,
		Plugin:     options.Plugin,
		Entity:     options.Entity,
		JoinField:  options.JoinField,
		Lazy:       options.Lazy,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "field %q", options.Name)
	}

	fd := NewFieldDefinition(options.Name).WithType(typ)
	if options.Required {
		fd = fd.WithRequired()
	}
	if options.Unique {
		fd = fd.WithUnique()
	}
	if options.ReadOnly {
		fd = fd.WithReadOnly()
	}
	if options.Validation != "" {
		fd = fd.WithValidation(options.Validation)
	}
	if options.Default != nil {
		if typ.IsReference() {
			return nil, structuralf("field %q: reference fields cannot have a default", options.Name)
		}
		v, err := typ.Convert(ctx, options.Default)
		if err != nil {
			return nil, errors.Wrapf(ErrStructural, "field %q: invalid default %v: %v", options.Name, options.Default, err)
		}
		fd = fd.WithDefault(v)
	}
	return fd, nil
}
