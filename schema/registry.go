package schema

import (
	"reflect"
	"sort"
	"sync"
)

// Registry 进程级的 schema 注册表
// 启动阶段注册，Seal 之后只读
type Registry struct {
	mu          sync.RWMutex
	sealed      bool
	definitions map[string]*DataDefinition
}

func NewRegistry() *Registry {
	return &Registry{definitions: map[string]*DataDefinition{}}
}

func registryKey(plugin, name string) string {
	return plugin + "." + name
}

// Register 注册数据定义，Seal 之后或者重复注册返回 ErrStructural
func (r *Registry) Register(dds ...*DataDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return structuralf("registry is sealed")
	}
	for _, dd := range dds {
		key := registryKey(dd.PluginIdentifier(), dd.Name())
		if _, ok := r.definitions[key]; ok {
			return structuralf("data definition %s already registered", key)
		}
		r.definitions[key] = dd
	}
	return nil
}

// Seal 结束注册阶段
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get 获取数据定义，不存在返回 ErrStructural
func (r *Registry) Get(plugin, name string) (*DataDefinition, error) {
	r.mu.RLock()
	dd, ok := r.definitions[registryKey(plugin, name)]
	r.mu.RUnlock()
	if !ok {
		return nil, structuralf("data definition %s not found", registryKey(plugin, name))
	}
	return dd, nil
}

func (r *Registry) MustGet(plugin, name string) *DataDefinition {
	dd, err := r.Get(plugin, name)
	if err != nil {
		panic(err)
	}
	return dd
}

// ForType 查找具体类型为 rt 的数据定义，多个定义共用一个类型时返回全名最小的
func (r *Registry) ForType(rt reflect.Type) (*DataDefinition, error) {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	for _, dd := range r.List() {
		if class, err := dd.ClassForEntity(); err == nil && class == rt {
			return dd, nil
		}
	}
	return nil, structuralf("no data definition for type %v", rt)
}

// List 按全名排序返回所有数据定义
func (r *Registry) List() []*DataDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dds := make([]*DataDefinition, 0, len(r.definitions))
	for _, dd := range r.definitions {
		dds = append(dds, dd)
	}
	sort.Slice(dds, func(i, j int) bool {
		return dds[i].FullName() < dds[j].FullName()
	})
	return dds
}

// Verify 检查所有定义的具体类型可以解析，所有引用指向已注册的定义
func (r *Registry) Verify() error {
	for _, dd := range r.List() {
		class, err := dd.ClassForEntity()
		if err != nil {
			return err
		}
		for _, fd := range dd.Fields() {
			if _, ok := findProperty(class, fd.Name()); !ok {
				return structuralf("%s: class %v has no property for field %q", dd.FullName(), class, fd.Name())
			}
		}
		if err := verifyReferences(dd); err != nil {
			return err
		}
	}
	return nil
}

// VerifyReferences 只检查引用，不解析具体类型
func (r *Registry) VerifyReferences() error {
	for _, dd := range r.List() {
		if err := verifyReferences(dd); err != nil {
			return err
		}
	}
	return nil
}

func verifyReferences(dd *DataDefinition) error {
	for _, fd := range dd.Fields() {
		switch t := fd.Type().(type) {
		case *BelongsToType:
			if _, err := t.Definition(); err != nil {
				return err
			}
		case *HasManyType:
			target, err := t.Definition()
			if err != nil {
				return err
			}
			if !target.HasField(t.JoinField()) {
				return structuralf("%s: hasMany %q join field %q is not defined in %s", dd.FullName(), fd.Name(), t.JoinField(), target.FullName())
			}
		}
	}
	return nil
}
