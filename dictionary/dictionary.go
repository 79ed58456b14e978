package dictionary

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrDictionaryNotFound = errors.New("dictionary not found")

// Item 字典项
type Item struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Order int    `yaml:"order,omitempty"`
}

// Dictionary 一个命名字典，字典字段的值必须是其中某一项的 code
type Dictionary struct {
	Name  string `yaml:"name"`
	Items []Item `yaml:"items"`
}

// Codes 按 order 排序返回所有 code
func (d *Dictionary) Codes() []string {
	items := append([]Item(nil), d.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.Code)
	}
	return codes
}

func (d *Dictionary) Contains(code string) bool {
	for _, item := range d.Items {
		if item.Code == code {
			return true
		}
	}
	return false
}

// Catalog 字典目录，可以整体替换，单个字典不可修改
type Catalog struct {
	mu           sync.RWMutex
	dictionaries map[string]*Dictionary
}

func NewCatalog(dictionaries ...*Dictionary) (*Catalog, error) {
	c := &Catalog{dictionaries: map[string]*Dictionary{}}
	for _, d := range dictionaries {
		if d.Name == "" {
			return nil, errors.New("dictionary name is required")
		}
		if _, ok := c.dictionaries[d.Name]; ok {
			return nil, errors.Errorf("duplicate dictionary %q", d.Name)
		}
		seen := map[string]bool{}
		for _, item := range d.Items {
			if item.Code == "" {
				return nil, errors.Errorf("dictionary %q has item without code", d.Name)
			}
			if seen[item.Code] {
				return nil, errors.Errorf("dictionary %q has duplicate code %q", d.Name, item.Code)
			}
			seen[item.Code] = true
		}
		c.dictionaries[d.Name] = d
	}
	return c, nil
}

// Parse 解析单个 yaml 字典文档，name 为空时使用 defaultName
func Parse(data []byte, defaultName string) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	if d.Name == "" {
		d.Name = defaultName
	}
	return &d, nil
}

// LoadDir 读取目录下所有 .yaml/.yml 文件，字典名取文件内的 name，缺省时取文件名
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s failed", dir)
	}

	var dictionaries []*Dictionary
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read file %s failed", entry.Name())
		}
		d, err := Parse(data, strings.TrimSuffix(entry.Name(), ext))
		if err != nil {
			return nil, errors.WithMessagef(err, "parse %s failed", entry.Name())
		}
		dictionaries = append(dictionaries, d)
	}

	return NewCatalog(dictionaries...)
}

// Replace 用 other 的内容整体替换当前目录
func (c *Catalog) Replace(other *Catalog) {
	other.mu.RLock()
	dictionaries := other.dictionaries
	other.mu.RUnlock()

	c.mu.Lock()
	c.dictionaries = dictionaries
	c.mu.Unlock()
}

func (c *Catalog) Get(name string) (*Dictionary, error) {
	if c == nil {
		return nil, errors.Wrapf(ErrDictionaryNotFound, "dictionary %q", name)
	}
	c.mu.RLock()
	d, ok := c.dictionaries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrDictionaryNotFound, "dictionary %q", name)
	}
	return d, nil
}

// Contains 判断 code 是否属于字典 name
func (c *Catalog) Contains(name string, code string) (bool, error) {
	d, err := c.Get(name)
	if err != nil {
		return false, err
	}
	return d.Contains(code), nil
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.dictionaries))
	for name := range c.dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
