package decoder

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

type IniDecoderOptions struct {
	// AllowShadows 重复的 key 解码为数组
	AllowShadows bool `cfg:"allowShadows"`
}

// IniDecoder section 解码为嵌套 map，"a.b" 形式的 section 名展开为多级
type IniDecoder struct {
	allowShadows bool
}

func NewIniDecoderWithOptions(options *IniDecoderOptions) *IniDecoder {
	if options == nil {
		return &IniDecoder{}
	}
	return &IniDecoder{allowShadows: options.AllowShadows}
}

func (d *IniDecoder) Decode(data []byte) (storage.Storage, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowShadows:             d.allowShadows,
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			for _, part := range strings.Split(section.Name(), ".") {
				child, ok := target[part].(map[string]any)
				if !ok {
					child = map[string]any{}
					target[part] = child
				}
				target = child
			}
		}
		for _, key := range section.Keys() {
			target[key.Name()] = d.valueOf(key)
		}
	}
	return storage.NewMapStorage(result), nil
}

func (d *IniDecoder) valueOf(key *ini.Key) any {
	if d.allowShadows {
		if values := key.ValueWithShadows(); len(values) > 1 {
			items := make([]any, 0, len(values))
			for _, v := range values {
				items = append(items, parseScalar(v))
			}
			return items
		}
	}
	return parseScalar(key.Value())
}

func parseScalar(v string) any {
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return b
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func (d *IniDecoder) Encode(s storage.Storage) ([]byte, error) {
	data, err := dataOf(s)
	if err != nil {
		return nil, err
	}
	root, ok := data.(map[string]any)
	if !ok {
		return nil, errors.Errorf("ini requires a map at top level, got %T", data)
	}

	file := ini.Empty(ini.LoadOptions{AllowShadows: d.allowShadows})
	if err := d.encodeSection(file, "", root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "ini.File.WriteTo failed")
	}
	return buf.Bytes(), nil
}

func (d *IniDecoder) encodeSection(file *ini.File, name string, values map[string]any) error {
	section := file.Section(name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := values[k].(type) {
		case map[string]any:
			child := k
			if name != "" {
				child = name + "." + k
			}
			if err := d.encodeSection(file, child, v); err != nil {
				return err
			}
		case []any:
			if len(v) == 0 {
				continue
			}
			if !d.allowShadows {
				items := make([]string, 0, len(v))
				for _, item := range v {
					items = append(items, fmt.Sprint(item))
				}
				if _, err := section.NewKey(k, strings.Join(items, ",")); err != nil {
					return errors.Wrapf(err, "new key %s failed", k)
				}
				continue
			}
			key, err := section.NewKey(k, fmt.Sprint(v[0]))
			if err != nil {
				return errors.Wrapf(err, "new key %s failed", k)
			}
			for _, item := range v[1:] {
				if err := key.AddShadow(fmt.Sprint(item)); err != nil {
					return errors.Wrapf(err, "add shadow %s failed", k)
				}
			}
		default:
			if _, err := section.NewKey(k, fmt.Sprint(v)); err != nil {
				return errors.Wrapf(err, "new key %s failed", k)
			}
		}
	}
	return nil
}
