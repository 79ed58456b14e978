package decoder

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/pkg/errors"
)

type TomlDecoderOptions struct {
	Indent string `cfg:"indent"`
}

type TomlDecoder struct {
	indent string
}

func NewTomlDecoderWithOptions(options *TomlDecoderOptions) *TomlDecoder {
	if options == nil {
		return &TomlDecoder{indent: "  "}
	}
	return &TomlDecoder{indent: options.Indent}
}

func (d *TomlDecoder) Decode(data []byte) (storage.Storage, error) {
	var result map[string]any
	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "toml.Unmarshal failed")
	}
	return storage.NewMapStorage(normalize(result)), nil
}

// normalize toml 解码出的 []map[string]any 转成 []any，和 json/yaml 的结构保持一致
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case []map[string]any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			items = append(items, normalize(item))
		}
		return items
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	}
	return v
}

func (d *TomlDecoder) Encode(s storage.Storage) ([]byte, error) {
	data, err := dataOf(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.Indent = d.indent
	if err := encoder.Encode(data); err != nil {
		return nil, errors.Wrap(err, "toml.Encode failed")
	}
	return buf.Bytes(), nil
}
