package decoder

import (
	"bytes"

	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type YamlDecoderOptions struct {
	Indent int `cfg:"indent" def:"2"`
}

type YamlDecoder struct {
	indent int
}

func NewYamlDecoderWithOptions(options *YamlDecoderOptions) *YamlDecoder {
	if options == nil || options.Indent <= 0 {
		return &YamlDecoder{indent: 2}
	}
	return &YamlDecoder{indent: options.Indent}
}

func (d *YamlDecoder) Decode(data []byte) (storage.Storage, error) {
	var result any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	return storage.NewMapStorage(result), nil
}

func (d *YamlDecoder) Encode(s storage.Storage) ([]byte, error) {
	data, err := dataOf(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(d.indent)
	if err := encoder.Encode(data); err != nil {
		return nil, errors.Wrap(err, "yaml.Encode failed")
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(err, "yaml.Encoder.Close failed")
	}
	return buf.Bytes(), nil
}
