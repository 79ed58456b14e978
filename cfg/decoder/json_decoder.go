package decoder

import (
	"bytes"
	"encoding/json"

	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/pkg/errors"
)

type JsonDecoderOptions struct {
	// Encode 输出的缩进，为空时输出紧凑格式
	Indent string `cfg:"indent"`
}

// JsonDecoder 标准 JSON，数字解码为 float64
type JsonDecoder struct {
	indent string
}

func NewJsonDecoderWithOptions(options *JsonDecoderOptions) *JsonDecoder {
	if options == nil {
		return &JsonDecoder{}
	}
	return &JsonDecoder{indent: options.Indent}
}

func (d *JsonDecoder) Decode(data []byte) (storage.Storage, error) {
	var result any
	if len(bytes.TrimSpace(data)) == 0 {
		return storage.NewMapStorage(nil), nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed")
	}
	return storage.NewMapStorage(result), nil
}

func (d *JsonDecoder) Encode(s storage.Storage) ([]byte, error) {
	data, err := dataOf(s)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if d.indent == "" {
		buf, err = json.Marshal(data)
	} else {
		buf, err = json.MarshalIndent(data, "", d.indent)
	}
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal failed")
	}
	return buf, nil
}
