package decoder

import (
	"path/filepath"
	"strings"

	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/hatlonely/entmap/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[JsonDecoder](NewJsonDecoderWithOptions)
	ref.MustRegisterT[YamlDecoder](NewYamlDecoderWithOptions)
	ref.MustRegisterT[TomlDecoder](NewTomlDecoderWithOptions)
	ref.MustRegisterT[IniDecoder](NewIniDecoderWithOptions)
}

// Decoder 配置数据编解码器
type Decoder interface {
	// Decode 将原始数据解码为 Storage
	Decode(data []byte) (storage.Storage, error)
	// Encode 将 Storage 编码为原始数据
	Encode(s storage.Storage) ([]byte, error)
}

func NewDecoderWithOptions(options *ref.TypeOptions) (Decoder, error) {
	obj, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	decoder, ok := obj.(Decoder)
	if !ok {
		return nil, errors.Errorf("%T is not a Decoder", obj)
	}
	return decoder, nil
}

// NewDecoderByExtension 根据文件后缀选择解码器
//
//	.json -> JsonDecoder
//	.yaml/.yml -> YamlDecoder
//	.toml -> TomlDecoder
//	.ini -> IniDecoder
func NewDecoderByExtension(filename string) (Decoder, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return NewJsonDecoderWithOptions(&JsonDecoderOptions{Indent: "  "}), nil
	case ".yaml", ".yml":
		return NewYamlDecoderWithOptions(&YamlDecoderOptions{Indent: 2}), nil
	case ".toml":
		return NewTomlDecoderWithOptions(&TomlDecoderOptions{Indent: "  "}), nil
	case ".ini":
		return NewIniDecoderWithOptions(&IniDecoderOptions{AllowShadows: true}), nil
	default:
		return nil, errors.Errorf("unsupported file extension %q", ext)
	}
}

// dataOf 取出 Storage 的原始数据
func dataOf(s storage.Storage) (any, error) {
	if ms, ok := s.(*storage.MapStorage); ok {
		return ms.Data(), nil
	}
	var data any
	if err := s.ConvertTo(&data); err != nil {
		return nil, errors.WithMessage(err, "storage.ConvertTo failed")
	}
	return data, nil
}
