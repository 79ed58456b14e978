package cfg

import (
	"os"

	"github.com/hatlonely/entmap/cfg/decoder"
	"github.com/hatlonely/entmap/cfg/storage"
	"github.com/hatlonely/entmap/ref"
	"github.com/pkg/errors"
)

// Options 配置文件选项，Decoder 为空时按文件后缀选择
type Options struct {
	Filename string           `cfg:"filename" validate:"required"`
	Decoder  *ref.TypeOptions `cfg:"decoder"`
}

// Config 一份只读的配置，ConvertTo 时填充默认值并校验
type Config struct {
	decoder decoder.Decoder
	storage storage.Storage
}

func NewConfigWithOptions(options *Options) (*Config, error) {
	if options == nil || options.Filename == "" {
		return nil, errors.New("filename is required")
	}

	var dec decoder.Decoder
	var err error
	if options.Decoder != nil {
		dec, err = decoder.NewDecoderWithOptions(options.Decoder)
	} else {
		dec, err = decoder.NewDecoderByExtension(options.Filename)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "create decoder failed")
	}

	data, err := os.ReadFile(options.Filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s failed", options.Filename)
	}
	return NewConfigWithData(data, dec)
}

// NewConfig 从文件加载配置，根据后缀选择解码器
func NewConfig(filename string) (*Config, error) {
	return NewConfigWithOptions(&Options{Filename: filename})
}

func NewConfigWithData(data []byte, dec decoder.Decoder) (*Config, error) {
	s, err := dec.Decode(data)
	if err != nil {
		return nil, errors.WithMessage(err, "decode failed")
	}
	return &Config{decoder: dec, storage: storage.NewValidateStorage(s)}, nil
}

func (c *Config) Sub(key string) *Config {
	return &Config{decoder: c.decoder, storage: c.storage.Sub(key)}
}

func (c *Config) ConvertTo(object any) error {
	return c.storage.ConvertTo(object)
}

// Storage 实现了 ref.Convertable，可以直接作为组件的构造参数
func (c *Config) Storage() storage.Storage {
	return c.storage
}

// Encode 使用加载时的解码器重新编码
func (c *Config) Encode() ([]byte, error) {
	return c.decoder.Encode(c.storage)
}
