package storage

import (
	"github.com/hatlonely/entmap/cfg/def"
	"github.com/hatlonely/entmap/cfg/validator"
	"github.com/pkg/errors"
)

// ValidateStorage 转换之后填充 def 默认值并执行 validate 校验
type ValidateStorage struct {
	storage Storage
}

func NewValidateStorage(storage Storage) *ValidateStorage {
	return &ValidateStorage{storage: storage}
}

func (vs *ValidateStorage) Sub(key string) Storage {
	return NewValidateStorage(vs.storage.Sub(key))
}

func (vs *ValidateStorage) ConvertTo(object any) error {
	if err := vs.storage.ConvertTo(object); err != nil {
		return err
	}
	if err := def.SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults failed")
	}
	if err := validator.ValidateStruct(object); err != nil {
		return errors.Wrap(err, "validate failed")
	}
	return nil
}
