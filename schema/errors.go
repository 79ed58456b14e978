package schema

import "github.com/pkg/errors"

var (
	// ErrStructural 配置或者 schema 错误：未知字段、无法解析的类型、非法的定义，不可重试
	ErrStructural = errors.New("structural error")
	// ErrTypeMismatch 字段类型无法接受的值
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrReferenceNotFound belongsTo 引用的对象不存在
	ErrReferenceNotFound = errors.New("reference not found")
)

func structuralf(format string, args ...any) error {
	return errors.Wrapf(ErrStructural, format, args...)
}

func mismatchf(format string, args ...any) error {
	return errors.Wrapf(ErrTypeMismatch, format, args...)
}
