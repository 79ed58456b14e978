package log

import (
	"sync/atomic"

	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/ref"
	"github.com/pkg/errors"
)

var defaultLogger atomic.Value

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "info", Format: "text"})
	if err != nil {
		panic("init default logger failed: " + err.Error())
	}
	defaultLogger.Store(logger.Logger(l))
}

// Default 进程默认日志器，输出 text 格式到 stdout
func Default() logger.Logger {
	return defaultLogger.Load().(logger.Logger)
}

func SetDefault(l logger.Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// NewLoggerWithOptions 通过 ref 创建日志器，options 为空时返回 Default()
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil || options.Type == "" {
		return Default(), nil
	}
	obj, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	l, ok := obj.(logger.Logger)
	if !ok {
		return nil, errors.Errorf("%T is not a logger.Logger", obj)
	}
	return l, nil
}
