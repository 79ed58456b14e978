package log

import (
	"sort"

	"github.com/hatlonely/entmap/log/logger"
	"github.com/hatlonely/entmap/ref"
	"github.com/pkg/errors"
)

// Options 日志器名字到构造选项，名字为 default 的日志器作为缺省日志器
type Options map[string]*ref.TypeOptions

// LogManager 按组件名管理日志器
type LogManager struct {
	loggers       map[string]logger.Logger
	defaultLogger logger.Logger
}

func NewLogManagerWithOptions(options Options) (*LogManager, error) {
	m := &LogManager{loggers: map[string]logger.Logger{}, defaultLogger: Default()}
	for name, typeOptions := range options {
		if typeOptions == nil {
			continue
		}
		l, err := NewLoggerWithOptions(typeOptions)
		if err != nil {
			return nil, errors.WithMessagef(err, "create logger %s failed", name)
		}
		m.loggers[name] = l
		if name == "default" {
			m.defaultLogger = l
		}
	}
	return m, nil
}

// GetLogger 获取指定名字的日志器，不存在时返回缺省日志器并带上 component 字段
func (m *LogManager) GetLogger(name string) logger.Logger {
	if l, ok := m.loggers[name]; ok {
		return l
	}
	return m.defaultLogger.With("component", name)
}

func (m *LogManager) GetDefault() logger.Logger {
	return m.defaultLogger
}

func (m *LogManager) ListLoggers() []string {
	names := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
