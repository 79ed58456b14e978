package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/hatlonely/entmap/log/writer"
	"github.com/hatlonely/entmap/ref"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[SLog](NewSLogWithOptions)
}

// SLogOptions 日志初始化选项
type SLogOptions struct {
	// 日志级别：debug, info, warn, error
	Level string `cfg:"level" def:"info" validate:"omitempty,oneof=debug info warn error"`

	// 输出格式：text, json
	Format string `cfg:"format" def:"text" validate:"omitempty,oneof=text json"`

	// 输出目标，为空时输出到 stdout
	Output *ref.TypeOptions `cfg:"output"`

	TimeFormat string `cfg:"timeFormat"`

	AddSource bool `cfg:"addSource"`

	// 固定附加的字段
	Fields map[string]any `cfg:"fields"`
}

type SLog struct {
	slogger *slog.Logger
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}

	var w io.Writer
	if options.Output != nil && options.Output.Type != "" {
		obj, err := ref.NewWithTypeOptions(options.Output)
		if err != nil {
			return nil, errors.WithMessage(err, "create writer failed")
		}
		ww, ok := obj.(writer.Writer)
		if !ok {
			return nil, errors.Errorf("%T is not a writer.Writer", obj)
		}
		w = ww
	} else {
		w = writer.NewConsoleWriterWithOptions(&writer.ConsoleWriterOptions{Target: "stdout"})
	}

	return NewSLogWithWriter(w, options)
}

// NewSLogWithWriter 输出到指定 writer，忽略 options.Output
func NewSLogWithWriter(w io.Writer, options *SLogOptions) (*SLog, error) {
	if options == nil {
		options = &SLogOptions{}
	}

	level, err := parseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	handlerOptions := &slog.HandlerOptions{Level: level, AddSource: options.AddSource}
	if options.TimeFormat != "" {
		timeFormat := options.TimeFormat
		handlerOptions.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().Format(timeFormat))
			}
			return a
		}
	}

	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOptions)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOptions)
	default:
		return nil, errors.Errorf("unsupported format %q", options.Format)
	}

	slogger := slog.New(handler)
	if len(options.Fields) > 0 {
		args := make([]any, 0, len(options.Fields)*2)
		for k, v := range options.Fields {
			args = append(args, k, v)
		}
		slogger = slogger.With(args...)
	}

	return &SLog{slogger: slogger}, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown level %q", level)
	}
}

func (l *SLog) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

func (l *SLog) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

func (l *SLog) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

func (l *SLog) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...)}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name)}
}

// Discard 丢弃所有输出，测试中使用
func Discard() Logger {
	return &SLog{slogger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}
