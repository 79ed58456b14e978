package logger

import (
	"context"
)

// Logger 实体映射各组件共用的结构化日志接口，args 为 key/value 交替的字段
// 组件之间统一使用 definition、id、field、operationId 作为字段名，方便按实体定义过滤日志
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// 带 context 的版本把 ctx 传给 slog handler
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// OrDiscard 组件的 WithLogger 选项传入 nil 时使用，丢弃所有输出
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
