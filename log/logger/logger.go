// Package logger 定义连接、迁移和命令行共用的结构化日志接口，键值对参数与 slog 一致
package logger

import (
	"context"
)

// Logger 日志接口，SQL 执行、迁移语句和错误都通过它输出
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	// With 返回附带固定属性的 Logger，例如 session 或 table
	With(args ...any) Logger
	WithGroup(name string) Logger
}
