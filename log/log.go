package log

import (
	"sync/atomic"

	"github.com/hatlonely/qorm/log/logger"
)

type (
	Logger  = logger.Logger
	Options = logger.SLogOptions
)

// holder 保证 atomic.Value 中存储的类型一致
type holder struct{ logger Logger }

var defaultLogger atomic.Value

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger.Store(holder{logger: l})
}

// NewLoggerWithOptions 根据配置创建日志
func NewLoggerWithOptions(options *Options) (Logger, error) {
	return logger.NewSLogWithOptions(options)
}

func Default() Logger {
	return defaultLogger.Load().(holder).logger
}

// SetDefault 替换全局默认日志，nil 会被忽略
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger.Store(holder{logger: l})
	}
}

// Discard 返回不输出任何内容的日志
func Discard() Logger {
	return logger.NewDiscard()
}
