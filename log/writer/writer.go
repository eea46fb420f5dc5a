package writer

import (
	"io"

	"github.com/pkg/errors"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// Options 输出器配置
type Options struct {
	// 输出类型：console, file
	Type string `cfg:"type" def:"console" validate:"omitempty,oneof=console file"`
	// 控制台输出目标：stdout, stderr
	Target string `cfg:"target" def:"stderr"`
	// 文件路径，仅 file 类型使用
	Path string `cfg:"path"`
}

// NewWriterWithOptions 根据配置创建输出器
func NewWriterWithOptions(options *Options) (Writer, error) {
	if options == nil {
		return NewConsoleWriterWithOptions(nil)
	}

	switch options.Type {
	case "", "console":
		return NewConsoleWriterWithOptions(&ConsoleWriterOptions{Target: options.Target})
	case "file":
		return NewFileWriterWithOptions(&FileWriterOptions{Path: options.Path})
	default:
		return nil, errors.Errorf("unsupported writer type: %s", options.Type)
	}
}
