package writer

import (
	"io"
	"os"
)

// ConsoleWriterOptions 控制台输出配置
type ConsoleWriterOptions struct {
	// 输出目标：stdout, stderr
	Target string `cfg:"target" def:"stdout" validate:"omitempty,oneof=stdout stderr"`
}

type ConsoleWriter struct {
	writer io.Writer
}

func NewConsoleWriterWithOptions(options *ConsoleWriterOptions) *ConsoleWriter {
	if options != nil && options.Target == "stderr" {
		return &ConsoleWriter{writer: os.Stderr}
	}
	return &ConsoleWriter{writer: os.Stdout}
}

func (c *ConsoleWriter) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// Close 标准输出不需要关闭
func (c *ConsoleWriter) Close() error {
	return nil
}
