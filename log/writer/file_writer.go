package writer

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileWriterOptions 文件输出配置
type FileWriterOptions struct {
	Path string `cfg:"path" validate:"required"`
}

// FileWriter 追加写入文件，并发安全
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
}

func NewFileWriterWithOptions(options *FileWriterOptions) (*FileWriter, error) {
	if options == nil || options.Path == "" {
		return nil, errors.New("file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(options.Path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create dir for %s failed", options.Path)
	}
	file, err := os.OpenFile(options.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s failed", options.Path)
	}
	return &FileWriter{file: file}, nil
}

func (f *FileWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, errors.New("file writer is closed")
	}
	return f.file.Write(p)
}

func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
