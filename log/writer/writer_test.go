package writer

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hatlonely/entmap/ref"
)

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "entmap.log")
	w, err := NewFileWriterWithOptions(&FileWriterOptions{Path: path})
	if err != nil {
		t.Fatalf("NewFileWriterWithOptions() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Write([]byte("line\n")); err != nil {
				t.Errorf("Write() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := w.Write([]byte("closed")); err == nil {
		t.Error("Write() after Close() should fail")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if n := strings.Count(string(data), "line\n"); n != 10 {
		t.Errorf("expected 10 lines, got %d", n)
	}

	if _, err := NewFileWriterWithOptions(nil); err == nil {
		t.Error("NewFileWriterWithOptions(nil) should fail")
	}
}

func TestMultiWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewMultiWriterWithOptions(&MultiWriterOptions{
		Writers: []ref.TypeOptions{
			{
				Namespace: "github.com/hatlonely/entmap/log/writer",
				Type:      "FileWriter",
				Options:   &FileWriterOptions{Path: filepath.Join(dir, "a.log")},
			},
			{
				Namespace: "github.com/hatlonely/entmap/log/writer",
				Type:      "FileWriter",
				Options:   &FileWriterOptions{Path: filepath.Join(dir, "b.log")},
			},
			{
				Namespace: "github.com/hatlonely/entmap/log/writer",
				Type:      "ConsoleWriter",
				Options:   &ConsoleWriterOptions{Target: "stderr"},
			},
		},
	})
	if err != nil {
		t.Fatalf("NewMultiWriterWithOptions() error = %v", err)
	}

	if n, err := w.Write([]byte("hello\n")); err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, name := range []string{"a.log", "b.log"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(data) != "hello\n" {
			t.Errorf("%s = %q, %v", name, data, err)
		}
	}

	if _, err := NewMultiWriterWithOptions(&MultiWriterOptions{}); err == nil {
		t.Error("empty MultiWriter should fail")
	}
}
