package dictionary

import (
	"context"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hatlonely/entmap/log/logger"
	"github.com/pkg/errors"
)

// Watcher 监听字典目录，文件变化时重新加载并替换 Catalog
// 加载失败时保留旧的内容
type Watcher struct {
	dir     string
	catalog *Catalog
	logger  logger.Logger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	onReload []func(*Catalog)
	done     chan struct{}
}

func NewWatcher(dir string, catalog *Catalog, log logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "fsnotify.NewWatcher failed")
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "watch %s failed", dir)
	}
	return &Watcher{
		dir:     dir,
		catalog: catalog,
		logger:  logger.OrDiscard(log),
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// OnReload 注册重新加载成功之后的回调
func (w *Watcher) OnReload(fn func(*Catalog)) {
	w.mu.Lock()
	w.onReload = append(w.onReload, fn)
	w.mu.Unlock()
}

// Run 阻塞直到 ctx 结束或者 Close
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.reload(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dictionary watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) reload(trigger string) {
	catalog, err := LoadDir(w.dir)
	if err != nil {
		w.logger.Warn("reload dictionaries failed, keep the old ones", "dir", w.dir, "file", trigger, "error", err)
		return
	}
	w.catalog.Replace(catalog)
	w.logger.Info("dictionaries reloaded", "dir", w.dir, "file", trigger, "names", w.catalog.Names())

	w.mu.Lock()
	handlers := slices.Clone(w.onReload)
	w.mu.Unlock()
	for _, fn := range handlers {
		fn(w.catalog)
	}
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
