package lyrics

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"ChordScroll/logger"
	"ChordScroll/model"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Library 持有当前歌谱。会话在建立时取一次快照，之后的重新加载只影响新会话
type Library struct {
	path string

	mu      sync.RWMutex
	current *model.Transcript
	version int

	// OnReload 每次成功重新加载后调用（可选）
	OnReload func(*model.Transcript)
}

// NewLibrary loads path, or the embedded demo song when path is empty.
func NewLibrary(path string) (*Library, error) {
	lib := &Library{path: path}
	if path == "" {
		lib.current = Default()
		return lib, nil
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	lib.current = t
	return lib, nil
}

// Current 返回当前歌谱
func (l *Library) Current() *model.Transcript {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Version 每次成功重新加载后加一
func (l *Library) Version() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Path 返回歌谱文件路径，内置歌谱时为空
func (l *Library) Path() string {
	return l.path
}

// Reload re-reads the file. On failure the previous transcript is kept.
func (l *Library) Reload() error {
	if l.path == "" {
		return nil
	}
	t, err := LoadFile(l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.current = t
	l.version++
	l.mu.Unlock()

	logger.Info("transcript reloaded",
		logger.String("path", l.path),
		logger.Int("lines", t.Len()),
		logger.Int("lyrics", t.LyricCount()))
	if l.OnReload != nil {
		l.OnReload(t)
	}
	return nil
}

// Watch reloads the transcript whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
func (l *Library) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return err
	}
	target := filepath.Clean(l.path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := l.Reload(); err != nil {
				logger.Warn("transcript reload failed, keeping previous version",
					logger.String("path", l.path),
					logger.ErrorField(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("transcript watcher error", logger.ErrorField(err))

		case <-ctx.Done():
			return nil
		}
	}
}
