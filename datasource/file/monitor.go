package file

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor watches a data directory and invokes a handler when a
// matching file is written or created. Duplicate events for the same
// modification are collapsed via the file mod time.
type FileMonitor struct {
	watchDir string
	pattern  string
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor watches dir for files whose base name matches pattern,
// e.g. "*.csv". An empty pattern matches everything.
func NewFileMonitor(dir, pattern string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		pattern:  pattern,
		watcher:  watcher,
	}, nil
}

// Watch blocks, dispatching handler in a goroutine for each fresh
// change. It returns when the monitor is closed or the watcher fails.
func (m *FileMonitor) Watch(handler func(string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				if !m.matches(event.Name) {
					continue
				}
				info, err := os.Stat(event.Name)
				if err != nil {
					continue
				}

				m.mu.Lock()
				if info.ModTime().After(m.lastMod) || event.Name != m.lastFile {
					m.lastMod = info.ModTime()
					m.lastFile = event.Name
					go handler(event.Name)
				}
				m.mu.Unlock()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close stops the monitor and unblocks Watch.
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}

func (m *FileMonitor) matches(path string) bool {
	if m.pattern == "" {
		return true
	}
	ok, err := filepath.Match(m.pattern, filepath.Base(path))
	return err == nil && ok
}
