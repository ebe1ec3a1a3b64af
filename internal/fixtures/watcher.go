package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/faciam-dev/docform/sdk/client"
)

// Watcher reloads a fixture directory into a memory transport whenever one
// of its YAML files changes. Bursts of events are coalesced per tick.
type Watcher struct {
	dir      string
	mem      *client.Memory
	debounce time.Duration
	logger   *zap.SugaredLogger
	onReload func(*Set, error)

	stopOnce sync.Once
}

type WatchOption func(*Watcher)

func WithLogger(l *zap.SugaredLogger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnReload is called after every reload attempt with the new set or the
// error that kept the previous content in place.
func WithOnReload(fn func(*Set, error)) WatchOption {
	return func(w *Watcher) { w.onReload = fn }
}

func NewWatcher(dir string, mem *client.Memory, debounce time.Duration, opts ...WatchOption) *Watcher {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	w := &Watcher{dir: dir, mem: mem, debounce: debounce, logger: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start begins watching. Returns stop function.
func (w *Watcher) Start(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := fw.Add(w.dir); err != nil {
		cancel()
		_ = fw.Close()
		return nil, err
	}

	changes := make(chan string, 1024)
	go func() {
		defer fw.Close()
		for {
			select {
			case ev := <-fw.Events:
				if !isFixture(ev.Name) {
					continue
				}
				select {
				case changes <- ev.Name:
				default:
				}
			case err := <-fw.Errors:
				if err != nil {
					w.logger.Warnw("fsnotify error", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(w.debounce)
		defer ticker.Stop()
		dirty := false
		for {
			select {
			case p := <-changes:
				w.logger.Debugw("fixture changed", "path", p)
				dirty = true
			case <-ticker.C:
				if !dirty {
					continue
				}
				dirty = false
				w.reload()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() { w.stopOnce.Do(cancel) }, nil
}

// reload swaps the memory content only when the whole directory parses.
func (w *Watcher) reload() {
	s, err := LoadDir(w.dir)
	if err != nil {
		w.logger.Warnw("skip invalid fixtures", "dir", w.dir, "error", err)
	} else {
		s.Replace(w.mem)
		w.logger.Infow("fixtures reloaded", "dir", w.dir, "doctypes", len(s.DocTypes))
	}
	if w.onReload != nil {
		w.onReload(s, err)
	}
}
