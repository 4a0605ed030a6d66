package share

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/devans0/fileshare-client/internal/events"
	"github.com/devans0/fileshare-client/internal/logging"
)

// debounceWindow coalesces bursts of file system events (editors write,
// rename and chmod in quick succession) into a single reconcile trigger.
const debounceWindow = 500 * time.Millisecond

// DirWatcher feeds native file system events from the current share
// directory into the engine as opportunistic reconcile triggers. The polled
// reconcile pass remains authoritative; the watcher only shortens the window
// between a directory change and the next pass. It re-points itself when the
// engine swaps the share directory.
type DirWatcher struct {
	engine  *Engine
	watcher *fsnotify.Watcher
	sub     chan events.Event

	mu      sync.Mutex
	watched string

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDirWatcher creates a watcher bound to the engine's broadcaster. Start
// must be called to begin watching.
func NewDirWatcher(engine *Engine, broadcaster *events.Broadcaster) (*DirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DirWatcher{
		engine:  engine,
		watcher: fsw,
		sub:     broadcaster.Subscribe(),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the engine's current share directory.
func (w *DirWatcher) Start() {
	w.point(w.engine.ShareDir())

	w.wg.Add(1)
	go w.loop()
}

// Stop tears the watcher down. The broadcaster subscription is left to the
// caller that owns the broadcaster.
func (w *DirWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if err := w.watcher.Close(); err != nil {
		logging.Warn("closing directory watcher", zap.Error(err))
	}
}

func (w *DirWatcher) loop() {
	defer w.wg.Done()

	var debounce <-chan time.Time
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("share directory changed on disk", zap.String("path", ev.Name))
			debounce = time.After(debounceWindow)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("directory watch error", zap.Error(err))

		case <-debounce:
			debounce = nil
			w.engine.TriggerSync()

		case ev, ok := <-w.sub:
			if !ok {
				return
			}
			if ev.Type == events.EventDirChanged {
				w.point(ev.Path)
			}
		}
	}
}

// point swaps the watched directory. An empty dir stops watching.
func (w *DirWatcher) point(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watched == dir {
		return
	}
	if w.watched != "" {
		if err := w.watcher.Remove(w.watched); err != nil {
			logging.Debug("removing old watch", zap.String("dir", w.watched), zap.Error(err))
		}
		w.watched = ""
	}
	if dir == "" {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		logging.Warn("could not watch share directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.watched = dir
}
