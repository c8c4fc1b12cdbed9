package profile

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/kirbytools/buildwatch/internal/logging"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc receives the freshly compiled custom profiles after the
// profiles file changes. errs holds per-entry failures that were skipped.
type ReloadFunc func(profiles []*Profile, errs []error)

// Watcher reloads a profiles file whenever it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// atomic-rename saves keep being observed.
type Watcher struct {
	path     string
	fs       afero.Fs
	onReload ReloadFunc
	logger   *logging.Logger
	debounce time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
	once  sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithFs sets the filesystem the file is read from. Events still come from
// the OS; this exists so reloads can be pointed at a layered filesystem.
func WithFs(fs afero.Fs) WatcherOption {
	return func(w *Watcher) { w.fs = fs }
}

// WithLogger sets the watcher's logger.
func WithLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher starts watching path. onReload is invoked from the watcher's
// goroutine after each debounced change.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		fs:       afero.NewOsFs(),
		onReload: onReload,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrNop(w.logger).WithComponent("profile-watcher")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("profile watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	defs, errs, err := LoadFile(w.fs, w.path)
	if err != nil {
		// A half-written file is common mid-save; keep the previous profiles.
		w.logger.Warn("profile reload failed", "path", w.path, "error", err.Error())
		return
	}
	profiles, compileErrs := CompileAll(defs, w.logger)
	errs = append(errs, compileErrs...)

	w.logger.Info("custom tool profiles reloaded",
		"path", w.path,
		"loaded", len(profiles),
		"skipped", len(errs))
	if w.onReload != nil {
		w.onReload(profiles, errs)
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
