package tuning

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mirrorctl/relook/internal/log"
)

// DebounceWindow is the quiescence period between the last file-system
// notification and the reload it triggers.
const DebounceWindow = 120 * time.Millisecond

// Watcher watches the store file and its directory and calls notify once
// per burst of notifications. Watches are re-established after every
// notification so editors that replace the file keep being followed.
type Watcher struct {
	fw       *fsnotify.Watcher
	resolve  PathFunc
	notify   func()
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	file    string
	dir     string
	timer   *time.Timer
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
	bursts  int
	pending bool
}

// NewWatcher starts watching the path resolved by resolve. notify runs on
// the watcher's timer goroutine.
func NewWatcher(resolve PathFunc, notify func(), debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DebounceWindow
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tuning: watcher: %w", err)
	}
	w := &Watcher{
		fw:       fw,
		resolve:  resolve,
		notify:   notify,
		debounce: debounce,
		logger:   logger,
		done:     make(chan struct{}),
	}
	w.timer = time.AfterFunc(time.Hour, w.fire)
	w.timer.Stop()

	w.mu.Lock()
	w.ensureLocked()
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watched returns the paths currently registered.
func (w *Watcher) Watched() []string {
	return w.fw.WatchList()
}

// Fired returns how many debounced notifications were delivered.
func (w *Watcher) Fired() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bursts
}

// Close stops watching. A pending debounced notification is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.timer.Stop()
	w.pending = false
	w.mu.Unlock()

	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			log.Trace(w.logger, "tuning store changed", "path", ev.Name, "op", ev.Op.String())
			w.kick()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("tuning watch error", "error", err)
			w.kick()
		}
	}
}

// kick re-arms the watches and restarts the debounce window.
func (w *Watcher) kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.ensureLocked()
	w.pending = true
	w.timer.Reset(w.debounce)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.ensureLocked()
	w.bursts++
	w.mu.Unlock()

	if w.notify != nil {
		w.notify()
	}
}

// ensureLocked follows path changes and re-adds dropped watches. The file
// is only watched while it exists.
func (w *Watcher) ensureLocked() {
	file := w.resolve()
	dir := ""
	if file != "" {
		if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
		dir = filepath.Dir(file)
	}

	if w.file != "" && w.file != file {
		_ = w.fw.Remove(w.file)
	}
	if w.dir != "" && w.dir != dir {
		_ = w.fw.Remove(w.dir)
	}
	w.file, w.dir = file, dir

	watched := w.fw.WatchList()
	if dir != "" && !slices.Contains(watched, dir) {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			if err := w.fw.Add(dir); err != nil {
				w.logger.Debug("cannot watch tuning directory", "path", dir, "error", err)
			}
		}
	}
	if file != "" && !slices.Contains(watched, file) {
		if fi, err := os.Stat(file); err == nil && !fi.IsDir() {
			if err := w.fw.Add(file); err != nil {
				w.logger.Debug("cannot watch tuning file", "path", file, "error", err)
			}
		}
	}
}
