// Package watcher watches the inbox directory and hands settled groups of new
// photos to a handler.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adilonapsh/exif-watermark-app/pkg/fileutil"
	"github.com/Adilonapsh/exif-watermark-app/pkg/logger"
)

// Handler receives a settled group of inbox-relative photo paths in
// detection order.
type Handler func(ctx context.Context, files []string) error

// Config holds watcher configuration.
type Config struct {
	// Directory to watch
	Dir string

	// Quiet period a file must stay unchanged before it is handed over
	Settle time.Duration

	// Handler to call with settled files
	Handler Handler

	// Skip reports whether a file found by the startup scan is already done.
	// Optional; receives the inbox-relative path.
	Skip func(rel string) bool

	// Logger instance
	Logger *logger.Logger
}

// pendingFile is a file seen but not yet confirmed stable.
type pendingFile struct {
	size      int64
	modTime   time.Time
	seenAt    time.Time
	lastEvent time.Time
}

// Stats holds watcher counters.
type Stats struct {
	WatchedDirs  int   `json:"watched_dirs"`
	Pending      int   `json:"pending"`
	FilesQueued  int64 `json:"files_queued"`
	HandlerFails int64 `json:"handler_failures"`
}

// Watcher turns fsnotify events into settled batches.
type Watcher struct {
	dir     string
	settle  time.Duration
	handler Handler
	skip    func(rel string) bool
	logger  *logger.Logger

	fsw *fsnotify.Watcher

	mu           sync.Mutex
	watchedDirs  map[string]bool
	pending      map[string]*pendingFile
	filesQueued  int64
	handlerFails int64
}

// New creates a watcher and registers watches on dir and its subdirectories.
func New(cfg Config) (*Watcher, error) {
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:         cfg.Dir,
		settle:      cfg.Settle,
		handler:     cfg.Handler,
		skip:        cfg.Skip,
		logger:      cfg.Logger.WithField("component", "watcher"),
		fsw:         fsw,
		watchedDirs: make(map[string]bool),
		pending:     make(map[string]*pendingFile),
	}

	if err := w.addWatchRecursive(cfg.Dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addWatchRecursive adds watches to a directory and all subdirectories.
func (w *Watcher) addWatchRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // Continue on error
		}
		if info.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

// addWatch adds a watch to a single directory.
func (w *Watcher) addWatch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watchedDirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		w.logger.WithError(err).WithField("dir", dir).Debug("failed to add watch")
		return err
	}
	w.watchedDirs[dir] = true
	w.logger.WithField("dir", dir).Debug("added watch")
	return nil
}

// Stats returns a snapshot of the watcher counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		WatchedDirs:  len(w.watchedDirs),
		Pending:      len(w.pending),
		FilesQueued:  w.filesQueued,
		HandlerFails: w.handlerFails,
	}
}

// Start processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()

	w.logger.WithFields(map[string]interface{}{
		"dir":    w.dir,
		"settle": w.settle.String(),
	}).Info("watcher started")

	w.initialScan(time.Now())

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event, time.Now())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("fsnotify error")

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// initialScan marks photos already in the inbox as pending. They are handed
// over once stable, like files that arrive later.
func (w *Watcher) initialScan(now time.Time) {
	var found, skipped int
	filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.logger.WithError(err).WithField("path", path).Warn("error accessing path")
			return nil // Continue walking
		}
		if info.IsDir() || !fileutil.IsPhotoFile(path) {
			return nil
		}
		if w.skip != nil {
			if rel, err := filepath.Rel(w.dir, path); err == nil && w.skip(rel) {
				skipped++
				return nil
			}
		}
		found++
		w.observe(path, info, now)
		return nil
	})

	w.logger.WithFields(map[string]interface{}{
		"found":   found,
		"skipped": skipped,
	}).Info("initial scan completed")
}

// handleEvent records create and write events for photo files.
func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return // File might have been deleted
	}

	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			w.addWatchRecursive(event.Name)
		}
		return
	}

	w.observe(event.Name, info, now)
}

// observe marks path as pending, restarting its quiet period.
func (w *Watcher) observe(path string, info os.FileInfo, now time.Time) {
	if !fileutil.IsPhotoFile(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.size = info.Size()
		p.modTime = info.ModTime()
		p.lastEvent = now
		return
	}
	w.pending[path] = &pendingFile{
		size:      info.Size(),
		modTime:   info.ModTime(),
		seenAt:    now,
		lastEvent: now,
	}
}

// flush hands over every pending file that has been quiet for the settle
// period and has not changed size or mtime since it was last seen. Files the
// handler rejects go back to pending and are retried after another settle
// period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	type settled struct {
		path string
		rel  string
		file pendingFile
	}

	w.mu.Lock()
	var ready []settled
	for path, p := range w.pending {
		if now.Sub(p.lastEvent) < w.settle {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
			p.size = info.Size()
			p.modTime = info.ModTime()
			p.lastEvent = now
			continue
		}

		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		ready = append(ready, settled{path: path, rel: rel, file: *p})
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i].file.seenAt, ready[j].file.seenAt
		if a.Equal(b) {
			return ready[i].rel < ready[j].rel
		}
		return a.Before(b)
	})
	files := make([]string, len(ready))
	for i, r := range ready {
		files[i] = r.rel
	}

	if err := w.handler(ctx, files); err != nil {
		w.logger.WithError(err).WithField("files", len(files)).Error("failed to hand over settled files")
		w.mu.Lock()
		w.handlerFails++
		for _, r := range ready {
			if _, ok := w.pending[r.path]; ok {
				continue
			}
			f := r.file
			f.lastEvent = now
			w.pending[r.path] = &f
		}
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.filesQueued += int64(len(files))
	w.mu.Unlock()

	w.logger.WithField("files", len(files)).Info("settled files handed over")
}
