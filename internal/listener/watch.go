package listener

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"supportlog/internal/logging"
	"supportlog/internal/pipeline"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Watcher processes log files dropped into a directory. Each file is handled
// once it has been quiet for the debounce period, then moved to processed/ or
// failed/ next to it.
type Watcher struct {
	dir       string
	processor *pipeline.ProcessingService
	log       *zap.Logger
	debounce  time.Duration

	// OnResult, when set, is called after each file.
	OnResult func(path string, res pipeline.ProcessResult, err error)

	pending map[string]time.Time
}

func NewWatcher(dir string, processor *pipeline.ProcessingService, log *zap.Logger) *Watcher {
	log = logging.OrNop(log)
	return &Watcher{
		dir:       dir,
		processor: processor,
		log:       log,
		debounce:  500 * time.Millisecond,
		pending:   map[string]time.Time{},
	}
}

// Run blocks until ctx is done. Files already present when it starts are
// processed first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching inbox", zap.String("dir", w.dir))

	w.ScanExisting(ctx)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if w.accepts(event.Name) {
				w.pending[event.Name] = time.Now()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx, time.Now())
		}
	}
}

// ScanExisting processes the supported files currently in the directory.
func (w *Watcher) ScanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn("scan inbox", zap.Error(err))
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if e.IsDir() || !w.accepts(path) {
			continue
		}
		w.handle(ctx, path)
	}
}

func (w *Watcher) accepts(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	return pipeline.IsSupportedFile(path)
}

func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	for _, path := range ready {
		delete(w.pending, path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w.handle(ctx, path)
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	results, err := w.processor.ProcessFiles(ctx, []string{path})
	var res pipeline.FileResult
	if err == nil && len(results) == 1 {
		res = results[0]
		err = res.Err
	}

	target := processedDir
	if err != nil {
		target = failedDir
		w.log.Warn("inbox file failed", zap.String("path", path), zap.Error(err))
	} else {
		w.log.Info("inbox file processed", zap.String("path", path), zap.Int64("analysis", res.AnalysisID), zap.Int("records", len(res.Records)))
	}
	if ctx.Err() == nil {
		if merr := moveInto(path, filepath.Join(w.dir, target)); merr != nil {
			w.log.Warn("move inbox file", zap.String("path", path), zap.Error(merr))
		}
	}
	if w.OnResult != nil {
		w.OnResult(path, res.ProcessResult, err)
	}
}

func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = dest[:len(dest)-len(ext)] + "_" + time.Now().Format("20060102T150405") + ext
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(path, dest)
}
