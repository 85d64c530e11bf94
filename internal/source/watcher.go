package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/nxadm/tail"
	"go.uber.org/zap"
)

// Sink receives tailed lines
type Sink interface {
	Sketch(module, format string, args ...any)
}

// File is a single file to tail
type File struct {
	Path      string
	Module    string // defaults to the file's base name
	FromStart bool   // read existing content instead of only new lines
}

// Watcher tails files and hands every line to a Sink
type Watcher struct {
	files  []File
	sink   Sink
	logger *zap.Logger
	poll   bool
}

// WatcherOption customizes a Watcher
type WatcherOption func(*Watcher)

// WithInotify switches from polling to filesystem notifications
func WithInotify() WatcherOption {
	return func(w *Watcher) { w.poll = false }
}

// NewWatcher creates a new file watcher
func NewWatcher(files []File, sink Sink, logger *zap.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		files:  files,
		sink:   sink,
		logger: logger,
		poll:   true, // polling works on every filesystem
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start tails every file until ctx is cancelled
func (w *Watcher) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, f := range w.files {
		wg.Add(1)
		go func(f File) {
			defer wg.Done()
			if err := w.tailFile(ctx, f); err != nil && ctx.Err() == nil {
				w.logger.Error("Error tailing file", zap.String("file", f.Path), zap.Error(err))
			}
		}(f)
	}

	wg.Wait()
	return ctx.Err()
}

func (w *Watcher) tailFile(ctx context.Context, f File) error {
	module := f.Module
	if module == "" {
		module = filepath.Base(f.Path)
	}

	config := tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      w.poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	}
	if f.FromStart {
		config.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}

	t, err := tail.TailFile(f.Path, config)
	if err != nil {
		return fmt.Errorf("failed to tail file %s: %w", f.Path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	w.logger.Info("Tailing file", zap.String("file", f.Path), zap.String("module", module))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping tail of file", zap.String("file", f.Path))
			return ctx.Err()

		case line, ok := <-t.Lines:
			if !ok {
				w.logger.Warn("Tail channel closed", zap.String("file", f.Path))
				return t.Err()
			}

			if line.Err != nil {
				w.logger.Warn("Error reading line", zap.String("file", f.Path), zap.Error(line.Err))
				continue
			}

			w.sink.Sketch(module, "%s", line.Text)
		}
	}
}
