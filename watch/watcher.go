// Package watch transcribes audio files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"audiobrief/session"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Handler processes one new file
type Handler func(ctx context.Context, path string) error

// Options tune a Watcher
type Options struct {
	// Settle is how long to wait after a file appears before handling it,
	// so that copies have time to finish.
	Settle time.Duration

	// MaxConcurrent bounds how many files are handled at once
	MaxConcurrent int

	Log zerolog.Logger
}

// Watcher monitors a directory for new audio files
type Watcher struct {
	dir       string
	handler   Handler
	log       zerolog.Logger
	settle    time.Duration
	fs        *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// New creates a watcher for dir. Call Start to begin handling files.
func New(dir string, handler Handler, opts Options) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}

	return &Watcher{
		dir:       dir,
		handler:   handler,
		log:       opts.Log.With().Str("component", "watcher").Str("dir", dir).Logger(),
		settle:    opts.Settle,
		fs:        fs,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
	}, nil
}

// Start handles new files until ctx is done, then waits for files in
// progress to finish.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info().Int("max_concurrent", cap(w.semaphore)).Msg("file watcher started")
	w.log.Info().Msg("Supported formats: " + session.SupportedFormats)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("waiting for ongoing transcriptions to complete")
			w.wg.Wait()
			w.log.Info().Msg("file watcher stopped")
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher events channel closed")
			}

			if !event.Has(fsnotify.Create) {
				continue
			}
			if !session.AcceptedExtension(event.Name) {
				w.log.Debug().Str("file", event.Name).Msg("ignoring non-audio file")
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}

			w.log.Info().Str("file", event.Name).Msg("new audio detected")

			w.wg.Add(1)
			go w.handle(ctx, event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// handle waits for the file to settle and a free slot, then runs the handler
func (w *Watcher) handle(ctx context.Context, path string) {
	defer w.wg.Done()

	select {
	case <-time.After(w.settle):
	case <-ctx.Done():
		return
	}

	select {
	case w.semaphore <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-w.semaphore }()

	if err := w.handler(ctx, path); err != nil {
		w.log.Error().Err(err).Str("file", path).Msg("failed to process file")
	}
}

// Stop closes the underlying file watcher
func (w *Watcher) Stop() error {
	return w.fs.Close()
}
