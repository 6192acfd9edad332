package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Dir      string        // folder to watch (non-recursive)
	Debounce time.Duration // coalesce rapid create/write/rename bursts
	Logger   *slog.Logger
}

// Watch calls run once immediately and again after every debounced burst of
// file events in cfg.Dir, until ctx is done. Calls to run never overlap:
// events arriving during a run schedule exactly one follow-up run.
func Watch(ctx context.Context, cfg WatchConfig, run func(context.Context) error) error {
	if cfg.Dir == "" {
		return errors.New("no folder to watch")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return err
	}
	defer func(w *fsnotify.Watcher) {
		if err := w.Close(); err != nil {
			logger.Warn("watcher close failed", "error", err)
		}
	}(w)

	if err := w.Add(cfg.Dir); err != nil {
		logger.Error("failed to watch folder", "dir", cfg.Dir, "error", err)
		return err
	}

	trigger := make(chan struct{}, 1)
	signal := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		if cfg.Debounce <= 0 {
			signal()
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(cfg.Debounce, signal)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	loopCtx, stopLoop := context.WithCancel(ctx)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if IsHidden(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					logger.Debug("watch.event", "path", e.Name, "op", e.Op.String())
					schedule()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
			}
		}
	}()
	defer wg.Wait()
	defer stopLoop()

	signal()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			if err := run(ctx); err != nil {
				logger.Error("watch.run.failed", "error", err)
				return err
			}
		}
	}
}
