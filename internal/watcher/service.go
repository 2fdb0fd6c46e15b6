package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Service watches one file and calls onChange after it settles. The parent
// directory is watched so editors that save by rename are seen too.
type Service struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(context.Context, string)
}

func New(path string, debounce time.Duration, logger *slog.Logger, onChange func(context.Context, string)) (*Service, error) {
	if path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		path:     filepath.Clean(absPath),
		debounce: debounce,
		logger:   logger,
		onChange: onChange,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fileWatcher.Close()

	dir := filepath.Dir(s.path)
	if err := fileWatcher.Add(dir); err != nil {
		return fmt.Errorf("watch path %s: %w", dir, err)
	}
	s.logger.Info("catalog watcher started", "path", s.path)

	var (
		timer  *time.Timer
		fireCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("catalog watcher stopped")
			return nil
		case event, ok := <-fileWatcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fireCh = timer.C
		case <-fireCh:
			fireCh = nil
			s.logger.Info("catalog changed", "path", s.path)
			s.onChange(ctx, s.path)
		case err, ok := <-fileWatcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("file watcher error", "error", err)
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
