package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// RunNotify watches the file through fsnotify instead of polling. The
// observable contract is the same as Run: one restart per detected change,
// baseline always advances, lost target exits. The parent directory is
// watched because editors typically replace config files by rename.
func (s *Supervisor) RunNotify(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			info, err := os.Stat(s.path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					s.log.Error().Str("path", s.path).Msg("watched file disappeared")
					return ErrTargetLost(s.path)
				}
				return err
			}
			s.observe(ctx, info.ModTime())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Error().Err(err).Msg("watcher error")
		}
	}
}
