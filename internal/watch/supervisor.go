// Package watch detects edits to the managed process's configuration file
// and triggers a restart through an injected controller. Polling is the
// default backend: it works inside minimal containers where change
// notification is unavailable or namespace-isolated, at the cost of
// detection latency bounded by the poll interval.
package watch

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"swapd/internal/proc"
	"swapd/pkg/types"
)

// Supervisor owns the baseline modification time for a single watched file.
// Independent watches get independent Supervisors; there is no shared state.
type Supervisor struct {
	path     string
	id       string
	interval time.Duration
	ctrl     proc.Controller
	log      zerolog.Logger

	onPoll    func()
	onRestart func(types.RestartEvent)

	mu          sync.Mutex
	baseline    time.Time
	restarts    int
	lastRestart *types.RestartEvent
}

// Option configures optional Supervisor hooks.
type Option func(*Supervisor)

// WithPollHook registers fn to run after every poll tick (metrics).
func WithPollHook(fn func()) Option {
	return func(s *Supervisor) { s.onPoll = fn }
}

// WithRestartHook registers fn to run after every issued restart.
func WithRestartHook(fn func(types.RestartEvent)) Option {
	return func(s *Supervisor) { s.onRestart = fn }
}

// New stats path and records its modification time as the baseline.
// A missing file is a fatal setup error: there is nothing to watch.
func New(path, id string, interval time.Duration, ctrl proc.Controller, log zerolog.Logger, opts ...Option) (*Supervisor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, setupError{path: path, err: err}
	}
	s := &Supervisor{
		path:     path,
		id:       id,
		interval: interval,
		ctrl:     ctrl,
		log:      log,
		baseline: info.ModTime(),
	}
	for _, o := range opts {
		o(s)
	}
	log.Info().Str("path", path).Time("baseline", s.baseline).Dur("interval", interval).Msg("watching config")
	return s, nil
}

// Baseline returns the last-known modification time of the watched file.
func (s *Supervisor) Baseline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Status returns a snapshot of the supervisor's state.
func (s *Supervisor) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := types.StatusResponse{
		ProcessName: s.id,
		WatchPath:   s.path,
		Baseline:    s.baseline,
		Restarts:    s.restarts,
	}
	if s.lastRestart != nil {
		ev := *s.lastRestart
		st.LastRestart = &ev
	}
	return st
}

// Run polls the watched file until ctx is done or the file disappears.
// It returns nil on cancellation and a target-lost error when the file is
// gone; any other stat failure is returned as-is.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := s.Poll(ctx); err != nil {
			return err
		}
	}
}

// Poll performs one stat-compare-restart step. Exported so a single tick can
// be driven deterministically.
func (s *Supervisor) Poll(ctx context.Context) error {
	if s.onPoll != nil {
		defer s.onPoll()
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
	return nil
}

// observe compares mtime against the baseline and issues at most one restart.
// Any difference counts as a change: file restores and clock skew can move
// the timestamp backward.
func (s *Supervisor) observe(ctx context.Context, mtime time.Time) {
	s.mu.Lock()
	unchanged := mtime.Equal(s.baseline)
	s.mu.Unlock()
	if unchanged {
		return
	}

	s.log.Info().Str("path", s.path).Time("mtime", mtime).Msg("config change detected, restarting")
	ev := types.RestartEvent{At: time.Now(), Baseline: mtime}
	err := s.ctrl.Restart(ctx, s.id)
	if err != nil {
		// Fire-and-forget per change event: an unhealthy runtime must not
		// cause an unbounded retry loop, so the baseline still advances.
		ev.Err = err.Error()
		s.log.Error().Err(err).Str("process", s.id).Msg("restart failed")
	} else {
		s.log.Info().Str("process", s.id).Msg("restart issued")
	}

	s.mu.Lock()
	s.baseline = mtime
	s.restarts++
	s.lastRestart = &ev
	s.mu.Unlock()
	if s.onRestart != nil {
		s.onRestart(ev)
	}
}
