// Package watcher rebuilds on change by polling content fingerprints.
//
// A Loop runs one baseline build, fingerprints every file its glob patterns
// match, then repeatedly waits a fixed interval and fingerprints again.
// Whenever the fingerprint differs from the previous one the rebuild
// callback runs and the fingerprint is recomputed straight away, so files
// the callback writes itself never trigger another rebuild. An optional
// Notifier cuts the wait short on filesystem events; polling stays the
// source of truth.
package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Notices printed to the loop's output.
const (
	RebuildNotice = "[!] REBUILDING"
	DoneNotice    = "[!] DONE"
)

// State is a phase of the watch loop.
type State int32

const (
	StateIdle State = iota
	StateBaselineBuild
	StatePolling
	StateRebuilding
	StateStopped
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBaselineBuild:
		return "baseline_build"
	case StatePolling:
		return "polling"
	case StateRebuilding:
		return "rebuilding"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RebuildFunc is called for the baseline build and after every change.
type RebuildFunc func(ctx context.Context) error

// Loop polls a Scanner and calls a RebuildFunc on change.
type Loop struct {
	scanner  *Scanner
	interval time.Duration
	rebuild  RebuildFunc
	notifier Notifier
	out      io.Writer
	logger   logging.Logger
	onState  func(State)
	state    atomic.Int32
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithOutput sets where notices are printed. Defaults to stdout.
func WithOutput(w io.Writer) LoopOption {
	return func(l *Loop) {
		l.out = w
	}
}

// WithLogger sets the loop's logger.
func WithLogger(logger logging.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithNotifier wakes the loop early on filesystem events.
func WithNotifier(n Notifier) LoopOption {
	return func(l *Loop) {
		l.notifier = n
	}
}

// WithStateHook calls fn on every state transition, from the loop's
// goroutine.
func WithStateHook(fn func(State)) LoopOption {
	return func(l *Loop) {
		l.onState = fn
	}
}

// NewLoop creates a loop polling scanner every interval.
func NewLoop(scanner *Scanner, interval time.Duration, rebuild RebuildFunc, opts ...LoopOption) *Loop {
	l := &Loop{
		scanner:  scanner,
		interval: interval,
		rebuild:  rebuild,
		out:      os.Stdout,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithComponent("watcher")
	return l
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	if State(l.state.Swap(int32(s))) == s {
		return
	}
	if l.onState != nil {
		l.onState(s)
	}
}

// Run blocks until ctx is cancelled or a rebuild fails. Cancellation prints
// the done notice and returns nil, also when it interrupts a rebuild; a
// failed rebuild or scan is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(StateStopped)

	l.setState(StateBaselineBuild)
	if err := l.rebuild(ctx); err != nil {
		if l.interrupted(ctx, err) {
			return nil
		}
		return stitcherrors.WrapBuild(err, stitcherrors.ErrCodeRebuildFailed, "baseline build failed")
	}

	prev, err := l.snapshot()
	if err != nil {
		return err
	}

	for {
		l.setState(StatePolling)
		if !l.wait(ctx) {
			fmt.Fprintln(l.out, DoneNotice)
			return nil
		}

		cur, err := l.snapshot()
		if err != nil {
			return err
		}
		if cur.Equal(prev) {
			continue
		}

		added, removed, modified := cur.Diff(prev)
		l.logger.Info(ctx, "Change detected, rebuilding",
			"added", len(added), "removed", len(removed), "modified", len(modified))
		l.logger.Debug(ctx, "Changed paths",
			"added", added, "removed", removed, "modified", modified)

		l.setState(StateRebuilding)
		fmt.Fprintln(l.out, RebuildNotice)
		if err := l.rebuild(ctx); err != nil {
			if l.interrupted(ctx, err) {
				return nil
			}
			return stitcherrors.WrapBuild(err, stitcherrors.ErrCodeRebuildFailed, "rebuild failed")
		}

		prev, err = l.snapshot()
		if err != nil {
			return err
		}
	}
}

// interrupted reports whether a rebuild failed because ctx was cancelled
// while it ran. It prints the done notice when so.
func (l *Loop) interrupted(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	l.logger.Debug(ctx, "Rebuild interrupted", "error", err.Error())
	fmt.Fprintln(l.out, DoneNotice)
	return true
}

// snapshot scans and hands the directory list to the notifier.
func (l *Loop) snapshot() (Fingerprint, error) {
	fp, err := l.scanner.Scan()
	if err != nil {
		return nil, stitcherrors.WrapIO(err, stitcherrors.ErrCodeFragmentIO, "fingerprint scan failed")
	}
	if l.notifier != nil {
		l.notifier.Sync(fp.Dirs())
	}
	return fp, nil
}

// wait sleeps for the interval or until a notifier event arrives. It
// reports false once ctx is done.
func (l *Loop) wait(ctx context.Context) bool {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if l.notifier != nil {
		events = l.notifier.Events()
		errs = l.notifier.Errors()
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Permission changes leave content alone.
			if ev.Op == fsnotify.Chmod {
				continue
			}
			l.logger.Debug(ctx, "Filesystem event", "path", ev.Name, "op", ev.Op.String())
			return true
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.logger.Warn(ctx, err, "Notifier error")
		}
	}
}
