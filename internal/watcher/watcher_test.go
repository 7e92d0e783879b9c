package watcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 5 * time.Millisecond

// runLoop starts l in the background and returns a channel with its result.
func runLoop(ctx context.Context, l *Loop) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx)
	}()
	return done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
		return nil
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateBaselineBuild, "baseline_build"},
		{StatePolling, "polling"},
		{StateRebuilding, "rebuilding"},
		{StateStopped, "stopped"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestLoopBaselineOnlyWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"static/template.html": "<body></body>"})

	var calls atomic.Int32
	var out bytes.Buffer
	l := NewLoop(newTestScanner(dir, []string{"./**"}), testInterval,
		func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		WithOutput(&out))
	assert.Equal(t, StateIdle, l.State())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, DoneNotice+"\n", out.String())
	assert.Equal(t, StateStopped, l.State())
}

func TestLoopRebuildsOnChange(t *testing.T) {
	tests := []struct {
		name   string
		change func(t *testing.T, dir string)
	}{
		{
			name: "modified",
			change: func(t *testing.T, dir string) {
				writeTree(t, dir, map[string]string{"static/a.css": "p{color:red}"})
			},
		},
		{
			name: "added",
			change: func(t *testing.T, dir string) {
				writeTree(t, dir, map[string]string{"static/b.css": "a{}"})
			},
		},
		{
			name: "removed",
			change: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "static", "a.css")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTree(t, dir, map[string]string{"static/a.css": "p{}"})

			var calls atomic.Int32
			var out bytes.Buffer
			l := NewLoop(newTestScanner(dir, []string{"./**"}), testInterval,
				func(ctx context.Context) error {
					calls.Add(1)
					return nil
				},
				WithOutput(&out))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := runLoop(ctx, l)

			require.Eventually(t, func() bool { return l.State() == StatePolling },
				time.Second, time.Millisecond)
			tt.change(t, dir)
			require.Eventually(t, func() bool { return calls.Load() == 2 },
				time.Second, time.Millisecond)

			// Give the loop a few more cycles to prove it settles.
			time.Sleep(10 * testInterval)
			cancel()

			require.NoError(t, waitResult(t, done))
			assert.Equal(t, int32(2), calls.Load())
			assert.Equal(t, RebuildNotice+"\n"+DoneNotice+"\n", out.String())
		})
	}
}

func TestLoopIgnoresExcludedOutput(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"static/template.html": "<body></body>"})

	var calls atomic.Int32
	l := NewLoop(newTestScanner(dir, []string{"./**"}, "index.html"), testInterval,
		func(ctx context.Context) error {
			n := calls.Add(1)
			return os.WriteFile(filepath.Join(dir, "index.html"), []byte(fmt.Sprint(n)), 0o644)
		},
		WithOutput(&bytes.Buffer{}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoopRescansAfterRebuild(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"src/a.txt": "a"})

	// The callback writes a tracked file with new content on every call.
	var calls atomic.Int32
	l := NewLoop(newTestScanner(dir, []string{"./**"}), testInterval,
		func(ctx context.Context) error {
			n := calls.Add(1)
			return os.WriteFile(filepath.Join(dir, "gen.txt"), []byte(fmt.Sprint(n)), 0o644)
		},
		WithOutput(&bytes.Buffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runLoop(ctx, l)

	require.Eventually(t, func() bool { return l.State() == StatePolling },
		time.Second, time.Millisecond)
	writeTree(t, dir, map[string]string{"src/a.txt": "b"})
	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, time.Millisecond)

	time.Sleep(10 * testInterval)
	cancel()

	require.NoError(t, waitResult(t, done))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoopRebuildError(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.css": "p{}"})

	boom := errors.New("boom")
	var calls atomic.Int32
	var out bytes.Buffer
	l := NewLoop(newTestScanner(dir, []string{"**"}), testInterval,
		func(ctx context.Context) error {
			if calls.Add(1) > 1 {
				return boom
			}
			return nil
		},
		WithOutput(&out))

	done := runLoop(context.Background(), l)

	require.Eventually(t, func() bool { return l.State() == StatePolling },
		time.Second, time.Millisecond)
	writeTree(t, dir, map[string]string{"a.css": "p{margin:0}"})

	err := waitResult(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, stitcherrors.ErrCodeRebuildFailed, stitcherrors.Code(err))
	assert.Equal(t, StateStopped, l.State())
	assert.Equal(t, RebuildNotice+"\n", out.String())
}

func TestLoopCancelDuringRebuild(t *testing.T) {
	tests := []struct {
		name     string
		cancelAt int32
		want     string
	}{
		{"baseline", 1, DoneNotice + "\n"},
		{"rebuild", 2, RebuildNotice + "\n" + DoneNotice + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTree(t, dir, map[string]string{"a.css": "p{}"})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var calls atomic.Int32
			var out bytes.Buffer
			l := NewLoop(newTestScanner(dir, []string{"**"}), testInterval,
				func(ctx context.Context) error {
					if calls.Add(1) == tt.cancelAt {
						cancel()
					}
					return ctx.Err()
				},
				WithOutput(&out))

			done := runLoop(ctx, l)
			if tt.cancelAt > 1 {
				require.Eventually(t, func() bool { return l.State() == StatePolling },
					time.Second, time.Millisecond)
				writeTree(t, dir, map[string]string{"a.css": "p{margin:0}"})
			}

			require.NoError(t, waitResult(t, done))
			assert.Equal(t, tt.cancelAt, calls.Load())
			assert.Equal(t, tt.want, out.String())
			assert.Equal(t, StateStopped, l.State())
		})
	}
}

func TestLoopBaselineError(t *testing.T) {
	l := NewLoop(newTestScanner(t.TempDir(), []string{"**"}), testInterval,
		func(ctx context.Context) error {
			return stitcherrors.ErrUnknownFormatFor("xyz", "a.xyz")
		},
		WithOutput(&bytes.Buffer{}))

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, stitcherrors.ErrUnknownFormat)
	assert.Equal(t, stitcherrors.ErrCodeRebuildFailed, stitcherrors.Code(err))
}

// fakeNotifier feeds events to the loop by hand.
type fakeNotifier struct {
	events chan fsnotify.Event
	errs   chan error
	synced atomic.Int32
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		events: make(chan fsnotify.Event, 4),
		errs:   make(chan error, 4),
	}
}

func (f *fakeNotifier) Sync(dirs []string) { f.synced.Add(1) }

func (f *fakeNotifier) Events() <-chan fsnotify.Event { return f.events }

func (f *fakeNotifier) Errors() <-chan error { return f.errs }

func (f *fakeNotifier) Close() error { return nil }

func TestLoopNotifierWakesEarly(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.md": "# a"})

	n := newFakeNotifier()
	var calls atomic.Int32
	l := NewLoop(newTestScanner(dir, []string{"**"}), time.Hour,
		func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		WithOutput(&bytes.Buffer{}),
		WithNotifier(n))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runLoop(ctx, l)

	require.Eventually(t, func() bool { return l.State() == StatePolling },
		time.Second, time.Millisecond)

	// Errors and chmod events never wake the loop into a rebuild.
	n.errs <- errors.New("queue overflow")
	n.events <- fsnotify.Event{Name: filepath.Join(dir, "a.md"), Op: fsnotify.Chmod}

	writeTree(t, dir, map[string]string{"a.md": "# b"})
	n.events <- fsnotify.Event{Name: filepath.Join(dir, "a.md"), Op: fsnotify.Write}

	require.Eventually(t, func() bool { return calls.Load() == 2 },
		time.Second, time.Millisecond)
	cancel()

	require.NoError(t, waitResult(t, done))
	assert.GreaterOrEqual(t, n.synced.Load(), int32(2))
}

func TestFSNotifierDeliversEvents(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"static/a.css": "p{}"})

	n, err := NewFSNotifier(dir, nil)
	require.NoError(t, err)
	defer n.Close()

	n.Sync([]string{"static", "missing"})
	writeTree(t, dir, map[string]string{"static/a.css": "p{color:red}"})

	select {
	case ev := <-n.Events():
		assert.True(t, strings.HasSuffix(filepath.ToSlash(ev.Name), "static/a.css"))
	case err := <-n.Errors():
		t.Fatalf("notifier error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}
