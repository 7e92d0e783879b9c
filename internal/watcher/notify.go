package watcher

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/stitch/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Notifier delivers filesystem events that wake a Loop before its interval
// elapses.
type Notifier interface {
	// Sync is called after every scan with the directories it found.
	Sync(dirs []string)
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// FSNotifier is a Notifier backed by fsnotify. fsnotify is not recursive,
// so every scanned directory is added on its own.
type FSNotifier struct {
	watcher *fsnotify.Watcher
	root    string
	watched map[string]bool
	logger  logging.Logger
}

// NewFSNotifier creates a notifier for directories relative to root.
func NewFSNotifier(root string, logger logging.Logger) (*FSNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	n := &FSNotifier{
		watcher: w,
		root:    root,
		watched: make(map[string]bool),
		logger:  logger.WithComponent("notifier"),
	}
	// The root itself is not listed by "**" globs.
	n.Sync([]string{"."})

	return n, nil
}

// Sync adds directories not watched yet. Removed directories drop out of
// fsnotify on their own.
func (n *FSNotifier) Sync(dirs []string) {
	for _, dir := range dirs {
		if n.watched[dir] {
			continue
		}
		full := filepath.Join(n.root, filepath.FromSlash(dir))
		if err := n.watcher.Add(full); err != nil {
			n.logger.Debug(context.Background(), "Cannot watch directory", "path", full, "error", err.Error())
			continue
		}
		n.watched[dir] = true
	}
}

// Events returns the fsnotify event channel.
func (n *FSNotifier) Events() <-chan fsnotify.Event {
	return n.watcher.Events
}

// Errors returns the fsnotify error channel.
func (n *FSNotifier) Errors() <-chan error {
	return n.watcher.Errors
}

// Close stops watching.
func (n *FSNotifier) Close() error {
	return n.watcher.Close()
}
