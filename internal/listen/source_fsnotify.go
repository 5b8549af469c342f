package listen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FsnotifySource watches directories with fsnotify (inotify, kqueue,
// ReadDirectoryChangesW or FEN depending on the platform).
type FsnotifySource struct {
	// MaxBatch caps the number of events returned by one Await. Zero means DefaultMaxBatch.
	MaxBatch int
}

// Open creates an fsnotify watcher on dir.
func (s FsnotifySource) Open(dir string) (Handle, error) {
	root, err := watchRoot(dir)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		return nil, errors.Join(fmt.Errorf("error watching directory %s: %w", root, err), watcher.Close())
	}

	return &fsnotifyHandle{
		root:     root,
		watcher:  watcher,
		maxBatch: s.MaxBatch,
	}, nil
}

type fsnotifyHandle struct {
	root     string
	watcher  *fsnotify.Watcher
	kinds    kindSet
	maxBatch int
	invalid  bool
}

func (h *fsnotifyHandle) Register(kinds ...EventKind) error {
	set, err := newKindSet(kinds)
	if err != nil {
		return err
	}
	h.kinds = set
	return nil
}

func (h *fsnotifyHandle) Await(ctx context.Context) ([]RawEvent, error) {
	batch, open, err := collectBatch[fsnotify.Event](ctx, h.watcher.Events, h.watcher.Errors, h.maxBatch, h.translate, fsnotifyError)
	if !open {
		h.invalid = true
	}
	return batch, err
}

func (h *fsnotifyHandle) Reset() bool {
	return !h.invalid
}

func (h *fsnotifyHandle) Close() error {
	return h.watcher.Close()
}

func (h *fsnotifyHandle) translate(event fsnotify.Event) ([]RawEvent, bool) {
	if filepath.Clean(event.Name) == h.root {
		// The directory itself went away; the kernel drops the watch with it.
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			return nil, false
		}
		return nil, true
	}

	kind, ok := fsnotifyKind(event)
	if !ok || !h.kinds.has(kind) {
		return nil, true
	}
	return []RawEvent{{Kind: kind, Name: filepath.Base(event.Name)}}, true
}

// fsnotifyKind classifies an fsnotify event. A rename reports the old name
// going away and chmod counts as a modification.
func fsnotifyKind(event fsnotify.Event) (EventKind, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return Created, true
	case event.Has(fsnotify.Write):
		return Modified, true
	case event.Has(fsnotify.Remove):
		return Deleted, true
	case event.Has(fsnotify.Rename):
		return Deleted, true
	case event.Has(fsnotify.Chmod):
		return Modified, true
	}
	return "", false
}

// fsnotifyError skips queue overflows, which only mean events were lost.
func fsnotifyError(err error) error {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		return nil
	}
	return fmt.Errorf("watcher error: %w", err)
}

// watchRoot resolves dir to a clean absolute path and checks it is a directory.
func watchRoot(dir string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("error resolving directory %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("error watching directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("error watching directory %s: not a directory", root)
	}
	return filepath.Clean(root), nil
}
