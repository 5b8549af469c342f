package listen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syncthing/notify"
)

// NotifySource watches directories with syncthing/notify, which uses FSEvents
// on macOS and inotify, kqueue or ReadDirectoryChangesW elsewhere.
type NotifySource struct {
	// Buffer is the backend channel capacity. notify never blocks on send and
	// drops events when the channel is full. Zero means DefaultMaxBatch.
	Buffer   int
	MaxBatch int
}

// Open subscribes to dir (non-recursively).
func (s NotifySource) Open(dir string) (Handle, error) {
	root, err := watchRoot(dir)
	if err != nil {
		return nil, err
	}
	// Backends like FSEvents report resolved paths.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	buffer := s.Buffer
	if buffer <= 0 {
		buffer = DefaultMaxBatch
	}
	ch := make(chan notify.EventInfo, buffer)
	if err := notify.Watch(root, ch, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		notify.Stop(ch)
		return nil, fmt.Errorf("error watching directory %s: %w", root, err)
	}

	return &notifyHandle{root: root, ch: ch, maxBatch: s.MaxBatch}, nil
}

type notifyHandle struct {
	root     string
	ch       chan notify.EventInfo
	kinds    kindSet
	maxBatch int
	invalid  bool
}

func (h *notifyHandle) Register(kinds ...EventKind) error {
	set, err := newKindSet(kinds)
	if err != nil {
		return err
	}
	h.kinds = set
	return nil
}

func (h *notifyHandle) Await(ctx context.Context) ([]RawEvent, error) {
	batch, open, err := collectBatch[notify.EventInfo](ctx, h.ch, nil, h.maxBatch, h.translate, nil)
	if !open {
		h.invalid = true
	}
	return batch, err
}

func (h *notifyHandle) Reset() bool {
	return !h.invalid
}

func (h *notifyHandle) Close() error {
	notify.Stop(h.ch)
	return nil
}

func (h *notifyHandle) translate(ev notify.EventInfo) ([]RawEvent, bool) {
	path := filepath.Clean(ev.Path())
	if path == h.root {
		return nil, ev.Event()&(notify.Remove|notify.Rename) == 0
	}

	kind, ok := notifyKind(ev.Event(), path)
	if !ok || !h.kinds.has(kind) {
		return nil, true
	}
	return []RawEvent{{Kind: kind, Name: filepath.Base(path)}}, true
}

// notifyKind classifies a notify event. notify reports both ends of a rename
// as Rename, so the entry's presence decides which end this is.
func notifyKind(ev notify.Event, path string) (EventKind, bool) {
	switch {
	case ev&notify.Create != 0:
		return Created, true
	case ev&notify.Write != 0:
		return Modified, true
	case ev&notify.Remove != 0:
		return Deleted, true
	case ev&notify.Rename != 0:
		if _, err := os.Lstat(path); err == nil {
			return Created, true
		}
		return Deleted, true
	}
	return "", false
}
