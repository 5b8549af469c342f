package listen

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	poller "github.com/radovskyb/watcher"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the scan period used when PollSource.Interval is zero.
const DefaultPollInterval = 500 * time.Millisecond

// PollSource detects changes by rescanning the directory on an interval.
// It works on filesystems that do not deliver kernel notifications.
type PollSource struct {
	Interval time.Duration
	MaxBatch int
}

// Open starts a poller on dir and returns once its first scan is running.
func (s PollSource) Open(dir string) (Handle, error) {
	root, err := watchRoot(dir)
	if err != nil {
		return nil, err
	}

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	p := poller.New()
	p.FilterOps(poller.Create, poller.Write, poller.Remove, poller.Rename, poller.Move, poller.Chmod)
	// Added before Start so existing entries are part of the first snapshot
	// and never reported as created.
	if err := p.Add(root); err != nil {
		return nil, fmt.Errorf("error watching directory %s: %w", root, err)
	}

	h := &pollHandle{
		root:     root,
		poller:   p,
		events:   make(chan poller.Event, DefaultMaxBatch),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
		maxBatch: s.MaxBatch,
	}

	var gctx context.Context
	h.group, gctx = errgroup.WithContext(context.Background())
	h.group.Go(func() error {
		return p.Start(interval)
	})
	h.group.Go(func() error {
		return h.forward(gctx)
	})

	// Wait returns once Start is running. Start only fails before that for an
	// interval under a nanosecond, which the defaulting above rules out.
	started := make(chan struct{})
	go func() {
		p.Wait()
		close(started)
	}()
	select {
	case <-started:
	case <-gctx.Done():
		close(h.done)
		return nil, fmt.Errorf("error starting poller: %w", h.group.Wait())
	}
	return h, nil
}

type pollHandle struct {
	root     string
	poller   *poller.Watcher
	group    *errgroup.Group
	events   chan poller.Event
	errs     chan error
	done     chan struct{}
	kinds    kindSet
	maxBatch int
	invalid  bool
}

// forward moves poller output onto buffered channels. The poller sends on
// unbuffered channels and only notices Close between sends, so forward keeps
// draining (and discarding, once done is closed) until the poller exits.
func (h *pollHandle) forward(ctx context.Context) error {
	for {
		select {
		case <-h.poller.Closed:
			return nil
		case <-ctx.Done():
			return nil
		case ev := <-h.poller.Event:
			select {
			case h.events <- ev:
			case <-h.done:
			}
		case err := <-h.poller.Error:
			select {
			case h.errs <- err:
			case <-h.done:
			}
		}
	}
}

func (h *pollHandle) Register(kinds ...EventKind) error {
	set, err := newKindSet(kinds)
	if err != nil {
		return err
	}
	h.kinds = set
	return nil
}

func (h *pollHandle) Await(ctx context.Context) ([]RawEvent, error) {
	batch, open, err := collectBatch[poller.Event](ctx, h.events, h.errs, h.maxBatch, h.translate, pollError)
	if !open {
		h.invalid = true
	}
	return batch, err
}

func (h *pollHandle) Reset() bool {
	return !h.invalid
}

func (h *pollHandle) Close() error {
	close(h.done)
	h.poller.Close()
	return h.group.Wait()
}

func (h *pollHandle) translate(ev poller.Event) ([]RawEvent, bool) {
	if filepath.Clean(ev.Path) == h.root {
		return nil, ev.Op != poller.Remove
	}

	var out []RawEvent
	add := func(kind EventKind, path string) {
		if h.kinds.has(kind) {
			out = append(out, RawEvent{Kind: kind, Name: filepath.Base(path)})
		}
	}

	switch ev.Op {
	case poller.Create:
		add(Created, ev.Path)
	case poller.Write, poller.Chmod:
		add(Modified, ev.Path)
	case poller.Remove:
		add(Deleted, ev.Path)
	case poller.Rename, poller.Move:
		add(Deleted, ev.OldPath)
		add(Created, ev.Path)
	}
	return out, true
}

func pollError(err error) error {
	if errors.Is(err, poller.ErrWatchedFileDeleted) {
		return ErrWatchInvalid
	}
	return fmt.Errorf("poller error: %w", err)
}
