package listen

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxBatch bounds how many already-pending events are drained into one batch.
const DefaultMaxBatch = 256

// ErrWatchInvalid is reported when the platform handle stops being valid,
// for example because the watched directory was removed.
var ErrWatchInvalid = errors.New("watch handle is no longer valid")

// Source opens platform watch subscriptions.
type Source interface {
	// Open subscribes to dir. It fails if dir does not exist or cannot be read.
	Open(dir string) (Handle, error)
}

// Handle is an open subscription to a single directory.
// A Handle is owned by one goroutine; implementations need not be safe for concurrent use
// except for Close.
type Handle interface {
	// Register selects the kinds the handle reports.
	Register(kinds ...EventKind) error

	// Await blocks until at least one event is available and returns it together
	// with any events already queued behind it. It returns ctx.Err() when ctx is done.
	Await(ctx context.Context) ([]RawEvent, error)

	// Reset re-arms the handle after a batch and reports whether it is still valid.
	Reset() bool

	// Close releases the subscription.
	Close() error
}

// kindSet is the filter a handle applies after Register. An empty set accepts every kind.
type kindSet map[EventKind]bool

func newKindSet(kinds []EventKind) (kindSet, error) {
	set := make(kindSet, len(kinds))
	for _, k := range kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("unknown event kind %q", k)
		}
		set[k] = true
	}
	return set, nil
}

func (s kindSet) has(k EventKind) bool {
	return len(s) == 0 || s[k]
}

// translateFunc converts one backend event into raw events. valid is false
// when the event means the subscription itself is gone.
type translateFunc[T any] func(ev T) (events []RawEvent, valid bool)

// collectBatch blocks until the backend yields at least one raw event, then
// drains whatever is already queued behind it, up to maxBatch events.
// open is false once the backend channel closed or translate reported the
// subscription invalid. onErr decides what a backend error means: nil skips
// it, ErrWatchInvalid closes the batch as invalid, anything else is returned.
func collectBatch[T any](ctx context.Context, src <-chan T, errs <-chan error, maxBatch int,
	translate translateFunc[T], onErr func(error) error) (batch []RawEvent, open bool, err error) {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}

	for len(batch) == 0 {
		select {
		case <-ctx.Done():
			return nil, true, ctx.Err()
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if e = onErr(e); e != nil {
				if errors.Is(e, ErrWatchInvalid) {
					return nil, false, nil
				}
				return nil, true, e
			}
		case ev, ok := <-src:
			if !ok {
				return batch, false, nil
			}
			events, valid := translate(ev)
			batch = append(batch, events...)
			if !valid {
				return batch, false, nil
			}
		}
	}

	for len(batch) < maxBatch {
		select {
		case ev, ok := <-src:
			if !ok {
				return batch, false, nil
			}
			events, valid := translate(ev)
			batch = append(batch, events...)
			if !valid {
				return batch, false, nil
			}
		default:
			return batch, true, nil
		}
	}
	return batch, true, nil
}
