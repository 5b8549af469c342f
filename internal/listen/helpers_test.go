package listen

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeSource hands out a single fakeHandle, or fails with openErr.
type fakeSource struct {
	handle  *fakeHandle
	openErr error
	opened  chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		handle: newFakeHandle(),
		opened: make(chan string, 1),
	}
}

func (s *fakeSource) Open(dir string) (Handle, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened <- dir
	return s.handle, nil
}

// fakeHandle delivers whatever batches the test pushes.
type fakeHandle struct {
	batches  chan []RawEvent
	awaitErr chan error

	// Reset reports false once it has been called invalidAfter times (0 means never).
	invalidAfter int
	resets       int

	registerErr error
	kinds       []EventKind

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		batches:  make(chan []RawEvent, 16),
		awaitErr: make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (h *fakeHandle) Register(kinds ...EventKind) error {
	h.kinds = kinds
	return h.registerErr
}

func (h *fakeHandle) Await(ctx context.Context) ([]RawEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-h.awaitErr:
		return nil, err
	case b := <-h.batches:
		return b, nil
	}
}

func (h *fakeHandle) Reset() bool {
	h.resets++
	return h.invalidAfter == 0 || h.resets < h.invalidAfter
}

func (h *fakeHandle) Close() error {
	h.closeOnce.Do(func() { close(h.closed) })
	return nil
}

// recorder collects handler invocations as "tag:name" strings.
type recorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 100)}
}

func (r *recorder) handler(tag string) Handler {
	return func(name string) {
		call := tag + ":" + name
		r.mu.Lock()
		r.calls = append(r.calls, call)
		r.mu.Unlock()
		r.ch <- call
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// expect waits for the next invocation and checks it.
func (r *recorder) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("Expected call %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for call %q", want)
	}
}

// expectNone checks that no invocation arrives within d.
func (r *recorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case got := <-r.ch:
		t.Fatalf("Expected no call, got %q", got)
	case <-time.After(d):
	}
}

// fatalCatcher captures the error passed to OnFatal.
type fatalCatcher chan error

func newFatalCatcher() fatalCatcher { return make(fatalCatcher, 1) }

func (f fatalCatcher) hook(err error) { f <- err }

func (f fatalCatcher) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for the listener to terminate")
		return nil
	}
}

// waitDone waits for the loop goroutine to exit.
func waitDone(t *testing.T, l *Listener) {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for the listener goroutine to exit")
	}
}

// waitOpened waits until the source has been opened by the loop.
func waitOpened(t *testing.T, opened <-chan string) {
	t.Helper()
	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for the watch to open")
	}
}

// readySource signals once the wrapped source's Open has returned.
type readySource struct {
	Source
	opened chan string
}

func newReadySource(src Source) *readySource {
	return &readySource{Source: src, opened: make(chan string, 1)}
}

func (s *readySource) Open(dir string) (Handle, error) {
	h, err := s.Source.Open(dir)
	if err == nil {
		s.opened <- dir
	}
	return h, err
}
