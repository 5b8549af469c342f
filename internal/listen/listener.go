package listen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// ListenOptions configures a Listener. The zero value watches with fsnotify and
// fails silently.
type ListenOptions struct {
	// Source opens the platform watch. Defaults to FsnotifySource.
	Source Source

	// Logger receives loop diagnostics. When nil, a logger is built from
	// LogLevel, which defaults to no logging at all.
	Logger   *zap.Logger
	LogLevel LogLevel

	// OnFatal, if set, is called once from the loop goroutine when the loop
	// terminates for any reason other than Stop: setup failure, backend error,
	// invalid pattern, handler panic, or ErrWatchInvalid.
	OnFatal func(err error)

	// NormalizeNames converts entry names to Unicode NFC before matching and
	// before handing them to handlers.
	NormalizeNames bool

	// Metrics, if set, is updated as events are dispatched.
	Metrics *Metrics
}

// State is the lifecycle state of a Listener.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// HandlerPanicError reports a handler that panicked while handling an event.
type HandlerPanicError struct {
	Kind  EventKind
	Name  string
	Value any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("%s handler for %q panicked: %v", e.Kind, e.Name, e.Value)
}

// Listener runs the watch loop for one directory.
type Listener struct {
	dir      string
	registry *Registry
	opts     ListenOptions
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	state     atomic.Int32
	done      chan struct{}
}

func newListener(dir string, registry *Registry, opts ListenOptions) *Listener {
	if opts.Source == nil {
		opts.Source = FsnotifySource{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = createLogger(opts.LogLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		dir:      dir,
		registry: registry,
		opts:     opts,
		logger:   logger.With(zap.String("dir", dir)),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Directory returns the directory the listener watches.
func (l *Listener) Directory() string { return l.dir }

// Registry returns the listener's immutable registrations.
func (l *Listener) Registry() *Registry { return l.registry }

// State reports the lifecycle state. It does not tell a clean stop from a crash.
func (l *Listener) State() State { return State(l.state.Load()) }

// Done is closed once the loop goroutine has exited. It never closes for a
// listener that was not started.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Start launches the watch loop in its own goroutine and returns immediately.
// Calls after the first are ignored.
func (l *Listener) Start() {
	l.startOnce.Do(func() {
		l.state.Store(int32(StateRunning))
		go l.run()
	})
}

// Stop asks the loop to exit. It does not wait for it. Stop is safe to call
// more than once, before Start, and after the loop has already terminated.
func (l *Listener) Stop() {
	l.cancel()
}

func (l *Listener) run() {
	defer close(l.done)

	err := l.loop()
	l.state.Store(int32(StateStopped))

	switch {
	case err == nil || errors.Is(err, context.Canceled):
		l.logger.Debug("listener stopped")
		l.opts.Metrics.exit(exitStopped)
		return
	case errors.Is(err, ErrWatchInvalid):
		l.logger.Debug("watch handle invalid, listener stopped")
		l.opts.Metrics.exit(exitInvalid)
	default:
		l.logger.Warn("listener terminated", zap.Error(err))
		l.opts.Metrics.exit(exitFatal)
	}
	if l.opts.OnFatal != nil {
		l.opts.OnFatal(err)
	}
}

// loop opens the watch and processes batches until the context is cancelled,
// the handle becomes invalid, or something fails. Every failure is returned to
// run, which contains it.
func (l *Listener) loop() error {
	// Stop may have been called before the goroutine got here.
	if err := l.ctx.Err(); err != nil {
		return err
	}

	handle, err := l.opts.Source.Open(l.dir)
	if err != nil {
		return err
	}
	defer handle.Close()

	if err := handle.Register(AllKinds...); err != nil {
		return fmt.Errorf("error registering watch on %s: %w", l.dir, err)
	}
	l.logger.Debug("listener running", zap.Int("handlers", l.registry.Len()))

	for {
		batch, err := handle.Await(l.ctx)
		if ctxErr := l.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return err
		}

		l.opts.Metrics.batch()
		l.logger.Debug("batch received", zap.Int("events", len(batch)))
		for _, ev := range batch {
			if err := l.dispatch(ev); err != nil {
				return err
			}
		}

		if !handle.Reset() {
			return ErrWatchInvalid
		}
	}
}

// dispatch invokes the first handler whose pattern matches the event's name.
func (l *Listener) dispatch(ev RawEvent) (err error) {
	name := ev.Name
	if l.opts.NormalizeNames {
		name = norm.NFC.String(name)
	}

	entry, ok, err := l.registry.Match(ev.Kind, name)
	if err != nil {
		return err
	}
	if !ok {
		l.opts.Metrics.event(ev.Kind, outcomeUnmatched)
		l.logger.Debug("no handler matched", zap.String("event", string(ev.Kind)), zap.String("name", name))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanicError{Kind: ev.Kind, Name: name, Value: r}
		}
	}()

	l.opts.Metrics.event(ev.Kind, outcomeDispatched)
	l.logger.Debug("dispatching",
		zap.String("event", string(ev.Kind)),
		zap.String("name", name),
		zap.String("pattern", entry.Pattern),
	)
	if entry.Handler != nil {
		entry.Handler(name)
	}
	return nil
}
