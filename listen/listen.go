// Package listen runs handlers when entries in a single directory are created,
// updated or deleted.
//
// Each event is routed to the first handler, registered for its kind, whose
// regular expression matches the entry's whole name:
//
//	l := listen.NewBuilder("/etc/myapp").
//		OnUpdate(`config\.ya?ml`, reload).
//		OnCreate(`.*`, audit).
//		Build()
//	l.Start()
//	defer l.Stop()
//
// Failures inside the watch loop are contained: the loop ends and nothing is
// reported unless ListenOptions.OnFatal is set.
package listen

import (
	"context"
	"io"

	internal "github.com/TFMV/dirlisten/internal/listen"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Re-export the types from the internal package
type (
	// Builder collects handler registrations for a directory.
	Builder = internal.Builder

	// Listener runs the watch loop for one directory.
	Listener = internal.Listener

	// ListenOptions configures a Listener.
	ListenOptions = internal.ListenOptions

	// Handler is invoked with the changed entry's name.
	Handler = internal.Handler

	// Registry is the immutable set of registrations a listener dispatches on.
	Registry = internal.Registry
	Entry    = internal.Entry

	EventKind = internal.EventKind
	RawEvent  = internal.RawEvent
	State     = internal.State
	LogLevel  = internal.LogLevel

	// Source and Handle abstract the platform watch.
	Source = internal.Source
	Handle = internal.Handle

	FsnotifySource = internal.FsnotifySource
	PollSource     = internal.PollSource
	NotifySource   = internal.NotifySource

	Metrics      = internal.Metrics
	EventMessage = internal.EventMessage

	PatternError      = internal.PatternError
	HandlerPanicError = internal.HandlerPanicError
)

// Event kinds
const (
	Created  = internal.Created
	Modified = internal.Modified
	Deleted  = internal.Deleted
)

// Listener states
const (
	StateCreated = internal.StateCreated
	StateRunning = internal.StateRunning
	StateStopped = internal.StateStopped
)

// Log levels
const (
	LogLevelNone  = internal.LogLevelNone
	LogLevelError = internal.LogLevelError
	LogLevelWarn  = internal.LogLevelWarn
	LogLevelInfo  = internal.LogLevelInfo
	LogLevelDebug = internal.LogLevelDebug
)

const (
	DefaultFormat       = internal.DefaultFormat
	DefaultMaxBatch     = internal.DefaultMaxBatch
	DefaultPollInterval = internal.DefaultPollInterval
)

// ErrWatchInvalid is passed to OnFatal when the watched directory goes away.
var ErrWatchInvalid = internal.ErrWatchInvalid

// AllKinds lists every event kind.
var AllKinds = internal.AllKinds

// NewBuilder starts the configuration of a listener for directory.
func NewBuilder(directory string) *Builder {
	return internal.NewBuilder(directory)
}

// ParseEventKind turns "create", "update" or "delete" (and their aliases) into an EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	return internal.ParseEventKind(s)
}

// ParseLogLevel maps a level name to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	return internal.ParseLogLevel(s)
}

// NewLogger creates a zap logger with the specified log level.
func NewLogger(level LogLevel) *zap.Logger {
	return internal.NewLogger(level)
}

// NewMetrics creates listener metrics and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	return internal.NewMetrics(reg)
}

// ExecHandler returns a handler that runs cmdTemplate for every matched entry.
func ExecHandler(ctx context.Context, kind EventKind, dir, cmdTemplate string, out io.Writer, logger *zap.Logger) Handler {
	return internal.ExecHandler(ctx, kind, dir, cmdTemplate, out, logger)
}

// FormatHandler returns a handler that prints formatTemplate for every matched entry.
func FormatHandler(out io.Writer, kind EventKind, dir, formatTemplate string) Handler {
	return internal.FormatHandler(out, kind, dir, formatTemplate)
}
