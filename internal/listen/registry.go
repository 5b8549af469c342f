package listen

import (
	"fmt"
	"regexp"
	"sync"
)

// Handler is invoked with the changed entry's name when its pattern wins dispatch.
// Handlers run on the listener's goroutine; a handler that panics ends the loop.
type Handler func(name string)

// Entry is one registered (pattern, handler) pair.
type Entry struct {
	Kind    EventKind
	Pattern string
	Handler Handler

	// compiled on first match, never by the builder
	compileOnce sync.Once
	re          *regexp.Regexp
	err         error
}

// PatternError reports a registered pattern that is not a valid regular expression.
type PatternError struct {
	Kind    EventKind
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// matches reports whether name matches the entry's pattern in full.
func (e *Entry) matches(name string) (bool, error) {
	e.compileOnce.Do(e.compile)
	if e.err != nil {
		return false, &PatternError{Kind: e.Kind, Pattern: e.Pattern, Err: e.err}
	}
	return e.re.MatchString(name), nil
}

// compile validates the pattern on its own before anchoring it, so a pattern
// like "a)|(b" cannot close the wrapping group and escape the anchors.
func (e *Entry) compile() {
	if _, err := regexp.Compile(e.Pattern); err != nil {
		e.err = err
		return
	}
	e.re, e.err = regexp.Compile(`^(?:` + e.Pattern + `)$`)
}

// Registry is the immutable snapshot of registered handlers, one ordered list per kind.
type Registry struct {
	entries map[EventKind][]*Entry
}

// Entries returns a copy of the entries registered for kind, in registration order.
func (r *Registry) Entries(kind EventKind) []Entry {
	list := r.entries[kind]
	out := make([]Entry, 0, len(list))
	for _, e := range list {
		out = append(out, Entry{Kind: e.Kind, Pattern: e.Pattern, Handler: e.Handler})
	}
	return out
}

// Len returns the total number of entries across all kinds.
func (r *Registry) Len() int {
	n := 0
	for _, list := range r.entries {
		n += len(list)
	}
	return n
}

// Match scans the entries for kind in registration order and returns the first
// whose pattern matches name in full. Patterns after the winning entry are not
// evaluated. A pattern that fails to compile yields a *PatternError at the point
// the scan reaches it.
// Match is safe for concurrent use.
func (r *Registry) Match(kind EventKind, name string) (Entry, bool, error) {
	for _, e := range r.entries[kind] {
		ok, err := e.matches(name)
		if err != nil {
			return Entry{}, false, err
		}
		if ok {
			return Entry{Kind: e.Kind, Pattern: e.Pattern, Handler: e.Handler}, true, nil
		}
	}
	return Entry{}, false, nil
}

// Builder collects handler registrations for a directory.
type Builder struct {
	directory string
	entries   map[EventKind][]*Entry
}

// NewBuilder starts the configuration of a listener for directory.
func NewBuilder(directory string) *Builder {
	return &Builder{
		directory: directory,
		entries:   make(map[EventKind][]*Entry, len(AllKinds)),
	}
}

// OnCreate registers handler for entries created with a name matching pattern.
func (b *Builder) OnCreate(pattern string, handler Handler) *Builder {
	return b.On(Created, pattern, handler)
}

// OnUpdate registers handler for entries modified with a name matching pattern.
func (b *Builder) OnUpdate(pattern string, handler Handler) *Builder {
	return b.On(Modified, pattern, handler)
}

// OnDelete registers handler for entries deleted with a name matching pattern.
func (b *Builder) OnDelete(pattern string, handler Handler) *Builder {
	return b.On(Deleted, pattern, handler)
}

// On registers handler under kind. Registering a pattern already present for
// the same kind replaces its handler and keeps its original position.
// The pattern is not validated here.
func (b *Builder) On(kind EventKind, pattern string, handler Handler) *Builder {
	for _, e := range b.entries[kind] {
		if e.Pattern == pattern {
			e.Handler = handler
			return b
		}
	}
	b.entries[kind] = append(b.entries[kind], &Entry{Kind: kind, Pattern: pattern, Handler: handler})
	return b
}

// Registry snapshots the current registrations.
func (b *Builder) Registry() *Registry {
	snapshot := make(map[EventKind][]*Entry, len(b.entries))
	for kind, list := range b.entries {
		copied := make([]*Entry, 0, len(list))
		for _, e := range list {
			copied = append(copied, &Entry{Kind: e.Kind, Pattern: e.Pattern, Handler: e.Handler})
		}
		snapshot[kind] = copied
	}
	return &Registry{entries: snapshot}
}

// Build creates a listener with default options.
func (b *Builder) Build() *Listener {
	return b.BuildWithOptions(ListenOptions{})
}

// BuildWithOptions creates a listener configured by opts.
func (b *Builder) BuildWithOptions(opts ListenOptions) *Listener {
	return newListener(b.directory, b.Registry(), opts)
}
