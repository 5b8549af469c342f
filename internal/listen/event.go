package listen

import "strings"

// EventKind classifies a filesystem change
type EventKind string

// Event kinds a handler can be registered for
const (
	Created  EventKind = "create"
	Modified EventKind = "update"
	Deleted  EventKind = "delete"
)

// AllKinds lists every kind, in the order the loop registers them with the platform.
var AllKinds = []EventKind{Created, Modified, Deleted}

// Valid reports whether k is one of the three known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case Created, Modified, Deleted:
		return true
	}
	return false
}

// ParseEventKind turns a user-facing event name into an EventKind.
// It accepts the aliases the CLI has always accepted.
func ParseEventKind(s string) (EventKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "created":
		return Created, true
	case "update", "modify", "modified", "write":
		return Modified, true
	case "delete", "deleted", "remove":
		return Deleted, true
	}
	return "", false
}

// RawEvent is a single notification as delivered by a platform source.
// Name is the entry's name relative to the watched directory.
type RawEvent struct {
	Kind EventKind
	Name string
}
