// Package listen watches a single directory and routes each create, update or
// delete event to the first registered handler whose pattern matches the
// entry's name.
//
// Patterns are regular expressions matched against the whole name:
//
//	l := listen.NewBuilder("/etc/myapp").
//		OnUpdate(`config\.ya?ml`, reload).
//		OnDelete(`.*\.lock`, unlock).
//		OnCreate(`.*`, audit).
//		Build()
//	l.Start()
//	defer l.Stop()
//
// Within one event kind, handlers are tried in registration order and only
// the first match runs. Handlers run one at a time on the listener's goroutine.
//
// The loop is a hard error boundary. A directory that cannot be watched, an
// invalid pattern, or a panicking handler ends the loop without reporting
// anything to the owner, unless ListenOptions.OnFatal is set.
//
// The platform watch is pluggable through Source: FsnotifySource (default),
// PollSource for filesystems without change notification, and NotifySource.
package listen
