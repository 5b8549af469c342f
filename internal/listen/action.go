package listen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EventMessage carries the placeholder values available to exec and format templates.
type EventMessage struct {
	Event EventKind // Event kind
	Path  string    // Full path to the entry
	Name  string    // Name of the entry, relative to the watched directory
	Dir   string    // Watched directory
	Time  time.Time // When the handler ran
}

func newEventMessage(kind EventKind, dir, name string) EventMessage {
	return EventMessage{
		Event: kind,
		Path:  filepath.Join(dir, name),
		Name:  name,
		Dir:   dir,
		Time:  time.Now(),
	}
}

// formatCommand replaces placeholders in a template with values from the message
func formatCommand(template string, msg EventMessage) string {
	r := strings.NewReplacer(
		`{""}`, strconv.Quote(msg.Path),
		`{"base"}`, strconv.Quote(msg.Name),
		`{"dir"}`, strconv.Quote(msg.Dir),
		`{"event"}`, strconv.Quote(string(msg.Event)),
		`{"time"}`, strconv.Quote(msg.Time.Format(time.RFC3339)),
		"{}", msg.Path,
		"{base}", msg.Name,
		"{dir}", msg.Dir,
		"{event}", string(msg.Event),
		"{time}", msg.Time.Format(time.RFC3339),
	)
	return r.Replace(template)
}

// executeCommand runs cmdStr and returns its standard output.
func executeCommand(ctx context.Context, cmdStr string) ([]byte, error) {
	// Split the command string into command and arguments
	args := strings.Fields(cmdStr)
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return stdout.Bytes(), fmt.Errorf("command error: %s: %w", strings.TrimSpace(stderr.String()), err)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

// ExecHandler returns a handler that runs cmdTemplate for every matched entry.
// Output is written to out when it is not nil. A failing command is logged and
// does not stop the listener.
func ExecHandler(ctx context.Context, kind EventKind, dir, cmdTemplate string, out io.Writer, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(name string) {
		cmdStr := formatCommand(cmdTemplate, newEventMessage(kind, dir, name))
		output, err := executeCommand(ctx, cmdStr)
		if out != nil && len(output) > 0 {
			_, _ = out.Write(output)
		}
		if err != nil {
			logger.Error("command failed",
				zap.String("event", string(kind)),
				zap.String("name", name),
				zap.String("command", cmdStr),
				zap.Error(err),
			)
		}
	}
}

// FormatHandler returns a handler that writes formatTemplate, expanded for the
// matched entry, as one line to out.
func FormatHandler(out io.Writer, kind EventKind, dir, formatTemplate string) Handler {
	return func(name string) {
		fmt.Fprintln(out, formatCommand(formatTemplate, newEventMessage(kind, dir, name)))
	}
}

// DefaultFormat is the line printed for a matched entry when a rule has neither exec nor format.
const DefaultFormat = "{event}: {base}"
