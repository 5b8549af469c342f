// Package config decodes and validates dirlisten's viper configuration and
// turns it into listener registrations.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/TFMV/dirlisten/internal/listen"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Supported watch backends.
const (
	BackendFsnotify = "fsnotify"
	BackendPoll     = "poll"
	BackendNotify   = "notify"
)

// Rule routes one event kind and name pattern to an action. Exec runs a
// command, Format prints a line; with neither set the rule prints
// listen.DefaultFormat.
type Rule struct {
	Event   string `mapstructure:"event"`
	Pattern string `mapstructure:"pattern"`
	Exec    string `mapstructure:"exec"`
	Format  string `mapstructure:"format"`
}

// Config is the decoded form of ~/.dirlisten.yaml, DIRLISTEN_* variables and flags.
type Config struct {
	Directory      string        `mapstructure:"directory"`
	Backend        string        `mapstructure:"backend"`
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	LogLevel       string        `mapstructure:"log-level"`
	NormalizeNames bool          `mapstructure:"normalize-names"`
	MetricsAddr    string        `mapstructure:"metrics-addr"`
	Rules          []Rule        `mapstructure:"rules"`
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if c.Backend == "" {
		c.Backend = BackendFsnotify
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem in c at once.
func (c Config) Validate() error {
	var errs []error

	if c.Directory == "" {
		errs = append(errs, errors.New("directory is required"))
	}
	switch c.Backend {
	case "", BackendFsnotify, BackendPoll, BackendNotify:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want fsnotify, poll or notify)", c.Backend))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll-interval must not be negative: %s", c.PollInterval))
	}
	if _, err := listen.ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	for i, r := range c.Rules {
		if _, ok := listen.ParseEventKind(r.Event); !ok {
			errs = append(errs, fmt.Errorf("rule %d: unknown event %q", i, r.Event))
		}
		if r.Pattern == "" {
			errs = append(errs, fmt.Errorf("rule %d: pattern is required", i))
		} else if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: invalid pattern %q: %w", i, r.Pattern, err))
		}
		if r.Exec != "" && r.Format != "" {
			errs = append(errs, fmt.Errorf("rule %d: exec and format are mutually exclusive", i))
		}
	}

	return errors.Join(errs...)
}

// Source returns the watch backend selected by c.
func (c Config) Source() (listen.Source, error) {
	switch c.Backend {
	case "", BackendFsnotify:
		return listen.FsnotifySource{}, nil
	case BackendPoll:
		return listen.PollSource{Interval: c.PollInterval}, nil
	case BackendNotify:
		return listen.NotifySource{}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", c.Backend)
}

// Builder registers every rule, in order, on a builder for c.Directory.
// Exec rules run under ctx and write command output to out.
func (c Config) Builder(ctx context.Context, out io.Writer, logger *zap.Logger) *listen.Builder {
	b := listen.NewBuilder(c.Directory)
	for _, r := range c.Rules {
		kind, ok := listen.ParseEventKind(r.Event)
		if !ok {
			continue
		}
		var h listen.Handler
		switch {
		case r.Exec != "":
			h = listen.ExecHandler(ctx, kind, c.Directory, r.Exec, out, logger)
		case r.Format != "":
			h = listen.FormatHandler(out, kind, c.Directory, r.Format)
		default:
			h = listen.FormatHandler(out, kind, c.Directory, listen.DefaultFormat)
		}
		b.On(kind, r.Pattern, h)
	}
	return b
}

// Options returns listener options for c, using logger and metrics as given.
func (c Config) Options(logger *zap.Logger, metrics *listen.Metrics) (listen.ListenOptions, error) {
	src, err := c.Source()
	if err != nil {
		return listen.ListenOptions{}, err
	}
	return listen.ListenOptions{
		Source:         src,
		Logger:         logger,
		NormalizeNames: c.NormalizeNames,
		Metrics:        metrics,
	}, nil
}
