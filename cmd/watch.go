package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFMV/dirlisten/internal/config"
	"github.com/TFMV/dirlisten/internal/listen"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Watch command options
	watchOnCreate []string
	watchOnUpdate []string
	watchOnDelete []string
	watchExec     string
	watchFormat   string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and run rules on changes",
	Long: `Watch a directory and run the first matching rule for every create,
update or delete event. Patterns are regular expressions that must match the
whole entry name.

With no rules configured, every event is printed.

Examples:
  dirlisten watch /etc/myapp
  dirlisten watch --on-update='config\.ya?ml' --exec="systemctl reload myapp" /etc/myapp
  dirlisten watch --on-create='.*\.csv' --format="{event} {base} at {time}" /srv/inbox
  dirlisten watch --backend=poll --poll-interval=2s /mnt/share`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(args)
		if err != nil {
			return err
		}
		c.Rules = append(c.Rules, flagRules()...)
		if len(c.Rules) == 0 {
			c.Rules = printAllRules()
		}
		if err := c.Validate(); err != nil {
			return err
		}
		return runWatch(cmd.Context(), c)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVar(&watchOnCreate, "on-create", nil, "Pattern to match created entries (repeatable)")
	watchCmd.Flags().StringSliceVar(&watchOnUpdate, "on-update", nil, "Pattern to match updated entries (repeatable)")
	watchCmd.Flags().StringSliceVar(&watchOnDelete, "on-delete", nil, "Pattern to match deleted entries (repeatable)")
	watchCmd.Flags().StringVar(&watchExec, "exec", "", "Command to execute for entries matched by flag patterns")
	watchCmd.Flags().StringVar(&watchFormat, "format", "", "Format string for entries matched by flag patterns")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")

	viper.BindPFlag("metrics-addr", watchCmd.Flags().Lookup("metrics-addr"))
}

// flagRules turns --on-* patterns into rules, in flag order per kind.
func flagRules() []config.Rule {
	var rules []config.Rule
	add := func(kind listen.EventKind, patterns []string) {
		for _, p := range patterns {
			rules = append(rules, config.Rule{Event: string(kind), Pattern: p, Exec: watchExec, Format: watchFormat})
		}
	}
	add(listen.Created, watchOnCreate)
	add(listen.Modified, watchOnUpdate)
	add(listen.Deleted, watchOnDelete)
	return rules
}

// printAllRules prints every event of every kind.
func printAllRules() []config.Rule {
	rules := make([]config.Rule, 0, len(listen.AllKinds))
	for _, kind := range listen.AllKinds {
		rules = append(rules, config.Rule{Event: string(kind), Pattern: ".*"})
	}
	return rules
}

func runWatch(ctx context.Context, c config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(c.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var metrics *listen.Metrics
	if c.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if metrics, err = listen.NewMetrics(reg); err != nil {
			return fmt.Errorf("error registering metrics: %w", err)
		}
		shutdown, err := serveMetrics(c.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	opts, err := c.Options(logger, metrics)
	if err != nil {
		return err
	}
	fatal := make(chan error, 1)
	opts.OnFatal = func(err error) { fatal <- err }

	l := c.Builder(ctx, os.Stdout, logger).BuildWithOptions(opts)
	l.Start()
	defer l.Stop()

	fmt.Fprintf(os.Stderr, "Watching %s for changes...\n", c.Directory)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
		l.Stop()
		<-l.Done()
		return nil
	case err := <-fatal:
		<-l.Done()
		return fmt.Errorf("listener on %s terminated: %w", c.Directory, err)
	}
}

// serveMetrics exposes reg on addr/metrics and returns a function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
