package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/extract"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/pipeline"
	"github.com/use-agent/postwatch/publisher"
	"github.com/use-agent/postwatch/scraper"
	"github.com/use-agent/postwatch/state"
	"github.com/use-agent/postwatch/webhook"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	configPath string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "postwatch <handle>",
	Short: "Forward the newest post of an X profile to Discord, once.",
	Long: `postwatch loads the profile timeline of <handle> in a headless browser,
finds the most recent non-pinned post and, if it differs from the last one
delivered for that handle, sends it to the configured notifier.

Intended to be run from cron or a systemd timer.`,
	Args:          usageArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPoll,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and detect, but skip delivery and the marker write")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(inspectCmd, markerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// ── 1. Configuration: validated before anything touches the network
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	handle, err := models.NormalizeHandle(args[0])
	if err != nil {
		return err
	}
	logger := slog.Default()
	logger.Info("postwatch starting",
		"handle", handle,
		"notifier", cfg.Notifier.Backend,
		"state", cfg.State.Backend,
		"dryRun", dryRun,
	)

	// ── 2. State store ──────────────────────────────────────────────
	store, err := state.Open(ctx, cfg.State)
	if err != nil {
		return models.NewRunError(models.ErrCodeState, "failed to open state store", err)
	}
	defer store.Close()

	// ── 3. Notifier ─────────────────────────────────────────────────
	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	// ── 4. Browser and extractor ────────────────────────────────────
	sc := scraper.New(cfg.Target, cfg.Browser, cfg.Scraper, logger)
	browser := pipeline.BrowserFunc(func(ctx context.Context, credential string) (pipeline.Session, error) {
		sess, err := sc.Open(ctx, credential)
		if err != nil {
			return nil, err
		}
		return sess, nil
	})

	extractor, err := extract.New(cfg.Target.BaseURL, logger)
	if err != nil {
		return models.NewRunError(models.ErrCodeConfig, "invalid target base URL", err)
	}

	// ── 5. Run ──────────────────────────────────────────────────────
	opts := []pipeline.Option{pipeline.WithDryRun(dryRun)}
	if cfg.Diagnostics.Enabled {
		opts = append(opts, pipeline.WithDiagnostics(pipeline.NewFileDiagnostics(cfg.Diagnostics.Dir, logger)))
	}
	runner := pipeline.NewRunner(cfg, browser, extractor, notifier, store, logger, opts...)

	outcome, err := runner.Run(ctx, handle)
	if err != nil {
		logger.Error("run failed", "handle", handle, "code", models.CodeOf(err), "error", err)
		return err
	}
	logger.Info("run finished", "handle", handle, "outcome", outcome)
	return nil
}

// newNotifier builds the configured delivery backend and its cleanup.
func newNotifier(cfg *config.Config, logger *slog.Logger) (pipeline.Notifier, func(), error) {
	switch cfg.Notifier.Backend {
	case config.NotifierAMQP:
		pub, err := publisher.NewRabbitMQ(cfg.Notifier.AMQP, logger)
		if err != nil {
			return nil, nil, models.NewRunError(models.ErrCodeDelivery, "failed to connect notifier", err)
		}
		return pub, func() { _ = pub.Close() }, nil
	default:
		return webhook.NewDiscord(cfg.Notifier, logger), func() {}, nil
	}
}

// loadConfig reads configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeConfig, "failed to load configuration", err)
	}
	initLogger(cfg.Log, os.Stdout)
	return cfg, nil
}

func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// usageError marks bad invocations so they exit with exitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: fmt.Errorf("%w\nusage: %s", err, cmd.UseLine())}
		}
		return nil
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ue *usageError
	if errors.As(err, &ue) || models.IsCode(err, models.ErrCodeConfig) {
		return exitUsage
	}
	return exitFailure
}
