package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/facegate/internal/config"
	"github.com/okian/facegate/pkg/logger"
)

// Command annotations read by the root pre-run hook.
const (
	annotationLogs   = "facegate/logs"
	annotationConfig = "facegate/config"
	logsToStderr     = "stderr"
	configSkip       = "skip"
)

var (
	// cfg is loaded once per invocation by the root pre-run hook.
	cfg *config.Config

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Liveness-gated photo capture kiosk for event check-in",
	Long: `facegate runs the check-in kiosk: an attendee enters an invite code, blinks
at the camera to prove liveness, reviews the captured photo and submits it to
the enrollment service.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		out := os.Stdout
		if cmd.Annotations[annotationLogs] == logsToStderr {
			out = os.Stderr
		}
		if err := logger.InitWriter(out, false); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if cmd.Annotations[annotationConfig] == configSkip {
			return applyLogLevel(cmd.Context(), "")
		}

		if configPath != "" {
			_ = os.Setenv(config.EnvConfigFile, configPath)
		}
		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return applyLogLevel(cmd.Context(), cfg.LogLevel)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// applyLogLevel sets the flag level, else the configured one, falling back
// to info on invalid input.
func applyLogLevel(ctx context.Context, configured string) error {
	level := configured
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func main() {
	// our own registry carries the system metrics; drop the default collectors
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop already called
	}
}
