package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/cwbudde/ssimgo/internal/config"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	dataDir  string
	cfg      = config.Load()
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ssim",
	Short: "Structural similarity image comparison",
	Long: `ssim compares a candidate image against a reference with the
structural similarity index, reports per-channel scores alongside MSE and
PSNR, and keeps saved reports on disk for the CLI and the HTTP service.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(os.Stderr, logLevel)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to SSIM_LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Base directory for report storage; defaults to SSIM_DATA_DIR")
}

// initConfig loads .env and fills flags left empty from the environment.
func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("Ignoring .env", "error", err)
	}
	cfg = config.Load()

	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	if dataDir == "" {
		dataDir = cfg.Store.DataDir
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger installs a JSON handler on w as the default logger.
func setupLogger(w io.Writer, level string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	handler := slog.NewJSONHandler(w, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
