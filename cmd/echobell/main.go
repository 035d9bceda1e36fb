package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/echobell/echobell/internal/app"
	"github.com/echobell/echobell/internal/config"
	"github.com/echobell/echobell/internal/store"
)

var (
	cfg        *config.Config
	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "echobell",
		Short: "Echo-Bell: a rule-driven doorbell assistant",
		Long:  "Echo-Bell classifies what a visitor says and what the camera sees, picks a reply and a notification, and keeps a log of every ring.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.echobell/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(
		initCmd(),
		classifyCmd(),
		mapLabelCmd(),
		rulesCmd(),
		visionCmd(),
		ringCmd(),
		eventsCmd(),
		serveCmd(),
		mcpCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newStore opens the SQLite database and brings its schema up to date.
func newStore(ctx context.Context, logger *slog.Logger) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path, cfg.Database.Seed, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newApp wires the runtime over st and loads rules and household state.
func newApp(ctx context.Context, st store.Store, logger *slog.Logger) (*app.App, error) {
	a, err := app.New(st, app.Options{
		Classifier:     cfg.Classifier.Options(),
		DefaultModel:   cfg.Vision.DefaultModel,
		PolicyPath:     cfg.Policy.Path,
		EventRetention: cfg.Events.Retention(),
	}, logger)
	if err != nil {
		return nil, err
	}
	if _, err := a.Reload(ctx); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return a, nil
}

// openApp opens the store and wires the app. The returned func closes the store.
func openApp(ctx context.Context, logger *slog.Logger) (*app.App, func(), error) {
	st, err := newStore(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	a, err := newApp(ctx, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return a, func() { _ = st.Close() }, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
