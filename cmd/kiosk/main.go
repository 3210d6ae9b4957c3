package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kiosk/internal/backend"
	"kiosk/internal/config"
	"kiosk/internal/logger"
	"kiosk/internal/repository/sqlite"

	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kiosk",
	Short:         "Face recognition attendance kiosk",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFile(envFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load settings from this .env file (default: ./.env if present)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", backend.Message(err))
		os.Exit(1)
	}
}

// newClient builds a backend client from the loaded configuration.
func newClient() (*backend.Client, error) {
	return backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
}

// openDB opens the local kiosk database. Offline commands log to stderr only.
func openDB() (*sqlite.DB, *logger.Logger, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, logger.NewWriter(os.Stderr), nil
}
