package main

import (
	"fmt"

	"kiosk/internal/app"
	"kiosk/internal/logger"

	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk server (camera, check-in loops and web UI)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Port = servePort
		}

		log, err := logger.New(cfg.LogDirectory)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Close()

		application, err := app.NewApp(cfg, log)
		if err != nil {
			log.Error("Failed to start: %v", err)
			return err
		}
		return application.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}
