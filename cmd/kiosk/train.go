package main

import (
	"fmt"
	"os"

	"kiosk/internal/repository/sqlite"
	"kiosk/internal/service/registration"
	"kiosk/internal/service/storage"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Upload every recorded class to the backend as a student",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		db, log, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		journal := storage.NewJournalService(sqlite.NewEventRepository(db), cfg.JournalBufferLimit, cfg.JournalFlushInterval, log)
		defer journal.Flush()

		registrar := registration.NewRegistrar(sqlite.NewClassRepository(db), nil, nil, client, journal, cfg.RecordInterval, log)

		var bar *progressbar.ProgressBar
		results, err := registrar.Train(cmd.Context(), func(done, total int, result registration.TrainResult) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Training"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
				)
			}
			bar.Add(1)
		})
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}

		success, failed := 0, 0
		for _, res := range results {
			if res.OK {
				success++
				fmt.Printf("  ok    %s (%s, %d images)\n", res.Label, res.StudentID, res.Samples)
			} else {
				failed++
				fmt.Printf("  fail  %s: %s\n", res.Label, res.Message)
			}
		}
		fmt.Printf("Training completed. Success: %d, Failed: %d\n", success, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
