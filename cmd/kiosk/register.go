package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"kiosk/internal/model"
	"kiosk/internal/repository/sqlite"
	"kiosk/internal/service/registration"
	"kiosk/internal/service/storage"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	registerID   string
	registerName string
)

var registerCmd = &cobra.Command{
	Use:   "register --name <name> <image>...",
	Short: "Register a student from JPEG or PNG files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(registerName)
		if name == "" {
			return errors.New("--name is required")
		}
		studentID := registerID
		if studentID == "" {
			studentID = registration.StudentID(name, time.Now())
		}

		samples, err := readSamples(args)
		if err != nil {
			return err
		}

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
		res, err := registrar.Register(cmd.Context(), studentID, name, samples)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s (%s)\n", res.Message, name, studentID)
		return nil
	},
}

// readSamples loads image files, accepting only JPEG and PNG content.
func readSamples(paths []string) ([]model.FrameSample, error) {
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Reading images"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	samples := make([]model.FrameSample, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		mime := http.DetectContentType(data)
		if mime != model.MimeJPEG && mime != model.MimePNG {
			return nil, fmt.Errorf("%s is not a JPEG or PNG image (%s)", path, mime)
		}

		samples = append(samples, model.FrameSample{Data: data, MimeType: mime})
		bar.Add(1)
	}
	return samples, nil
}

func init() {
	registerCmd.Flags().StringVar(&registerID, "id", "", "student ID (default: derived from the name)")
	registerCmd.Flags().StringVar(&registerName, "name", "", "student name")
	rootCmd.AddCommand(registerCmd)
}
