package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"kiosk/internal/repository/sqlite"

	"github.com/spf13/cobra"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the local kiosk journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := sqlite.NewEventRepository(db).GetRecent(eventsLimit)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("Journal is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tKIND\tSHIFT\tMESSAGE")
		fmt.Fprintln(w, "----\t----\t-----\t-------")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Shift, e.Message)
		}
		return w.Flush()
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "number of entries to show")
	rootCmd.AddCommand(eventsCmd)
}
