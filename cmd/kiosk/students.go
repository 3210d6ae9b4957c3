package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage students registered on the backend",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		students, err := client.Students(cmd.Context())
		if err != nil {
			return err
		}

		if len(students) == 0 {
			fmt.Println("No students registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		fmt.Fprintln(w, "--\t----")
		for _, s := range students {
			fmt.Fprintf(w, "%s\t%s\n", s.StudentID, s.Name)
		}
		return w.Flush()
	},
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete <student-id>",
	Short: "Delete a student and their face data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteStudent(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted student %s\n", args[0])
		return nil
	},
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show the attendance list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		records, err := client.Attendance(cmd.Context())
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No attendance records.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DATE\tSTUDENT\tNAME\tSHIFT\tSTATUS")
		fmt.Fprintln(w, "----\t-------\t----\t-----\t------")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Date, r.StudentID, r.StudentName, r.Shift, r.Status)
		}
		return w.Flush()
	},
}

func init() {
	studentsCmd.AddCommand(studentsListCmd, studentsDeleteCmd)
	rootCmd.AddCommand(studentsCmd, attendanceCmd)
}
