package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/schedule"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/spf13/cobra"
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Manage the weekly schedule",
}

var timetableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List timetable entries",
	RunE:  runTimetableList,
}

var timetableAddCmd = &cobra.Command{
	Use:   "add --class CLASS --weekday DAY --start HH:MM --end HH:MM --subject SUBJECT",
	Short: "Add a timetable entry",
	RunE:  runTimetableAdd,
}

var timetableDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a timetable entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimetableDelete,
}

var timetableImportCmd = &cobra.Command{
	Use:   "import FILE.yaml",
	Short: "Import timetable entries from a YAML file",
	Long: `Import timetable entries from a YAML file.

The file holds a list of entries:

  - class: 10A
    weekday: monday
    start: "09:00"
    end: "10:00"
    subject: Mathematics

The whole file is validated before anything is written, so a bad entry
never causes a partial import.`,
	Args: cobra.ExactArgs(1),
	RunE: runTimetableImport,
}

func init() {
	rootCmd.AddCommand(timetableCmd)
	timetableCmd.AddCommand(timetableListCmd)
	timetableCmd.AddCommand(timetableAddCmd)
	timetableCmd.AddCommand(timetableDeleteCmd)
	timetableCmd.AddCommand(timetableImportCmd)

	timetableAddCmd.Flags().String("class", "", "Class name (required)")
	timetableAddCmd.Flags().String("weekday", "", "Weekday name or 0-6 starting Monday (required)")
	timetableAddCmd.Flags().String("start", "", "Start time HH:MM (required)")
	timetableAddCmd.Flags().String("end", "", "End time HH:MM (required)")
	timetableAddCmd.Flags().String("subject", "", "Subject name (required)")
	for _, flag := range []string{"class", "weekday", "start", "end", "subject"} {
		_ = timetableAddCmd.MarkFlagRequired(flag)
	}
}

func runTimetableList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListEntries(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list timetable entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("The timetable is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDAY\tTIME\tCLASS\tSUBJECT")
	fmt.Fprintln(w, "--\t---\t----\t-----\t-------")

	for i := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s-%s\t%s\t%s\n",
			entries[i].ID, weekdayLabels[entries[i].Weekday],
			entries[i].Start, entries[i].End,
			entries[i].ClassName, entries[i].Subject)
	}

	w.Flush()

	return nil
}

func runTimetableAdd(cmd *cobra.Command, args []string) error {
	weekday, err := schedule.ParseWeekday(mustGetString(cmd, "weekday"))
	if err != nil {
		return err
	}

	entry := &store.TimetableEntry{
		ClassName: mustGetString(cmd, "class"),
		Weekday:   weekday,
		Start:     mustGetString(cmd, "start"),
		End:       mustGetString(cmd, "end"),
		Subject:   mustGetString(cmd, "subject"),
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.AddEntry(cmd.Context(), entry); err != nil {
		return fmt.Errorf("failed to add timetable entry: %w", err)
	}

	fmt.Printf("Added entry #%d: %s %s-%s %s (%s)\n",
		entry.ID, weekdayLabels[entry.Weekday], entry.Start, entry.End,
		entry.Subject, entry.ClassName)
	return nil
}

func runTimetableDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid entry ID %q", args[0])
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteEntry(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete timetable entry: %w", err)
	}

	fmt.Printf("Deleted entry #%d\n", id)
	return nil
}

func runTimetableImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	entries, err := schedule.ParseYAML(data)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("The file holds no timetable entries.")
		return nil
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for i := range entries {
		if err := st.AddEntry(cmd.Context(), &entries[i]); err != nil {
			return fmt.Errorf("failed to add entry %d: %w", i+1, err)
		}
	}

	fmt.Printf("Imported %d timetable entries\n", len(entries))
	return nil
}
