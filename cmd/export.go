package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/kozaktomas/rollcall/internal/web/handlers"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export --out FILE.csv",
	Short: "Export attendance records for a day as CSV",
	Long: `Export attendance records for a day as CSV. The file uses the
same columns as the web download, so exports from either place can be
fed to the same spreadsheets.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("date", "", "Day to export in YYYY-MM-DD format (default today)")
	exportCmd.Flags().String("class", "", "Only include records for this class")
	exportCmd.Flags().String("out", "", "Path of the CSV file to write")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	day := mustGetString(cmd, "date")
	if day == "" {
		day = store.Day(time.Now())
	} else if _, err := time.Parse(store.DayFormat, day); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", day)
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListRecords(cmd.Context(), day, mustGetString(cmd, "class"), constants.DefaultReportLimit)
	if err != nil {
		return fmt.Errorf("failed to list attendance records: %w", err)
	}

	outPath := mustGetString(cmd, "out")
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}

	if err := handlers.WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	fmt.Printf("Exported %d records for %s to %s\n", len(rows), day, outPath)

	return nil
}
