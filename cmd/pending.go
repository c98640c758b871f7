package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/extractor"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Review tentative face matches",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List matches waiting for review",
	RunE:  runPendingList,
}

var pendingConfirmCmd = &cobra.Command{
	Use:   "confirm ID",
	Short: "Confirm a pending match and record attendance",
	Long: `Confirm a pending match and record attendance for the matched
student. Pass --student to record it for a different student when the
engine guessed wrong.`,
	Args: cobra.ExactArgs(1),
	RunE: runPendingConfirm,
}

var pendingRejectCmd = &cobra.Command{
	Use:   "reject ID",
	Short: "Discard a pending match without recording attendance",
	Args:  cobra.ExactArgs(1),
	RunE:  runPendingReject,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.AddCommand(pendingListCmd)
	pendingCmd.AddCommand(pendingConfirmCmd)
	pendingCmd.AddCommand(pendingRejectCmd)

	pendingConfirmCmd.Flags().Int64("student", 0, "Record attendance for this student ID instead of the matched one")
}

func runPendingList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pending, err := st.ListPending(cmd.Context(), constants.DefaultPendingLimit)
	if err != nil {
		return fmt.Errorf("failed to list pending reviews: %w", err)
	}

	if len(pending) == 0 {
		fmt.Println("No pending reviews.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTUDENT\tROLL\tCLASS\tSUBJECT\tCONFIDENCE\tWHEN")
	fmt.Fprintln(w, "--\t-------\t----\t-----\t-------\t----------\t----")

	for i := range pending {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			pending[i].ID, pending[i].StudentName, pending[i].RollNumber,
			pending[i].ClassName, pending[i].Subject, pending[i].Confidence,
			pending[i].CreatedAt.Format("2006-01-02 15:04"))
	}

	w.Flush()

	fmt.Printf("\nTotal: %d pending reviews\n", len(pending))

	return nil
}

func runPendingConfirm(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pending ID %q", args[0])
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := extractor.NewClient(cfg.Extractor.URL, time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)
	engine := recognition.NewEngine(st, client, recognition.Config{})

	decision, err := engine.ConfirmPending(cmd.Context(), id, mustGetInt64(cmd, "student"))
	if err != nil {
		return fmt.Errorf("failed to confirm pending review: %w", err)
	}
	if decision == nil {
		return fmt.Errorf("pending review %d does not exist", id)
	}

	switch decision.Outcome {
	case recognition.OutcomeAlreadyMarked:
		fmt.Printf("%s was already marked, review discarded\n", decision.Student.Name)
	default:
		fmt.Printf("Marked %s (%s) present\n", decision.Student.Name, decision.Student.RollNumber)
	}
	return nil
}

func runPendingReject(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pending ID %q", args[0])
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := extractor.NewClient(cfg.Extractor.URL, time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)
	engine := recognition.NewEngine(st, client, recognition.Config{})

	deleted, err := engine.RejectPending(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to reject pending review: %w", err)
	}
	if !deleted {
		return errors.New("pending review does not exist")
	}

	fmt.Printf("Rejected pending review #%d\n", id)
	return nil
}
