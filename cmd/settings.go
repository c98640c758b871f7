package cmd

import (
	"fmt"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the recognition settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current recognition settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change recognition settings",
	Long: `Change recognition settings. Only the flags you pass are changed.

Distances below the confident threshold mark attendance automatically;
distances between the two thresholds queue a pending review. The engine
reads settings on every decision, a running server picks changes up
immediately.`,
	RunE: runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsSetCmd.Flags().Float64("confident", 0, "Max distance for an automatic match")
	settingsSetCmd.Flags().Float64("tentative", 0, "Max distance for a match queued for review")
	settingsSetCmd.Flags().Int("max-samples", 0, "Max stored face samples per student")
	settingsSetCmd.Flags().Bool("adaptive", false, "Learn new face samples from confident matches")
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	settings, err := st.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	fmt.Printf("Confident threshold:  %g\n", settings.ConfidentThreshold)
	fmt.Printf("Tentative threshold:  %g\n", settings.TentativeThreshold)
	fmt.Printf("Max samples/student:  %d\n", settings.MaxSamplesPerStudent)
	fmt.Printf("Adaptive learning:    %v\n", settings.AdaptiveLearning)
	if !settings.UpdatedAt.IsZero() {
		fmt.Printf("Last changed:         %s\n", settings.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	settings, err := st.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	changed := false
	if cmd.Flags().Changed("confident") {
		settings.ConfidentThreshold = mustGetFloat64(cmd, "confident")
		changed = true
	}
	if cmd.Flags().Changed("tentative") {
		settings.TentativeThreshold = mustGetFloat64(cmd, "tentative")
		changed = true
	}
	if cmd.Flags().Changed("max-samples") {
		settings.MaxSamplesPerStudent = mustGetInt(cmd, "max-samples")
		changed = true
	}
	if cmd.Flags().Changed("adaptive") {
		settings.AdaptiveLearning = mustGetBool(cmd, "adaptive")
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to change, pass at least one flag")
	}

	if err := settings.Validate(); err != nil {
		return err
	}

	if err := st.SaveSettings(cmd.Context(), settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	fmt.Printf("Settings saved: confident %g, tentative %g, max samples %d, adaptive %v\n",
		settings.ConfidentThreshold, settings.TentativeThreshold,
		settings.MaxSamplesPerStudent, settings.AdaptiveLearning)
	return nil
}
