package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/extractor"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll --name NAME --roll ROLL --class CLASS IMAGE...",
	Short: "Enroll a student from face photos",
	Long: `Enroll a new student from one or more face photos.

Each photo is sent to the face extractor; photos where no face is detected
are skipped. At least one photo must contain a face or the enrollment fails.

Example:
  rollcall enroll --name "Jana Novakova" --roll R001 --class 10A face1.jpg face2.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Student's full name (required)")
	enrollCmd.Flags().String("roll", "", "Roll number, unique per student (required)")
	enrollCmd.Flags().String("class", "", "Class name, e.g. 10A (required)")
	enrollCmd.Flags().String("department", "", "Department (optional)")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("roll")
	_ = enrollCmd.MarkFlagRequired("class")
}

// isPhotoFile checks if a file has a supported photo extension
func isPhotoFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Extractor.URL == "" {
		return errors.New("EXTRACTOR_URL environment variable is required")
	}

	var frames [][]byte
	for _, path := range args {
		if !isPhotoFile(path) {
			return fmt.Errorf("%s is not a supported photo format (jpg, jpeg, png)", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		frames = append(frames, data)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := extractor.NewClient(cfg.Extractor.URL, time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)
	engine := recognition.NewEngine(st, client, recognition.Config{})

	student := &store.Student{
		Name:       mustGetString(cmd, "name"),
		RollNumber: mustGetString(cmd, "roll"),
		ClassName:  mustGetString(cmd, "class"),
		Department: mustGetString(cmd, "department"),
	}

	fmt.Printf("Enrolling %s (%s, %s) from %d photo(s)...\n",
		student.Name, student.RollNumber, student.ClassName, len(frames))

	samples, err := engine.Enroll(cmd.Context(), student, frames)
	if err != nil {
		if errors.Is(err, store.ErrRollNumberTaken) {
			return fmt.Errorf("roll number %s is already taken", student.RollNumber)
		}
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled student #%d with %d face sample(s)\n", student.ID, samples)
	if samples < len(frames) {
		fmt.Printf("Note: no face was detected in %d photo(s)\n", len(frames)-samples)
	}
	return nil
}
