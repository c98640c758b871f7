package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/roster"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage enrolled students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	RunE:  runStudentsList,
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a student and all their data",
	Long: `Delete a student together with their face samples, attendance
records and pending reviews.`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentsDelete,
}

var studentsImportCmd = &cobra.Command{
	Use:   "import --dsn DSN",
	Short: "Import the student roster from the school information system",
	Long: `Import students from the school information system database.

The school system is read with SELECT queries only. Students are matched by
roll number; existing students are skipped, missing ones are created without
face samples. Enroll faces afterwards with the enroll command or the web UI.

Example:
  rollcall students import --dsn "readonly:secret@tcp(sis.school.cz:3306)/school"`,
	RunE: runStudentsImport,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsDeleteCmd)
	studentsCmd.AddCommand(studentsImportCmd)

	studentsListCmd.Flags().String("q", "", "Filter by name, ignoring case and diacritics")
	studentsImportCmd.Flags().String("dsn", "", "MySQL DSN of the school information system (required)")
	_ = studentsImportCmd.MarkFlagRequired("dsn")
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	students, err := st.ListStudents(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	if query := mustGetString(cmd, "q"); query != "" {
		filtered := students[:0]
		for _, s := range students {
			if roster.MatchesQuery(s.Name, query) {
				filtered = append(filtered, s)
			}
		}
		students = filtered
	}

	if len(students) == 0 {
		fmt.Println("No students found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLL\tCLASS\tDEPARTMENT")
	fmt.Fprintln(w, "--\t----\t----\t-----\t----------")

	for i := range students {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			students[i].ID, students[i].Name, students[i].RollNumber,
			students[i].ClassName, students[i].Department)
	}

	w.Flush()

	fmt.Printf("\nTotal: %d students\n", len(students))

	return nil
}

func runStudentsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid student ID %q", args[0])
	}

	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	student, err := st.GetStudent(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load student: %w", err)
	}
	if student == nil {
		return fmt.Errorf("student %d does not exist", id)
	}

	if err := st.DeleteStudent(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	fmt.Printf("Deleted %s (%s) and all their samples and records\n", student.Name, student.RollNumber)
	return nil
}

func runStudentsImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pool, err := roster.NewSISPool(mustGetString(cmd, "dsn"))
	if err != nil {
		return err
	}
	defer pool.Close()

	entries, err := pool.ListRoster(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("The school system roster is empty.")
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("Importing %d roster entries\n\n", len(entries))

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Importing roster"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	result, err := roster.Import(cmd.Context(), st, entries, func(roster.Entry) {
		_ = bar.Add(1)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("import failed after %d created: %w", result.Created, err)
	}

	fmt.Printf("Created %d students, skipped %d already enrolled\n", result.Created, result.Skipped)
	return nil
}
