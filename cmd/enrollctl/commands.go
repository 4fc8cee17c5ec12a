package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/academic-core/internal/models"
)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "enrollctl",
		Short:         "Operate the enrollment and academic record engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("output", "o", formatJSON, "Output format (json, yaml)")
	root.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		recomputeCmd(open),
		eligibilityCmd(open),
		scheduleCmd(open),
		prerequisitesCmd(open),
	)
	return root
}

func recomputeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-gpa STUDENT_ID...",
		Short: "Rebuild and store GPA, CGPA and credits from enrollment history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summaries := make([]*models.AcademicSummary, 0, len(args))
			for _, studentID := range args {
				summary, err := svc.grades.Recompute(cmd.Context(), studentID)
				if err != nil {
					return fmt.Errorf("recompute %s: %w", studentID, err)
				}
				summaries = append(summaries, summary)
			}
			if len(summaries) == 1 {
				return render(cmd, summaries[0])
			}
			return render(cmd, summaries)
		},
	}
}

func eligibilityCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility STUDENT_ID SECTION_ID",
		Short: "Report every enroll check for a student and section without enrolling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.enrollments.CheckEligibility(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return render(cmd, report)
		},
	}
}

func scheduleCmd(open opener) *cobra.Command {
	var (
		semesterRaw string
		year        int
	)
	cmd := &cobra.Command{
		Use:   "schedule STUDENT_ID",
		Short: "Print a student's weekly timetable for a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			semester, ok := models.ParseSemester(semesterRaw)
			if !ok {
				return fmt.Errorf("invalid --semester %q: want spring, summer or fall", semesterRaw)
			}
			if year <= 0 {
				return fmt.Errorf("--year is required")
			}
			svc, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := svc.schedules.GetStudentWeeklySchedule(cmd.Context(), args[0], semester, year)
			if err != nil {
				return err
			}
			return render(cmd, entries)
		},
	}
	cmd.Flags().StringVar(&semesterRaw, "semester", "", "Term semester (spring, summer, fall)")
	cmd.Flags().IntVar(&year, "year", 0, "Academic year")
	return cmd
}

func prerequisitesCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "prerequisites COURSE_ID",
		Short: "Print the transitive prerequisite closure of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reqs, err := svc.prerequisites.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if reqs == nil {
				reqs = []models.PrerequisiteRequirement{}
			}
			return render(cmd, reqs)
		},
	}
}
