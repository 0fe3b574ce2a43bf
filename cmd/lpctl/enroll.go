package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"learner-dashboard/internal/queries"
)

func init() {
	rootCmd.AddCommand(enrollCmd)
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <path-key> [course-key]",
	Short: "Enroll in a learning path or in one of its courses",
	Long: `Enroll the configured learner in a learning path, or in one step course of
the path when a course key is given.

Examples:
  lpctl enroll path-v1:ORG+DATA+2025
  lpctl enroll path-v1:ORG+DATA+2025 course-v1:ORG+SQL+2025`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}

		var res queries.EnrollResult
		if len(args) == 2 {
			res = s.svc.EnrollCourse(cmd.Context(), args[0], args[1])
		} else {
			res = s.svc.EnrollLearningPath(cmd.Context(), args[0])
		}

		if outputJSON {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else if res.Success {
			fmt.Fprintln(cmd.OutOrStdout(), "enrolled")
		}
		if !res.Success {
			return fmt.Errorf("enrollment failed (status %d): %s", res.StatusCode, res.Error)
		}
		return nil
	},
}
