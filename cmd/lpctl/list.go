package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"learner-dashboard/internal/domain"
)

func init() {
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(courseCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(orgsCmd)
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List catalog courses merged with completion and path membership",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		courses, err := s.svc.ListCourses(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), courses)
		}
		return writeCourses(cmd.OutOrStdout(), courses)
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List learning paths with aggregate progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		paths, err := s.svc.ListLearningPaths(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), paths)
		}
		return writePaths(cmd.OutOrStdout(), paths)
	},
}

var courseCmd = &cobra.Command{
	Use:   "course <course-key>",
	Short: "Show one course with enrollment state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		course, err := s.svc.GetCourseDetail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), course)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n%s\n\n", course.Name, course.ID)
		fmt.Fprintf(w, "Organization: %s\n", orgLabel(course.Org, course.OrgName))
		fmt.Fprintf(w, "Status:       %s (%.0f%%)\n", course.Status, course.Percent*100)
		fmt.Fprintf(w, "Enrolled:     %t\n", course.IsEnrolled)
		fmt.Fprintf(w, "Dates:        %s - %s\n", date(course.StartDate), date(course.EndDate))
		if course.CourseHomeURL != "" {
			fmt.Fprintf(w, "Course home:  %s\n", course.CourseHomeURL)
		}
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <path-key>",
	Short: "Show one learning path and its step courses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		detail, err := s.svc.GetLearningPathDetail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), detail)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n%s\n\n", detail.DisplayName, detail.Key)
		fmt.Fprintf(w, "Status:   %s (%d%%)\n", detail.Status, detail.Percent)
		fmt.Fprintf(w, "Enrolled: %t\n", detail.IsEnrolled)
		fmt.Fprintf(w, "Dates:    %s - %s\n\n", date(detail.MinDate), date(detail.MaxDate))
		return writeCourses(w, detail.Courses)
	},
}

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List the organization directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		orgs, err := s.svc.Organizations(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), orgs)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SHORT NAME\tNAME\tLOGO")
		for _, o := range orgs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ShortName, o.Name, o.Logo)
		}
		return tw.Flush()
	},
}

func writeCourses(w io.Writer, courses []domain.CourseSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tSTATUS\tPERCENT\tSTART\tLEARNING PATHS")
	for _, c := range courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			c.ID, c.Name, c.Status, c.Percent*100, date(c.StartDate), strings.Join(c.LearningPaths, ", "))
	}
	return tw.Flush()
}

func writePaths(w io.Writer, paths []domain.LearningPathSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tCOURSES\tSTATUS\tPERCENT\tDUE")
	for _, p := range paths {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d%%\t%s\n",
			p.Key, p.DisplayName, p.NumCourses, p.Status, p.Percent, date(p.MaxDate))
	}
	return tw.Flush()
}

func orgLabel(short, name string) string {
	if name == "" {
		return short
	}
	return name + " (" + short + ")"
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
