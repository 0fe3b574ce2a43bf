package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/queries"
	"learner-dashboard/internal/view"
)

var (
	viewType     string
	viewStatuses []string
	viewDates    []string
	viewQuery    string
	viewPage     int
	viewPageSize int
	viewLocale   string
)

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().StringVar(&viewType, "type", "all", "content type: all, course or learning_path")
	viewCmd.Flags().StringSliceVar(&viewStatuses, "status", nil, `progress status filter ("Not started", "In progress", "Completed")`)
	viewCmd.Flags().StringSliceVar(&viewDates, "date", nil, "date filter (Upcoming, Open, Ended)")
	viewCmd.Flags().StringVarP(&viewQuery, "query", "q", "", "case-insensitive name search")
	viewCmd.Flags().IntVar(&viewPage, "page", 1, "1-based page number")
	viewCmd.Flags().IntVar(&viewPageSize, "page-size", 0, "items per page (default dashboard.page_size)")
	viewCmd.Flags().StringVar(&viewLocale, "locale", "en", "BCP 47 locale used to order names")
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print one page of the composed dashboard",
	Long: `Print one page of the dashboard list: courses and learning paths filtered,
sorted by date bucket, progress status and name, then paginated.

Examples:
  # Open courses that are in progress
  lpctl view --type course --date Open --status "In progress"

  # Second page of everything matching "data"
  lpctl view -q data --page 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := viewRequest()
		if err != nil {
			return err
		}
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		if req.PageSize <= 0 {
			req.PageSize = s.cfg.Dashboard.PageSize
		}
		d, err := s.svc.Dashboard(cmd.Context(), req)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), d)
		}
		return writeDashboard(cmd.OutOrStdout(), d, time.Now())
	},
}

func viewRequest() (view.Request, error) {
	req := view.Request{Page: viewPage, PageSize: viewPageSize, Filters: view.Filters{Query: viewQuery}}
	if viewPage < 1 {
		return req, fmt.Errorf("--page must be >= 1")
	}
	if viewType != "" && viewType != "all" {
		t, ok := domain.ParseItemType(viewType)
		if !ok {
			return req, fmt.Errorf("unknown --type %q", viewType)
		}
		req.Filters.Type = t
	}
	for _, raw := range viewStatuses {
		st, ok := domain.ParseProgressStatus(raw)
		if !ok {
			return req, fmt.Errorf("unknown --status %q", raw)
		}
		req.Filters.Statuses = append(req.Filters.Statuses, st)
	}
	for _, raw := range viewDates {
		d, ok := view.ParseDateStatus(raw)
		if !ok {
			return req, fmt.Errorf("unknown --date %q", raw)
		}
		req.Filters.DateStatuses = append(req.Filters.DateStatuses, d)
	}
	tag, err := language.Parse(viewLocale)
	if err != nil {
		return req, fmt.Errorf("invalid --locale: %w", err)
	}
	req.Locale = tag
	return req, nil
}

func writeDashboard(w io.Writer, d queries.Dashboard, now time.Time) error {
	if d.LearnerHome.EmailConfirmationNeeded {
		fmt.Fprintln(w, "Confirm your email address to see your courses.")
	}
	if e := d.LearnerHome.EnterpriseDashboard; e != nil {
		fmt.Fprintf(w, "%s: %s\n", e.Label, e.URL)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tKEY\tNAME\tSTATUS\tDATES")
	for _, it := range d.Items {
		start, end := it.Dates()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			it.Type, it.Key(), it.DisplayName(), it.Status(), view.DateBucket(start, end, now))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nShowing %d of %d (page %d of %d, %d filters active)\n",
		d.ShowingCount, d.TotalCount, d.Page.Page, d.PageCount, d.ActiveFilters)
	return nil
}
