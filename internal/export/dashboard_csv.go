// Package export writes dashboard snapshots for offline reporting.
package export

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/view"
)

// Keep header order EXACT; downstream reports read columns by position.
var dashboardHeader = []string{
	"TYPE",
	"KEY",
	"NAME",
	"ORG",
	"STATUS",
	"PERCENT",
	"DATE_STATUS",
	"START",
	"END",
	"NUM_COURSES",
	"LEARNING_PATHS",
}

const dateLayout = "2006-01-02"

// WriteDashboardCSV writes one row per item in the given order. now decides the
// DATE_STATUS column.
func WriteDashboardCSV(w io.Writer, items []domain.DashboardItem, now time.Time) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(dashboardHeader); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write(toDashboardRow(it, now)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func toDashboardRow(it domain.DashboardItem, now time.Time) []string {
	start, end := it.Dates()

	var org, percent, numCourses, paths string
	switch {
	case it.Course != nil:
		org = it.Course.Org
		percent = strconv.Itoa(int(math.Round(it.Course.Percent * 100)))
		paths = strings.Join(cleanStrings(it.Course.LearningPaths), " | ")
	case it.Path != nil:
		org = it.Path.Org
		percent = strconv.Itoa(it.Path.Percent)
		numCourses = strconv.Itoa(it.Path.NumCourses)
	}

	return []string{
		string(it.Type),                          // TYPE
		it.Key(),                                 // KEY
		cleanString(it.DisplayName()),            // NAME
		org,                                      // ORG
		string(it.Status()),                      // STATUS
		percent,                                  // PERCENT
		string(view.DateBucket(start, end, now)), // DATE_STATUS
		formatDate(start),                        // START
		formatDate(end),                          // END
		numCourses,                               // NUM_COURSES
		paths,                                    // LEARNING_PATHS
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func cleanString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = cleanString(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
