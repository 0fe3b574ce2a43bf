// Package derive holds the pure functions that turn fetched records into the progress
// fields shown on the dashboard. Nothing here performs I/O or mutates its inputs.
package derive

import (
	"math"
	"time"

	"learner-dashboard/internal/domain"
)

// ClassifyProgress maps a completion fraction to a ProgressStatus. required is the
// learning path threshold; nil or a non-positive value means 100%.
func ClassifyProgress(percent float64, required *float64) domain.ProgressStatus {
	if percent <= 0 {
		return domain.StatusNotStarted
	}
	threshold := 1.0
	if required != nil && *required > 0 {
		threshold = *required
	}
	if percent >= threshold {
		return domain.StatusCompleted
	}
	return domain.StatusInProgress
}

// CompletionsByKey indexes completion records by course key. A later record for the
// same key wins.
func CompletionsByKey(records []domain.CompletionRecord) map[string]float64 {
	out := make(map[string]float64, len(records))
	for _, r := range records {
		out[r.CourseKey] = r.Percent
	}
	return out
}

// MergeCompletion returns a copy of course carrying its completion percent and status.
// A course missing from completions is not started.
func MergeCompletion(course domain.CourseSummary, completions map[string]float64) domain.CourseSummary {
	out := course.Clone()
	percent := completions[course.ID]
	out.Percent = percent
	out.Status = ClassifyProgress(percent, nil)
	return out
}

// IndexLearningPathsByCourse maps each step course key to the display names of the
// paths containing it, in path iteration order.
func IndexLearningPathsByCourse(paths []domain.LearningPathSummary) map[string][]string {
	out := make(map[string][]string)
	for _, p := range paths {
		for _, s := range p.Steps {
			out[s.CourseKey] = append(out[s.CourseKey], p.DisplayName)
		}
	}
	return out
}

// PathProgress averages the completion of a path's steps. A path without steps has
// no progress.
func PathProgress(steps []domain.Step, completions map[string]float64) float64 {
	if len(steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range steps {
		sum += completions[s.CourseKey]
	}
	return sum / float64(len(steps))
}

// PathPercent converts aggregate progress to the whole-number percent shown for a path,
// scaled against the required completion when there is one.
func PathPercent(progress float64, required *float64) int {
	if required != nil && *required > 0 {
		return int(math.Round(progress / *required * 100))
	}
	return int(math.Round(progress * 100))
}

// StepDateRange returns the earliest start date of the step courses and the latest
// step due date. Either end is nil when no date is known.
func StepDateRange(steps []domain.Step, courses map[string]domain.CourseSummary) (minDate, maxDate *time.Time) {
	for _, s := range steps {
		if s.DueDate != nil && (maxDate == nil || s.DueDate.After(*maxDate)) {
			d := *s.DueDate
			maxDate = &d
		}
		c, ok := courses[s.CourseKey]
		if !ok || c.StartDate == nil {
			continue
		}
		if minDate == nil || c.StartDate.Before(*minDate) {
			d := *c.StartDate
			minDate = &d
		}
	}
	return minDate, maxDate
}

// SummarizePath returns a copy of p with every derived field filled in.
func SummarizePath(
	p domain.LearningPathSummary,
	completions map[string]float64,
	courses map[string]domain.CourseSummary,
) domain.LearningPathSummary {
	out := p.Clone()
	out.NumCourses = len(p.Steps)
	out.Progress = PathProgress(p.Steps, completions)
	out.Percent = PathPercent(out.Progress, p.RequiredCompletion)
	out.Status = ClassifyProgress(out.Progress, p.RequiredCompletion)
	out.MinDate, out.MaxDate = StepDateRange(p.Steps, courses)
	if out.Org == "" && len(p.Steps) > 0 {
		if org, _, _, ok := domain.ParseCourseKey(p.Steps[0].CourseKey); ok {
			out.Org = org
		}
	}
	return out
}

// AttachOrganization fills display name and logo from the organization directory.
func AttachOrganization(shortName string, orgs map[string]domain.Organization) (name, logo string) {
	o, ok := orgs[shortName]
	if !ok {
		return "", ""
	}
	return o.Name, o.Logo
}
