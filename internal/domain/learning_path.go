package domain

import (
	"strings"
	"time"
)

// Step is one course entry of a learning path. Step order defines path sequencing.
type Step struct {
	CourseKey string     `json:"courseKey"`
	DueDate   *time.Time `json:"dueDate"`
	Weight    float64    `json:"weight,omitempty"`
}

// LearningPathSummary is an ordered collection of course steps plus derived progress fields.
type LearningPathSummary struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image,omitempty"`
	Subtitle    string `json:"subtitle,omitempty"`
	Steps       []Step `json:"steps"`

	// RequiredCompletion is nil when the platform does not send one, meaning 100%.
	RequiredCompletion *float64 `json:"requiredCompletion,omitempty"`

	NumCourses int            `json:"numCourses"`
	MinDate    *time.Time     `json:"minDate"`
	MaxDate    *time.Time     `json:"maxDate"`
	Progress   float64        `json:"progress"`
	Percent    int            `json:"percent"`
	Status     ProgressStatus `json:"status"`
	Org        string         `json:"org,omitempty"`
	OrgName    string         `json:"orgName,omitempty"`
	OrgLogo    string         `json:"orgLogo,omitempty"`

	// Detail view only.
	Description    string     `json:"description,omitempty"`
	DurationInDays *int       `json:"durationInDays,omitempty"`
	Sequential     bool       `json:"sequential,omitempty"`
	IsEnrolled     bool       `json:"isEnrolled"`
	EnrollmentDate *time.Time `json:"enrollmentDate,omitempty"`
}

// CourseKeys returns the step course keys in path order.
func (p LearningPathSummary) CourseKeys() []string {
	keys := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		keys = append(keys, s.CourseKey)
	}
	return keys
}

// Clone returns a copy that shares no mutable state with p.
func (p LearningPathSummary) Clone() LearningPathSummary {
	out := p
	if p.Steps != nil {
		out.Steps = make([]Step, len(p.Steps))
		for i, s := range p.Steps {
			s.DueDate = cloneTime(s.DueDate)
			out.Steps[i] = s
		}
	}
	if p.RequiredCompletion != nil {
		v := *p.RequiredCompletion
		out.RequiredCompletion = &v
	}
	if p.DurationInDays != nil {
		v := *p.DurationInDays
		out.DurationInDays = &v
	}
	out.MinDate = cloneTime(p.MinDate)
	out.MaxDate = cloneTime(p.MaxDate)
	out.EnrollmentDate = cloneTime(p.EnrollmentDate)
	return out
}

// LearningPathDetail is a path together with the combined records of its step courses.
type LearningPathDetail struct {
	LearningPathSummary
	Courses []CourseSummary `json:"courses"`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
