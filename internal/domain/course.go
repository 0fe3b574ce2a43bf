package domain

import (
	"strings"
	"time"
)

// CourseSummary is one course as the learner sees it: the catalog record merged with the
// course details record, plus the derived progress fields.
type CourseSummary struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Org                  string     `json:"org"`
	OrgName              string     `json:"orgName,omitempty"`
	OrgLogo              string     `json:"orgLogo,omitempty"`
	CourseImageAssetPath string     `json:"courseImageAssetPath,omitempty"`
	ImageURL             string     `json:"imageUrl,omitempty"`
	StartDate            *time.Time `json:"startDate"`
	EndDate              *time.Time `json:"endDate"`
	Duration             string     `json:"duration,omitempty"`
	SelfPaced            bool       `json:"selfPaced"`
	Description          string     `json:"description,omitempty"`
	ShortDescription     string     `json:"shortDescription,omitempty"`

	// Percent is the completion fraction in [0, 1].
	Status  ProgressStatus `json:"status"`
	Percent float64        `json:"percent"`

	// Display names of the learning paths containing this course, in path order.
	LearningPaths []string `json:"learningPaths,omitempty"`

	// Detail view only.
	IsEnrolled    bool   `json:"isEnrolled,omitempty"`
	CourseHomeURL string `json:"courseHomeUrl,omitempty"`
}

// Clone returns a copy that shares no mutable state with c.
func (c CourseSummary) Clone() CourseSummary {
	out := c
	out.StartDate = cloneTime(c.StartDate)
	out.EndDate = cloneTime(c.EndDate)
	if c.LearningPaths != nil {
		out.LearningPaths = append([]string(nil), c.LearningPaths...)
	}
	return out
}

// CompletionRecord is one course's completion fraction for the current learner.
// A course with no record is treated as Percent 0.
type CompletionRecord struct {
	CourseKey string  `json:"courseKey"`
	Percent   float64 `json:"percent"`
}

// EnrollmentStatus is the learner's enrollment state in a course or a learning path.
type EnrollmentStatus struct {
	Key        string     `json:"key"`
	IsEnrolled bool       `json:"isEnrolled"`
	EnrolledAt *time.Time `json:"enrolledAt,omitempty"`
}

// Organization is an entry of the organization directory, keyed by ShortName.
type Organization struct {
	ShortName string `json:"shortName"`
	Name      string `json:"name"`
	Logo      string `json:"logo,omitempty"`
}

const courseKeyPrefix = "course-v1:"

// BuildCourseKey rebuilds the opaque course key from its parts.
func BuildCourseKey(org, number, run string) string {
	return courseKeyPrefix + org + "+" + number + "+" + run
}

// ParseCourseKey splits a "course-v1:ORG+NUMBER+RUN" key.
func ParseCourseKey(key string) (org, number, run string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(key), courseKeyPrefix)
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "+")
	if len(parts) != 3 || parts[0] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
