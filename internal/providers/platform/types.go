package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"learner-dashboard/internal/domain"
)

/* -------- Wire records (snake_case stays in this file) -------- */

type learningPathWire struct {
	Key                string     `json:"key" validate:"required"`
	DisplayName        string     `json:"display_name"`
	Image              string     `json:"image"`
	ImageURL           string     `json:"image_url"`
	Subtitle           string     `json:"subtitle"`
	Description        string     `json:"description"`
	DurationInDays     *int       `json:"duration_in_days"`
	Sequential         bool       `json:"sequential"`
	IsEnrolled         bool       `json:"is_enrolled"`
	EnrollmentDate     wireTime   `json:"enrollment_date"`
	RequiredCompletion *float64   `json:"required_completion"`
	Steps              []stepWire `json:"steps" validate:"dive"`
}

type stepWire struct {
	CourseKey string   `json:"course_key" validate:"required"`
	DueDate   wireTime `json:"due_date"`
	Weight    float64  `json:"weight"`
}

// learningPathList accepts both {"results": [...]} and a bare array.
type learningPathList struct {
	Results []learningPathWire `validate:"dive"`
}

func (l *learningPathList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &l.Results)
	}
	var env struct {
		Results []learningPathWire `json:"results"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	l.Results = env.Results
	return nil
}

type pathProgressWire struct {
	Progress           float64  `json:"progress"`
	RequiredCompletion *float64 `json:"required_completion"`
	Percent            *float64 `json:"percent"`
}

type paginationWire struct {
	Next string `json:"next"`
}

type catalogCourseWire struct {
	CourseID string `json:"course_id" validate:"required"`
	Name     string `json:"name"`
}

type coursePageWire struct {
	Results    []catalogCourseWire `json:"results" validate:"dive"`
	Pagination paginationWire      `json:"pagination"`
	Next       string              `json:"next"`
}

type courseDetailsWire struct {
	Org                  string   `json:"org"`
	CourseID             string   `json:"course_id"`
	Run                  string   `json:"run"`
	CourseImageAssetPath string   `json:"course_image_asset_path"`
	StartDate            wireTime `json:"start_date"`
	EndDate              wireTime `json:"end_date"`
	Duration             string   `json:"duration"`
	SelfPaced            bool     `json:"self_paced"`
	Description          string   `json:"description"`
	ShortDescription     string   `json:"short_description"`
}

type completionWire struct {
	CourseKey  string `json:"course_key" validate:"required"`
	Completion struct {
		Percent float64 `json:"percent"`
	} `json:"completion"`
}

type completionPageWire struct {
	Results    []completionWire `json:"results" validate:"dive"`
	Pagination paginationWire   `json:"pagination"`
	Next       string           `json:"next"`
}

type enrollmentWire struct {
	IsActive bool     `json:"is_active"`
	Created  wireTime `json:"created"`
}

type organizationWire struct {
	ShortName string `json:"short_name" validate:"required"`
	Name      string `json:"name"`
	Logo      string `json:"logo"`
}

type organizationPageWire struct {
	Results    []organizationWire `json:"results" validate:"dive"`
	Next       string             `json:"next"`
	Pagination paginationWire     `json:"pagination"`
}

type learnerHomeWire struct {
	EmailConfirmation struct {
		IsNeeded bool `json:"is_needed"`
	} `json:"email_confirmation"`
	EnterpriseDashboard *struct {
		Label                  string `json:"label"`
		URL                    string `json:"url"`
		IsLearnerPortalEnabled bool   `json:"is_learner_portal_enabled"`
	} `json:"enterprise_dashboard"`
}

// wireTime decodes the timestamp shapes the platform emits; null and "" decode to nil.
type wireTime struct {
	T *time.Time
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (w *wireTime) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		w.T = nil
		return nil
	}
	v := strings.TrimSpace(*s)
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			w.T = &t
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", v)
}

/* -------- Normalization -------- */

func (w learningPathWire) toDomain() domain.LearningPathSummary {
	steps := make([]domain.Step, 0, len(w.Steps))
	for _, s := range w.Steps {
		steps = append(steps, domain.Step{
			CourseKey: strings.TrimSpace(s.CourseKey),
			DueDate:   s.DueDate.T,
			Weight:    s.Weight,
		})
	}
	image := w.Image
	if image == "" {
		image = w.ImageURL
	}
	return domain.LearningPathSummary{
		Key:                w.Key,
		DisplayName:        w.DisplayName,
		Image:              image,
		Subtitle:           w.Subtitle,
		Steps:              steps,
		RequiredCompletion: w.RequiredCompletion,
		NumCourses:         len(steps),
		Description:        w.Description,
		DurationInDays:     w.DurationInDays,
		Sequential:         w.Sequential,
		IsEnrolled:         w.IsEnrolled,
		EnrollmentDate:     w.EnrollmentDate.T,
	}
}

func (w courseDetailsWire) toDetails() CourseDetails {
	return CourseDetails{
		Org:                  w.Org,
		Number:               w.CourseID,
		Run:                  w.Run,
		CourseImageAssetPath: w.CourseImageAssetPath,
		StartDate:            w.StartDate.T,
		EndDate:              w.EndDate.T,
		Duration:             w.Duration,
		SelfPaced:            w.SelfPaced,
		Description:          w.Description,
		ShortDescription:     w.ShortDescription,
	}
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func nextOf(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

/* -------- Normalized records returned by the gateway -------- */

// CatalogCourse is one entry of the course catalog.
type CatalogCourse struct {
	ID   string
	Name string
}

// CourseDetails is the content-store record of a course.
type CourseDetails struct {
	Org                  string
	Number               string
	Run                  string
	CourseImageAssetPath string
	StartDate            *time.Time
	EndDate              *time.Time
	Duration             string
	SelfPaced            bool
	Description          string
	ShortDescription     string
}

// Key rebuilds the course key from the detail record parts.
func (d CourseDetails) Key() string {
	return domain.BuildCourseKey(d.Org, d.Number, d.Run)
}

// PathProgress is the progress endpoint payload of a learning path.
type PathProgress struct {
	Progress           float64
	RequiredCompletion *float64
	Percent            *float64
}

// CoursePage is one page of the catalog. Next is empty on the last page.
type CoursePage struct {
	Courses []CatalogCourse
	Next    string
}

// CompletionPage is one page of the learner's completion records.
type CompletionPage struct {
	Records []domain.CompletionRecord
	Next    string
}

// OrganizationPage is one page of the organization directory.
type OrganizationPage struct {
	Organizations []domain.Organization
	Next          string
}
