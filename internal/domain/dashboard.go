package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DashboardItem is the course | learning path union consumed by list composition.
// Exactly one of Course and Path is set, matching Type.
type DashboardItem struct {
	Type   ItemType
	Course *CourseSummary
	Path   *LearningPathSummary
}

func CourseItem(c CourseSummary) DashboardItem {
	return DashboardItem{Type: ItemCourse, Course: &c}
}

func PathItem(p LearningPathSummary) DashboardItem {
	return DashboardItem{Type: ItemLearningPath, Path: &p}
}

func (i DashboardItem) Key() string {
	switch {
	case i.Course != nil:
		return i.Course.ID
	case i.Path != nil:
		return i.Path.Key
	}
	return ""
}

func (i DashboardItem) DisplayName() string {
	switch {
	case i.Course != nil:
		return i.Course.Name
	case i.Path != nil:
		return i.Path.DisplayName
	}
	return ""
}

func (i DashboardItem) Status() ProgressStatus {
	switch {
	case i.Course != nil:
		return i.Course.Status
	case i.Path != nil:
		return i.Path.Status
	}
	return ""
}

// Dates returns the range used for date bucketing: start/end dates for courses,
// min/max step dates for learning paths.
func (i DashboardItem) Dates() (start, end *time.Time) {
	switch {
	case i.Course != nil:
		return i.Course.StartDate, i.Course.EndDate
	case i.Path != nil:
		return i.Path.MinDate, i.Path.MaxDate
	}
	return nil, nil
}

func (i DashboardItem) MarshalJSON() ([]byte, error) {
	switch i.Type {
	case ItemCourse:
		if i.Course == nil {
			break
		}
		return json.Marshal(struct {
			Type ItemType `json:"type"`
			*CourseSummary
		}{i.Type, i.Course})
	case ItemLearningPath:
		if i.Path == nil {
			break
		}
		return json.Marshal(struct {
			Type ItemType `json:"type"`
			*LearningPathSummary
		}{i.Type, i.Path})
	}
	return nil, fmt.Errorf("dashboard item: invalid type %q", i.Type)
}

// LearnerHome carries the account-level banner state shown above the dashboard.
type LearnerHome struct {
	EmailConfirmationNeeded bool                 `json:"emailConfirmationNeeded"`
	EnterpriseDashboard     *EnterpriseDashboard `json:"enterpriseDashboard,omitempty"`
}

type EnterpriseDashboard struct {
	Label                  string `json:"label"`
	URL                    string `json:"url"`
	IsLearnerPortalEnabled bool   `json:"isLearnerPortalEnabled"`
}
