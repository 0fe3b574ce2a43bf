package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/queries"
	"learner-dashboard/internal/view"
)

func resetViewFlags() {
	viewType, viewStatuses, viewDates, viewQuery = "all", nil, nil, ""
	viewPage, viewPageSize, viewLocale = 1, 0, "en"
}

func TestViewRequest(t *testing.T) {
	t.Cleanup(resetViewFlags)

	resetViewFlags()
	viewType = "course"
	viewStatuses = []string{"In progress", "completed"}
	viewDates = []string{"open"}
	viewQuery = "data"
	viewPage = 2
	viewLocale = "fr"

	req, err := viewRequest()
	require.NoError(t, err)
	assert.Equal(t, domain.ItemCourse, req.Filters.Type)
	assert.Equal(t, []domain.ProgressStatus{domain.StatusInProgress, domain.StatusCompleted}, req.Filters.Statuses)
	assert.Equal(t, []view.DateStatus{view.DateOpen}, req.Filters.DateStatuses)
	assert.Equal(t, "data", req.Filters.Query)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, language.French, req.Locale)
}

func TestViewRequestRejectsUnknownValues(t *testing.T) {
	t.Cleanup(resetViewFlags)

	cases := map[string]func(){
		"type":   func() { viewType = "video" },
		"status": func() { viewStatuses = []string{"Done"} },
		"date":   func() { viewDates = []string{"Someday"} },
		"page":   func() { viewPage = 0 },
		"locale": func() { viewLocale = "!!" },
	}
	for name, set := range cases {
		t.Run(name, func(t *testing.T) {
			resetViewFlags()
			set()
			_, err := viewRequest()
			assert.Error(t, err)
		})
	}
}

func TestWriteDashboard(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	course := domain.CourseSummary{ID: "course-v1:ORG+A+1", Name: "Alpha", Status: domain.StatusInProgress, StartDate: &past}
	d := queries.Dashboard{
		Page: view.Page{
			Items:        []domain.DashboardItem{domain.CourseItem(course)},
			TotalCount:   1,
			PageCount:    1,
			ShowingCount: 1,
			Page:         1,
			PageSize:     10,
		},
		ActiveFilters: 2,
	}

	var buf bytes.Buffer
	require.NoError(t, writeDashboard(&buf, d, now))
	out := buf.String()
	assert.Contains(t, out, "course-v1:ORG+A+1")
	assert.Contains(t, out, "In progress")
	assert.Contains(t, out, "Open")
	assert.Contains(t, out, "Showing 1 of 1 (page 1 of 1, 2 filters active)")
}

func TestWriteCoursesAndPaths(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCourses(&buf, []domain.CourseSummary{{
		ID: "c1", Name: "Alpha", Status: domain.StatusCompleted, Percent: 1, LearningPaths: []string{"P1", "P2"},
	}}))
	assert.Contains(t, buf.String(), "100%")
	assert.Contains(t, buf.String(), "P1, P2")

	buf.Reset()
	require.NoError(t, writePaths(&buf, []domain.LearningPathSummary{{Key: "lp-1", DisplayName: "Data", NumCourses: 2, Percent: 25}}))
	assert.Contains(t, buf.String(), "25%")
	assert.Contains(t, buf.String(), "lp-1")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"courses", "paths", "course", "path", "view", "enroll", "orgs"} {
		assert.True(t, names[want], want)
	}
}
