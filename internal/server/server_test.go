package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/providers/platform"
	"learner-dashboard/internal/queries"
	"learner-dashboard/internal/view"
)

type fakeDashboard struct {
	mu sync.Mutex

	lastRequest view.Request
	prefetched  []string
	invalidated int
	dropped     []string
	entries     int

	courses []domain.CourseSummary
	paths   []domain.LearningPathSummary
	home    domain.LearnerHome
	enroll  queries.EnrollResult
	err     error
}

func (f *fakeDashboard) Dashboard(ctx context.Context, req view.Request) (queries.Dashboard, error) {
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()
	if f.err != nil {
		return queries.Dashboard{}, f.err
	}
	items := make([]domain.DashboardItem, 0, len(f.courses))
	for _, c := range f.courses {
		items = append(items, domain.CourseItem(c))
	}
	return queries.Dashboard{
		Page:          view.ComposeView(items, req),
		ActiveFilters: req.Filters.ActiveCount(),
		LearnerHome:   f.home,
	}, nil
}

func (f *fakeDashboard) ListCourses(ctx context.Context) ([]domain.CourseSummary, error) {
	return f.courses, f.err
}

func (f *fakeDashboard) GetCourseDetail(ctx context.Context, id string) (domain.CourseSummary, error) {
	if f.err != nil {
		return domain.CourseSummary{}, f.err
	}
	for _, c := range f.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.CourseSummary{}, &platform.APIError{Op: "get_course", StatusCode: http.StatusNotFound}
}

func (f *fakeDashboard) PrefetchCourse(ctx context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetched = append(f.prefetched, id)
}

func (f *fakeDashboard) ListLearningPaths(ctx context.Context) ([]domain.LearningPathSummary, error) {
	return f.paths, f.err
}

func (f *fakeDashboard) GetLearningPathDetail(ctx context.Context, key string) (domain.LearningPathDetail, error) {
	if f.err != nil {
		return domain.LearningPathDetail{}, f.err
	}
	for _, p := range f.paths {
		if p.Key == key {
			return domain.LearningPathDetail{LearningPathSummary: p}, nil
		}
	}
	return domain.LearningPathDetail{}, &platform.APIError{Op: "get_learning_path", StatusCode: http.StatusNotFound}
}

func (f *fakeDashboard) PrefetchLearningPath(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefetched = append(f.prefetched, key)
}

func (f *fakeDashboard) EnrollLearningPath(ctx context.Context, key string) queries.EnrollResult {
	return f.enroll
}

func (f *fakeDashboard) EnrollCourse(ctx context.Context, pathKey, courseID string) queries.EnrollResult {
	return f.enroll
}

func (f *fakeDashboard) Organizations(ctx context.Context) ([]domain.Organization, error) {
	return []domain.Organization{{ShortName: "ORG", Name: "The Org"}}, f.err
}

func (f *fakeDashboard) InvalidateCourse(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, "course:"+id)
}

func (f *fakeDashboard) InvalidateLearningPath(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, "path:"+key)
}

func (f *fakeDashboard) CacheEntries() int { return f.entries }

func (f *fakeDashboard) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func setupTestServer(t *testing.T, svc *fakeDashboard) *Server {
	t.Helper()
	server, err := NewServer(svc, zap.NewNop(), &Config{Host: "localhost", Port: 0})
	require.NoError(t, err)
	return server
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func sampleCourses() []domain.CourseSummary {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []domain.CourseSummary{
		{ID: "course-v1:ORG+B+1", Name: "Beta", Status: domain.StatusInProgress, StartDate: &past},
		{ID: "course-v1:ORG+A+1", Name: "Alpha", Status: domain.StatusNotStarted, StartDate: &past},
	}
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&fakeDashboard{}, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.Equal(t, view.DefaultPageSize, server.config.PageSize)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&fakeDashboard{}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, setupTestServer(t, &fakeDashboard{entries: 7}), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, resp.CacheEntries)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleMetrics(t *testing.T) {
	rec := do(t, setupTestServer(t, &fakeDashboard{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleDashboard(t *testing.T) {
	svc := &fakeDashboard{
		courses: sampleCourses(),
		home:    domain.LearnerHome{EnterpriseDashboard: &domain.EnterpriseDashboard{Label: "Acme", URL: "https://acme.example.com"}},
	}
	s := setupTestServer(t, svc)

	rec := do(t, s, http.MethodGet, "/api/v1/dashboard?type=course&status=Not+started&status=In+progress&date=Open&page=1&page_size=5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Items []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"items"`
		TotalCount          int `json:"totalCount"`
		PageCount           int `json:"pageCount"`
		ShowingCount        int `json:"showingCount"`
		ActiveFilters       int `json:"activeFilters"`
		EnterpriseDashboard struct {
			Label string `json:"label"`
		} `json:"enterpriseDashboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, 1, resp.PageCount)
	assert.Equal(t, 2, resp.ShowingCount)
	assert.Equal(t, 4, resp.ActiveFilters)
	assert.Equal(t, "Acme", resp.EnterpriseDashboard.Label)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "course-v1:ORG+A+1", resp.Items[0].ID, "not started sorts first")
	assert.Equal(t, "course", resp.Items[0].Type)

	assert.Equal(t, domain.ItemCourse, svc.lastRequest.Filters.Type)
	assert.Equal(t, 5, svc.lastRequest.PageSize)
}

func TestHandleDashboardDefaults(t *testing.T) {
	svc := &fakeDashboard{}
	rec := do(t, setupTestServer(t, svc), http.MethodGet, "/api/v1/dashboard?type=all")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
	assert.Equal(t, 1, svc.lastRequest.Page)
	assert.Equal(t, view.DefaultPageSize, svc.lastRequest.PageSize)
	assert.Empty(t, svc.lastRequest.Filters.Type)
}

func TestHandleDashboardRejectsBadParams(t *testing.T) {
	s := setupTestServer(t, &fakeDashboard{})
	for _, q := range []string{
		"type=video",
		"status=Done",
		"date=Someday",
		"page=0",
		"page=abc",
		"page_size=1000",
	} {
		t.Run(q, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/v1/dashboard?"+q)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &platform.APIError{Op: "x", StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"api error", &platform.APIError{Op: "x", StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"validation", &platform.ValidationError{Op: "x", Err: assert.AnError}, http.StatusBadGateway},
		{"network", &platform.NetworkError{Op: "x", Err: assert.AnError}, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, setupTestServer(t, &fakeDashboard{err: tt.err}), http.MethodGet, "/api/v1/courses")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleCourseDetail(t *testing.T) {
	s := setupTestServer(t, &fakeDashboard{courses: sampleCourses()})

	rec := do(t, s, http.MethodGet, "/api/v1/courses/course-v1:ORG+A+1")
	require.Equal(t, http.StatusOK, rec.Code)
	var course domain.CourseSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &course))
	assert.Equal(t, "Alpha", course.Name)

	rec = do(t, s, http.MethodGet, "/api/v1/courses/course-v1%3AORG%2BA%2B1")
	assert.Equal(t, http.StatusOK, rec.Code, "escaped keys are accepted")

	rec = do(t, s, http.MethodGet, "/api/v1/courses/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLearningPaths(t *testing.T) {
	s := setupTestServer(t, &fakeDashboard{paths: []domain.LearningPathSummary{{Key: "lp-1", DisplayName: "Data"}}})

	rec := do(t, s, http.MethodGet, "/api/v1/learning-paths")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"learning_path"`)

	rec = do(t, s, http.MethodGet, "/api/v1/learning-paths/lp-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePrefetchReturnsAccepted(t *testing.T) {
	svc := &fakeDashboard{}
	s := setupTestServer(t, svc)

	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/v1/courses/course-v1:ORG+A+1/prefetch").Code)
	assert.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/api/v1/learning-paths/lp-1/prefetch").Code)
	assert.Equal(t, []string{"course-v1:ORG+A+1", "lp-1"}, svc.prefetched)
}

func TestHandleEnroll(t *testing.T) {
	tests := []struct {
		name   string
		result queries.EnrollResult
		want   int
	}{
		{"success", queries.EnrollResult{Success: true}, http.StatusOK},
		{"conflict", queries.EnrollResult{StatusCode: http.StatusConflict, Error: "already enrolled"}, http.StatusConflict},
		{"no upstream status", queries.EnrollResult{Error: "dial tcp: refused"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t, &fakeDashboard{enroll: tt.result})

			rec := do(t, s, http.MethodPost, "/api/v1/learning-paths/lp-1/enroll")
			assert.Equal(t, tt.want, rec.Code)
			var got queries.EnrollResult
			require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&got))
			assert.Equal(t, tt.result, got)

			rec = do(t, s, http.MethodPost, "/api/v1/learning-paths/lp-1/courses/course-v1:ORG+A+1/enroll")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleOrganizationsAndInvalidate(t *testing.T) {
	svc := &fakeDashboard{}
	s := setupTestServer(t, svc)

	rec := do(t, s, http.MethodGet, "/api/v1/organizations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"shortName":"ORG"`)

	rec = do(t, s, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, svc.invalidated)
}

func TestHandleInvalidateEntity(t *testing.T) {
	svc := &fakeDashboard{}
	s := setupTestServer(t, svc)

	rec := do(t, s, http.MethodPost, "/api/v1/courses/course-v1:ORG+A+1/invalidate")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/v1/learning-paths/lp-1/invalidate")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []string{"course:course-v1:ORG+A+1", "path:lp-1"}, svc.dropped)
}
