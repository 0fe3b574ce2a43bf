package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/queries"
	"learner-dashboard/internal/view"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	CacheEntries int    `json:"cacheEntries"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", CacheEntries: s.svc.CacheEntries()})
}

// DashboardResponse is the response body for GET /api/v1/dashboard.
type DashboardResponse struct {
	Items                   []domain.DashboardItem      `json:"items"`
	TotalCount              int                         `json:"totalCount"`
	PageCount               int                         `json:"pageCount"`
	ShowingCount            int                         `json:"showingCount"`
	Page                    int                         `json:"page"`
	PageSize                int                         `json:"pageSize"`
	ActiveFilters           int                         `json:"activeFilters"`
	EmailConfirmationNeeded bool                        `json:"emailConfirmationNeeded"`
	EnterpriseDashboard     *domain.EnterpriseDashboard `json:"enterpriseDashboard,omitempty"`
}

func (s *Server) handleDashboard(c echo.Context) error {
	req, err := s.parseDashboardRequest(c)
	if err != nil {
		return err
	}
	d, err := s.svc.Dashboard(c.Request().Context(), req)
	if err != nil {
		return s.upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, DashboardResponse{
		Items:                   d.Items,
		TotalCount:              d.TotalCount,
		PageCount:               d.PageCount,
		ShowingCount:            d.ShowingCount,
		Page:                    d.Page.Page,
		PageSize:                d.PageSize,
		ActiveFilters:           d.ActiveFilters,
		EmailConfirmationNeeded: d.LearnerHome.EmailConfirmationNeeded,
		EnterpriseDashboard:     d.LearnerHome.EnterpriseDashboard,
	})
}

func (s *Server) parseDashboardRequest(c echo.Context) (view.Request, error) {
	req := view.Request{Page: 1, PageSize: s.config.PageSize}

	if t := strings.TrimSpace(c.QueryParam("type")); t != "" && !strings.EqualFold(t, "all") {
		it, ok := domain.ParseItemType(t)
		if !ok {
			return req, echo.NewHTTPError(http.StatusBadRequest, "invalid type "+strconv.Quote(t))
		}
		req.Filters.Type = it
	}
	for _, raw := range c.QueryParams()["status"] {
		st, ok := domain.ParseProgressStatus(raw)
		if !ok {
			return req, echo.NewHTTPError(http.StatusBadRequest, "invalid status "+strconv.Quote(raw))
		}
		req.Filters.Statuses = append(req.Filters.Statuses, st)
	}
	for _, raw := range c.QueryParams()["date"] {
		d, ok := view.ParseDateStatus(raw)
		if !ok {
			return req, echo.NewHTTPError(http.StatusBadRequest, "invalid date status "+strconv.Quote(raw))
		}
		req.Filters.DateStatuses = append(req.Filters.DateStatuses, d)
	}
	req.Filters.Query = c.QueryParam("q")

	if p := c.QueryParam("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return req, echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
		}
		req.Page = n
	}
	if p := c.QueryParam("page_size"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > maxPageSize {
			return req, echo.NewHTTPError(http.StatusBadRequest, "page_size must be between 1 and "+strconv.Itoa(maxPageSize))
		}
		req.PageSize = n
	}
	return req, nil
}

func pathParam(c echo.Context, name string) (string, error) {
	v, err := url.PathUnescape(c.Param(name))
	if err != nil || strings.TrimSpace(v) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

func (s *Server) handleOrganizations(c echo.Context) error {
	orgs, err := s.svc.Organizations(c.Request().Context())
	if err != nil {
		return s.upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, orgs)
}

func (s *Server) handleInvalidate(c echo.Context) error {
	s.svc.InvalidateAll()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleInvalidateCourse(c echo.Context) error {
	id, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	s.svc.InvalidateCourse(id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleInvalidateLearningPath(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	s.svc.InvalidateLearningPath(key)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCourses(c echo.Context) error {
	courses, err := s.svc.ListCourses(c.Request().Context())
	if err != nil {
		return s.upstreamError(c, err)
	}
	items := make([]domain.DashboardItem, 0, len(courses))
	for _, cs := range courses {
		items = append(items, domain.CourseItem(cs))
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleCourse(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	course, err := s.svc.GetCourseDetail(c.Request().Context(), key)
	if err != nil {
		return s.upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, course)
}

func (s *Server) handlePrefetchCourse(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	s.svc.PrefetchCourse(c.Request().Context(), key)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleLearningPaths(c echo.Context) error {
	paths, err := s.svc.ListLearningPaths(c.Request().Context())
	if err != nil {
		return s.upstreamError(c, err)
	}
	items := make([]domain.DashboardItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, domain.PathItem(p))
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleLearningPath(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	detail, err := s.svc.GetLearningPathDetail(c.Request().Context(), key)
	if err != nil {
		return s.upstreamError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handlePrefetchLearningPath(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	s.svc.PrefetchLearningPath(c.Request().Context(), key)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleEnrollLearningPath(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	return writeEnrollResult(c, s.svc.EnrollLearningPath(c.Request().Context(), key))
}

func (s *Server) handleEnrollCourse(c echo.Context) error {
	key, err := pathParam(c, "key")
	if err != nil {
		return err
	}
	course, err := pathParam(c, "course")
	if err != nil {
		return err
	}
	return writeEnrollResult(c, s.svc.EnrollCourse(c.Request().Context(), key, course))
}

func writeEnrollResult(c echo.Context, res queries.EnrollResult) error {
	status := http.StatusOK
	if !res.Success {
		status = res.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
	}
	return c.JSON(status, res)
}
