// Package platform is the gateway to the learning platform REST APIs. One method per
// resource family; each returns normalized domain records or one of NetworkError,
// APIError and ValidationError. Paginated endpoints are exposed page by page and the
// caller follows Next until it is empty.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/httpx"
)

// Transport is the subset of httpx.Client the gateway needs.
type Transport interface {
	GetJSON(ctx context.Context, url string, out any) error
	PostJSON(ctx context.Context, url string, in any, out any) error
}

var _ Transport = (*httpx.Client)(nil)

// Config carries the platform base URLs and the learner identity.
type Config struct {
	LMSBaseURL string
	CMSBaseURL string
	Username   string
}

// Gateway issues the platform calls.
type Gateway struct {
	cfg      Config
	http     Transport
	validate *validator.Validate
	log      *zap.Logger
	metrics  *Metrics
}

// New builds a Gateway. A nil logger is replaced with a no-op logger.
func New(cfg Config, t Transport, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.LMSBaseURL = strings.TrimRight(cfg.LMSBaseURL, "/")
	cfg.CMSBaseURL = strings.TrimRight(cfg.CMSBaseURL, "/")
	if cfg.CMSBaseURL == "" {
		cfg.CMSBaseURL = cfg.LMSBaseURL
	}
	return &Gateway{
		cfg:      cfg,
		http:     t,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.Named("platform"),
		metrics:  NewMetrics(),
	}
}

func (g *Gateway) lms(format string, args ...any) string {
	return g.cfg.LMSBaseURL + fmt.Sprintf(format, args...)
}

func (g *Gateway) get(ctx context.Context, op, u string, out any) error {
	start := time.Now()
	err := classify(op, g.http.GetJSON(ctx, u, out))
	if err == nil {
		if verr := g.validate.Struct(out); verr != nil {
			err = &ValidationError{Op: op, Err: verr}
		}
	}
	g.observe(op, start, err)
	return err
}

func (g *Gateway) post(ctx context.Context, op, u string) error {
	start := time.Now()
	err := classify(op, g.http.PostJSON(ctx, u, nil, nil))
	g.observe(op, start, err)
	return err
}

func (g *Gateway) observe(op string, start time.Time, err error) {
	g.metrics.RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	g.metrics.RequestsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
	if err != nil && !IsNotFound(err) {
		g.log.Debug("platform call failed", zap.String("op", op), zap.Error(err))
	}
}

/* -------- Learning paths -------- */

// ListLearningPaths returns every learning path visible to the learner.
func (g *Gateway) ListLearningPaths(ctx context.Context) ([]domain.LearningPathSummary, error) {
	var out learningPathList
	if err := g.get(ctx, "list_learning_paths", g.lms("/api/v1/learning-paths/"), &out); err != nil {
		return nil, err
	}
	paths := make([]domain.LearningPathSummary, 0, len(out.Results))
	for _, w := range out.Results {
		paths = append(paths, w.toDomain())
	}
	return paths, nil
}

// GetLearningPath returns one path including its detail-only fields.
func (g *Gateway) GetLearningPath(ctx context.Context, key string) (domain.LearningPathSummary, error) {
	var out learningPathWire
	u := g.lms("/api/v1/learning-paths/%s/", url.PathEscape(key))
	if err := g.get(ctx, "get_learning_path", u, &out); err != nil {
		return domain.LearningPathSummary{}, err
	}
	return out.toDomain(), nil
}

// GetLearningPathProgress returns the platform's progress record for a path.
func (g *Gateway) GetLearningPathProgress(ctx context.Context, key string) (PathProgress, error) {
	var out pathProgressWire
	u := g.lms("/api/v1/learning-paths/%s/progress/", url.PathEscape(key))
	if err := g.get(ctx, "get_learning_path_progress", u, &out); err != nil {
		return PathProgress{}, err
	}
	return PathProgress{
		Progress:           clampPercent(out.Progress),
		RequiredCompletion: out.RequiredCompletion,
		Percent:            out.Percent,
	}, nil
}

// EnrollLearningPath enrolls the learner in a path.
func (g *Gateway) EnrollLearningPath(ctx context.Context, key string) error {
	u := g.lms("/api/v1/learning-paths/%s/enrollments/", url.PathEscape(key))
	return g.post(ctx, "enroll_learning_path", u)
}

// EnrollCourse enrolls the learner in one step course of a path.
func (g *Gateway) EnrollCourse(ctx context.Context, pathKey, courseID string) error {
	u := g.lms("/api/v1/learning-paths/%s/enrollments/%s/", url.PathEscape(pathKey), url.PathEscape(courseID))
	return g.post(ctx, "enroll_course", u)
}

/* -------- Courses -------- */

// ListCoursesPage returns one catalog page. An empty cursor starts from the first page;
// otherwise cursor is the Next value of the previous page.
func (g *Gateway) ListCoursesPage(ctx context.Context, cursor string) (CoursePage, error) {
	u := cursor
	if u == "" {
		u = g.lms("/api/courses/v1/courses/")
	}
	var out coursePageWire
	if err := g.get(ctx, "list_courses", u, &out); err != nil {
		return CoursePage{}, err
	}
	page := CoursePage{
		Courses: make([]CatalogCourse, 0, len(out.Results)),
		Next:    nextOf(out.Pagination.Next, out.Next),
	}
	for _, c := range out.Results {
		page.Courses = append(page.Courses, CatalogCourse{ID: strings.TrimSpace(c.CourseID), Name: c.Name})
	}
	return page, nil
}

// GetCourse returns the catalog record of one course.
func (g *Gateway) GetCourse(ctx context.Context, courseID string) (CatalogCourse, error) {
	var out catalogCourseWire
	u := g.lms("/api/courses/v1/courses/%s/", url.PathEscape(courseID))
	if err := g.get(ctx, "get_course", u, &out); err != nil {
		return CatalogCourse{}, err
	}
	return CatalogCourse{ID: strings.TrimSpace(out.CourseID), Name: out.Name}, nil
}

// GetCourseDetails returns the content-store record of one course.
func (g *Gateway) GetCourseDetails(ctx context.Context, courseID string) (CourseDetails, error) {
	var out courseDetailsWire
	u := g.cfg.CMSBaseURL + "/api/contentstore/v1/course_details/" + url.PathEscape(courseID)
	if err := g.get(ctx, "get_course_details", u, &out); err != nil {
		return CourseDetails{}, err
	}
	return out.toDetails(), nil
}

/* -------- Completion & enrollment -------- */

// ListCompletionsPage returns one page of the learner's completion records.
func (g *Gateway) ListCompletionsPage(ctx context.Context, cursor string) (CompletionPage, error) {
	u := cursor
	if u == "" {
		u = g.lms("/completion-aggregator/v1/course/?username=%s", url.QueryEscape(g.cfg.Username))
	}
	var out completionPageWire
	if err := g.get(ctx, "list_completions", u, &out); err != nil {
		return CompletionPage{}, err
	}
	page := CompletionPage{
		Records: make([]domain.CompletionRecord, 0, len(out.Results)),
		Next:    nextOf(out.Pagination.Next, out.Next),
	}
	for _, r := range out.Results {
		page.Records = append(page.Records, domain.CompletionRecord{
			CourseKey: strings.TrimSpace(r.CourseKey),
			Percent:   clampPercent(r.Completion.Percent),
		})
	}
	return page, nil
}

// GetCourseCompletion returns the learner's completion fraction for one course.
// A 404 means no record and yields 0.
func (g *Gateway) GetCourseCompletion(ctx context.Context, courseID string) (float64, error) {
	var out completionPageWire
	u := g.lms("/completion-aggregator/v1/course/%s/?username=%s", url.PathEscape(courseID), url.QueryEscape(g.cfg.Username))
	if err := g.get(ctx, "get_course_completion", u, &out); err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if len(out.Results) == 0 {
		return 0, nil
	}
	return clampPercent(out.Results[0].Completion.Percent), nil
}

// GetEnrollment returns the learner's enrollment in a course. A 404 means not enrolled.
func (g *Gateway) GetEnrollment(ctx context.Context, courseID string) (domain.EnrollmentStatus, error) {
	var out enrollmentWire
	u := g.lms("/api/enrollment/v1/enrollment/%s", url.PathEscape(courseID))
	if err := g.get(ctx, "get_enrollment", u, &out); err != nil {
		if IsNotFound(err) {
			return domain.EnrollmentStatus{Key: courseID}, nil
		}
		return domain.EnrollmentStatus{}, err
	}
	status := domain.EnrollmentStatus{Key: courseID, IsEnrolled: out.IsActive}
	if out.IsActive {
		status.EnrolledAt = out.Created.T
	}
	return status, nil
}

/* -------- Organizations & learner home -------- */

// ListOrganizationsPage returns one page of the organization directory.
func (g *Gateway) ListOrganizationsPage(ctx context.Context, cursor string) (OrganizationPage, error) {
	u := cursor
	if u == "" {
		u = g.lms("/api/organizations/v0/organizations/")
	}
	var out organizationPageWire
	if err := g.get(ctx, "list_organizations", u, &out); err != nil {
		return OrganizationPage{}, err
	}
	page := OrganizationPage{
		Organizations: make([]domain.Organization, 0, len(out.Results)),
		Next:          nextOf(out.Next, out.Pagination.Next),
	}
	for _, o := range out.Results {
		page.Organizations = append(page.Organizations, domain.Organization{
			ShortName: strings.TrimSpace(o.ShortName),
			Name:      o.Name,
			Logo:      o.Logo,
		})
	}
	return page, nil
}

// GetLearnerHome returns the learner-home banner state.
func (g *Gateway) GetLearnerHome(ctx context.Context) (domain.LearnerHome, error) {
	var out learnerHomeWire
	if err := g.get(ctx, "get_learner_home", g.lms("/api/learner_home/init"), &out); err != nil {
		return domain.LearnerHome{}, err
	}
	home := domain.LearnerHome{EmailConfirmationNeeded: out.EmailConfirmation.IsNeeded}
	if ed := out.EnterpriseDashboard; ed != nil {
		home.EnterpriseDashboard = &domain.EnterpriseDashboard{
			Label:                  ed.Label,
			URL:                    ed.URL,
			IsLearnerPortalEnabled: ed.IsLearnerPortalEnabled,
		}
	}
	return home, nil
}
