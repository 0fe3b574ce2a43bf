package queries

import (
	"context"
	"net/http"
	"sync"
	"time"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/providers/platform"
)

// fakeGateway serves canned platform data and counts calls per operation.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	paths       []domain.LearningPathSummary
	pathDetails map[string]domain.LearningPathSummary
	progress    map[string]platform.PathProgress
	catalog     []platform.CatalogCourse
	details     map[string]platform.CourseDetails
	completions []domain.CompletionRecord
	orgs        []domain.Organization
	enrollments map[string]domain.EnrollmentStatus
	home        domain.LearnerHome

	// errors returned per operation name
	errs map[string]error
	// block, when set, holds GetCourse until closed
	block chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:       make(map[string]int),
		pathDetails: make(map[string]domain.LearningPathSummary),
		progress:    make(map[string]platform.PathProgress),
		details:     make(map[string]platform.CourseDetails),
		enrollments: make(map[string]domain.EnrollmentStatus),
		errs:        make(map[string]error),
	}
}

func (f *fakeGateway) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) setErr(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func notFound(op string) error {
	return &platform.APIError{Op: op, StatusCode: http.StatusNotFound}
}

func (f *fakeGateway) ListLearningPaths(ctx context.Context) ([]domain.LearningPathSummary, error) {
	if err := f.hit("ListLearningPaths"); err != nil {
		return nil, err
	}
	out := make([]domain.LearningPathSummary, 0, len(f.paths))
	for _, p := range f.paths {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (f *fakeGateway) GetLearningPath(ctx context.Context, key string) (domain.LearningPathSummary, error) {
	if err := f.hit("GetLearningPath"); err != nil {
		return domain.LearningPathSummary{}, err
	}
	p, ok := f.pathDetails[key]
	if !ok {
		return domain.LearningPathSummary{}, notFound("get_learning_path")
	}
	return p.Clone(), nil
}

func (f *fakeGateway) GetLearningPathProgress(ctx context.Context, key string) (platform.PathProgress, error) {
	if err := f.hit("GetLearningPathProgress"); err != nil {
		return platform.PathProgress{}, err
	}
	return f.progress[key], nil
}

func (f *fakeGateway) EnrollLearningPath(ctx context.Context, key string) error {
	return f.hit("EnrollLearningPath")
}

func (f *fakeGateway) EnrollCourse(ctx context.Context, pathKey, courseID string) error {
	return f.hit("EnrollCourse")
}

func (f *fakeGateway) ListCoursesPage(ctx context.Context, cursor string) (platform.CoursePage, error) {
	if err := f.hit("ListCoursesPage"); err != nil {
		return platform.CoursePage{}, err
	}
	// Two pages when there is more than one course.
	if len(f.catalog) <= 1 {
		return platform.CoursePage{Courses: f.catalog}, nil
	}
	if cursor == "" {
		return platform.CoursePage{Courses: f.catalog[:1], Next: "page-2"}, nil
	}
	return platform.CoursePage{Courses: f.catalog[1:]}, nil
}

func (f *fakeGateway) GetCourse(ctx context.Context, courseID string) (platform.CatalogCourse, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-time.After(5 * time.Second):
		}
	}
	if err := f.hit("GetCourse"); err != nil {
		return platform.CatalogCourse{}, err
	}
	for _, c := range f.catalog {
		if c.ID == courseID {
			return c, nil
		}
	}
	return platform.CatalogCourse{}, notFound("get_course")
}

func (f *fakeGateway) GetCourseDetails(ctx context.Context, courseID string) (platform.CourseDetails, error) {
	if err := f.hit("GetCourseDetails"); err != nil {
		return platform.CourseDetails{}, err
	}
	d, ok := f.details[courseID]
	if !ok {
		return platform.CourseDetails{}, notFound("get_course_details")
	}
	return d, nil
}

func (f *fakeGateway) ListCompletionsPage(ctx context.Context, cursor string) (platform.CompletionPage, error) {
	if err := f.hit("ListCompletionsPage"); err != nil {
		return platform.CompletionPage{}, err
	}
	return platform.CompletionPage{Records: f.completions}, nil
}

func (f *fakeGateway) GetCourseCompletion(ctx context.Context, courseID string) (float64, error) {
	if err := f.hit("GetCourseCompletion"); err != nil {
		return 0, err
	}
	for _, r := range f.completions {
		if r.CourseKey == courseID {
			return r.Percent, nil
		}
	}
	return 0, nil
}

func (f *fakeGateway) GetEnrollment(ctx context.Context, courseID string) (domain.EnrollmentStatus, error) {
	if err := f.hit("GetEnrollment"); err != nil {
		return domain.EnrollmentStatus{}, err
	}
	if st, ok := f.enrollments[courseID]; ok {
		return st, nil
	}
	return domain.EnrollmentStatus{Key: courseID}, nil
}

func (f *fakeGateway) ListOrganizationsPage(ctx context.Context, cursor string) (platform.OrganizationPage, error) {
	if err := f.hit("ListOrganizationsPage"); err != nil {
		return platform.OrganizationPage{}, err
	}
	return platform.OrganizationPage{Organizations: f.orgs}, nil
}

func (f *fakeGateway) GetLearnerHome(ctx context.Context) (domain.LearnerHome, error) {
	if err := f.hit("GetLearnerHome"); err != nil {
		return domain.LearnerHome{}, err
	}
	return f.home, nil
}
