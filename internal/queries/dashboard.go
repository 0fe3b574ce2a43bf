package queries

import (
	"cmp"
	"context"
	"slices"

	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/view"
)

// Dashboard is one composed page of the learner dashboard.
type Dashboard struct {
	view.Page
	ActiveFilters int                `json:"activeFilters"`
	LearnerHome   domain.LearnerHome `json:"learnerHome"`
}

// Items returns courses followed by learning paths, or nothing while the learner
// still has to confirm their email address.
func (s *Service) Items(ctx context.Context) ([]domain.DashboardItem, domain.LearnerHome, error) {
	var (
		home    domain.LearnerHome
		courses []domain.CourseSummary
		paths   []domain.LearningPathSummary
	)
	err := group(ctx,
		func(ctx context.Context) (err error) { home, err = s.learnerHome(ctx); return err },
		func(ctx context.Context) (err error) { courses, err = s.ListCourses(ctx); return err },
		func(ctx context.Context) (err error) { paths, err = s.ListLearningPaths(ctx); return err },
	)
	if err != nil {
		return nil, domain.LearnerHome{}, err
	}
	if home.EmailConfirmationNeeded {
		return []domain.DashboardItem{}, home, nil
	}

	items := make([]domain.DashboardItem, 0, len(courses)+len(paths))
	for _, c := range courses {
		items = append(items, domain.CourseItem(c))
	}
	for _, p := range paths {
		items = append(items, domain.PathItem(p))
	}
	return items, home, nil
}

// Dashboard composes the requested page of the dashboard list.
func (s *Service) Dashboard(ctx context.Context, req view.Request) (Dashboard, error) {
	items, home, err := s.Items(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	if req.Now.IsZero() {
		req.Now = s.clock.Now()
	}
	return Dashboard{
		Page:          view.ComposeView(items, req),
		ActiveFilters: req.Filters.ActiveCount(),
		LearnerHome:   home,
	}, nil
}

// Organizations returns the organization directory ordered by short name.
func (s *Service) Organizations(ctx context.Context) ([]domain.Organization, error) {
	orgs, err := s.organizations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Organization, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b domain.Organization) int { return cmp.Compare(a.ShortName, b.ShortName) })
	return out, nil
}
