package queries

import (
	"context"

	"learner-dashboard/internal/cache"
	"learner-dashboard/internal/derive"
	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/providers/platform"
)

// ListLearningPaths returns every learning path with aggregate progress (the mean of
// its step completions), status against the required completion and the step
// date range.
func (s *Service) ListLearningPaths(ctx context.Context) ([]domain.LearningPathSummary, error) {
	var (
		paths       []domain.LearningPathSummary
		completions map[string]float64
		courses     []domain.CourseSummary
		orgs        map[string]domain.Organization
	)
	err := group(ctx,
		func(ctx context.Context) (err error) { paths, err = s.learningPaths(ctx); return err },
		func(ctx context.Context) (err error) { completions, err = s.completions(ctx); return err },
		func(ctx context.Context) (err error) { courses, err = s.catalog(ctx); return err },
		func(ctx context.Context) (err error) { orgs, err = s.organizations(ctx); return err },
	)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]domain.CourseSummary, len(courses))
	for _, c := range courses {
		byKey[c.ID] = c
	}
	out := make([]domain.LearningPathSummary, 0, len(paths))
	for _, p := range paths {
		sum := derive.SummarizePath(p, completions, byKey)
		sum.OrgName, sum.OrgLogo = derive.AttachOrganization(sum.Org, orgs)
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) learningPath(ctx context.Context, key string) (domain.LearningPathSummary, error) {
	return cache.Fetch(ctx, s.cache, keyLearningPath(key), s.stale.Catalog, func(ctx context.Context) (domain.LearningPathSummary, error) {
		return s.gw.GetLearningPath(ctx, key)
	})
}

func (s *Service) learningPathProgress(ctx context.Context, key string) (platform.PathProgress, error) {
	return cache.Fetch(ctx, s.cache, keyLearningPathProgress(key), s.stale.Completion, func(ctx context.Context) (platform.PathProgress, error) {
		return s.gw.GetLearningPathProgress(ctx, key)
	})
}

// GetLearningPathDetail returns one path with its detail fields, the platform's
// progress for it and the detail record of every step course in step order.
func (s *Service) GetLearningPathDetail(ctx context.Context, key string) (domain.LearningPathDetail, error) {
	var (
		path     domain.LearningPathSummary
		progress platform.PathProgress
		orgs     map[string]domain.Organization
	)
	err := group(ctx,
		func(ctx context.Context) (err error) { path, err = s.learningPath(ctx, key); return err },
		func(ctx context.Context) (err error) { progress, err = s.learningPathProgress(ctx, key); return err },
		func(ctx context.Context) (err error) { orgs, err = s.organizations(ctx); return err },
	)
	if err != nil {
		return domain.LearningPathDetail{}, err
	}

	courses, err := s.CoursesByIDs(ctx, path.CourseKeys())
	if err != nil {
		return domain.LearningPathDetail{}, err
	}
	byKey := make(map[string]domain.CourseSummary, len(courses))
	for _, c := range courses {
		byKey[c.ID] = c
	}

	sum := path.Clone()
	if progress.RequiredCompletion != nil {
		rc := *progress.RequiredCompletion
		sum.RequiredCompletion = &rc
	}
	sum.NumCourses = len(sum.Steps)
	sum.Progress = progress.Progress
	sum.Percent = derive.PathPercent(sum.Progress, sum.RequiredCompletion)
	sum.Status = derive.ClassifyProgress(sum.Progress, sum.RequiredCompletion)
	sum.MinDate, sum.MaxDate = derive.StepDateRange(sum.Steps, byKey)
	if sum.Org == "" && len(sum.Steps) > 0 {
		sum.Org, _, _, _ = domain.ParseCourseKey(sum.Steps[0].CourseKey)
	}
	sum.OrgName, sum.OrgLogo = derive.AttachOrganization(sum.Org, orgs)

	return domain.LearningPathDetail{LearningPathSummary: sum, Courses: courses}, nil
}
