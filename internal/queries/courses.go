package queries

import (
	"context"

	"learner-dashboard/internal/cache"
	"learner-dashboard/internal/concurrency"
	"learner-dashboard/internal/derive"
	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/providers/platform"
)

// ListCourses returns every catalog course with the learner's progress, the names
// of the learning paths containing it and its organization display data.
//
// A failure of any source fails the whole list; there is no partial result.
func (s *Service) ListCourses(ctx context.Context) ([]domain.CourseSummary, error) {
	var (
		courses     []domain.CourseSummary
		completions map[string]float64
		paths       []domain.LearningPathSummary
		orgs        map[string]domain.Organization
	)
	err := group(ctx,
		func(ctx context.Context) (err error) { courses, err = s.catalog(ctx); return err },
		func(ctx context.Context) (err error) { completions, err = s.completions(ctx); return err },
		func(ctx context.Context) (err error) { paths, err = s.learningPaths(ctx); return err },
		func(ctx context.Context) (err error) { orgs, err = s.organizations(ctx); return err },
	)
	if err != nil {
		return nil, err
	}

	pathIndex := derive.IndexLearningPathsByCourse(paths)
	out := make([]domain.CourseSummary, 0, len(courses))
	for _, c := range courses {
		merged := derive.MergeCompletion(c, completions)
		if names := pathIndex[c.ID]; len(names) > 0 {
			merged.LearningPaths = append([]string(nil), names...)
		}
		merged.OrgName, merged.OrgLogo = derive.AttachOrganization(merged.Org, orgs)
		out = append(out, merged)
	}
	return out, nil
}

// courseRecord is the catalog entry of one course combined with its details record.
func (s *Service) courseRecord(ctx context.Context, id string) (domain.CourseSummary, error) {
	return cache.Fetch(ctx, s.cache, keyCourse(id), s.stale.Catalog, func(ctx context.Context) (domain.CourseSummary, error) {
		var (
			basic   platform.CatalogCourse
			details platform.CourseDetails
		)
		err := group(ctx,
			func(ctx context.Context) (err error) { basic, err = s.gw.GetCourse(ctx, id); return err },
			func(ctx context.Context) (err error) { details, err = s.gw.GetCourseDetails(ctx, id); return err },
		)
		if err != nil {
			return domain.CourseSummary{}, err
		}
		if basic.ID == "" {
			basic.ID = id
		}
		return s.combine(basic, details), nil
	})
}

// CourseCompletion returns the learner's completion fraction for one course.
// No record is 0, not an error.
func (s *Service) CourseCompletion(ctx context.Context, id string) (float64, error) {
	return cache.Fetch(ctx, s.cache, keyCourseCompletion(id), s.stale.Completion, func(ctx context.Context) (float64, error) {
		return s.gw.GetCourseCompletion(ctx, id)
	})
}

// Enrollment returns the learner's enrollment in one course. No record is not enrolled.
func (s *Service) Enrollment(ctx context.Context, id string) (domain.EnrollmentStatus, error) {
	return cache.Fetch(ctx, s.cache, keyEnrollment(id), s.stale.Completion, func(ctx context.Context) (domain.EnrollmentStatus, error) {
		return s.gw.GetEnrollment(ctx, id)
	})
}

// GetCourseDetail returns one course for the detail view: progress, enrollment, an
// absolute image URL, a description with resolved static assets and the course
// home link.
func (s *Service) GetCourseDetail(ctx context.Context, id string) (domain.CourseSummary, error) {
	var (
		record     domain.CourseSummary
		percent    float64
		enrollment domain.EnrollmentStatus
		orgs       map[string]domain.Organization
	)
	err := group(ctx,
		func(ctx context.Context) (err error) { record, err = s.courseRecord(ctx, id); return err },
		func(ctx context.Context) (err error) { percent, err = s.CourseCompletion(ctx, id); return err },
		func(ctx context.Context) (err error) { enrollment, err = s.Enrollment(ctx, id); return err },
		func(ctx context.Context) (err error) { orgs, err = s.organizations(ctx); return err },
	)
	if err != nil {
		return domain.CourseSummary{}, err
	}

	out := derive.MergeCompletion(record, map[string]float64{record.ID: percent})
	out.IsEnrolled = enrollment.IsEnrolled
	out.Description = s.assets.RewriteStaticReferences(record.Description, record.ID)
	out.CourseHomeURL = s.assets.CourseHomeURL(record.ID)
	out.OrgName, out.OrgLogo = derive.AttachOrganization(out.Org, orgs)
	return out, nil
}

// CoursesByIDs returns the detail record of each id, in the order of ids.
func (s *Service) CoursesByIDs(ctx context.Context, ids []string) ([]domain.CourseSummary, error) {
	return concurrency.Map(ctx, ids, s.fanOut, func(ctx context.Context, _ int, id string) (domain.CourseSummary, error) {
		return s.GetCourseDetail(ctx, id)
	})
}
