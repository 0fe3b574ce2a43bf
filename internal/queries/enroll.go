package queries

import (
	"context"

	"go.uber.org/zap"

	"learner-dashboard/internal/cache"
	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/providers/platform"
)

// EnrollResult is the outcome of an enrollment call. Failures are reported here
// instead of as an error so callers can always render a recoverable state.
type EnrollResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

func failure(err error) EnrollResult {
	return EnrollResult{Success: false, StatusCode: platform.StatusCode(err), Error: err.Error()}
}

// EnrollLearningPath enrolls the learner in a path. On success the cached path
// detail is marked enrolled in place; on failure the cache is left untouched.
func (s *Service) EnrollLearningPath(ctx context.Context, key string) EnrollResult {
	if err := s.gw.EnrollLearningPath(ctx, key); err != nil {
		s.log.Info("learning path enrollment failed",
			zap.String("path", key), zap.Int("status", platform.StatusCode(err)), zap.Error(err))
		return failure(err)
	}

	now := s.clock.Now()
	cache.Patch(s.cache, keyLearningPath(key), func(p domain.LearningPathSummary) domain.LearningPathSummary {
		next := p.Clone()
		next.IsEnrolled = true
		if next.EnrollmentDate == nil {
			next.EnrollmentDate = &now
		}
		return next
	})
	return EnrollResult{Success: true}
}

// EnrollCourse enrolls the learner in one step course of a path. On success the
// cached enrollment status of the course becomes enrolled.
func (s *Service) EnrollCourse(ctx context.Context, pathKey, courseID string) EnrollResult {
	if err := s.gw.EnrollCourse(ctx, pathKey, courseID); err != nil {
		s.log.Info("course enrollment failed",
			zap.String("path", pathKey), zap.String("course", courseID),
			zap.Int("status", platform.StatusCode(err)), zap.Error(err))
		return failure(err)
	}

	now := s.clock.Now()
	enrolled := func(st domain.EnrollmentStatus) domain.EnrollmentStatus {
		st.Key = courseID
		st.IsEnrolled = true
		if st.EnrolledAt == nil {
			st.EnrolledAt = &now
		}
		return st
	}
	if !cache.Patch(s.cache, keyEnrollment(courseID), enrolled) {
		cache.Set(s.cache, keyEnrollment(courseID), enrolled(domain.EnrollmentStatus{}), s.stale.Completion)
	}
	return EnrollResult{Success: true}
}
