package queries

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learner-dashboard/internal/cache"
	"learner-dashboard/internal/concurrency"
)

// PrefetchCourse warms the cache for a course detail view. It returns at once;
// failures are logged and dropped. Nothing is fetched when every source is fresh.
func (s *Service) PrefetchCourse(ctx context.Context, id string) {
	if id == "" || s.fresh(keyCourse(id), keyCourseCompletion(id), keyEnrollment(id)) {
		return
	}
	concurrency.Detach(ctx, func(ctx context.Context) error {
		_, err := s.GetCourseDetail(ctx, id)
		return err
	}, func(err error) {
		s.log.Warn("course prefetch failed", zap.String("course", id), zap.Error(err))
	})
}

// PrefetchLearningPath warms the cache for a learning path detail view, including
// the detail records of its step courses. One failing step course does not stop
// the others from being warmed.
func (s *Service) PrefetchLearningPath(ctx context.Context, key string) {
	if key == "" {
		return
	}
	concurrency.Detach(ctx, func(ctx context.Context) error {
		path, err := s.learningPath(ctx, key)
		if err != nil {
			return err
		}
		if _, err := s.learningPathProgress(ctx, key); err != nil {
			return err
		}
		errs := concurrency.ForEach(ctx, path.CourseKeys(), s.fanOut, func(ctx context.Context, _ int, id string) error {
			if s.fresh(keyCourse(id), keyCourseCompletion(id), keyEnrollment(id)) {
				return nil
			}
			_, err := s.GetCourseDetail(ctx, id)
			return err
		})
		return errors.Join(errs...)
	}, func(err error) {
		s.log.Warn("learning path prefetch failed", zap.String("path", key), zap.Error(err))
	})
}

func (s *Service) fresh(keys ...cache.Key) bool {
	for _, k := range keys {
		if s.cache.State(k) != cache.Fresh {
			return false
		}
	}
	return true
}
