package queries

// InvalidateCourse forces the next read of the course, its completion and
// enrollment, and the course list to refetch.
func (s *Service) InvalidateCourse(id string) {
	s.cache.InvalidatePrefix(keyCourse(id))
	s.cache.Invalidate(keyCompletions)
}

// InvalidateLearningPath forces the next read of the path, its progress and the
// path list to refetch.
func (s *Service) InvalidateLearningPath(key string) {
	s.cache.InvalidatePrefix(keyLearningPath(key))
	s.cache.Invalidate(keyLearningPaths)
}

// InvalidateAll drops every cached source.
func (s *Service) InvalidateAll() {
	s.cache.Purge()
}

// CacheEntries returns the number of cached sources.
func (s *Service) CacheEntries() int {
	return s.cache.Len()
}
