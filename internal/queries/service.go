// Package queries orchestrates gateway calls behind the query cache and merges the
// fetched collections into dashboard records.
//
// Raw platform collections are cached per source with their own freshness window;
// merged views are derived on every read, so a refreshed completion set shows up in
// every list without invalidating them.
package queries

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"learner-dashboard/internal/assets"
	"learner-dashboard/internal/cache"
	"learner-dashboard/internal/concurrency"
	"learner-dashboard/internal/derive"
	"learner-dashboard/internal/domain"
	"learner-dashboard/internal/providers/platform"
)

// Gateway is the platform surface the service reads from.
type Gateway interface {
	ListLearningPaths(ctx context.Context) ([]domain.LearningPathSummary, error)
	GetLearningPath(ctx context.Context, key string) (domain.LearningPathSummary, error)
	GetLearningPathProgress(ctx context.Context, key string) (platform.PathProgress, error)
	EnrollLearningPath(ctx context.Context, key string) error
	EnrollCourse(ctx context.Context, pathKey, courseID string) error

	ListCoursesPage(ctx context.Context, cursor string) (platform.CoursePage, error)
	GetCourse(ctx context.Context, courseID string) (platform.CatalogCourse, error)
	GetCourseDetails(ctx context.Context, courseID string) (platform.CourseDetails, error)

	ListCompletionsPage(ctx context.Context, cursor string) (platform.CompletionPage, error)
	GetCourseCompletion(ctx context.Context, courseID string) (float64, error)
	GetEnrollment(ctx context.Context, courseID string) (domain.EnrollmentStatus, error)

	ListOrganizationsPage(ctx context.Context, cursor string) (platform.OrganizationPage, error)
	GetLearnerHome(ctx context.Context) (domain.LearnerHome, error)
}

// StaleTimes are the freshness windows per data family.
type StaleTimes struct {
	Catalog      time.Duration
	Completion   time.Duration
	Organization time.Duration
}

func DefaultStaleTimes() StaleTimes {
	return StaleTimes{
		Catalog:      5 * time.Minute,
		Completion:   time.Minute,
		Organization: time.Hour,
	}
}

type Options struct {
	Stale  StaleTimes
	FanOut int
	Assets assets.Resolver
	Clock  cache.Clock
	Logger *zap.Logger
}

// Service answers dashboard queries.
type Service struct {
	gw     Gateway
	cache  *cache.Cache
	stale  StaleTimes
	fanOut concurrency.ParallelOptions
	assets assets.Resolver
	clock  cache.Clock
	log    *zap.Logger
}

func New(gw Gateway, c *cache.Cache, opts Options) *Service {
	def := DefaultStaleTimes()
	if opts.Stale.Catalog <= 0 {
		opts.Stale.Catalog = def.Catalog
	}
	if opts.Stale.Completion <= 0 {
		opts.Stale.Completion = def.Completion
	}
	if opts.Stale.Organization <= 0 {
		opts.Stale.Organization = def.Organization
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	fan := concurrency.DefaultOptions()
	if opts.FanOut > 0 {
		fan.MaxWorkers = opts.FanOut
	}
	return &Service{
		gw:     gw,
		cache:  c,
		stale:  opts.Stale,
		fanOut: fan,
		assets: opts.Assets,
		clock:  opts.Clock,
		log:    opts.Logger.Named("queries"),
	}
}

/* -------- Cache keys -------- */

var (
	keyCatalog       = cache.Key{"courses", "catalog"}
	keyCompletions   = cache.Key{"courseCompletions"}
	keyLearningPaths = cache.Key{"learningPaths"}
	keyOrganizations = cache.Key{"organizations"}
	keyLearnerHome   = cache.Key{"learnerHome"}
)

// Per-entity keys nest under the entity key so one InvalidatePrefix drops them all.
func keyCourse(id string) cache.Key              { return cache.Key{"course", id} }
func keyCourseCompletion(id string) cache.Key    { return cache.Key{"course", id, "completion"} }
func keyEnrollment(id string) cache.Key          { return cache.Key{"course", id, "enrollment"} }
func keyLearningPath(key string) cache.Key       { return cache.Key{"learningPath", key} }
func keyLearningPathProgress(k string) cache.Key { return cache.Key{"learningPath", k, "progress"} }

// maxPages stops a paginated walk whose next links never end.
const maxPages = 1000

// walkPages follows next cursors from the first page until one comes back empty.
func walkPages[T any](ctx context.Context, op string, fetch func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	var (
		all    []T
		cursor string
		seen   = make(map[string]bool)
	)
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("%s: more than %d pages", op, maxPages)
		}
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		if seen[next] {
			return nil, fmt.Errorf("%s: pagination loops on %s", op, next)
		}
		seen[next] = true
		cursor = next
	}
}

/* -------- Raw sources -------- */

// catalog is every catalog course merged with its details record, without progress.
func (s *Service) catalog(ctx context.Context) ([]domain.CourseSummary, error) {
	return cache.Fetch(ctx, s.cache, keyCatalog, s.stale.Catalog, func(ctx context.Context) ([]domain.CourseSummary, error) {
		entries, err := walkPages(ctx, "list courses", func(ctx context.Context, cursor string) ([]platform.CatalogCourse, string, error) {
			p, err := s.gw.ListCoursesPage(ctx, cursor)
			return p.Courses, p.Next, err
		})
		if err != nil {
			return nil, err
		}
		return concurrency.Map(ctx, entries, s.fanOut, func(ctx context.Context, _ int, c platform.CatalogCourse) (domain.CourseSummary, error) {
			d, err := s.gw.GetCourseDetails(ctx, c.ID)
			if err != nil {
				return domain.CourseSummary{}, err
			}
			return s.combine(c, d), nil
		})
	})
}

// completions is the learner's completion fraction per course key. A 404 from the
// bulk endpoint means the learner has no records yet.
func (s *Service) completions(ctx context.Context) (map[string]float64, error) {
	return cache.Fetch(ctx, s.cache, keyCompletions, s.stale.Completion, func(ctx context.Context) (map[string]float64, error) {
		records, err := walkPages(ctx, "list completions", func(ctx context.Context, cursor string) ([]domain.CompletionRecord, string, error) {
			p, err := s.gw.ListCompletionsPage(ctx, cursor)
			return p.Records, p.Next, err
		})
		if err != nil {
			if platform.IsNotFound(err) {
				return map[string]float64{}, nil
			}
			return nil, err
		}
		return derive.CompletionsByKey(records), nil
	})
}

func (s *Service) learningPaths(ctx context.Context) ([]domain.LearningPathSummary, error) {
	return cache.Fetch(ctx, s.cache, keyLearningPaths, s.stale.Catalog, s.gw.ListLearningPaths)
}

// organizations is the directory keyed by short name. Platforms without the
// organizations API answer 404; that is an empty directory.
func (s *Service) organizations(ctx context.Context) (map[string]domain.Organization, error) {
	return cache.Fetch(ctx, s.cache, keyOrganizations, s.stale.Organization, func(ctx context.Context) (map[string]domain.Organization, error) {
		orgs, err := walkPages(ctx, "list organizations", func(ctx context.Context, cursor string) ([]domain.Organization, string, error) {
			p, err := s.gw.ListOrganizationsPage(ctx, cursor)
			return p.Organizations, p.Next, err
		})
		if err != nil {
			if platform.IsNotFound(err) {
				return map[string]domain.Organization{}, nil
			}
			return nil, err
		}
		out := make(map[string]domain.Organization, len(orgs))
		for _, o := range orgs {
			out[o.ShortName] = o
		}
		return out, nil
	})
}

func (s *Service) learnerHome(ctx context.Context) (domain.LearnerHome, error) {
	return cache.Fetch(ctx, s.cache, keyLearnerHome, s.stale.Completion, func(ctx context.Context) (domain.LearnerHome, error) {
		home, err := s.gw.GetLearnerHome(ctx)
		if platform.IsNotFound(err) {
			return domain.LearnerHome{}, nil
		}
		return home, err
	})
}

// combine merges a catalog entry with its details record.
func (s *Service) combine(c platform.CatalogCourse, d platform.CourseDetails) domain.CourseSummary {
	id := c.ID
	if id == "" {
		id = d.Key()
	}
	org := d.Org
	if org == "" {
		org, _, _, _ = domain.ParseCourseKey(id)
	}
	return domain.CourseSummary{
		ID:                   id,
		Name:                 c.Name,
		Org:                  org,
		CourseImageAssetPath: d.CourseImageAssetPath,
		ImageURL:             s.assets.AssetURL(d.CourseImageAssetPath),
		StartDate:            d.StartDate,
		EndDate:              d.EndDate,
		Duration:             d.Duration,
		SelfPaced:            d.SelfPaced,
		Description:          d.Description,
		ShortDescription:     d.ShortDescription,
	}
}

// group runs fns concurrently and returns the first error.
func group(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
