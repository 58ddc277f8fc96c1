// Package taste resolves free-text names to taste-graph entities and gathers
// their audience affinities under a bounded concurrency limiter.
package taste

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// TasteCap bounds how many affinities are fetched per entity.
	TasteCap = 50
	// MaxProxies bounds the cultural proxies extracted per brand.
	MaxProxies         = 5
	DefaultMaxInFlight = 3
	DefaultPacing      = 300 * time.Millisecond
)

// EntityTypes is the priority order in which entity categories are probed.
var EntityTypes = []string{"brand", "person", "artist", "movie", "tv_show", "book", "podcast", "place", "videogame"}

// Graph is the subset of the taste graph used for resolution and fetching.
type Graph interface {
	SearchEntity(ctx context.Context, query, entityType string) (string, error)
	Affinities(ctx context.Context, id string, take int) ([]string, error)
}

// PersonaGraph extrapolates affinities from seed entities.
type PersonaGraph interface {
	PredictAffinities(ctx context.Context, ids []string, take int) ([]string, error)
}

// Limiter bounds in-flight external calls and paces their start times.
type Limiter struct {
	sem  *semaphore.Weighted
	pace *rate.Limiter
}

func NewLimiter(maxInFlight int64, pacing time.Duration) *Limiter {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	limit := rate.Inf
	if pacing > 0 {
		limit = rate.Every(pacing)
	}
	return &Limiter{sem: semaphore.NewWeighted(maxInFlight), pace: rate.NewLimiter(limit, 1)}
}

func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	if err := l.pace.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// limitedGraph routes every graph call through a Limiter.
type limitedGraph struct {
	graph   Graph
	limiter *Limiter
}

func (g limitedGraph) SearchEntity(ctx context.Context, query, entityType string) (string, error) {
	var id string
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = g.graph.SearchEntity(ctx, query, entityType)
		return err
	})
	return id, err
}

func (g limitedGraph) Affinities(ctx context.Context, id string, take int) ([]string, error) {
	var tastes []string
	err := g.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		tastes, err = g.graph.Affinities(ctx, id, take)
		return err
	})
	return tastes, err
}
