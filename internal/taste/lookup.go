package taste

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-alloy/internal/analysis"
)

// Footprint is what the taste graph knows about a set of search terms.
type Footprint struct {
	IDs    []string
	Tastes analysis.Set
}

func (f Footprint) Empty() bool {
	return len(f.Tastes) == 0
}

// Lookup fans resolution out over many terms. Every call gets its own
// Limiter, so concurrent tool invocations never share one.
type Lookup struct {
	graph       Graph
	cache       Cache
	maxInFlight int64
	pacing      time.Duration
}

func NewLookup(graph Graph, cache Cache, maxInFlight int64, pacing time.Duration) *Lookup {
	return &Lookup{graph: graph, cache: cache, maxInFlight: maxInFlight, pacing: pacing}
}

// Request is one group of search terms whose footprint is aggregated together.
type Request struct {
	Terms      []string
	WithTastes bool
}

// Footprint resolves terms under a fresh Limiter. See Footprints.
func (l *Lookup) Footprint(ctx context.Context, terms []string, withTastes bool) Footprint {
	return l.Footprints(ctx, Request{Terms: terms, WithTastes: withTastes})[0]
}

// Footprints resolves the terms of every request concurrently through one
// shared Limiter and, for requests with WithTastes, fetches the tastes of each
// resolved entity. Unresolved terms never reach the fetcher. Results are in
// request order.
func (l *Lookup) Footprints(ctx context.Context, reqs ...Request) []Footprint {
	g := limitedGraph{graph: l.graph, limiter: NewLimiter(l.maxInFlight, l.pacing)}
	resolver := NewResolver(g, l.cache)
	fetcher := NewFetcher(g, l.cache)

	ids := make([][]string, len(reqs))
	out := make([]Footprint, len(reqs))
	var mu sync.Mutex

	var eg errgroup.Group
	for r, req := range reqs {
		ids[r] = make([]string, len(req.Terms))
		out[r].Tastes = analysis.NewSet()
		for i, term := range req.Terms {
			eg.Go(func() error {
				id, ok := resolver.Resolve(ctx, term)
				if !ok {
					return nil
				}
				ids[r][i] = id
				if !req.WithTastes {
					return nil
				}
				found := fetcher.Fetch(ctx, id)
				mu.Lock()
				out[r].Tastes.Add(found...)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = eg.Wait()

	for r := range out {
		out[r].IDs = compact(ids[r])
	}
	return out
}

// Direct resolves name with a single untyped search and fetches its tastes.
func (l *Lookup) Direct(ctx context.Context, name string) Footprint {
	g := limitedGraph{graph: l.graph, limiter: NewLimiter(l.maxInFlight, l.pacing)}
	id, ok := NewResolver(g, l.cache).ResolveDirect(ctx, name)
	if !ok {
		return Footprint{Tastes: analysis.NewSet()}
	}
	return Footprint{IDs: []string{id}, Tastes: analysis.NewSet(NewFetcher(g, l.cache).Fetch(ctx, id)...)}
}

// Predict asks persona for affinities extrapolated from ids, paced like
// every other taste-graph call.
func (l *Lookup) Predict(ctx context.Context, persona PersonaGraph, ids []string, take int) ([]string, error) {
	var names []string
	err := NewLimiter(l.maxInFlight, l.pacing).Do(ctx, func(ctx context.Context) error {
		var err error
		names, err = persona.PredictAffinities(ctx, ids, take)
		return err
	})
	return names, err
}

// SearchTerms returns brand followed by its proxies, deduplicated case-insensitively.
func SearchTerms(brand string, proxies []string) []string {
	out := make([]string, 0, len(proxies)+1)
	seen := map[string]bool{}
	for _, t := range append([]string{brand}, proxies...) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
