package taste

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-alloy/internal/clients/qloo"
)

// fakeGraph resolves a query only when it matches a known spelling and type.
type fakeGraph struct {
	mu        sync.Mutex
	ids       map[string]map[string]string // entityType -> query -> id
	tastes    map[string][]string
	searchErr error
	delay     time.Duration

	searches   []string
	affinities []string
	inFlight   atomic.Int32
	maxSeen    atomic.Int32
}

func (g *fakeGraph) enter() func() {
	n := g.inFlight.Add(1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return func() { g.inFlight.Add(-1) }
}

func (g *fakeGraph) SearchEntity(_ context.Context, query, entityType string) (string, error) {
	defer g.enter()()
	g.mu.Lock()
	g.searches = append(g.searches, entityType+":"+query)
	g.mu.Unlock()
	if g.searchErr != nil {
		return "", g.searchErr
	}
	if id, ok := g.ids[entityType][query]; ok {
		return id, nil
	}
	return "", qloo.ErrNotFound
}

func (g *fakeGraph) Affinities(_ context.Context, id string, take int) ([]string, error) {
	defer g.enter()()
	g.mu.Lock()
	g.affinities = append(g.affinities, id)
	g.mu.Unlock()
	t := g.tastes[id]
	if len(t) > take {
		t = t[:take]
	}
	return t, nil
}

type fakeLLM struct {
	answer string
	err    error
}

func (f fakeLLM) Generate(context.Context, string) (string, error) { return f.answer, f.err }

func (f fakeLLM) GenerateJSON(context.Context, string) (string, error) { return f.answer, f.err }

func TestVariants(t *testing.T) {
	assert.Equal(t, []string{"nike", "Nike"}, Variants("  nike "))
	assert.Equal(t, []string{"the north face", "The North Face", "The north face"}, Variants("the north face"))
	assert.Equal(t, []string{"Patagonia"}, Variants("Patagonia"))
	assert.Nil(t, Variants("   "))
}

func TestResolveTriesVariantsAndTypes(t *testing.T) {
	g := &fakeGraph{ids: map[string]map[string]string{
		"person": {"Lebron James": "lebron"},
	}}
	r := NewResolver(g, nil)

	id, ok := r.Resolve(context.Background(), "lebron james")
	require.True(t, ok)
	assert.Equal(t, "lebron", id)
	// every brand variant first, then person variants until the capitalized hit
	assert.Equal(t, []string{
		"brand:lebron james", "brand:Lebron James", "brand:Lebron james",
		"person:lebron james", "person:Lebron James",
	}, g.searches)
}

func TestResolveSurvivesErrors(t *testing.T) {
	g := &fakeGraph{searchErr: qloo.ErrRateLimited}
	r := NewResolver(g, nil)

	_, ok := r.Resolve(context.Background(), "Nike")
	assert.False(t, ok)
	assert.Len(t, g.searches, len(EntityTypes), "every type is still probed")
}

func TestResolveStopsOnCancel(t *testing.T) {
	g := &fakeGraph{searchErr: errors.New("down")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := NewResolver(g, nil).Resolve(ctx, "Nike")
	assert.False(t, ok)
	assert.Empty(t, g.searches)
}

func TestFootprintShortCircuitsUnresolvedTerms(t *testing.T) {
	g := &fakeGraph{
		ids:    map[string]map[string]string{"brand": {"Nike": "nike"}},
		tastes: map[string][]string{"nike": {"Basketball", "Sneakers"}},
	}
	l := NewLookup(g, nil, 3, 0)

	fp := l.Footprint(context.Background(), []string{"Unknown Co"}, true)
	assert.True(t, fp.Empty())
	assert.Empty(t, fp.IDs)
	assert.Empty(t, g.affinities, "fetcher is never called for an unresolved name")

	fp = l.Footprint(context.Background(), []string{"Nike", "Unknown Co"}, true)
	assert.Equal(t, []string{"nike"}, fp.IDs)
	assert.Equal(t, []string{"Basketball", "Sneakers"}, fp.Tastes.Sorted())
	assert.Equal(t, []string{"nike"}, g.affinities)
}

func TestFootprintWithoutTastes(t *testing.T) {
	g := &fakeGraph{ids: map[string]map[string]string{"brand": {"Nike": "nike", "Jordan": "jordan"}}}

	fp := NewLookup(g, nil, 3, 0).Footprint(context.Background(), []string{"Nike", "Jordan"}, false)
	assert.ElementsMatch(t, []string{"nike", "jordan"}, fp.IDs)
	assert.Empty(t, g.affinities)
}

func TestFootprintBoundsConcurrency(t *testing.T) {
	g := &fakeGraph{searchErr: qloo.ErrNotFound, delay: 5 * time.Millisecond}
	terms := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel"}

	NewLookup(g, nil, 2, 0).Footprint(context.Background(), terms, true)

	assert.LessOrEqual(t, g.maxSeen.Load(), int32(2))
	assert.Len(t, g.searches, len(terms)*len(EntityTypes))
}

type fakePersona struct {
	seeds [][]string
}

func (p *fakePersona) PredictAffinities(_ context.Context, ids []string, take int) ([]string, error) {
	p.seeds = append(p.seeds, ids)
	return []string{"Running", "Hiking"}[:min(take, 2)], nil
}

func TestPredictGoesThroughLimiter(t *testing.T) {
	p := &fakePersona{}
	l := NewLookup(&fakeGraph{}, nil, 1, 0)

	names, err := l.Predict(context.Background(), p, []string{"nike"}, TasteCap)
	require.NoError(t, err)
	assert.Equal(t, []string{"Running", "Hiking"}, names)
	assert.Equal(t, [][]string{{"nike"}}, p.seeds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Predict(ctx, p, []string{"nike"}, TasteCap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.seeds, 1)
}

func TestDirect(t *testing.T) {
	g := &fakeGraph{
		ids:    map[string]map[string]string{"": {"Patagonia": "pata"}},
		tastes: map[string][]string{"pata": {"Climbing"}},
	}
	fp := NewLookup(g, nil, 3, 0).Direct(context.Background(), "Patagonia")
	assert.Equal(t, []string{"pata"}, fp.IDs)
	assert.Equal(t, []string{"Climbing"}, fp.Tastes.Sorted())

	fp = NewLookup(g, nil, 3, 0).Direct(context.Background(), "Nobody")
	assert.True(t, fp.Empty())
}

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, []string{"Nike", "Air Jordan", "LeBron James"},
		SearchTerms("Nike", []string{"Air Jordan", "nike", " ", "LeBron James", "air jordan"}))
}

func TestProxyExtractor(t *testing.T) {
	tests := []struct {
		name string
		llm  fakeLLM
		want []string
	}{
		{"object", fakeLLM{answer: `{"proxies": ["Air Jordan", "LeBron James", "Nike"]}`}, []string{"Air Jordan", "LeBron James"}},
		{"bare array", fakeLLM{answer: "```json\n[\"Air Max\", \"Air Max\"]\n```"}, []string{"Air Max"}},
		{"capped", fakeLLM{answer: `["a","b","c","d","e","f","g"]`}, []string{"a", "b", "c", "d", "e"}},
		{"garbage", fakeLLM{answer: "I cannot help"}, nil},
		{"llm error", fakeLLM{err: errors.New("quota")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewProxyExtractor(tt.llm).Extract(context.Background(), "Nike makes shoes.", "Nike")
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, NewProxyExtractor(fakeLLM{answer: `["x"]`}).Extract(context.Background(), "", "Nike"))
}

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	ctx := context.Background()

	_, ok := cache.EntityID(ctx, "resolve:nike")
	assert.False(t, ok)

	cache.SetEntityID(ctx, "resolve:nike", "nike")
	cache.SetTastes(ctx, "nike", []string{"Basketball"})

	id, ok := cache.EntityID(ctx, "resolve:nike")
	require.True(t, ok)
	assert.Equal(t, "nike", id)

	tastes, ok := cache.Tastes(ctx, "nike")
	require.True(t, ok)
	assert.Equal(t, []string{"Basketball"}, tastes)

	mr.FastForward(2 * time.Hour)
	_, ok = cache.Tastes(ctx, "nike")
	assert.False(t, ok)
}

func TestLookupUsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	g := &fakeGraph{
		ids:    map[string]map[string]string{"brand": {"Nike": "nike"}},
		tastes: map[string][]string{"nike": {"Basketball"}},
	}
	l := NewLookup(g, cache, 3, 0)

	first := l.Footprint(context.Background(), []string{"Nike"}, true)
	second := l.Footprint(context.Background(), []string{"Nike"}, true)

	assert.Equal(t, first.Tastes.Sorted(), second.Tastes.Sorted())
	assert.Len(t, g.searches, 1)
	assert.Len(t, g.affinities, 1)
}

func TestFootprintsKeepsGroupsApart(t *testing.T) {
	g := &fakeGraph{
		ids:    map[string]map[string]string{"brand": {"Nike": "nike", "Patagonia": "pata"}},
		tastes: map[string][]string{"nike": {"Basketball"}, "pata": {"Climbing"}},
	}

	fps := NewLookup(g, nil, 3, 0).Footprints(context.Background(),
		Request{Terms: []string{"Nike"}, WithTastes: false},
		Request{Terms: []string{"Patagonia"}, WithTastes: true},
	)
	require.Len(t, fps, 2)
	assert.Equal(t, []string{"nike"}, fps[0].IDs)
	assert.True(t, fps[0].Empty())
	assert.Equal(t, []string{"Climbing"}, fps[1].Tastes.Sorted())
	assert.Equal(t, []string{"pata"}, g.affinities)
}
