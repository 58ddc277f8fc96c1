package taste

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go-alloy/internal/clients/qloo"
	"go-alloy/pkg/logger"
)

// Variants returns the exact, title-cased and capitalized forms of name, deduplicated in order.
func Variants(name string) []string {
	exact := strings.TrimSpace(name)
	if exact == "" {
		return nil
	}
	title := cases.Title(language.Und).String(exact)
	capitalized := capitalize(exact)

	out := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, v := range []string{exact, title, capitalized} {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

type Resolver struct {
	graph Graph
	cache Cache
	types []string
}

func NewResolver(graph Graph, cache Cache) *Resolver {
	if cache == nil {
		cache = NoCache{}
	}
	return &Resolver{graph: graph, cache: cache, types: EntityTypes}
}

// Resolve probes every entity type in priority order with every variant of
// name and returns the first id found. Failed probes are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, bool) {
	key := "resolve:" + strings.ToLower(strings.TrimSpace(name))
	if id, ok := r.cache.EntityID(ctx, key); ok {
		return id, true
	}

	variants := Variants(name)
	for _, entityType := range r.types {
		for _, v := range variants {
			if ctx.Err() != nil {
				return "", false
			}
			id, ok := r.probe(ctx, v, entityType)
			if ok {
				r.cache.SetEntityID(ctx, key, id)
				return id, true
			}
		}
	}
	log.Debug().Str(logger.TermField, name).Msg("no taste graph entity for any variant")
	return "", false
}

// ResolveDirect runs a single untyped search on the literal name.
func (r *Resolver) ResolveDirect(ctx context.Context, name string) (string, bool) {
	literal := strings.TrimSpace(name)
	if literal == "" {
		return "", false
	}
	key := "direct:" + strings.ToLower(literal)
	if id, ok := r.cache.EntityID(ctx, key); ok {
		return id, true
	}
	id, ok := r.probe(ctx, literal, "")
	if ok {
		r.cache.SetEntityID(ctx, key, id)
	}
	return id, ok
}

func (r *Resolver) probe(ctx context.Context, query, entityType string) (string, bool) {
	id, err := r.graph.SearchEntity(ctx, query, entityType)
	switch {
	case err == nil && id != "":
		log.Debug().Str(logger.TermField, query).Str(logger.EntityTypeField, entityType).Str("id", id).Msg("resolved taste graph entity")
		return id, true
	case err == nil, errors.Is(err, qloo.ErrNotFound):
		return "", false
	case errors.Is(err, qloo.ErrRateLimited):
		log.Warn().Str(logger.TermField, query).Str(logger.EntityTypeField, entityType).Msg("taste graph rate limited, moving on")
	default:
		log.Warn().Err(err).Str(logger.TermField, query).Str(logger.EntityTypeField, entityType).Msg("taste graph search failed, moving on")
	}
	return "", false
}

type Fetcher struct {
	graph Graph
	cache Cache
}

func NewFetcher(graph Graph, cache Cache) *Fetcher {
	if cache == nil {
		cache = NoCache{}
	}
	return &Fetcher{graph: graph, cache: cache}
}

// Fetch returns up to TasteCap affinity labels for id. Any failure yields an empty slice.
func (f *Fetcher) Fetch(ctx context.Context, id string) []string {
	if tastes, ok := f.cache.Tastes(ctx, id); ok {
		return tastes
	}
	tastes, err := f.graph.Affinities(ctx, id, TasteCap)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("taste fetch failed")
		return nil
	}
	if len(tastes) > TasteCap {
		tastes = tastes[:TasteCap]
	}
	if len(tastes) > 0 {
		f.cache.SetTastes(ctx, id, tastes)
	}
	return tastes
}
