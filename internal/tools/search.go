package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"go-alloy/internal/analysis"
	"go-alloy/internal/clients/tavily"
	"go-alloy/internal/taste"
	"go-alloy/pkg/llm"
	"go-alloy/pkg/logger"
	"go-alloy/pkg/models"
	"go-alloy/pkg/prompts"
)

// maxRawDigest bounds raw search text used when summarization fails.
const maxRawDigest = 2000

const (
	profileQuery   = "Corporate profile, brand identity, key products, and target audience for '%s'"
	cultureQuery   = "Corporate culture, company values, leadership style, employee experience and workplace reputation of '%s'"
	financialQuery = "Financial performance, revenue, market position, competitors and recent business news of '%s'"
)

type Searcher interface {
	Search(ctx context.Context, query string) (models.SearchResult, error)
}

type Deps struct {
	Search  Searcher
	LLM     llm.Generator
	Lookup  *taste.Lookup
	Persona taste.PersonaGraph
	Proxies *taste.ProxyExtractor
}

type kit struct {
	Deps
}

// Default builds the full research catalogue.
func Default(d Deps) *Catalogue {
	k := &kit{Deps: d}
	return NewCatalogue(
		Tool{
			Name:        WebSearch,
			Description: "broad research on a company's profile, history, products, target audience or recent news; include the exact company name in the query",
			Required:    []string{"query"},
			Run:         k.webSearch,
		},
		Tool{
			Name:        CorporateCulture,
			Description: "research the internal corporate culture, values and leadership style of one company",
			Required:    []string{"brand_name"},
			Run:         k.corporateCulture,
		},
		Tool{
			Name:        FinancialAndMarket,
			Description: "research the financial performance and market position of one company",
			Required:    []string{"brand_name"},
			Run:         k.financialAndMarket,
		},
		Tool{
			Name:        CulturalAnalysis,
			Description: "compare the audience tastes of both companies using the cultural taste graph; yields the affinity overlap score, culture clashes and growth opportunities",
			Required:    []string{"acquirer_name", "target_name"},
			Run:         k.culturalAnalysis,
		},
		Tool{
			Name:        PersonaExpansion,
			Description: "predict how receptive the acquirer's audience is to the target's cultural footprint; yields the expansion score",
			Required:    []string{"acquirer_name", "target_name"},
			Run:         k.personaExpansion,
		},
	)
}

func (k *kit) webSearch(ctx context.Context, p Params) (Output, error) {
	query := p.String("query")
	return k.digest(ctx, query, query), nil
}

func (k *kit) corporateCulture(ctx context.Context, p Params) (Output, error) {
	brand := p.String("brand_name")
	return k.digest(ctx, fmt.Sprintf(cultureQuery, brand), brand), nil
}

func (k *kit) financialAndMarket(ctx context.Context, p Params) (Output, error) {
	brand := p.String("brand_name")
	return k.digest(ctx, fmt.Sprintf(financialQuery, brand), brand), nil
}

// digest searches and compresses the raw results into a query-relevant summary.
func (k *kit) digest(ctx context.Context, query, subject string) Output {
	res, err := k.Search.Search(ctx, query)
	if err != nil {
		return Output{Context: searchFailure(query, err), Subject: subject, Sources: []models.Source{}}
	}
	if res.Text == "" {
		return Output{Context: fmt.Sprintf("The search for '%s' returned no results.", query), Subject: subject, Sources: res.Sources}
	}

	summary, err := k.summarize(ctx, query, res.Text)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("summarization failed, using raw search text")
		summary = truncate(res.Text, maxRawDigest)
	}
	return Output{Context: summary, Sources: res.Sources, Subject: subject}
}

func (k *kit) summarize(ctx context.Context, query, text string) (string, error) {
	prompt, err := prompts.Render(prompts.SummarizePrompt, map[string]any{"Query": query, "Text": text})
	if err != nil {
		return "", err
	}
	return k.LLM.Generate(ctx, prompt)
}

func searchFailure(query string, err error) string {
	if errors.Is(err, tavily.ErrMissingAPIKey) {
		return "Search was not performed because the API key is missing."
	}
	log.Warn().Err(err).Str("query", query).Msg("search failed")
	return fmt.Sprintf("An error occurred during the search for '%s': %v", query, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// brandView is what one side of a comparison looks like after a survey.
type brandView struct {
	Name    string
	Profile string
	Sources []models.Source
	Terms   []string
	taste.Footprint
}

// survey runs both profile searches and proxy extractions in parallel, then
// resolves both sides' search terms under one shared limiter.
func (k *kit) survey(ctx context.Context, acquirer, target string, acquirerTastes, targetTastes bool) (brandView, brandView) {
	views := [2]brandView{{Name: acquirer}, {Name: target}}
	var eg errgroup.Group
	for i := range views {
		eg.Go(func() error {
			v := &views[i]
			res, err := k.Search.Search(ctx, fmt.Sprintf(profileQuery, v.Name))
			if err != nil {
				log.Warn().Err(err).Str(logger.TermField, v.Name).Msg("profile search failed")
			} else {
				v.Profile = res.Text
				v.Sources = res.Sources
			}
			v.Terms = taste.SearchTerms(v.Name, k.Proxies.Extract(ctx, v.Profile, v.Name))
			return nil
		})
	}
	// legs never fail; a missing profile just narrows the search terms
	_ = eg.Wait()

	fps := k.Lookup.Footprints(ctx,
		taste.Request{Terms: views[0].Terms, WithTastes: acquirerTastes},
		taste.Request{Terms: views[1].Terms, WithTastes: targetTastes},
	)
	views[0].Footprint, views[1].Footprint = fps[0], fps[1]
	return views[0], views[1]
}

func sortedOrEmpty(s analysis.Set) []string {
	if s == nil {
		return []string{}
	}
	return s.Sorted()
}
