// Package app wires the research pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	reportHandler "go-alloy/internal/agents/report/handler"
	researcherHandler "go-alloy/internal/agents/researcher/handler"
	synthesizerHandler "go-alloy/internal/agents/synthesizer/handler"
	"go-alloy/internal/clients/qloo"
	"go-alloy/internal/clients/tavily"
	"go-alloy/internal/store"
	"go-alloy/internal/taste"
	"go-alloy/internal/tools"
	"go-alloy/pkg/config"
	"go-alloy/pkg/llm"
	"go-alloy/pkg/models"
)

// App holds the long-lived dependencies shared by every run.
type App struct {
	Config    *config.Config
	LLM       llm.Generator
	Catalogue *tools.Catalogue
	Store     *store.Store
	Reports   *reportHandler.Handler

	synth *synthesizerHandler.Handler
	redis *redis.Client
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	model, err := llm.NewModel(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	generator := llm.New(model, cfg.LLM.Timeout)

	a := &App{Config: cfg, LLM: generator}

	var cache taste.Cache = taste.NoCache{}
	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("taste cache unreachable, continuing without it")
			_ = a.redis.Close()
			a.redis = nil
		} else {
			cache = taste.NewRedisCache(a.redis, cfg.Redis.TTL)
		}
	}

	search := tavily.New(cfg.Search.TavilyKey, cfg.Search.Timeout,
		tavily.WithBaseURL(cfg.Search.BaseURL),
		tavily.WithDepth(cfg.Search.Depth),
		tavily.WithMaxResults(cfg.Search.MaxResults),
	)
	graph := qloo.New(cfg.Qloo.APIKey, cfg.Qloo.BaseURL, cfg.Qloo.Timeout)

	a.Catalogue = tools.Default(tools.Deps{
		Search:  search,
		LLM:     generator,
		Lookup:  taste.NewLookup(graph, cache, cfg.Qloo.MaxInFlight, cfg.Qloo.Pacing),
		Persona: graph,
		Proxies: taste.NewProxyExtractor(generator),
	})

	a.Store, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.URL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	a.synth = synthesizerHandler.New(generator)
	a.Reports = reportHandler.New(func(task models.Task) reportHandler.Researcher {
		return a.Researcher(task)
	}, a.synth, a.Store)
	return a, nil
}

// Researcher builds a fresh research agent for one task.
func (a *App) Researcher(task models.Task) *researcherHandler.Handler {
	return researcherHandler.New(task, a.LLM, a.Catalogue,
		researcherHandler.WithMaxTurns(a.Config.Agent.MaxTurns),
		researcherHandler.WithScratchpadTail(a.Config.Agent.ScratchpadTail),
		researcherHandler.WithDeadline(a.Config.Agent.RunTimeout),
	)
}

func (a *App) Synthesizer() *synthesizerHandler.Handler {
	return a.synth
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing store")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
}
