package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"go-alloy/internal/analysis"
	"go-alloy/pkg/data"
	"go-alloy/pkg/llm"
	"go-alloy/pkg/logger"
	"go-alloy/pkg/models"
	"go-alloy/pkg/prompts"
)

type Handler struct {
	llm llm.Generator
}

func New(generator llm.Generator) *Handler {
	return &Handler{llm: generator}
}

type narrative struct {
	StrategicSummary   string `json:"strategic_summary"`
	AcquirerArchetype  string `json:"acquirer_archetype"`
	TargetArchetype    string `json:"target_archetype"`
	CorporateEthos     string `json:"corporate_ethos"`
	FinancialSynthesis string `json:"financial_synthesis"`
}

// Synthesize turns a finished research run into the report analysis with one
// LLM call. Scores and clash/growth lists always come from the gathered data,
// so they survive a failed call.
func (h *Handler) Synthesize(ctx context.Context, result models.ResearchResult) models.Analysis {
	d := result.Data
	a := models.Analysis{
		AffinityOverlapScore:       d.CulturalAnalysis.OverlapScore,
		ExpansionScore:             d.PersonaExpansion.ExpansionScore,
		CulturalCompatibilityScore: analysis.CompatibilityScore(d.CulturalAnalysis.OverlapScore, d.PersonaExpansion.ExpansionScore),
		CultureClashes:             nonNilClashes(d.CultureClashes),
		UntappedGrowths:            nonNilGrowths(d.UntappedGrowths),
	}

	n, err := h.narrate(ctx, result)
	if err != nil {
		log.Error().Err(err).Str(logger.AgentNameField, "synthesizer").Msg("synthesis failed, using placeholder analysis")
		placeholder := fmt.Sprintf("%s: %v", models.AnalysisUnavailable, err)
		a.StrategicSummary = placeholder
		a.BrandArchetypes = models.BrandArchetypes{Acquirer: placeholder, Target: placeholder}
		a.CorporateEthos = placeholder
		a.FinancialSynthesis = placeholder
		a.Failed = true
		return a
	}

	a.StrategicSummary = orMissing(n.StrategicSummary)
	a.BrandArchetypes = models.BrandArchetypes{Acquirer: orMissing(n.AcquirerArchetype), Target: orMissing(n.TargetArchetype)}
	a.CorporateEthos = orMissing(n.CorporateEthos)
	a.FinancialSynthesis = orMissing(n.FinancialSynthesis)
	return a
}

func (h *Handler) narrate(ctx context.Context, result models.ResearchResult) (narrative, error) {
	gathered, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return narrative{}, fmt.Errorf("marshal gathered data: %w", err)
	}
	prompt, err := prompts.Render(prompts.SynthesisPrompt, map[string]any{
		"Acquirer":    result.Task.Acquirer,
		"Target":      result.Task.Target,
		"UserContext": result.Task.UserContext,
		"Data":        string(gathered),
	})
	if err != nil {
		return narrative{}, err
	}

	ans, err := h.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		return narrative{}, err
	}
	match, err := data.SanitizeAnswer(ans)
	if err != nil {
		return narrative{}, err
	}
	var n narrative
	if err := json.Unmarshal([]byte(match), &n); err != nil {
		return narrative{}, fmt.Errorf("unmarshal: %w", err)
	}
	if strings.TrimSpace(n.StrategicSummary) == "" {
		return narrative{}, fmt.Errorf("response has no strategic summary")
	}
	return n, nil
}

func orMissing(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "not provided"
	}
	return s
}

func nonNilClashes(c []models.CultureClash) []models.CultureClash {
	if c == nil {
		return []models.CultureClash{}
	}
	return c
}

func nonNilGrowths(g []models.UntappedGrowth) []models.UntappedGrowth {
	if g == nil {
		return []models.UntappedGrowth{}
	}
	return g
}
