package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	langChainPrompts "github.com/tmc/langchaingo/prompts"

	"go-alloy/internal/analysis"
	"go-alloy/pkg/data"
	"go-alloy/pkg/models"
	"go-alloy/pkg/prompts"
)

func (k *kit) culturalAnalysis(ctx context.Context, p Params) (Output, error) {
	acquirer, target := p.String("acquirer_name"), p.String("target_name")
	acq, tgt := k.survey(ctx, acquirer, target, true, true)

	method := models.MethodProxyTasteGraph
	if acq.Empty() || tgt.Empty() {
		method = models.MethodDirectBrandGraph
		if acq.Empty() {
			acq.Footprint = k.Lookup.Direct(ctx, acquirer)
		}
		if tgt.Empty() {
			tgt.Footprint = k.Lookup.Direct(ctx, target)
		}
	}

	var res models.CulturalAnalysis
	if acq.Empty() && tgt.Empty() {
		log.Info().Str("acquirer", acquirer).Str("target", target).Msg("no taste data for either side, estimating overlap")
		res = k.estimateOverlap(ctx, acq, tgt)
	} else {
		cmp := analysis.Compare(acq.Tastes, tgt.Tastes)
		res = models.CulturalAnalysis{
			OverlapScore:   cmp.Score,
			Method:         method,
			Shared:         sortedOrEmpty(cmp.Shared),
			AcquirerUnique: sortedOrEmpty(cmp.AcquirerUnique),
			TargetUnique:   sortedOrEmpty(cmp.TargetUnique),
		}
	}
	res.AcquirerTerms = nonNil(acq.Terms)
	res.TargetTerms = nonNil(tgt.Terms)

	clashes := analysis.Clashes(res.AcquirerUnique, res.TargetUnique)
	growths := analysis.Growths(res.Shared)

	return Output{
		Context:  describeCultural(acquirer, target, res),
		Sources:  append(append([]models.Source{}, acq.Sources...), tgt.Sources...),
		Analysis: &res,
		Clashes:  clashes,
		Growths:  growths,
	}, nil
}

type overlapEstimate struct {
	OverlapScore   float64  `json:"overlap_score"`
	SharedThemes   []string `json:"shared_themes"`
	AcquirerThemes []string `json:"acquirer_themes"`
	TargetThemes   []string `json:"target_themes"`
	Rationale      string   `json:"rationale"`
}

// estimateOverlap asks the LLM for an overlap score from the two profiles.
// An unusable answer still yields a zero-score record tagged as an estimate.
func (k *kit) estimateOverlap(ctx context.Context, acq, tgt brandView) models.CulturalAnalysis {
	res := models.CulturalAnalysis{
		Method:         models.MethodLLMEstimate,
		Shared:         []string{},
		AcquirerUnique: []string{},
		TargetUnique:   []string{},
	}
	var est overlapEstimate
	if err := k.estimate(ctx, prompts.CulturalEstimatePrompt, acq, tgt, &est); err != nil {
		log.Warn().Err(err).Msg("overlap estimate failed")
		res.Rationale = fmt.Sprintf("estimate unavailable: %v", err)
		return res
	}
	res.OverlapScore = clampScore(est.OverlapScore)
	res.Shared = cleanThemes(est.SharedThemes)
	res.AcquirerUnique = cleanThemes(est.AcquirerThemes)
	res.TargetUnique = cleanThemes(est.TargetThemes)
	res.Rationale = strings.TrimSpace(est.Rationale)
	return res
}

// estimate renders an estimate prompt for both sides and decodes the JSON answer into v.
func (k *kit) estimate(ctx context.Context, tpl langChainPrompts.PromptTemplate, acq, tgt brandView, v any) error {
	prompt, err := prompts.Render(tpl, map[string]any{
		"Acquirer":        acq.Name,
		"Target":          tgt.Name,
		"AcquirerProfile": orUnknown(acq.Profile),
		"TargetProfile":   orUnknown(tgt.Profile),
	})
	if err != nil {
		return err
	}
	ans, err := k.LLM.GenerateJSON(ctx, prompt)
	if err != nil {
		return err
	}
	obj, err := data.SanitizeAnswer(ans)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode estimate: %w", err)
	}
	return nil
}

func describeCultural(acquirer, target string, a models.CulturalAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cultural analysis of %s and %s (method: %s). Affinity overlap score: %.2f/100.", acquirer, target, a.Method, a.OverlapScore)
	if len(a.Shared) > 0 {
		fmt.Fprintf(&b, "\nShared tastes: %s.", strings.Join(headN(a.Shared, 10), ", "))
	}
	if len(a.AcquirerUnique) > 0 {
		fmt.Fprintf(&b, "\nOnly %s's audience: %s.", acquirer, strings.Join(headN(a.AcquirerUnique, 10), ", "))
	}
	if len(a.TargetUnique) > 0 {
		fmt.Fprintf(&b, "\nOnly %s's audience: %s.", target, strings.Join(headN(a.TargetUnique, 10), ", "))
	}
	if a.Rationale != "" {
		fmt.Fprintf(&b, "\nRationale: %s", a.Rationale)
	}
	return b.String()
}

func clampScore(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Round(math.Max(0, math.Min(100, f))*100) / 100
}

func cleanThemes(in []string) []string {
	s := analysis.NewSet()
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			s.Add(t)
		}
	}
	return s.Sorted()
}

func orUnknown(profile string) string {
	if strings.TrimSpace(profile) == "" {
		return "(no profile available)"
	}
	return profile
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func headN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
