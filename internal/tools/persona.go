package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"go-alloy/internal/analysis"
	"go-alloy/internal/taste"
	"go-alloy/pkg/models"
	"go-alloy/pkg/prompts"
)

var errNoPersonaGraph = errors.New("persona graph not configured")

func (k *kit) personaExpansion(ctx context.Context, p Params) (Output, error) {
	acquirer, target := p.String("acquirer_name"), p.String("target_name")
	acq, tgt := k.survey(ctx, acquirer, target, false, true)

	res, err := k.predictPersona(ctx, acq, tgt)
	if err != nil {
		log.Info().Err(err).Str("acquirer", acquirer).Str("target", target).Msg("persona graph unusable, estimating expansion")
		res = k.estimateExpansion(ctx, acq, tgt)
	}

	return Output{
		Context: describePersona(acquirer, target, res),
		Sources: append(append([]models.Source{}, acq.Sources...), tgt.Sources...),
		Persona: &res,
	}, nil
}

// predictPersona extrapolates the acquirer audience's persona from its
// resolved entities and measures how much of the target's actual tastes it covers.
func (k *kit) predictPersona(ctx context.Context, acq, tgt brandView) (models.PersonaExpansion, error) {
	switch {
	case k.Persona == nil:
		return models.PersonaExpansion{}, errNoPersonaGraph
	case len(acq.IDs) == 0:
		return models.PersonaExpansion{}, errors.New("no acquirer entities resolved")
	case tgt.Empty():
		return models.PersonaExpansion{}, errors.New("no target tastes found")
	}

	names, err := k.Lookup.Predict(ctx, k.Persona, acq.IDs, taste.TasteCap)
	if err != nil {
		return models.PersonaExpansion{}, fmt.Errorf("predict affinities: %w", err)
	}
	predicted := analysis.NewSet(names...)
	if len(predicted) == 0 {
		return models.PersonaExpansion{}, errors.New("empty predicted persona")
	}

	return models.PersonaExpansion{
		ExpansionScore: analysis.ExpansionScore(predicted, tgt.Tastes),
		Method:         models.MethodPersonaTasteGraph,
		LatentSynergy:  predicted.Intersect(tgt.Tastes).Sorted(),
		PredictedCount: len(predicted),
		ActualCount:    len(tgt.Tastes),
	}, nil
}

type expansionEstimate struct {
	ExpansionScore float64  `json:"expansion_score"`
	LatentSynergy  []string `json:"latent_synergy"`
	Rationale      string   `json:"rationale"`
}

func (k *kit) estimateExpansion(ctx context.Context, acq, tgt brandView) models.PersonaExpansion {
	res := models.PersonaExpansion{Method: models.MethodLLMEstimate, LatentSynergy: []string{}}
	var est expansionEstimate
	if err := k.estimate(ctx, prompts.PersonaEstimatePrompt, acq, tgt, &est); err != nil {
		log.Warn().Err(err).Msg("expansion estimate failed")
		res.Rationale = fmt.Sprintf("estimate unavailable: %v", err)
		return res
	}
	res.ExpansionScore = clampScore(est.ExpansionScore)
	res.LatentSynergy = cleanThemes(est.LatentSynergy)
	res.Rationale = strings.TrimSpace(est.Rationale)
	return res
}

func describePersona(acquirer, target string, p models.PersonaExpansion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Persona expansion of %s's audience into %s (method: %s). Expansion score: %.2f/100.", acquirer, target, p.Method, p.ExpansionScore)
	if p.Method == models.MethodPersonaTasteGraph {
		fmt.Fprintf(&b, "\n%d of %s's %d audience tastes are already latent in %s's predicted persona of %d tastes.",
			len(p.LatentSynergy), target, p.ActualCount, acquirer, p.PredictedCount)
	}
	if len(p.LatentSynergy) > 0 {
		fmt.Fprintf(&b, "\nLatent synergy: %s.", strings.Join(headN(p.LatentSynergy, 10), ", "))
	}
	if p.Rationale != "" {
		fmt.Fprintf(&b, "\nRationale: %s", p.Rationale)
	}
	return b.String()
}
