package analysis

import (
	"fmt"
	"math"

	"go-alloy/pkg/models"
)

const (
	// MaxClashesPerSide caps culture clashes synthesized from each side's unique tastes.
	MaxClashesPerSide = 5
	MaxGrowths        = 5
	GrowthImpactScore = 8

	OverlapWeight   = 0.6
	ExpansionWeight = 0.4
)

// OverlapScore is the Jaccard similarity of a and b scaled to 0-100.
func OverlapScore(a, b Set) float64 {
	union := len(a.Union(b))
	if union == 0 {
		return 0
	}
	return round2(float64(len(a.Intersect(b))) / float64(union) * 100)
}

// ExpansionScore is the share of actual already covered by predicted, scaled to 0-100.
// It is deliberately asymmetric.
func ExpansionScore(predicted, actual Set) float64 {
	if len(actual) == 0 {
		return 0
	}
	return round2(float64(len(predicted.Intersect(actual))) / float64(len(actual)) * 100)
}

// CompatibilityScore blends the symmetric overlap and asymmetric expansion scores.
func CompatibilityScore(overlap, expansion float64) float64 {
	s := OverlapWeight*overlap + ExpansionWeight*expansion
	return round2(math.Max(0, math.Min(100, s)))
}

type Comparison struct {
	Shared         Set
	AcquirerUnique Set
	TargetUnique   Set
	Score          float64
}

func Compare(acquirer, target Set) Comparison {
	return Comparison{
		Shared:         acquirer.Intersect(target),
		AcquirerUnique: acquirer.Minus(target),
		TargetUnique:   target.Minus(acquirer),
		Score:          OverlapScore(acquirer, target),
	}
}

// Clashes turns each side's unique tastes into culture clash records.
func Clashes(acquirerUnique, targetUnique []string) []models.CultureClash {
	out := make([]models.CultureClash, 0, 2*MaxClashesPerSide)
	for _, topic := range head(acquirerUnique, MaxClashesPerSide) {
		out = append(out, models.CultureClash{
			Topic:       topic,
			Description: "Audience shows strong affinity for this, a taste not shared by the Target's audience.",
			Severity:    models.SeverityMedium,
		})
	}
	for _, topic := range head(targetUnique, MaxClashesPerSide) {
		out = append(out, models.CultureClash{
			Topic:       topic,
			Description: "Audience shows strong affinity for this, a taste not shared by the Acquirer's audience.",
			Severity:    models.SeverityHigh,
		})
	}
	return out
}

// Growths turns shared tastes into growth opportunity records.
func Growths(shared []string) []models.UntappedGrowth {
	out := make([]models.UntappedGrowth, 0, MaxGrowths)
	for _, s := range head(shared, MaxGrowths) {
		out = append(out, models.UntappedGrowth{
			Description: fmt.Sprintf("Both audiences show a strong affinity for '%s'. This shared passion point could be a key pillar "+
				"for joint marketing campaigns and product integrations post-acquisition.", s),
			PotentialImpactScore: GrowthImpactScore,
		})
	}
	return out
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
