package models

// Task is the immutable input of one research run.
type Task struct {
	Acquirer    string `json:"acquirer"`
	Target      string `json:"target"`
	UserContext string `json:"user_context,omitempty"`
}

type Side string

const (
	NoSide       Side = ""
	AcquirerSide Side = "acquirer"
	TargetSide   Side = "target"
)

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type SearchResult struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Slot names a field of GatheredData that a tool owns.
type Slot string

const (
	AcquirerProfileSlot   Slot = "acquirer_profile"
	TargetProfileSlot     Slot = "target_profile"
	AcquirerCultureSlot   Slot = "acquirer_culture_profile"
	TargetCultureSlot     Slot = "target_culture_profile"
	AcquirerFinancialSlot Slot = "acquirer_financial_profile"
	TargetFinancialSlot   Slot = "target_financial_profile"
	CulturalAnalysisSlot  Slot = "cultural_analysis"
	PersonaExpansionSlot  Slot = "persona_expansion"
	CultureClashesSlot    Slot = "culture_clashes"
	UntappedGrowthsSlot   Slot = "untapped_growths"
)

type Severity string

const (
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type CultureClash struct {
	Topic       string   `json:"topic"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

type UntappedGrowth struct {
	Description          string `json:"description"`
	PotentialImpactScore int    `json:"potential_impact_score"`
}

// Analysis methods distinguish graph-grounded scores from LLM estimates.
const (
	MethodProxyTasteGraph   = "proxy_taste_graph"
	MethodDirectBrandGraph  = "direct_brand_taste_graph"
	MethodPersonaTasteGraph = "persona_taste_graph"
	MethodLLMEstimate       = "llm_estimate_fallback"
)

type CulturalAnalysis struct {
	OverlapScore   float64  `json:"affinity_overlap_score"`
	Method         string   `json:"analysis_method"`
	Shared         []string `json:"shared"`
	AcquirerUnique []string `json:"acquirer_unique"`
	TargetUnique   []string `json:"target_unique"`
	AcquirerTerms  []string `json:"acquirer_search_terms"`
	TargetTerms    []string `json:"target_search_terms"`
	Rationale      string   `json:"rationale,omitempty"`
}

type PersonaExpansion struct {
	ExpansionScore float64  `json:"expansion_score"`
	Method         string   `json:"analysis_method"`
	LatentSynergy  []string `json:"latent_synergy"`
	PredictedCount int      `json:"predicted_count"`
	ActualCount    int      `json:"actual_count"`
	Rationale      string   `json:"rationale,omitempty"`
}

// GatheredData is the accumulator of one run. Each slot holds the latest
// write; Filled lists the slots written so far in first-write order.
type GatheredData struct {
	AcquirerProfile   string           `json:"acquirer_profile"`
	TargetProfile     string           `json:"target_profile"`
	AcquirerCulture   string           `json:"acquirer_culture_profile"`
	TargetCulture     string           `json:"target_culture_profile"`
	AcquirerFinancial string           `json:"acquirer_financial_profile"`
	TargetFinancial   string           `json:"target_financial_profile"`
	CulturalAnalysis  CulturalAnalysis `json:"cultural_analysis"`
	PersonaExpansion  PersonaExpansion `json:"persona_expansion"`
	CultureClashes    []CultureClash   `json:"culture_clashes"`
	UntappedGrowths   []UntappedGrowth `json:"untapped_growths"`
	Filled            []Slot           `json:"filled_slots"`
}

func NewGatheredData() GatheredData {
	return GatheredData{
		CulturalAnalysis: CulturalAnalysis{Shared: []string{}, AcquirerUnique: []string{}, TargetUnique: []string{}, AcquirerTerms: []string{}, TargetTerms: []string{}},
		PersonaExpansion: PersonaExpansion{LatentSynergy: []string{}},
		CultureClashes:   []CultureClash{},
		UntappedGrowths:  []UntappedGrowth{},
		Filled:           []Slot{},
	}
}

func (g *GatheredData) Has(slot Slot) bool {
	for _, s := range g.Filled {
		if s == slot {
			return true
		}
	}
	return false
}

func (g *GatheredData) mark(slot Slot) {
	if !g.Has(slot) {
		g.Filled = append(g.Filled, slot)
	}
}

// SetText writes one of the free-text profile slots. Unknown slots are ignored.
func (g *GatheredData) SetText(slot Slot, text string) {
	switch slot {
	case AcquirerProfileSlot:
		g.AcquirerProfile = text
	case TargetProfileSlot:
		g.TargetProfile = text
	case AcquirerCultureSlot:
		g.AcquirerCulture = text
	case TargetCultureSlot:
		g.TargetCulture = text
	case AcquirerFinancialSlot:
		g.AcquirerFinancial = text
	case TargetFinancialSlot:
		g.TargetFinancial = text
	default:
		return
	}
	g.mark(slot)
}

func (g *GatheredData) SetCulturalAnalysis(a CulturalAnalysis) {
	g.CulturalAnalysis = a
	g.mark(CulturalAnalysisSlot)
}

func (g *GatheredData) SetPersonaExpansion(p PersonaExpansion) {
	g.PersonaExpansion = p
	g.mark(PersonaExpansionSlot)
}

func (g *GatheredData) SetCultureClashes(c []CultureClash) {
	if c == nil {
		c = []CultureClash{}
	}
	g.CultureClashes = c
	g.mark(CultureClashesSlot)
}

func (g *GatheredData) SetUntappedGrowths(u []UntappedGrowth) {
	if u == nil {
		u = []UntappedGrowth{}
	}
	g.UntappedGrowths = u
	g.mark(UntappedGrowthsSlot)
}

// SourceRegistry groups citations by category. Duplicates are kept.
type SourceRegistry map[string][]Source

const (
	AcquirerSources          = "acquirer_sources"
	TargetSources            = "target_sources"
	AcquirerCultureSources   = "acquirer_culture_sources"
	TargetCultureSources     = "target_culture_sources"
	AcquirerFinancialSources = "acquirer_financial_sources"
	TargetFinancialSources   = "target_financial_sources"
	CulturalAnalysisSources  = "cultural_analysis_sources"
	PersonaExpansionSources  = "persona_expansion_sources"
)

func (r SourceRegistry) Add(category string, sources ...Source) {
	if len(sources) == 0 {
		return
	}
	r[category] = append(r[category], sources...)
}

type ToolInvocation struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// ResearchResult is the terminal payload of a research run.
type ResearchResult struct {
	Task           Task           `json:"task"`
	Data           GatheredData   `json:"gathered_data"`
	Sources        SourceRegistry `json:"sources"`
	CompletedSteps []string       `json:"completed_steps"`
	Turns          int            `json:"turns"`
	TimedOut       bool           `json:"timed_out"`
	PlannerNotes   string         `json:"planner_notes,omitempty"`
}
