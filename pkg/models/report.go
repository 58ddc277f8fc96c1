package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportCompleted ReportStatus = "COMPLETED"
	ReportFailed    ReportStatus = "FAILED"
)

// AnalysisUnavailable prefixes every prose field of a failed synthesis.
const AnalysisUnavailable = "analysis unavailable"

type BrandArchetypes struct {
	Acquirer string `json:"acquirer_archetype"`
	Target   string `json:"target_archetype"`
}

type Analysis struct {
	StrategicSummary           string           `json:"strategic_summary"`
	BrandArchetypes            BrandArchetypes  `json:"brand_archetype_summary"`
	CorporateEthos             string           `json:"corporate_ethos"`
	FinancialSynthesis         string           `json:"financial_synthesis"`
	CulturalCompatibilityScore float64          `json:"cultural_compatibility_score"`
	AffinityOverlapScore       float64          `json:"affinity_overlap_score"`
	ExpansionScore             float64          `json:"expansion_score"`
	CultureClashes             []CultureClash   `json:"culture_clashes"`
	UntappedGrowths            []UntappedGrowth `json:"untapped_growths"`
	Failed                     bool             `json:"failed"`
}

type Report struct {
	ID        uuid.UUID      `json:"id"`
	Title     string         `json:"title"`
	Task      Task           `json:"task"`
	Status    ReportStatus   `json:"status"`
	Research  ResearchResult `json:"research"`
	Analysis  Analysis       `json:"analysis"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Error struct {
	ErrMessage string     `json:"error,omitempty"`
	Time       *time.Time `json:"time,omitempty"`
}

// Status is the live view of an async report run.
type Status struct {
	ReportID uuid.UUID       `json:"id"`
	State    State           `json:"state"`
	Events   []ProgressEvent `json:"events"`
	Report   *Report         `json:"report,omitempty"`
	Errs     *Error          `json:"error,omitempty"`
}
