package domain

import "time"

// ImpactDimension is a categorical tag describing what part of the ecosystem
// a signal affects.
type ImpactDimension string

// Impact dimension taxonomy.
const (
	DimensionTooling      ImpactDimension = "tooling"
	DimensionArchitecture ImpactDimension = "architecture"
	DimensionResearch     ImpactDimension = "research"
	DimensionProduction   ImpactDimension = "production"
	DimensionEcosystem    ImpactDimension = "ecosystem"
	DimensionSecurity     ImpactDimension = "security"
	DimensionPerformance  ImpactDimension = "performance"
)

// ImpactDimensions lists all valid dimensions in canonical order.
var ImpactDimensions = []ImpactDimension{
	DimensionTooling,
	DimensionArchitecture,
	DimensionResearch,
	DimensionProduction,
	DimensionEcosystem,
	DimensionSecurity,
	DimensionPerformance,
}

// ValidDimension reports whether d is part of the taxonomy.
func ValidDimension(d ImpactDimension) bool {
	for _, known := range ImpactDimensions {
		if d == known {
			return true
		}
	}

	return false
}

// ImpactLevel is the ordinal severity of a signal.
type ImpactLevel string

// Impact levels, ordered low to critical.
const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

var impactRank = map[ImpactLevel]int{
	ImpactLow:      0,
	ImpactMedium:   1,
	ImpactHigh:     2,
	ImpactCritical: 3,
}

// Rank returns the ordinal position of the level, or -1 for unknown values.
func (l ImpactLevel) Rank() int {
	if r, ok := impactRank[l]; ok {
		return r
	}

	return -1
}

// Valid reports whether the level is part of the ordinal scale.
func (l ImpactLevel) Valid() bool { return l.Rank() >= 0 }

// MaturityLevel is the ordinal adoption-lifecycle stage of a technology or topic.
type MaturityLevel string

// Maturity levels, ordered by lifecycle stage.
const (
	MaturityExperimental    MaturityLevel = "experimental"
	MaturityEmerging        MaturityLevel = "emerging"
	MaturityProductionReady MaturityLevel = "production-viable"
	MaturityConsolidated    MaturityLevel = "consolidated"
	MaturityDeclining       MaturityLevel = "declining"
)

var maturityRank = map[MaturityLevel]int{
	MaturityExperimental:    0,
	MaturityEmerging:        1,
	MaturityProductionReady: 2,
	MaturityConsolidated:    3,
	MaturityDeclining:       4,
}

// Rank returns the ordinal position of the level, or -1 for unknown values.
func (l MaturityLevel) Rank() int {
	if r, ok := maturityRank[l]; ok {
		return r
	}

	return -1
}

// Valid reports whether the level is part of the ordinal scale.
func (l MaturityLevel) Valid() bool { return l.Rank() >= 0 }

// Score bounds for ranked signals.
const (
	MinScore = 1
	MaxScore = 10
)

// RawSignal is one unit of collected information before any processing.
// The ID is a deterministic content identity (sha256 of source|url|title)
// assigned by the ingest normalizer; the struct is immutable once created.
type RawSignal struct {
	ID          string
	Source      string
	SourceURL   string
	Title       string
	Body        string
	PublishedAt time.Time
	CollectedAt time.Time
	Metadata    map[string]string
}

// RankedSignal is a RawSignal with the classification produced by the
// signal ranker. Append-only: never mutated after creation.
type RankedSignal struct {
	RawSignal

	Score         int
	Dimensions    []ImpactDimension
	Impact        ImpactLevel
	Maturity      MaturityLevel
	Justification string
	// Discarded marks signals below the relevance threshold. They are kept
	// as negative historical evidence, not deleted.
	Discarded bool
	// Fallback marks classifications produced by the neutral fallback after
	// the reasoning service was exhausted.
	Fallback bool
}

// NoveltyResult is the outcome of comparing a ranked signal against
// historical records.
type NoveltyResult struct {
	SignalID    string
	Score       float64
	NeighborIDs []string
}

// AnalyzedSignal is the deep per-item analysis. Persisted to the knowledge
// store; never mutated except by explicit re-analysis.
type AnalyzedSignal struct {
	RankedSignal

	Summary                   string
	Insights                  []string
	CodeArtifacts             []string
	Applicability             string
	ArchitecturalImplications string
	Topics                    []string
	CompetitiveNotes          string
	NoveltyScore              float64
	AnalysisFailed            bool
	AnalyzedAt                time.Time
}
