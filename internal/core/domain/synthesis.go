package domain

import (
	"fmt"
	"time"
)

// SynthesisMode selects the aggregation horizon.
type SynthesisMode string

// Synthesis modes.
const (
	ModeDaily   SynthesisMode = "daily"
	ModeWeekly  SynthesisMode = "weekly"
	ModeMonthly SynthesisMode = "monthly"
)

// Period identifies one synthesis window.
type Period struct {
	Mode SynthesisMode
	Key  string // 2026-08-25 / 2026-W35 / 2026-08
}

// DailyPeriod returns the period for the day containing t (UTC).
func DailyPeriod(t time.Time) Period {
	return Period{Mode: ModeDaily, Key: t.UTC().Format("2006-01-02")}
}

// WeeklyPeriod returns the ISO-week period containing t (UTC).
func WeeklyPeriod(t time.Time) Period {
	year, week := t.UTC().ISOWeek()

	return Period{Mode: ModeWeekly, Key: fmt.Sprintf("%d-W%02d", year, week)}
}

// MonthlyPeriod returns the period for the month containing t (UTC).
func MonthlyPeriod(t time.Time) Period {
	return Period{Mode: ModeMonthly, Key: t.UTC().Format("2006-01")}
}

// PeriodFor builds the period for mode at time t.
func PeriodFor(mode SynthesisMode, t time.Time) Period {
	switch mode {
	case ModeWeekly:
		return WeeklyPeriod(t)
	case ModeMonthly:
		return MonthlyPeriod(t)
	default:
		return DailyPeriod(t)
	}
}

// Trend is one observed pattern backed by evidence records.
type Trend struct {
	Statement   string   `json:"statement"`
	EvidenceIDs []string `json:"evidence_ids"`
	Confidence  float64  `json:"confidence"`
}

// MaturityChange records a topic moving along the maturity scale during a
// weekly or monthly window.
type MaturityChange struct {
	Topic string        `json:"topic"`
	From  MaturityLevel `json:"from"`
	To    MaturityLevel `json:"to"`
}

// Synthesis is the periodic strategic report. A weekly synthesis is built
// only from completed daily syntheses, a monthly one only from completed
// weekly syntheses.
type Synthesis struct {
	Period            Period
	RelevanceScore    int
	Summary           string
	Trends            []Trend
	Highlights        []string
	Actions           []string
	MaturityChanges   []MaturityChange
	CompetitiveShifts []string
	RiskAssessment    string
	// Mechanical marks reports assembled by the deterministic fallback
	// instead of the reasoning service.
	Mechanical  bool
	GeneratedAt time.Time
}
