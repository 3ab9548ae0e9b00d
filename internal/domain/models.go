// Package domain contains the core entities shared by the Reperto client:
// analysis results, rubric suggestions, scored remedies and saved cases.
// All clinical reasoning (text parsing, confidence scoring, remedy ranking)
// happens in the backend; these types only carry its output.
package domain

import (
	"math"
	"strings"
)

// Risk represents the backend-assessed risk level of a patient narrative.
type Risk string

const (
	RiskLow     Risk = "low"
	RiskMedium  Risk = "medium"
	RiskHigh    Risk = "high"
	RiskUnknown Risk = "unknown"
)

// ParseRisk normalizes a backend risk string. Anything outside the known
// levels maps to RiskUnknown rather than failing.
func ParseRisk(s string) Risk {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// RubricSuggestion is a single candidate rubric proposed by the backend's
// text analysis. Selected is the only client-mutable field; it defaults to
// true and is never sent back to the backend directly, only reflected in
// the confirmed subset submitted for scoring.
type RubricSuggestion struct {
	RubricPath    string   `json:"rubric_path"`
	Confidence    float64  `json:"confidence"`
	MatchedTokens []string `json:"matched_tokens,omitempty"`
	Rationale     string   `json:"rationale,omitempty"`
	Selected      bool     `json:"-"`
}

// CategoryDelimiter separates the segments of a hierarchical rubric path.
const CategoryDelimiter = ">"

// Category derives the display category from the rubric path: the text
// before the first delimiter, trimmed and upper-cased. It is recomputed on
// demand and never stored.
func (r RubricSuggestion) Category() string {
	head, _, _ := strings.Cut(r.RubricPath, CategoryDelimiter)
	return strings.ToUpper(strings.TrimSpace(head))
}

// ClampConfidence clamps a backend confidence value to [0,1] for display.
// Out-of-range values are clamped, not rejected.
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ConfidencePercent returns the clamped confidence as a whole percentage.
func (r RubricSuggestion) ConfidencePercent() int {
	return int(math.Round(ClampConfidence(r.Confidence) * 100))
}

// AnalysisResult is the structured outcome of submitting a narrative to the
// backend analysis endpoint. Immutable once received.
type AnalysisResult struct {
	Tokens  []string           `json:"tokens,omitempty"`
	Rubrics []RubricSuggestion `json:"rubrics"`
	Summary string             `json:"summary"`
	Risk    Risk               `json:"risk"`
}

// Contribution is one rubric's share of a remedy's total score. The JSON
// tags follow the scoring endpoint's response schema.
type Contribution struct {
	RubricPath string    `json:"rubric"`
	Grades     []float64 `json:"grades"`
	Subtotal   float64   `json:"total"`
}

// ScoredRemedy is a backend-ranked remedy suggestion. The backend applies
// the ranking; the client preserves the received order and never re-sorts.
type ScoredRemedy struct {
	Name          string         `json:"remedy"`
	TotalScore    float64        `json:"score"`
	Rationale     string         `json:"rationale,omitempty"`
	Contributions []Contribution `json:"rubrics,omitempty"`
}

// Case is a saved patient consultation record. It is owned by the backend;
// the client holds a read-only copy per fetch. The JSON tags follow the
// backend's case schema.
type Case struct {
	ID               string         `json:"id,omitempty"`
	PatientName      string         `json:"name"`
	Initials         string         `json:"initials"`
	Specialty        string         `json:"specialty"`
	Time             string         `json:"time"`
	Summary          string         `json:"summary,omitempty"`
	ConfirmedRubrics []string       `json:"rubrics,omitempty"`
	SavedRemedies    []ScoredRemedy `json:"remedies,omitempty"`
}

// Profile is the authenticated practitioner's account information.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
