// Package render formats analysis results, rubric lists and remedy cards
// for the terminal. Rendering is pure string building over domain values;
// all ordering comes from the backend and is left untouched.
package render

import (
	"fmt"
	"strings"

	"github.com/reperto-cdss-client/internal/domain"
	"github.com/reperto-cdss-client/internal/workflow"
)

// Tier buckets a remedy score percentage for display emphasis.
type Tier string

const (
	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierInfo    Tier = "info"
)

// ScoreTier maps a percentage to its display tier.
func ScoreTier(percentage int) Tier {
	switch {
	case percentage >= 90:
		return TierSuccess
	case percentage >= 75:
		return TierWarning
	default:
		return TierInfo
	}
}

// RiskBadge renders the risk level as an upper-cased badge.
func RiskBadge(risk domain.Risk) string {
	return fmt.Sprintf("[%s]", strings.ToUpper(string(risk)))
}

// ConfidenceBar renders a fixed-width bar for a confidence value. The value
// is clamped to [0,1]: 1.4 fills the bar at 100%, -0.2 empties it at 0%.
func ConfidenceBar(confidence float64, width int) string {
	if width <= 0 {
		width = 10
	}
	clamped := domain.ClampConfidence(confidence)
	filled := int(clamped*float64(width) + 0.5)

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("#", filled))
	b.WriteString(strings.Repeat(" ", width-filled))
	b.WriteByte(']')
	fmt.Fprintf(&b, " %d%%", int(clamped*100+0.5))
	return b.String()
}

// RubricLine renders one review-list entry with its selection marker.
func RubricLine(index int, r domain.RubricSuggestion) string {
	marker := " "
	if r.Selected {
		marker = "x"
	}
	line := fmt.Sprintf("%2d. [%s] %s  %s", index+1, marker, r.RubricPath, ConfidenceBar(r.Confidence, 10))
	if r.Rationale != "" {
		line += "\n       " + r.Rationale
	}
	return line
}

// AnalysisSummary renders the analysis header: summary text and risk badge.
func AnalysisSummary(result *domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("Analysis Summary\n")
	if result.Summary != "" {
		b.WriteString(result.Summary + "\n")
	}
	fmt.Fprintf(&b, "Risk Level: %s\n", RiskBadge(result.Risk))
	fmt.Fprintf(&b, "Suggested Rubrics: %d\n", len(result.Rubrics))
	return b.String()
}

// GroupedRubrics renders the legacy category-accordion view: one header per
// derived category, with entries listed only under the expanded section.
func GroupedRubrics(groups []workflow.CategoryGroup, accordion *workflow.Accordion) string {
	var b strings.Builder
	for _, g := range groups {
		arrow := ">"
		if accordion.IsExpanded(g.Category) {
			arrow = "v"
		}
		fmt.Fprintf(&b, "%s %s (%d)\n", arrow, g.Category, len(g.Rubrics))
		if !accordion.IsExpanded(g.Category) {
			continue
		}
		for _, r := range g.Rubrics {
			fmt.Fprintf(&b, "    %s  %d%%\n", r.RubricPath, r.ConfidencePercent())
			if r.Rationale != "" {
				fmt.Fprintf(&b, "      %s\n", r.Rationale)
			}
		}
	}
	return b.String()
}

// RemedyCard renders one results-list card. Expanding reveals the rationale
// and the per-rubric contribution breakdown.
func RemedyCard(index int, remedy domain.ScoredRemedy, expanded bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%2d. %s  score %s", index+1, remedy.Name, FormatScore(remedy.TotalScore))
	if !expanded {
		return b.String()
	}
	if remedy.Rationale != "" {
		b.WriteString("\n    " + remedy.Rationale)
	}
	for _, c := range remedy.Contributions {
		grades := make([]string, len(c.Grades))
		for i, g := range c.Grades {
			grades[i] = FormatScore(g)
		}
		fmt.Fprintf(&b, "\n    %s: grades %s, subtotal %s",
			c.RubricPath, strings.Join(grades, "+"), FormatScore(c.Subtotal))
	}
	return b.String()
}

// FormatScore renders a score without a trailing .0 for whole values.
func FormatScore(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// CaseLine renders one case-list row.
func CaseLine(cs domain.Case) string {
	line := fmt.Sprintf("%s  %s (%s)  %s", cs.ID, cs.PatientName, cs.Initials, cs.Specialty)
	if cs.Time != "" {
		line += "  " + cs.Time
	}
	return line
}

// CaseDetail renders a stored case's saved analysis.
func CaseDetail(cs domain.Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case %s\n", cs.ID)
	fmt.Fprintf(&b, "Patient: %s (%s), %s\n", cs.PatientName, cs.Initials, cs.Specialty)
	if cs.Time != "" {
		fmt.Fprintf(&b, "Time: %s\n", cs.Time)
	}
	if cs.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", cs.Summary)
	}
	if len(cs.ConfirmedRubrics) > 0 {
		b.WriteString("Confirmed rubrics:\n")
		for _, path := range cs.ConfirmedRubrics {
			fmt.Fprintf(&b, "  - %s\n", path)
		}
	}
	if len(cs.SavedRemedies) > 0 {
		b.WriteString("Remedies:\n")
		for i, remedy := range cs.SavedRemedies {
			b.WriteString("  " + RemedyCard(i, remedy, false) + "\n")
		}
	}
	return b.String()
}
