package workflow

import "github.com/reperto-cdss-client/internal/domain"

// CategoryGroup is one display bucket of rubrics sharing a derived category.
type CategoryGroup struct {
	Category string
	Rubrics  []domain.RubricSuggestion
}

// GroupByCategory buckets rubrics by the upper-cased text before the first
// path delimiter. Buckets appear in order of first occurrence and entries
// keep their relative order within each bucket. The grouping is derived
// fresh on every call; nothing is stored.
func GroupByCategory(rubrics []domain.RubricSuggestion) []CategoryGroup {
	var groups []CategoryGroup
	index := make(map[string]int)

	for _, r := range rubrics {
		category := r.Category()
		i, ok := index[category]
		if !ok {
			i = len(groups)
			index[category] = i
			groups = append(groups, CategoryGroup{Category: category})
		}
		groups[i].Rubrics = append(groups[i].Rubrics, r)
	}
	return groups
}

// Accordion tracks which category section is expanded. At most one section
// is open at a time; toggling the open section collapses it.
type Accordion struct {
	expanded string
}

// Toggle expands the given category, or collapses it if it is already the
// expanded one.
func (a *Accordion) Toggle(category string) {
	if a.expanded == category {
		a.expanded = ""
		return
	}
	a.expanded = category
}

// Expanded returns the currently expanded category, or "" when all sections
// are collapsed.
func (a *Accordion) Expanded() string {
	return a.expanded
}

// IsExpanded reports whether the given category section is open.
func (a *Accordion) IsExpanded(category string) bool {
	return a.expanded != "" && a.expanded == category
}
