package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reperto-cdss-client/internal/domain"
)

func TestGroupByCategory(t *testing.T) {
	rubrics := []domain.RubricSuggestion{
		{RubricPath: "Mind > Irritable"},
		{RubricPath: "Stomach > Nausea > Morning"},
		{RubricPath: "Mind > Impatient"},
		{RubricPath: "Sleep > Sleeplessness"},
	}

	groups := GroupByCategory(rubrics)
	require.Len(t, groups, 3)

	assert.Equal(t, "MIND", groups[0].Category)
	assert.Equal(t, "STOMACH", groups[1].Category)
	assert.Equal(t, "SLEEP", groups[2].Category)

	// Relative order within a bucket is preserved
	require.Len(t, groups[0].Rubrics, 2)
	assert.Equal(t, "Mind > Irritable", groups[0].Rubrics[0].RubricPath)
	assert.Equal(t, "Mind > Impatient", groups[0].Rubrics[1].RubricPath)
}

func TestGroupByCategory_Empty(t *testing.T) {
	assert.Empty(t, GroupByCategory(nil))
}

func TestAccordion_SingleExpansion(t *testing.T) {
	var a Accordion
	assert.Empty(t, a.Expanded())

	a.Toggle("MIND")
	assert.True(t, a.IsExpanded("MIND"))

	// Expanding another section collapses the first
	a.Toggle("STOMACH")
	assert.False(t, a.IsExpanded("MIND"))
	assert.True(t, a.IsExpanded("STOMACH"))

	// Toggling the open section collapses it
	a.Toggle("STOMACH")
	assert.Empty(t, a.Expanded())
	assert.False(t, a.IsExpanded("STOMACH"))
}

func TestExpandedSet_MultipleOpen(t *testing.T) {
	e := NewExpandedSet()
	assert.Zero(t, e.Count())

	e.Toggle(0)
	e.Toggle(2)
	assert.True(t, e.IsOpen(0))
	assert.False(t, e.IsOpen(1))
	assert.True(t, e.IsOpen(2))
	assert.Equal(t, 2, e.Count())

	e.Toggle(0)
	assert.False(t, e.IsOpen(0))
	assert.True(t, e.IsOpen(2))
}
