package workflow

// ExpandedSet tracks which remedy cards are expanded on the results step.
// Unlike the category accordion, any number of cards may be open at once.
type ExpandedSet struct {
	open map[int]bool
}

// NewExpandedSet creates an empty expansion set (all cards collapsed).
func NewExpandedSet() *ExpandedSet {
	return &ExpandedSet{open: make(map[int]bool)}
}

// Toggle flips the expansion of the card at index.
func (e *ExpandedSet) Toggle(index int) {
	if e.open[index] {
		delete(e.open, index)
		return
	}
	e.open[index] = true
}

// IsOpen reports whether the card at index is expanded.
func (e *ExpandedSet) IsOpen(index int) bool {
	return e.open[index]
}

// Count returns how many cards are expanded.
func (e *ExpandedSet) Count() int {
	return len(e.open)
}
