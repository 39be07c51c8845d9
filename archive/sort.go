package archive

import (
	"sort"

	"github.com/maruel/natural"
)

// Sort method identifiers, stored in config.
const (
	SortNatural = iota
	SortSimple
	SortEntryOrder
)

// SortStrategy orders the image entries of an archive into page order.
type SortStrategy interface {
	// Sort returns a new sorted slice without modifying the original
	Sort(entries []entry) []entry
	// Name returns the human-readable name of the strategy
	Name() string
	// ID returns the numeric identifier for config storage
	ID() int
}

// NaturalSortStrategy orders entries naturally, so page2 sorts before
// page10.
type NaturalSortStrategy struct{}

func (s *NaturalSortStrategy) Sort(entries []entry) []entry {
	result := make([]entry, len(entries))
	copy(result, entries)

	sort.Slice(result, func(i, j int) bool {
		return natural.Less(result[i].name, result[j].name)
	})

	return result
}

func (s *NaturalSortStrategy) Name() string {
	return "Natural"
}

func (s *NaturalSortStrategy) ID() int {
	return SortNatural
}

// SimpleSortStrategy orders entries lexicographically.
type SimpleSortStrategy struct{}

func (s *SimpleSortStrategy) Sort(entries []entry) []entry {
	result := make([]entry, len(entries))
	copy(result, entries)

	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})

	return result
}

func (s *SimpleSortStrategy) Name() string {
	return "Simple"
}

func (s *SimpleSortStrategy) ID() int {
	return SortSimple
}

// EntryOrderSortStrategy preserves the archive's own entry order.
type EntryOrderSortStrategy struct{}

func (s *EntryOrderSortStrategy) Sort(entries []entry) []entry {
	result := make([]entry, len(entries))
	copy(result, entries)

	return result
}

func (s *EntryOrderSortStrategy) Name() string {
	return "Entry Order"
}

func (s *EntryOrderSortStrategy) ID() int {
	return SortEntryOrder
}

// GetSortStrategy returns the strategy for a sort method ID, falling back
// to natural sorting for unknown values.
func GetSortStrategy(sortMethod int) SortStrategy {
	switch sortMethod {
	case SortNatural:
		return &NaturalSortStrategy{}
	case SortSimple:
		return &SimpleSortStrategy{}
	case SortEntryOrder:
		return &EntryOrderSortStrategy{}
	default:
		return &NaturalSortStrategy{}
	}
}

// GetAllSortStrategies returns all available sort strategies.
func GetAllSortStrategies() []SortStrategy {
	return []SortStrategy{
		&NaturalSortStrategy{},
		&SimpleSortStrategy{},
		&EntryOrderSortStrategy{},
	}
}
