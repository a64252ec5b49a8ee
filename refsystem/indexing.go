package refsystem

import (
	"fmt"
	"math"
	"sort"
)

// DimSpec is the minimal per-dimension declaration coord_to_index and
// index_to_range need: Origin, Extent and IndexingType for regular
// dimensions, Breaks for irregular dimensions, and Enumeration for fixed
// dimensions. It mirrors cube.DimensionSpec but stays free of that
// package's storage-type bookkeeping so it can be unit tested in
// isolation.
type DimSpec struct {
	Origin       float64
	Extent       float64
	IndexingType string // "regular" | "irregular" | "fixed"
	// Breaks holds ascending boundaries for irregular dimensions: index i
	// covers [Breaks[i], Breaks[i+1]).
	Breaks []float64
	// Enumeration maps a fixed dimension's discrete values to an index,
	// in declaration order.
	Enumeration []string
}

// Range is an inclusive-exclusive [Min, Max) coordinate interval.
type Range struct {
	Min, Max float64
}

// CoordToIndex implements §4.A: regular -> floor((value-origin)/extent);
// irregular -> bracket-search over Breaks. Fixed dimensions return an
// error here; their enumeration lookup is FixedIndex.
func CoordToIndex(value float64, spec DimSpec) (int64, error) {
	switch spec.IndexingType {
	case "regular":
		return int64(math.Floor((value - spec.Origin) / spec.Extent)), nil
	case "irregular":
		return bracketSearch(value, spec.Breaks)
	case "fixed":
		return 0, fmt.Errorf("refsystem: fixed dimension requires FixedIndex, not CoordToIndex")
	default:
		return 0, fmt.Errorf("refsystem: unknown indexing type %q", spec.IndexingType)
	}
}

// FixedIndex looks up value's position in a fixed dimension's enumeration.
// Fails with ErrUnknownIndexValue when value is absent, per §4.A.
func FixedIndex(value string, spec DimSpec) (int64, error) {
	for i, v := range spec.Enumeration {
		if v == value {
			return int64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIndexValue, value)
}

// bracketSearch returns i such that breaks[i] <= value < breaks[i+1],
// using a binary search since Breaks is ascending (irregular dimensions'
// indexing table, §4.A).
func bracketSearch(value float64, breaks []float64) (int64, error) {
	if len(breaks) < 2 {
		return 0, fmt.Errorf("refsystem: irregular dimension needs at least 2 breaks")
	}
	if value < breaks[0] || value >= breaks[len(breaks)-1] {
		return 0, fmt.Errorf("%w: value %v outside irregular dimension range [%v, %v)",
			ErrUnknownIndexValue, value, breaks[0], breaks[len(breaks)-1])
	}
	i := sort.Search(len(breaks), func(i int) bool { return breaks[i] > value })
	return int64(i - 1), nil
}

// IndexToRange is the inverse of CoordToIndex/FixedIndex: for regular,
// min = origin + index*extent, max = min+extent; for irregular, the bracket
// named by Breaks[index:index+2]; for fixed, min == max == index (the
// dimension's discrete value is resolved by the caller from Enumeration).
func IndexToRange(index int64, spec DimSpec) (Range, error) {
	switch spec.IndexingType {
	case "regular":
		min := spec.Origin + float64(index)*spec.Extent
		return Range{Min: min, Max: min + spec.Extent}, nil
	case "irregular":
		if index < 0 || int(index)+1 >= len(spec.Breaks) {
			return Range{}, fmt.Errorf("refsystem: index %d out of range for irregular dimension", index)
		}
		return Range{Min: spec.Breaks[index], Max: spec.Breaks[index+1]}, nil
	case "fixed":
		return Range{Min: float64(index), Max: float64(index)}, nil
	default:
		return Range{}, fmt.Errorf("refsystem: unknown indexing type %q", spec.IndexingType)
	}
}

// Mid returns the midpoint of a Range, used by the round-trip property of
// §8 ("the mid-point of that range also maps to the same index").
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2.0 }
