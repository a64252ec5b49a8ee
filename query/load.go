package query

import (
	"fmt"
	"sort"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/tilestore"
)

// Reader abstracts the chunked-array read side a Plan materialises
// against, mirroring ingest.Writer's split from a live TileDB context so
// a Plan can be exercised with a fake in tests (§8 scenario 4).
type Reader interface {
	ReadBands(uri string, tags []string, cellCount int) (map[string][]float64, error)
}

// Slice is one materialised group's output (§4.E operation 6): the
// per-measurement pixel buffers of every storage unit in the group, in
// the group's Units order, plus the CF axis metadata a caller attaches
// to the array it builds from this.
type Slice struct {
	Key          string
	Units        []cube.StorageUnit
	Bands        map[string][][]float64 // measurement tag -> one buffer per unit, same order as Units
	DimensionCF  map[string]tilestore.DimensionMetadata
}

// Materialize reads every group in p through r, returning one Slice per
// group in the same ascending-key order Plan produced (§4.E "ordering
// guarantees: ascending coordinates, no duplicate timestamps"). cellCount
// is the per-tile pixel count (rows*cols), constant across every unit of
// a single storage type.
func Materialize(r Reader, p *Plan, measurementTags []string, cellCount int, timeUnits string) ([]Slice, error) {
	out := make([]Slice, 0, len(p.Groups))
	for _, g := range p.Groups {
		bands := make(map[string][][]float64, len(measurementTags))
		for _, tag := range measurementTags {
			bands[tag] = make([][]float64, 0, len(g.Units))
		}

		for _, u := range g.Units {
			read, err := r.ReadBands(u.Location, measurementTags, cellCount)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", cube.ErrRead, err)
			}
			for _, tag := range measurementTags {
				bands[tag] = append(bands[tag], read[tag])
			}
		}

		out = append(out, Slice{
			Key:         g.Key,
			Units:       g.Units,
			Bands:       bands,
			DimensionCF: dimensionCF(g.Units, timeUnits),
		})
	}
	return out, nil
}

func dimensionCF(units []cube.StorageUnit, timeUnits string) map[string]tilestore.DimensionMetadata {
	md := make(map[string]tilestore.DimensionMetadata)
	if len(units) == 0 {
		return md
	}
	dims := make([]string, 0, len(units[0].Dimensions))
	for _, d := range units[0].Dimensions {
		dims = append(dims, d.Dimension)
	}
	sort.Strings(dims)
	for _, dim := range dims {
		md[dim] = tilestore.CFDimensionMetadata(dim, timeUnits)
	}
	return md
}
