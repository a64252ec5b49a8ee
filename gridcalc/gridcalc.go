// Package gridcalc is the tile grid calculator (component C): given a
// source dataset's per-dimension extent and a storage type's grid
// geometry, it enumerates the tile indices the dataset touches and
// computes each tile's per-dimension coordinate range.
package gridcalc

import (
	"fmt"
	"math"
	"sort"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/refsystem"
)

// Tile is one cell of the grid a dataset's extent has been rasterised
// against: its per-dimension index plus the coordinate range that index
// covers, per dimension.
type Tile struct {
	Index  cube.TileIndex
	Ranges map[string]refsystem.Range
}

// Coverage enumerates every tile a dataset with the given per-dimension
// ranges intersects against spec's grid (§4.C). Dimensions absent from
// ranges are left out of the resulting tile index (e.g. a 2-D dataset
// tiled against a 3-D storage type's longitude/latitude dims only, with
// time supplied separately by the caller).
func Coverage(ranges []cube.DimensionRange, spec cube.StorageType) ([]Tile, error) {
	perDim := make(map[string][]int64, len(ranges))
	dims := make([]string, 0, len(ranges))

	for _, r := range ranges {
		dimSpec, ok := spec.Dimensions[r.Dimension]
		if !ok {
			continue // dataset carries a range the storage type does not grid on
		}
		indices, err := tileIndicesForRange(r.Min, r.Max, dimSpec)
		if err != nil {
			return nil, fmt.Errorf("gridcalc: dimension %q: %w", r.Dimension, err)
		}
		if len(indices) == 0 {
			continue
		}
		perDim[r.Dimension] = indices
		dims = append(dims, r.Dimension)
	}
	sort.Strings(dims)

	return cartesianProduct(dims, perDim, spec), nil
}

// tileIndicesForRange returns the ascending, deduplicated tile indices
// that [min, max] touches along one dimension, honouring the tie-break
// rules of §4.C: a value exactly on a tile boundary belongs to the tile
// whose min it equals (handled naturally by floor-division/bracket-search
// being half-open [min, max)), and a footprint that merely grazes an
// adjacent tile (max == that tile's min) produces no entry for it.
func tileIndicesForRange(min, max float64, spec cube.DimensionSpec) ([]int64, error) {
	ds := toDimSpec(spec)

	startIdx, err := refsystem.CoordToIndex(min, ds)
	if err != nil {
		return nil, err
	}
	// max is exclusive at the grazing boundary: a dataset whose extent
	// ends exactly at a tile's min contributes nothing to that tile, so
	// step back by an epsilon before resolving the end index.
	endIdx, err := refsystem.CoordToIndex(previousBeforeBoundary(max, spec), ds)
	if err != nil {
		return nil, err
	}
	if endIdx < startIdx {
		endIdx = startIdx
	}

	out := make([]int64, 0, endIdx-startIdx+1)
	for i := startIdx; i <= endIdx; i++ {
		out = append(out, i)
	}
	return out, nil
}

// previousBeforeBoundary nudges max infinitesimally downward so a
// footprint edge landing exactly on a tile boundary does not spuriously
// claim the next tile (the "grazing footprint produces no adjacent tile"
// rule of §4.C).
func previousBeforeBoundary(max float64, spec cube.DimensionSpec) float64 {
	if spec.IndexingType != cube.IndexingRegular {
		return math.Nextafter(max, math.Inf(-1))
	}
	eps := spec.Extent * 1e-9
	return max - eps
}

func toDimSpec(spec cube.DimensionSpec) refsystem.DimSpec {
	return refsystem.DimSpec{
		Origin: spec.Origin,
		Extent: spec.Extent,
		IndexingType: map[cube.IndexingType]string{
			cube.IndexingRegular:   "regular",
			cube.IndexingIrregular: "irregular",
			cube.IndexingFixed:     "fixed",
		}[spec.IndexingType],
		Breaks:      spec.IrregularBreaks,
		Enumeration: spec.FixedValues,
	}
}

func cartesianProduct(dims []string, perDim map[string][]int64, spec cube.StorageType) []Tile {
	if len(dims) == 0 {
		return nil
	}
	var out []Tile
	var rec func(i int, idx cube.TileIndex)
	rec = func(i int, idx cube.TileIndex) {
		if i == len(dims) {
			ranges := make(map[string]refsystem.Range, len(idx))
			for dim, v := range idx {
				r, err := refsystem.IndexToRange(v, toDimSpec(spec.Dimensions[dim]))
				if err == nil {
					ranges[dim] = r
				}
			}
			cp := cube.TileIndex{}
			for k, v := range idx {
				cp[k] = v
			}
			out = append(out, Tile{Index: cp, Ranges: ranges})
			return
		}
		dim := dims[i]
		for _, v := range perDim[dim] {
			idx[dim] = v
			rec(i+1, idx)
		}
	}
	rec(0, cube.TileIndex{})
	return out
}

// Geotransform describes the affine pixel-to-coordinate mapping of one
// tile along its spatial dimensions, carrying origin + pixel size
// rather than a full 6-element matrix, since every grid here is
// north-up/axis-aligned.
type Geotransform struct {
	OriginX, OriginY   float64
	PixelWidth, PixelHeight float64
	Columns, Rows      int
}

// TileGeotransform computes the affine geotransform for one tile given
// the storage type's spatial dimension specs, using pixel-centre
// projection: pixel i's centre sits at Origin + (i+0.5)*PixelSize, so a
// sub-pixel misaligned dataset edge contributes nodata at the partially
// covered edge pixels rather than skewing the grid (§4.C edge case).
func TileGeotransform(idx cube.TileIndex, spec cube.StorageType, xDim, yDim string) (Geotransform, error) {
	xSpec, ok := spec.Dimensions[xDim]
	if !ok {
		return Geotransform{}, fmt.Errorf("gridcalc: storage type %q has no dimension %q", spec.Tag, xDim)
	}
	ySpec, ok := spec.Dimensions[yDim]
	if !ok {
		return Geotransform{}, fmt.Errorf("gridcalc: storage type %q has no dimension %q", spec.Tag, yDim)
	}
	xRange, err := refsystem.IndexToRange(idx[xDim], toDimSpec(xSpec))
	if err != nil {
		return Geotransform{}, err
	}
	yRange, err := refsystem.IndexToRange(idx[yDim], toDimSpec(ySpec))
	if err != nil {
		return Geotransform{}, err
	}
	if xSpec.Elements == 0 || ySpec.Elements == 0 {
		return Geotransform{}, fmt.Errorf("gridcalc: storage type %q missing pixel counts for %q/%q", spec.Tag, xDim, yDim)
	}
	return Geotransform{
		OriginX:    xRange.Min,
		OriginY:    yRange.Max, // north-up: row 0 is the tile's northern edge
		PixelWidth: (xRange.Max - xRange.Min) / float64(xSpec.Elements),
		PixelHeight: -(yRange.Max - yRange.Min) / float64(ySpec.Elements),
		Columns:    xSpec.Elements,
		Rows:       ySpec.Elements,
	}, nil
}

// PixelIndex maps a geographic coordinate to its (col, row) within a
// tile's geotransform, truncating rather than rounding so a coordinate
// exactly on the tile's far edge resolves to the last valid pixel. A
// 1e-9-pixel tolerance is added before truncating so a coordinate on a
// pixel's leading edge resolves to that pixel despite floating-point error.
func (g Geotransform) PixelIndex(x, y float64) (col, row int) {
	const edgeTolerance = 1e-9
	col = int((x-g.OriginX)/g.PixelWidth + edgeTolerance)
	row = int((y-g.OriginY)/g.PixelHeight + edgeTolerance)
	if col >= g.Columns {
		col = g.Columns - 1
	}
	if row >= g.Rows {
		row = g.Rows - 1
	}
	return col, row
}
