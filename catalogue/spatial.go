package catalogue

import (
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/earthcube/cube"
)

// spatialEntry adapts a catalogued storage unit's footprint to
// rtreego.Spatial, the way beetlebugorg-s57's ChartEntry.Bounds() adapts a
// chart's geographic bounds for rtreego.Rtree.Insert/SearchIntersect.
type spatialEntry struct {
	key       string
	footprint cube.Footprint
}

func (e spatialEntry) Bounds() rtreego.Rect {
	point := rtreego.Point{e.footprint.MinX, e.footprint.MinY}
	lengths := []float64{
		maxSpan(e.footprint.MaxX - e.footprint.MinX),
		maxSpan(e.footprint.MaxY - e.footprint.MinY),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// maxSpan guards against degenerate zero-width/height rects, which rtreego
// rejects; a point footprint gets a hairline span instead.
func maxSpan(d float64) float64 {
	if d <= 0 {
		return 1e-9
	}
	return d
}

// FootprintIndex is the R-tree spatial index over storage-unit footprints
// that backs the catalogue's "efficiently answer which tiles intersect
// this region" requirement (§4.B, §4.E performance note). It is refreshed
// eagerly on every RecordStorageUnit call, per §5 "Shared resources".
type FootprintIndex struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	byKey map[string]cube.Footprint
}

// NewFootprintIndex builds an empty index; min/max children follow the
// same (25, 50) balance used by beetlebugorg-s57's ChartIndex.
func NewFootprintIndex() *FootprintIndex {
	return &FootprintIndex{
		tree:  rtreego.NewTree(2, 25, 50),
		byKey: make(map[string]cube.Footprint),
	}
}

// Insert adds or replaces the footprint for key (e.g. "storageType/id@version").
func (idx *FootprintIndex) Insert(key string, footprint cube.Footprint) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.byKey[key]; ok {
		idx.tree.Delete(spatialEntry{key: key, footprint: old})
	}
	idx.byKey[key] = footprint
	idx.tree.Insert(spatialEntry{key: key, footprint: footprint})
}

// Remove deletes key from the index, if present.
func (idx *FootprintIndex) Remove(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.byKey[key]; ok {
		idx.tree.Delete(spatialEntry{key: key, footprint: old})
		delete(idx.byKey, key)
	}
}

// Clone produces an independent copy of the index, rebuilding the R-tree
// from the current footprint set. Used by memstore to give each
// transaction's working copy its own index that rollback can discard.
func (idx *FootprintIndex) Clone() *FootprintIndex {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	clone := NewFootprintIndex()
	for key, fp := range idx.byKey {
		clone.byKey[key] = fp
		clone.tree.Insert(spatialEntry{key: key, footprint: fp})
	}
	return clone
}

// Query returns the keys of every footprint intersecting region, in a
// single R-tree search rather than a linear scan over every catalogued
// storage unit (§4.E performance requirement: "single pass ... no N²").
func (idx *FootprintIndex) Query(region cube.Footprint) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	point := rtreego.Point{region.MinX, region.MinY}
	lengths := []float64{maxSpan(region.MaxX - region.MinX), maxSpan(region.MaxY - region.MinY)}
	rect, _ := rtreego.NewRect(point, lengths)

	hits := idx.tree.SearchIntersect(rect)
	keys := make([]string, 0, len(hits))
	for _, h := range hits {
		entry := h.(spatialEntry)
		// rtreego's rect intersection can be conservative at the
		// boundary; re-check with Footprint.Intersects, which counts a
		// shared edge as an intersection.
		if entry.footprint.Intersects(region) {
			keys = append(keys, entry.key)
		}
	}
	return keys
}
