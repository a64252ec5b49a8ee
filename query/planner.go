// Package query is the query planner/loader (component E): given a
// region and time window, it finds the covering storage units, groups
// them by solar day (or a custom key), and returns lazy per-group tile
// references ready for a caller to materialise into an n-d array.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
	"github.com/earthcube/cube/refsystem"
)

// Request describes a load: the storage type to query, the spatial
// footprint and time window of interest, and an optional target CRS the
// caller wants coordinates reprojected into.
type Request struct {
	StorageType string
	Footprint   cube.Footprint
	TimeRange   catalogue.TimeRange
	TargetCRS   refsystem.Projection // nil = native CRS, no reprojection
	GroupBy     GroupFunc            // nil = group by solar day (default)
}

// GroupFunc assigns a storage unit to a group key (e.g. solar day, or a
// caller-supplied custom key via §4.E "group_by").
type GroupFunc func(cube.StorageUnit) string

// Group is one set of storage units sharing a GroupFunc key, ordered
// northern-first: descending footprint-centre latitude, then ascending
// StorageID.
type Group struct {
	Key   string
	Units []cube.StorageUnit
}

// Plan is the result of Plan: one Group per distinct key, sorted
// ascending by key, plus the reprojection Transform to apply (identity
// when Request.TargetCRS is nil or matches the storage type's native CRS).
type Plan struct {
	Groups    []Group
	Transform refsystem.Transform
}

// SpatialIndex is the subset of catalogue.FootprintIndex the planner
// needs: a single-pass bounding lookup rather than a linear scan over
// every catalogued storage unit (§4.E performance requirement).
type SpatialIndex interface {
	Query(region cube.Footprint) []string
}

// Plan resolves req against store (and its spatial index) into a Plan:
// an index reporting no hits for req.Footprint short-circuits to an empty
// plan; otherwise every unit FindStorageUnits returns is checked against
// req.Footprint, only the highest non-archived version of each storage
// unit is kept, units are grouped by solar day (or req.GroupBy), and
// same-day ties are broken with the northern-scene rule (§4.E).
// req.Footprint is used as given, in the storage type's native reference
// system; it is not reprojected from req.TargetCRS.
func Plan(ctx context.Context, store catalogue.Store, index SpatialIndex, nativeCRS refsystem.Projection, req Request) (*Plan, error) {
	// A populated index that reports no hits at all means the region is
	// disjoint from everything catalogued; skip the catalogue round-trip
	// entirely rather than enumerate every storage unit for nothing (§4.E
	// "single pass, no N^2").
	if index != nil && len(index.Query(req.Footprint)) == 0 {
		transform, err := resolveTransform(nativeCRS, req.TargetCRS)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", cube.ErrReproject, err)
		}
		return &Plan{Transform: transform}, nil
	}

	pred := func(cube.TileIndex) bool { return true }

	units, err := store.FindStorageUnits(ctx, req.StorageType, pred, req.TimeRange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cube.ErrQuery, err)
	}

	latest := make(map[string]cube.StorageUnit)
	for _, u := range units {
		if !u.Footprint.Intersects(req.Footprint) {
			continue
		}
		key := u.StorageType + "/" + u.StorageID
		if cur, ok := latest[key]; !ok || u.Version > cur.Version {
			latest[key] = u
		}
	}
	var matching []cube.StorageUnit
	for _, u := range latest {
		matching = append(matching, u)
	}

	transform, err := resolveTransform(nativeCRS, req.TargetCRS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cube.ErrReproject, err)
	}

	groupFn := req.GroupBy
	if groupFn == nil {
		groupFn = solarDayGroup
	}

	groups := make(map[string][]cube.StorageUnit)
	for _, u := range matching {
		key := groupFn(u)
		groups[key] = append(groups[key], u)
	}

	var out []Group
	for key, us := range groups {
		sort.SliceStable(us, func(i, j int) bool {
			return northernFirst(us[i], us[j])
		})
		out = append(out, Group{Key: key, Units: us})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return &Plan{Groups: out, Transform: transform}, nil
}

func resolveTransform(native, target refsystem.Projection) (refsystem.Transform, error) {
	if target == nil || native == nil || native.Equal(target) {
		return identity{}, nil
	}
	return native.To(target)
}

type identity struct{}

func (identity) Point(p orb.Point) (orb.Point, error) { return p, nil }

// solarDayGroup is the default GroupFunc: the key is the local calendar
// date of the unit's time-dimension minimum, in a fixed zone offset one
// hour per 15 degrees of the footprint's centre X read as a longitude
// (the offset rule ingest's solarDay applies to a source centroid).
// Units without a time dimension get the empty key.
func solarDayGroup(u cube.StorageUnit) string {
	lon := (u.Footprint.MinX + u.Footprint.MaxX) / 2
	loc := time.FixedZone("solar", int(lon/15.0*3600))
	for _, d := range u.Dimensions {
		if d.Dimension == "time" {
			t := time.Unix(int64(d.Min), 0).In(loc)
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// northernFirst orders two storage units within a group by the same
// "northern scene wins" rule ingest's fusion order applies (§4.D), using
// each unit's footprint centre latitude in place of the source centroid
// latitude ingest orders by.
func northernFirst(a, b cube.StorageUnit) bool {
	ca := (a.Footprint.MinY + a.Footprint.MaxY) / 2
	cb := (b.Footprint.MinY + b.Footprint.MaxY) / 2
	if ca != cb {
		return ca > cb
	}
	return a.StorageID < b.StorageID
}
