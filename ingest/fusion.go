// Package ingest is the tiler/ingestor (component D): it turns a set of
// source datasets into materialised tiles, fusing overlapping sources in
// a deterministic order and registering the result with the catalogue
// atomically (§4.D).
package ingest

import (
	"sort"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/earthcube/cube"
)

// Source is one dataset contributing to a tile, already resampled onto
// the tile's pixel grid by the external "prepare" step (decoding a
// vendor-specific scene format and resampling it are both out of scope,
// §1 non-goals); ingest only orders sources and overlays their pixels.
type Source struct {
	Dataset     cube.Dataset
	Observation cube.Observation
	// CentroidLon/CentroidLat locate the source footprint's centroid,
	// used to resolve its local solar day and to break ties between
	// scenes whose solar day coincides (§4.D "northern scene wins").
	CentroidLon, CentroidLat float64
	// Bands holds this source's per-measurement pixel values, row-major
	// over the destination tile's grid, with NaN marking a pixel this
	// source does not cover.
	Bands map[string][]float64
}

// FusionOrder sorts sources into the deterministic order ingest_task
// fuses them in (§4.D step 2): ascending observation start time primary,
// then ascending solar day computed from each source's local time zone,
// then northern-latitude-wins, then ascending dataset id as the final
// tiebreak so the order is total even when every prior key coincides.
func FusionOrder(sources []Source) []Source {
	out := make([]Source, len(sources))
	copy(out, sources)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Observation.Start.Equal(b.Observation.Start) {
			return a.Observation.Start.Before(b.Observation.Start)
		}
		da, db := solarDay(a), solarDay(b)
		if !da.Equal(db) {
			return da.Before(db)
		}
		if a.CentroidLat != b.CentroidLat {
			return a.CentroidLat > b.CentroidLat // northern scene wins -> sorts first
		}
		return a.Dataset.DatasetID < b.Dataset.DatasetID
	})
	return out
}

// solarDay resolves a source's local calendar date from its observation
// start time and the timezone implied by its footprint centroid
// longitude (15 degrees of longitude per hour of offset, per §4.D). The
// year/day-of-year pair is round-tripped through meeus's Gregorian
// calendar arithmetic (DayOfYearToCalendar with LeapYearGregorian) so
// month/day boundaries and leap years are resolved by the library rather
// than reimplemented ad hoc.
func solarDay(s Source) time.Time {
	offsetHours := s.CentroidLon / 15.0
	loc := time.FixedZone("solar", int(offsetHours*3600))
	local := s.Observation.Start.In(loc)

	year := local.Year()
	month, day := julian.DayOfYearToCalendar(local.YearDay(), julian.LeapYearGregorian(year))
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
