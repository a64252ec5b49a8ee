package cube

import "time"

// IndexingType declares how indices along a Dimension behave (§3.1).
type IndexingType int

const (
	IndexingRegular IndexingType = iota
	IndexingIrregular
	IndexingFixed
)

func (t IndexingType) String() string {
	switch t {
	case IndexingRegular:
		return "regular"
	case IndexingIrregular:
		return "irregular"
	case IndexingFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// Dimension is a primitive axis (longitude, latitude, time, spectral,
// height, ...). Names and tags are unique process-wide.
type Dimension struct {
	ID   int64
	Name string
	Tag  string
}

// Domain groups dimensions that share a reference system (spatial-XY,
// spatial-Z, temporal, spectral, spatial-XYZ). A dimension may belong to
// several domains.
type Domain struct {
	ID         int64
	Name       string
	Tag        string
	Dimensions []string // dimension tags in this domain
}

// ReferenceSystem is either a geospatial CRS identified by its authority
// string, or a 1-D axis system ("seconds since 1970-01-01", band
// enumeration, ...).
type ReferenceSystem struct {
	ID         int64
	Name       string
	Unit       string
	Definition string
	Tag        string
}

// DatasetType is a class of source data (NBAR, PQ, FC, L1T, ...). It carries
// the set of measurement types and the domains it spans.
type DatasetType struct {
	ID           int64
	Name         string
	Tag          string
	Domains      []string // domain tags
	Measurements []MeasurementType
}

// MeasurementType is a named band/channel, ordered within a dataset type by
// a unique MeasurementTypeIndex (1..N).
type MeasurementType struct {
	MetatypeID           int64
	TypeID                int64
	Name                  string
	Tag                   string
	Datatype              string
	MeasurementTypeIndex  int
	OutputIndex           int
}

// DimensionSpec is the per-dimension declaration carried by a StorageType:
// tile size in native units (Extent), pixels per tile (Elements), chunk
// size (Cache), Origin, the IndexingType, and the two reference systems
// (native, and the one used for tile-index arithmetic).
type DimensionSpec struct {
	Domain                string
	Order                 int
	Extent                float64
	Elements              int
	Cache                 int
	Origin                float64
	IndexingType          IndexingType
	ReferenceSystem       string
	IndexReferenceSystem  string
	// FixedValues enumerates the discrete values for IndexingFixed
	// dimensions (e.g. spectral band -> measurement tag), in ascending
	// index order. Ignored for regular/irregular dimensions.
	FixedValues []string
	// IrregularBreaks holds the ascending boundary table used for
	// bracket-search indexing on IndexingIrregular dimensions.
	IrregularBreaks []float64
}

// StorageMeasurement attaches a measurement type to a StorageType with its
// per-band output datatype and position.
type StorageMeasurement struct {
	Metatype         string
	Tag               string
	Datatype          string
	OutputIndex       int
	Nodata            float64
	ResamplingMethod  string
}

// StorageType is the cube layout: for each dimension in scope, the grid
// geometry; plus the ordered measurement list.
type StorageType struct {
	ID           int64
	Name         string
	Tag          string
	Dimensions   map[string]DimensionSpec // keyed by dimension tag
	DimOrder     []string                 // declaration order == dimension_order
	Measurements []StorageMeasurement
}

// DimensionRange is a source dataset's or storage unit's extent along one
// dimension: (min, max, indexing_value). IndexingValue is nullable and
// carried verbatim (semantics left opaque per §9 open question).
type DimensionRange struct {
	Dimension     string
	Min           float64
	Max           float64
	IndexingValue *float64
}

// Observation is a scene-level acquisition shared by one or more Datasets.
type Observation struct {
	ID        string
	Type      string
	Start     time.Time
	End       time.Time
	Instrument string
}

// Dataset is a concrete source file, immutable once catalogued.
type Dataset struct {
	DatasetType string
	DatasetID   string // UUID, see §6.1
	Observation string // observation id
	Location    string // URI
	Ranges      []DimensionRange
	Metadata    string // free-form blob, preserved verbatim, §6.1
}

// TileIndex identifies a logical tile by its per-dimension integer indices,
// keyed by dimension tag so it is agnostic to dimension count/order.
type TileIndex map[string]int64

// Key renders a TileIndex as a stable string for map keys and logs.
func (t TileIndex) Key(order []string) string {
	s := ""
	for i, dim := range order {
		if i > 0 {
			s += ","
		}
		s += dim + "=" + itoa(t[dim])
	}
	return s
}

func itoa(v int64) string {
	// Avoid pulling in strconv at every call site that only wants a log key.
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// StorageUnit is a materialised cube tile: (storage-type, id, version,
// location, checksum, bytes, footprint) plus per-dimension (index,min,max)
// and the dataset ids it was fused from.
type StorageUnit struct {
	StorageType string
	StorageID   string
	Version     int
	Location    string
	Checksum    string // md5 hex
	Bytes       int64
	Footprint   Footprint
	Dimensions  []StorageUnitDimension
	Datasets    []string // dataset ids contributing to this tile
	Archived    bool
	Forgotten   bool
	CreatedAt   time.Time
}

// StorageUnitDimension is one (index, min, max) row for a StorageUnit.
type StorageUnitDimension struct {
	Dimension string
	Index     int64
	Min       float64
	Max       float64
}

// Footprint is the tile's spatial bounding box in its native CRS, used by
// the catalogue's spatial index (rtreego) and by the query planner's
// intersection tests.
type Footprint struct {
	MinX, MinY, MaxX, MaxY float64
}

// Intersects reports whether the two footprints share any area, inclusive
// of shared boundaries (consistent with the "pixel on a tile boundary
// belongs to the tile whose min it equals" tie-break of §4.C, which is
// enforced upstream by gridcalc, not here).
func (f Footprint) Intersects(o Footprint) bool {
	return f.MinX <= o.MaxX && o.MinX <= f.MaxX && f.MinY <= o.MaxY && o.MinY <= f.MaxY
}

// Union returns the smallest footprint containing both f and o.
func (f Footprint) Union(o Footprint) Footprint {
	return Footprint{
		MinX: minF(f.MinX, o.MinX),
		MinY: minF(f.MinY, o.MinY),
		MaxX: maxF(f.MaxX, o.MaxX),
		MaxY: maxF(f.MaxY, o.MaxY),
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
