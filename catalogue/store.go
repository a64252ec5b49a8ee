// Package catalogue is the single source of truth for the cube's
// dimensional metadata (component B): dataset types, storage types,
// dimensions, domains, measurements, datasets, observations and storage
// units, plus the invariants of §3.2.
package catalogue

import (
	"context"
	"time"

	"github.com/earthcube/cube"
)

// DatasetQuery is a conjunction of per-dimension range constraints plus
// optional dataset-type and observation filters, as consumed by
// FindDatasets (§4.B).
type DatasetQuery struct {
	DatasetType string   // empty = any
	Observation string   // empty = any
	Ranges      map[string]Range // dimension tag -> requested range
}

// Range avoids an import cycle with refsystem for the simple min/max
// pair a dataset query needs; gridcalc/query translate their richer
// selector types down to this shape.
type Range struct {
	Min, Max float64
}

// NewRange constructs the range form DatasetQuery.Ranges expects.
func NewRange(min, max float64) Range { return Range{Min: min, Max: max} }

func (r Range) Overlaps(min, max float64) bool {
	return r.Min <= max && min <= r.Max
}

// TileIndexPredicate selects storage units by their per-dimension tile
// index, used by FindStorageUnits (§4.B) and the query planner (§4.E).
type TileIndexPredicate func(cube.TileIndex) bool

// TimeRange bounds an inclusive [Start, End] window, half-open ranges are
// expressed by a zero End or zero Start per §6.4.
type TimeRange struct {
	Start, End time.Time
}

// Tx is the nested-transaction handle of §4.B/§5: BeginTx returns one,
// Commit/Rollback end it, and operations performed through a Tx are only
// visible to other observers after the outermost Commit.
type Tx interface {
	// BeginTx opens a nested transaction; its Commit composes into the
	// parent's single outer commit (§5 "nested transactions compose into
	// a single outer commit").
	BeginTx(ctx context.Context) (Tx, error)
	Commit() error
	Rollback() error

	Store
}

// Store is the narrow repository interface every catalogue backend
// (postgres, memstore) implements; it is also the interface through which
// a Tx performs reads/writes so call sites do not need to distinguish a
// top-level Store from a nested Tx.
type Store interface {
	// RegisterStorageType validates spec against the invariants of §3.2
	// and persists it. Returns a SchemaError-kind error (wrapped with
	// cube.ErrSchema) on violation, including a duplicate tag.
	RegisterStorageType(ctx context.Context, spec cube.StorageType) error
	FindStorageType(ctx context.Context, tag string) (cube.StorageType, bool, error)

	RegisterDatasetType(ctx context.Context, dt cube.DatasetType) error
	FindDatasetType(ctx context.Context, tag string) (cube.DatasetType, bool, error)

	// AddObservation inserts an observation; used directly or implicitly
	// by AddDataset when auto_add_lineage is set.
	AddObservation(ctx context.Context, obs cube.Observation) error
	FindObservation(ctx context.Context, id string) (cube.Observation, bool, error)

	// AddDataset is idempotent by (dataset_type, dataset_id). autoAddLineage
	// mirrors the add_dataset contract of §4.B: when true, a missing
	// observation is synthesised from the descriptor instead of failing
	// with LineageError.
	AddDataset(ctx context.Context, ds cube.Dataset, autoAddLineage bool) error
	FindDataset(ctx context.Context, datasetType, datasetID string) (cube.Dataset, bool, error)
	FindDatasets(ctx context.Context, q DatasetQuery) ([]cube.Dataset, error)

	// RecordStorageUnit is atomic: either the storage unit, its per-dimension
	// rows and its dataset linkage all become visible, or none do (§4.B, §8
	// "Catalogue atomicity").
	RecordStorageUnit(ctx context.Context, su cube.StorageUnit) error
	FindStorageUnits(ctx context.Context, storageType string, pred TileIndexPredicate, tr TimeRange) ([]cube.StorageUnit, error)
	// LatestVersion returns the highest non-archived, non-forgotten
	// version at (storageType, storageID), or ok=false if none exists.
	LatestVersion(ctx context.Context, storageType, storageID string) (cube.StorageUnit, bool, error)

	// Archive marks a storage unit version as archived (still resolvable,
	// excluded from new queries' candidate set, §6.5/§8 scenario 5).
	Archive(ctx context.Context, storageType, storageID string, version int) error
	// Restore un-archives a storage unit version.
	Restore(ctx context.Context, storageType, storageID string, version int) error
	// Forget removes a storage unit from the set of candidates for new
	// queries without deleting its file (§6.5).
	Forget(ctx context.Context, storageType, storageID string, version int) error
}
