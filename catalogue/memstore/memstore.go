// Package memstore is an in-memory implementation of catalogue.Store,
// used by the test suite (§8) and by the CLI's dry-run mode so the
// ingestor and query planner can be exercised without a live database.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
)

// data is the mutable state a Store or an in-flight Tx works against.
// BeginTx deep-copies it so a Rollback can discard every write made under
// the transaction without touching what other observers see (§8
// "Catalogue atomicity").
type data struct {
	storageTypes map[string]cube.StorageType          // tag -> spec
	domains      map[string][]string                  // domain tag -> dimension tags
	datasetTypes map[string]cube.DatasetType           // tag -> spec
	observations map[string]cube.Observation           // id -> observation
	datasets     map[string]cube.Dataset               // "type/id" -> dataset
	units        map[string]map[int]cube.StorageUnit   // "type/id" -> version -> unit
	index        *catalogue.FootprintIndex
}

func newData() *data {
	return &data{
		storageTypes: make(map[string]cube.StorageType),
		domains:      defaultDomains(),
		datasetTypes: make(map[string]cube.DatasetType),
		observations: make(map[string]cube.Observation),
		datasets:     make(map[string]cube.Dataset),
		units:        make(map[string]map[int]cube.StorageUnit),
		index:        catalogue.NewFootprintIndex(),
	}
}

// defaultDomains seeds the well-known domains named throughout the
// specification (spatial-XY, spatial-Z, spatial-XYZ, temporal, spectral).
// RegisterDomain can add to or override these.
func defaultDomains() map[string][]string {
	return map[string][]string{
		"spatial-xy":   {"longitude", "latitude"},
		"spatial-z":    {"height"},
		"spatial-xyz":  {"longitude", "latitude", "height"},
		"temporal":     {"time"},
		"spectral":     {"spectral"},
	}
}

func (d *data) clone() *data {
	nd := &data{
		storageTypes: make(map[string]cube.StorageType, len(d.storageTypes)),
		domains:      make(map[string][]string, len(d.domains)),
		datasetTypes: make(map[string]cube.DatasetType, len(d.datasetTypes)),
		observations: make(map[string]cube.Observation, len(d.observations)),
		datasets:     make(map[string]cube.Dataset, len(d.datasets)),
		units:        make(map[string]map[int]cube.StorageUnit, len(d.units)),
		index:        d.index.Clone(),
	}
	for k, v := range d.storageTypes {
		nd.storageTypes[k] = v
	}
	for k, v := range d.domains {
		cp := make([]string, len(v))
		copy(cp, v)
		nd.domains[k] = cp
	}
	for k, v := range d.datasetTypes {
		nd.datasetTypes[k] = v
	}
	for k, v := range d.observations {
		nd.observations[k] = v
	}
	for k, v := range d.datasets {
		nd.datasets[k] = v
	}
	for k, versions := range d.units {
		vv := make(map[int]cube.StorageUnit, len(versions))
		for ver, su := range versions {
			vv[ver] = su
		}
		nd.units[k] = vv
	}
	return nd
}

// Store is the root, lock-guarded catalogue. Every catalogue.Store method
// on Store runs as its own auto-committed transaction; BeginTx exposes the
// same atomicity to callers that need several operations to commit (or
// fail) together, such as the ingestor's "dimensions + dataset linkage +
// storage unit row" bundle of §4.D step 5.
type Store struct {
	mu sync.Mutex
	d  *data
}

// New constructs an empty in-memory catalogue.
func New() *Store {
	return &Store{d: newData()}
}

// RegisterDomain seeds or overwrites a domain's dimension membership,
// supplementing the defaults in defaultDomains.
func (s *Store) RegisterDomain(tag string, dimensions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.domains[tag] = append([]string(nil), dimensions...)
}

// BeginTx snapshots the current state into a working copy; writes made
// through the returned Tx are invisible to other callers (including other
// Store methods, which block on s.mu) until Commit, per §5 "Catalogue
// transactions are serialisable with respect to each other".
func (s *Store) BeginTx(ctx context.Context) (catalogue.Tx, error) {
	s.mu.Lock()
	return &tx{store: s, working: s.d.clone(), depth: 1}, nil
}

func (s *Store) withAutoTx(ctx context.Context, fn func(catalogue.Store) error) error {
	t, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		_ = t.Rollback()
		return err
	}
	return t.Commit()
}

func (s *Store) RegisterStorageType(ctx context.Context, spec cube.StorageType) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.RegisterStorageType(ctx, spec); return out })
	return out
}

func (s *Store) FindStorageType(ctx context.Context, tag string) (cube.StorageType, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.d.storageTypes[tag]
	return st, ok, nil
}

func (s *Store) RegisterDatasetType(ctx context.Context, dt cube.DatasetType) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.RegisterDatasetType(ctx, dt); return out })
	return out
}

func (s *Store) FindDatasetType(ctx context.Context, tag string) (cube.DatasetType, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dt, ok := s.d.datasetTypes[tag]
	return dt, ok, nil
}

func (s *Store) AddObservation(ctx context.Context, obs cube.Observation) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.AddObservation(ctx, obs); return out })
	return out
}

func (s *Store) FindObservation(ctx context.Context, id string) (cube.Observation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.d.observations[id]
	return o, ok, nil
}

func (s *Store) AddDataset(ctx context.Context, ds cube.Dataset, autoAddLineage bool) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.AddDataset(ctx, ds, autoAddLineage); return out })
	return out
}

func (s *Store) FindDataset(ctx context.Context, datasetType, datasetID string) (cube.Dataset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.d.datasets[datasetKey(datasetType, datasetID)]
	return ds, ok, nil
}

func (s *Store) FindDatasets(ctx context.Context, q catalogue.DatasetQuery) ([]cube.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findDatasets(s.d, q), nil
}

func (s *Store) RecordStorageUnit(ctx context.Context, su cube.StorageUnit) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.RecordStorageUnit(ctx, su); return out })
	return out
}

func (s *Store) FindStorageUnits(ctx context.Context, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) ([]cube.StorageUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findStorageUnits(s.d, storageType, pred, tr), nil
}

func (s *Store) LatestVersion(ctx context.Context, storageType, storageID string) (cube.StorageUnit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return latestVersion(s.d, storageType, storageID)
}

func (s *Store) Archive(ctx context.Context, storageType, storageID string, version int) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.Archive(ctx, storageType, storageID, version); return out })
	return out
}

func (s *Store) Restore(ctx context.Context, storageType, storageID string, version int) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.Restore(ctx, storageType, storageID, version); return out })
	return out
}

func (s *Store) Forget(ctx context.Context, storageType, storageID string, version int) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.Forget(ctx, storageType, storageID, version); return out })
	return out
}

func datasetKey(datasetType, datasetID string) string { return datasetType + "/" + datasetID }
func unitKey(storageType, storageID string) string    { return storageType + "/" + storageID }

func fmtUnitKey(storageType, storageID string, version int) string {
	return fmt.Sprintf("%s/%s@%d", storageType, storageID, version)
}
