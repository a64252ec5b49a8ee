package memstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
)

// tx is the working-copy transaction handle returned by Store.BeginTx.
// Nested BeginTx calls push a snapshot of the current working copy onto
// stack; a nested Rollback restores that snapshot, a nested Commit simply
// discards it (the mutation stays live in working). Only the outermost
// Commit/Rollback releases store.mu and, for Commit, publishes working as
// the store's new data -- "nested transactions compose into a single
// outer commit" (§5).
type tx struct {
	store   *Store
	working *data
	stack   []*data
	depth   int
}

func (t *tx) BeginTx(ctx context.Context) (catalogue.Tx, error) {
	t.stack = append(t.stack, t.working.clone())
	t.depth++
	return t, nil
}

func (t *tx) Commit() error {
	if t.depth > 1 {
		t.stack = t.stack[:len(t.stack)-1]
		t.depth--
		return nil
	}
	t.store.d = t.working
	t.store.mu.Unlock()
	t.depth = 0
	return nil
}

func (t *tx) Rollback() error {
	if t.depth > 1 {
		t.working = t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.depth--
		return nil
	}
	t.store.mu.Unlock()
	t.depth = 0
	return nil
}

func (t *tx) RegisterStorageType(ctx context.Context, spec cube.StorageType) error {
	if _, exists := t.working.storageTypes[spec.Tag]; exists {
		return fmt.Errorf("%w: storage type tag %q already registered", cube.ErrSchema, spec.Tag)
	}
	domainsOf := func(domainTag string) ([]string, bool) {
		members, ok := t.working.domains[domainTag]
		return members, ok
	}
	if err := catalogue.ValidateStorageType(spec, domainsOf); err != nil {
		return err
	}
	t.working.storageTypes[spec.Tag] = spec
	return nil
}

func (t *tx) FindStorageType(ctx context.Context, tag string) (cube.StorageType, bool, error) {
	st, ok := t.working.storageTypes[tag]
	return st, ok, nil
}

func (t *tx) RegisterDatasetType(ctx context.Context, dt cube.DatasetType) error {
	if _, exists := t.working.datasetTypes[dt.Tag]; exists {
		return fmt.Errorf("%w: dataset type tag %q already registered", cube.ErrCatalogueConflict, dt.Tag)
	}
	if err := catalogue.ValidateDatasetType(dt); err != nil {
		return err
	}
	t.working.datasetTypes[dt.Tag] = dt
	return nil
}

func (t *tx) FindDatasetType(ctx context.Context, tag string) (cube.DatasetType, bool, error) {
	dt, ok := t.working.datasetTypes[tag]
	return dt, ok, nil
}

func (t *tx) AddObservation(ctx context.Context, obs cube.Observation) error {
	if _, exists := t.working.observations[obs.ID]; exists {
		return fmt.Errorf("%w: observation %q already exists", cube.ErrCatalogueConflict, obs.ID)
	}
	t.working.observations[obs.ID] = obs
	return nil
}

func (t *tx) FindObservation(ctx context.Context, id string) (cube.Observation, bool, error) {
	o, ok := t.working.observations[id]
	return o, ok, nil
}

func (t *tx) AddDataset(ctx context.Context, ds cube.Dataset, autoAddLineage bool) error {
	key := datasetKey(ds.DatasetType, ds.DatasetID)
	if _, exists := t.working.datasets[key]; exists {
		// idempotent by (dataset_type, dataset_id)
		return nil
	}

	if ds.Observation != "" {
		if _, ok := t.working.observations[ds.Observation]; !ok {
			if !autoAddLineage {
				return fmt.Errorf("%w: observation %q referenced by dataset %s/%s does not exist",
					cube.ErrLineage, ds.Observation, ds.DatasetType, ds.DatasetID)
			}
			t.working.observations[ds.Observation] = cube.Observation{ID: ds.Observation, Type: ds.DatasetType}
		}
	}

	t.working.datasets[key] = ds
	return nil
}

func (t *tx) FindDataset(ctx context.Context, datasetType, datasetID string) (cube.Dataset, bool, error) {
	ds, ok := t.working.datasets[datasetKey(datasetType, datasetID)]
	return ds, ok, nil
}

func (t *tx) FindDatasets(ctx context.Context, q catalogue.DatasetQuery) ([]cube.Dataset, error) {
	return findDatasets(t.working, q), nil
}

func (t *tx) RecordStorageUnit(ctx context.Context, su cube.StorageUnit) error {
	spec, ok := t.working.storageTypes[su.StorageType]
	if !ok {
		return fmt.Errorf("%w: storage type %q not registered", cube.ErrSchema, su.StorageType)
	}
	if err := catalogue.ValidateStorageUnitFootprint(su, spec); err != nil {
		return err
	}

	key := unitKey(su.StorageType, su.StorageID)
	versions, ok := t.working.units[key]
	if !ok {
		versions = make(map[int]cube.StorageUnit)
		t.working.units[key] = versions
	}
	if _, exists := versions[su.Version]; exists {
		return fmt.Errorf("%w: storage unit %s/%s version %d already recorded", cube.ErrCatalogueConflict, su.StorageType, su.StorageID, su.Version)
	}
	for _, dsID := range su.Datasets {
		if !hasDatasetID(t.working.datasets, dsID) {
			return fmt.Errorf("%w: storage unit %s/%s references uncatalogued dataset %q",
				cube.ErrLineage, su.StorageType, su.StorageID, dsID)
		}
	}

	versions[su.Version] = su
	t.working.index.Insert(fmtUnitKey(su.StorageType, su.StorageID, su.Version), su.Footprint)
	return nil
}

func hasDatasetID(datasets map[string]cube.Dataset, id string) bool {
	for _, ds := range datasets {
		if ds.DatasetID == id {
			return true
		}
	}
	return false
}

func (t *tx) FindStorageUnits(ctx context.Context, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) ([]cube.StorageUnit, error) {
	return findStorageUnits(t.working, storageType, pred, tr), nil
}

func (t *tx) LatestVersion(ctx context.Context, storageType, storageID string) (cube.StorageUnit, bool, error) {
	return latestVersion(t.working, storageType, storageID)
}

func (t *tx) Archive(ctx context.Context, storageType, storageID string, version int) error {
	return t.setFlag(storageType, storageID, version, func(su *cube.StorageUnit) { su.Archived = true })
}

func (t *tx) Restore(ctx context.Context, storageType, storageID string, version int) error {
	return t.setFlag(storageType, storageID, version, func(su *cube.StorageUnit) { su.Archived = false })
}

func (t *tx) Forget(ctx context.Context, storageType, storageID string, version int) error {
	return t.setFlag(storageType, storageID, version, func(su *cube.StorageUnit) { su.Forgotten = true })
}

func (t *tx) setFlag(storageType, storageID string, version int, mutate func(*cube.StorageUnit)) error {
	key := unitKey(storageType, storageID)
	versions, ok := t.working.units[key]
	if !ok {
		return fmt.Errorf("%w: storage unit %s/%s not found", cube.ErrCatalogueConflict, storageType, storageID)
	}
	su, ok := versions[version]
	if !ok {
		return fmt.Errorf("%w: storage unit %s/%s version %d not found", cube.ErrCatalogueConflict, storageType, storageID, version)
	}
	mutate(&su)
	versions[version] = su
	return nil
}

func findDatasets(d *data, q catalogue.DatasetQuery) []cube.Dataset {
	var out []cube.Dataset
outer:
	for _, ds := range d.datasets {
		if q.DatasetType != "" && ds.DatasetType != q.DatasetType {
			continue
		}
		if q.Observation != "" && ds.Observation != q.Observation {
			continue
		}
		for dim, want := range q.Ranges {
			if !datasetOverlapsRange(ds, dim, want) {
				continue outer
			}
		}
		out = append(out, ds)
	}
	return out
}

func datasetOverlapsRange(ds cube.Dataset, dim string, want catalogue.Range) bool {
	for _, r := range ds.Ranges {
		if r.Dimension == dim {
			return want.Overlaps(r.Min, r.Max)
		}
	}
	// dataset has no extent recorded for this dimension: treat as non-matching
	return false
}

func findStorageUnits(d *data, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) []cube.StorageUnit {
	var out []cube.StorageUnit
	for key, versions := range d.units {
		if storageType != "" && !strings.HasPrefix(key, storageType+"/") {
			continue
		}
		for _, su := range versions {
			if su.Forgotten || su.Archived {
				continue
			}
			if pred != nil {
				idx := cube.TileIndex{}
				for _, dd := range su.Dimensions {
					idx[dd.Dimension] = dd.Index
				}
				if !pred(idx) {
					continue
				}
			}
			if !tr.Start.IsZero() || !tr.End.IsZero() {
				if !unitInTimeRange(su, tr) {
					continue
				}
			}
			out = append(out, su)
		}
	}
	return out
}

func unitInTimeRange(su cube.StorageUnit, tr catalogue.TimeRange) bool {
	for _, d := range su.Dimensions {
		if d.Dimension != "time" {
			continue
		}
		if !tr.End.IsZero() && float64(tr.End.Unix()) < d.Min {
			return false
		}
		if !tr.Start.IsZero() && float64(tr.Start.Unix()) > d.Max {
			return false
		}
	}
	return true
}

func latestVersion(d *data, storageType, storageID string) (cube.StorageUnit, bool, error) {
	versions, ok := d.units[unitKey(storageType, storageID)]
	if !ok || len(versions) == 0 {
		return cube.StorageUnit{}, false, nil
	}
	best := -1
	var bestUnit cube.StorageUnit
	for ver, su := range versions {
		if su.Archived || su.Forgotten {
			continue
		}
		if ver > best {
			best = ver
			bestUnit = su
		}
	}
	if best == -1 {
		return cube.StorageUnit{}, false, nil
	}
	return bestUnit, true, nil
}
