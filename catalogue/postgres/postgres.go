// Package postgres is the PostgreSQL-backed catalogue.Store, following the
// ensureSchema/database-sql-plus-lib-pq convention used by
// rishianshu-Nucleus's entity registries: idempotent schema creation on
// Open, prepared queries, sql.Tx-scoped atomicity.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cube_domains (
	tag TEXT PRIMARY KEY,
	dimensions TEXT[] NOT NULL
);

CREATE TABLE IF NOT EXISTS cube_storage_types (
	tag TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	definition JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS cube_dataset_types (
	tag TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	definition JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS cube_observations (
	id TEXT PRIMARY KEY,
	obs_type TEXT NOT NULL,
	start_time TIMESTAMPTZ,
	end_time TIMESTAMPTZ,
	instrument TEXT
);

CREATE TABLE IF NOT EXISTS cube_datasets (
	dataset_type TEXT NOT NULL,
	dataset_id TEXT NOT NULL,
	observation_id TEXT REFERENCES cube_observations(id),
	location TEXT NOT NULL,
	ranges JSONB NOT NULL,
	metadata TEXT,
	PRIMARY KEY (dataset_type, dataset_id)
);

CREATE TABLE IF NOT EXISTS cube_storage_units (
	storage_type TEXT NOT NULL,
	storage_id TEXT NOT NULL,
	version INT NOT NULL,
	location TEXT NOT NULL,
	checksum TEXT NOT NULL,
	bytes BIGINT NOT NULL,
	min_x DOUBLE PRECISION NOT NULL,
	min_y DOUBLE PRECISION NOT NULL,
	max_x DOUBLE PRECISION NOT NULL,
	max_y DOUBLE PRECISION NOT NULL,
	dimensions JSONB NOT NULL,
	archived BOOLEAN NOT NULL DEFAULT FALSE,
	forgotten BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (storage_type, storage_id, version)
);

CREATE TABLE IF NOT EXISTS cube_storage_unit_datasets (
	storage_type TEXT NOT NULL,
	storage_id TEXT NOT NULL,
	version INT NOT NULL,
	dataset_id TEXT NOT NULL,
	PRIMARY KEY (storage_type, storage_id, version, dataset_id)
);

CREATE INDEX IF NOT EXISTS idx_storage_units_footprint
	ON cube_storage_units (storage_type, min_x, min_y, max_x, max_y);
CREATE INDEX IF NOT EXISTS idx_datasets_type ON cube_datasets (dataset_type);
`

// Store is the PostgreSQL catalogue backend. Its footprint spatial index
// (catalogue.FootprintIndex) is kept in process memory, populated on Open
// and refreshed on every RecordStorageUnit, since no PostGIS dependency
// appears anywhere in the retrieved corpus (see DESIGN.md); spatial
// predicates are therefore evaluated in Go, with SQL narrowing by
// storage_type and a min/max bounding-box index first.
type Store struct {
	db    *sql.DB
	index *catalogue.FootprintIndex
}

// Open connects to dsn, ensures the schema exists, and warms the spatial
// index from the current storage_units table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalogue/postgres: open: %w", err)
	}
	s := &Store{db: db, index: catalogue.NewFootprintIndex()}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.warmIndex(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("catalogue/postgres: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) warmIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT storage_type, storage_id, version, min_x, min_y, max_x, max_y
		FROM cube_storage_units WHERE NOT forgotten`)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: warm index: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st, id string
		var ver int
		var fp cube.Footprint
		if err := rows.Scan(&st, &id, &ver, &fp.MinX, &fp.MinY, &fp.MaxX, &fp.MaxY); err != nil {
			return err
		}
		s.index.Insert(unitKey(st, id, ver), fp)
	}
	return rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

func unitKey(storageType, storageID string, version int) string {
	return fmt.Sprintf("%s/%s@%d", storageType, storageID, version)
}

// BeginTx opens a real database/sql transaction; RecordStorageUnit's
// multi-table writes and a caller's own multi-step bundles both get the
// all-or-nothing guarantee of §8 "Catalogue atomicity" from sqlTx itself,
// with nested BeginTx calls folding into savepoints (see tx.go).
func (s *Store) BeginTx(ctx context.Context) (catalogue.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalogue/postgres: begin tx: %w", err)
	}
	return &tx{store: s, sqlTx: sqlTx, depth: 1}, nil
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
	return findStorageType(ctx, s.db, tag)
}

func (s *Store) RegisterDatasetType(ctx context.Context, dt cube.DatasetType) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.RegisterDatasetType(ctx, dt); return out })
	return out
}

func (s *Store) FindDatasetType(ctx context.Context, tag string) (cube.DatasetType, bool, error) {
	return findDatasetType(ctx, s.db, tag)
}

func (s *Store) AddObservation(ctx context.Context, obs cube.Observation) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.AddObservation(ctx, obs); return out })
	return out
}

func (s *Store) FindObservation(ctx context.Context, id string) (cube.Observation, bool, error) {
	return findObservation(ctx, s.db, id)
}

func (s *Store) AddDataset(ctx context.Context, ds cube.Dataset, autoAddLineage bool) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.AddDataset(ctx, ds, autoAddLineage); return out })
	return out
}

func (s *Store) FindDataset(ctx context.Context, datasetType, datasetID string) (cube.Dataset, bool, error) {
	return findDataset(ctx, s.db, datasetType, datasetID)
}

func (s *Store) FindDatasets(ctx context.Context, q catalogue.DatasetQuery) ([]cube.Dataset, error) {
	return findDatasets(ctx, s.db, q)
}

// RecordStorageUnit commits through a single auto-tx so the storage unit
// row and its dataset linkage rows all happen or none do. The in-process
// spatial index entry is added as soon as the insert succeeds inside the
// transaction; it is not removed if the commit then fails.
func (s *Store) RecordStorageUnit(ctx context.Context, su cube.StorageUnit) error {
	var out error
	_ = s.withAutoTx(ctx, func(t catalogue.Store) error { out = t.RecordStorageUnit(ctx, su); return out })
	return out
}

func (s *Store) FindStorageUnits(ctx context.Context, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) ([]cube.StorageUnit, error) {
	return findStorageUnits(ctx, s.db, storageType, pred, tr)
}

func (s *Store) LatestVersion(ctx context.Context, storageType, storageID string) (cube.StorageUnit, bool, error) {
	return latestVersion(ctx, s.db, storageType, storageID)
}

func (s *Store) Archive(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, s.db, storageType, storageID, version, "archived", true)
}

func (s *Store) Restore(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, s.db, storageType, storageID, version, "archived", false)
}

func (s *Store) Forget(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, s.db, storageType, storageID, version, "forgotten", true)
}

// Index exposes the in-process spatial index for the query planner
// (§4.E), which needs footprint-intersection lookups that are cheaper to
// answer in process memory than with a per-query SQL bounding-box scan.
func (s *Store) Index() *catalogue.FootprintIndex { return s.index }
