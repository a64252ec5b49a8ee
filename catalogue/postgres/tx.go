package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting the query
// helpers below run identically whether called through Store's
// auto-commit path or through an open tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tx is a nested transaction handle. depth 1 holds the real *sql.Tx;
// deeper BeginTx calls issue a SAVEPOINT instead of opening a second
// database transaction, since Postgres transactions do not nest -- this
// is the SQL-native equivalent of memstore's clone-the-working-copy
// nesting, grounded on the same §5 "nested transactions compose into a
// single outer commit" contract.
type tx struct {
	store      *Store
	sqlTx      *sql.Tx
	depth      int
	savepoints int
}

func (t *tx) BeginTx(ctx context.Context) (catalogue.Tx, error) {
	t.depth++
	t.savepoints++
	name := fmt.Sprintf("cube_sp_%d", t.savepoints)
	if _, err := t.sqlTx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("catalogue/postgres: savepoint: %w", err)
	}
	return &nestedTx{parent: t, name: name}, nil
}

func (t *tx) Commit() error {
	if err := t.sqlTx.Commit(); err != nil {
		return fmt.Errorf("catalogue/postgres: commit: %w", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.sqlTx.Rollback(); err != nil {
		return fmt.Errorf("catalogue/postgres: rollback: %w", err)
	}
	return nil
}

// nestedTx is the handle returned for depth > 1: its Commit releases the
// savepoint (folding into the parent), its Rollback rolls back to it
// without aborting the outer transaction.
type nestedTx struct {
	parent *tx
	name   string
}

func (n *nestedTx) BeginTx(ctx context.Context) (catalogue.Tx, error) { return n.parent.BeginTx(ctx) }

func (n *nestedTx) Commit() error {
	_, err := n.parent.sqlTx.ExecContext(context.Background(), "RELEASE SAVEPOINT "+n.name)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: release savepoint: %w", err)
	}
	return nil
}

func (n *nestedTx) Rollback() error {
	_, err := n.parent.sqlTx.ExecContext(context.Background(), "ROLLBACK TO SAVEPOINT "+n.name)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: rollback to savepoint: %w", err)
	}
	return nil
}

func (n *nestedTx) RegisterStorageType(ctx context.Context, spec cube.StorageType) error {
	return registerStorageType(ctx, n.parent.sqlTx, spec)
}
func (n *nestedTx) FindStorageType(ctx context.Context, tag string) (cube.StorageType, bool, error) {
	return findStorageType(ctx, n.parent.sqlTx, tag)
}
func (n *nestedTx) RegisterDatasetType(ctx context.Context, dt cube.DatasetType) error {
	return registerDatasetType(ctx, n.parent.sqlTx, dt)
}
func (n *nestedTx) FindDatasetType(ctx context.Context, tag string) (cube.DatasetType, bool, error) {
	return findDatasetType(ctx, n.parent.sqlTx, tag)
}
func (n *nestedTx) AddObservation(ctx context.Context, obs cube.Observation) error {
	return addObservation(ctx, n.parent.sqlTx, obs)
}
func (n *nestedTx) FindObservation(ctx context.Context, id string) (cube.Observation, bool, error) {
	return findObservation(ctx, n.parent.sqlTx, id)
}
func (n *nestedTx) AddDataset(ctx context.Context, ds cube.Dataset, autoAddLineage bool) error {
	return addDataset(ctx, n.parent.sqlTx, ds, autoAddLineage)
}
func (n *nestedTx) FindDataset(ctx context.Context, datasetType, datasetID string) (cube.Dataset, bool, error) {
	return findDataset(ctx, n.parent.sqlTx, datasetType, datasetID)
}
func (n *nestedTx) FindDatasets(ctx context.Context, q catalogue.DatasetQuery) ([]cube.Dataset, error) {
	return findDatasets(ctx, n.parent.sqlTx, q)
}
func (n *nestedTx) RecordStorageUnit(ctx context.Context, su cube.StorageUnit) error {
	err := recordStorageUnit(ctx, n.parent.sqlTx, su)
	if err == nil {
		n.parent.store.index.Insert(unitKey(su.StorageType, su.StorageID, su.Version), su.Footprint)
	}
	return err
}
func (n *nestedTx) FindStorageUnits(ctx context.Context, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) ([]cube.StorageUnit, error) {
	return findStorageUnits(ctx, n.parent.sqlTx, storageType, pred, tr)
}
func (n *nestedTx) LatestVersion(ctx context.Context, storageType, storageID string) (cube.StorageUnit, bool, error) {
	return latestVersion(ctx, n.parent.sqlTx, storageType, storageID)
}
func (n *nestedTx) Archive(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, n.parent.sqlTx, storageType, storageID, version, "archived", true)
}
func (n *nestedTx) Restore(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, n.parent.sqlTx, storageType, storageID, version, "archived", false)
}
func (n *nestedTx) Forget(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, n.parent.sqlTx, storageType, storageID, version, "forgotten", true)
}

// The outer tx implements the same Store methods by delegating to the
// same free functions against its own *sql.Tx.

func (t *tx) RegisterStorageType(ctx context.Context, spec cube.StorageType) error {
	return registerStorageType(ctx, t.sqlTx, spec)
}
func (t *tx) FindStorageType(ctx context.Context, tag string) (cube.StorageType, bool, error) {
	return findStorageType(ctx, t.sqlTx, tag)
}
func (t *tx) RegisterDatasetType(ctx context.Context, dt cube.DatasetType) error {
	return registerDatasetType(ctx, t.sqlTx, dt)
}
func (t *tx) FindDatasetType(ctx context.Context, tag string) (cube.DatasetType, bool, error) {
	return findDatasetType(ctx, t.sqlTx, tag)
}
func (t *tx) AddObservation(ctx context.Context, obs cube.Observation) error {
	return addObservation(ctx, t.sqlTx, obs)
}
func (t *tx) FindObservation(ctx context.Context, id string) (cube.Observation, bool, error) {
	return findObservation(ctx, t.sqlTx, id)
}
func (t *tx) AddDataset(ctx context.Context, ds cube.Dataset, autoAddLineage bool) error {
	return addDataset(ctx, t.sqlTx, ds, autoAddLineage)
}
func (t *tx) FindDataset(ctx context.Context, datasetType, datasetID string) (cube.Dataset, bool, error) {
	return findDataset(ctx, t.sqlTx, datasetType, datasetID)
}
func (t *tx) FindDatasets(ctx context.Context, q catalogue.DatasetQuery) ([]cube.Dataset, error) {
	return findDatasets(ctx, t.sqlTx, q)
}
func (t *tx) RecordStorageUnit(ctx context.Context, su cube.StorageUnit) error {
	err := recordStorageUnit(ctx, t.sqlTx, su)
	if err == nil {
		t.store.index.Insert(unitKey(su.StorageType, su.StorageID, su.Version), su.Footprint)
	}
	return err
}
func (t *tx) FindStorageUnits(ctx context.Context, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) ([]cube.StorageUnit, error) {
	return findStorageUnits(ctx, t.sqlTx, storageType, pred, tr)
}
func (t *tx) LatestVersion(ctx context.Context, storageType, storageID string) (cube.StorageUnit, bool, error) {
	return latestVersion(ctx, t.sqlTx, storageType, storageID)
}
func (t *tx) Archive(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, t.sqlTx, storageType, storageID, version, "archived", true)
}
func (t *tx) Restore(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, t.sqlTx, storageType, storageID, version, "archived", false)
}
func (t *tx) Forget(ctx context.Context, storageType, storageID string, version int) error {
	return setFlag(ctx, t.sqlTx, storageType, storageID, version, "forgotten", true)
}

// -- query helpers, shared by Store's auto-commit path and both tx kinds --

func registerStorageType(ctx context.Context, ex execer, spec cube.StorageType) error {
	var domainTags []string
	for _, d := range spec.Dimensions {
		domainTags = append(domainTags, d.Domain)
	}
	domainsOf := func(tag string) ([]string, bool) {
		row := ex.QueryRowContext(ctx, `SELECT dimensions FROM cube_domains WHERE tag = $1`, tag)
		var dims pqStringArray
		if err := row.Scan(&dims); err != nil {
			return nil, false
		}
		return []string(dims), true
	}
	if err := catalogue.ValidateStorageType(spec, domainsOf); err != nil {
		return err
	}

	var exists bool
	if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cube_storage_types WHERE tag = $1)`, spec.Tag).Scan(&exists); err != nil {
		return fmt.Errorf("catalogue/postgres: check storage type: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: storage type tag %q already registered", cube.ErrSchema, spec.Tag)
	}

	blob, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: marshal storage type: %w", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO cube_storage_types (tag, name, definition) VALUES ($1, $2, $3)`,
		spec.Tag, spec.Name, blob)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: insert storage type: %w", err)
	}
	return nil
}

func findStorageType(ctx context.Context, ex execer, tag string) (cube.StorageType, bool, error) {
	var blob []byte
	err := ex.QueryRowContext(ctx, `SELECT definition FROM cube_storage_types WHERE tag = $1`, tag).Scan(&blob)
	if err == sql.ErrNoRows {
		return cube.StorageType{}, false, nil
	}
	if err != nil {
		return cube.StorageType{}, false, fmt.Errorf("catalogue/postgres: find storage type: %w", err)
	}
	var st cube.StorageType
	if err := json.Unmarshal(blob, &st); err != nil {
		return cube.StorageType{}, false, err
	}
	return st, true, nil
}

func registerDatasetType(ctx context.Context, ex execer, dt cube.DatasetType) error {
	if err := catalogue.ValidateDatasetType(dt); err != nil {
		return err
	}
	var exists bool
	if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cube_dataset_types WHERE tag = $1)`, dt.Tag).Scan(&exists); err != nil {
		return fmt.Errorf("catalogue/postgres: check dataset type: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: dataset type tag %q already registered", cube.ErrCatalogueConflict, dt.Tag)
	}
	blob, err := json.Marshal(dt)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO cube_dataset_types (tag, name, definition) VALUES ($1, $2, $3)`, dt.Tag, dt.Name, blob)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: insert dataset type: %w", err)
	}
	return nil
}

func findDatasetType(ctx context.Context, ex execer, tag string) (cube.DatasetType, bool, error) {
	var blob []byte
	err := ex.QueryRowContext(ctx, `SELECT definition FROM cube_dataset_types WHERE tag = $1`, tag).Scan(&blob)
	if err == sql.ErrNoRows {
		return cube.DatasetType{}, false, nil
	}
	if err != nil {
		return cube.DatasetType{}, false, err
	}
	var dt cube.DatasetType
	if err := json.Unmarshal(blob, &dt); err != nil {
		return cube.DatasetType{}, false, err
	}
	return dt, true, nil
}

func addObservation(ctx context.Context, ex execer, obs cube.Observation) error {
	var exists bool
	if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cube_observations WHERE id = $1)`, obs.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: observation %q already exists", cube.ErrCatalogueConflict, obs.ID)
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO cube_observations (id, obs_type, start_time, end_time, instrument)
		VALUES ($1, $2, $3, $4, $5)`, obs.ID, obs.Type, nullTime(obs.Start), nullTime(obs.End), obs.Instrument)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: insert observation: %w", err)
	}
	return nil
}

func findObservation(ctx context.Context, ex execer, id string) (cube.Observation, bool, error) {
	var o cube.Observation
	var start, end sql.NullTime
	err := ex.QueryRowContext(ctx, `SELECT id, obs_type, start_time, end_time, instrument FROM cube_observations WHERE id = $1`, id).
		Scan(&o.ID, &o.Type, &start, &end, &o.Instrument)
	if err == sql.ErrNoRows {
		return cube.Observation{}, false, nil
	}
	if err != nil {
		return cube.Observation{}, false, err
	}
	o.Start, o.End = start.Time, end.Time
	return o, true, nil
}

func addDataset(ctx context.Context, ex execer, ds cube.Dataset, autoAddLineage bool) error {
	var exists bool
	if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cube_datasets WHERE dataset_type = $1 AND dataset_id = $2)`,
		ds.DatasetType, ds.DatasetID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil // idempotent
	}

	if ds.Observation != "" {
		var obsExists bool
		if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cube_observations WHERE id = $1)`, ds.Observation).Scan(&obsExists); err != nil {
			return err
		}
		if !obsExists {
			if !autoAddLineage {
				return fmt.Errorf("%w: observation %q referenced by dataset %s/%s does not exist",
					cube.ErrLineage, ds.Observation, ds.DatasetType, ds.DatasetID)
			}
			if err := addObservation(ctx, ex, cube.Observation{ID: ds.Observation, Type: ds.DatasetType}); err != nil {
				return err
			}
		}
	}

	blob, err := json.Marshal(ds.Ranges)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO cube_datasets (dataset_type, dataset_id, observation_id, location, ranges, metadata)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
		ds.DatasetType, ds.DatasetID, ds.Observation, ds.Location, blob, ds.Metadata)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: insert dataset: %w", err)
	}
	return nil
}

func findDataset(ctx context.Context, ex execer, datasetType, datasetID string) (cube.Dataset, bool, error) {
	var ds cube.Dataset
	var obs sql.NullString
	var blob []byte
	err := ex.QueryRowContext(ctx, `SELECT dataset_type, dataset_id, observation_id, location, ranges, metadata
		FROM cube_datasets WHERE dataset_type = $1 AND dataset_id = $2`, datasetType, datasetID).
		Scan(&ds.DatasetType, &ds.DatasetID, &obs, &ds.Location, &blob, &ds.Metadata)
	if err == sql.ErrNoRows {
		return cube.Dataset{}, false, nil
	}
	if err != nil {
		return cube.Dataset{}, false, err
	}
	ds.Observation = obs.String
	if err := json.Unmarshal(blob, &ds.Ranges); err != nil {
		return cube.Dataset{}, false, err
	}
	return ds, true, nil
}

func findDatasets(ctx context.Context, ex execer, q catalogue.DatasetQuery) ([]cube.Dataset, error) {
	query := `SELECT dataset_type, dataset_id, observation_id, location, ranges, metadata FROM cube_datasets WHERE TRUE`
	var args []any
	if q.DatasetType != "" {
		args = append(args, q.DatasetType)
		query += fmt.Sprintf(" AND dataset_type = $%d", len(args))
	}
	if q.Observation != "" {
		args = append(args, q.Observation)
		query += fmt.Sprintf(" AND observation_id = $%d", len(args))
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalogue/postgres: find datasets: %w", err)
	}
	defer rows.Close()

	var out []cube.Dataset
outer:
	for rows.Next() {
		var ds cube.Dataset
		var obs sql.NullString
		var blob []byte
		if err := rows.Scan(&ds.DatasetType, &ds.DatasetID, &obs, &ds.Location, &blob, &ds.Metadata); err != nil {
			return nil, err
		}
		ds.Observation = obs.String
		if err := json.Unmarshal(blob, &ds.Ranges); err != nil {
			return nil, err
		}
		for dim, want := range q.Ranges {
			if !datasetOverlapsRange(ds, dim, want) {
				continue outer
			}
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func datasetOverlapsRange(ds cube.Dataset, dim string, want catalogue.Range) bool {
	for _, r := range ds.Ranges {
		if r.Dimension == dim {
			return want.Overlaps(r.Min, r.Max)
		}
	}
	return false
}

func recordStorageUnit(ctx context.Context, ex execer, su cube.StorageUnit) error {
	blob, err := json.Marshal(su.Dimensions)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO cube_storage_units
		(storage_type, storage_id, version, location, checksum, bytes, min_x, min_y, max_x, max_y, dimensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		su.StorageType, su.StorageID, su.Version, su.Location, su.Checksum, su.Bytes,
		su.Footprint.MinX, su.Footprint.MinY, su.Footprint.MaxX, su.Footprint.MaxY, blob)
	if err != nil {
		return fmt.Errorf("%w: %v", cube.ErrCatalogueConflict, err)
	}
	for _, dsID := range su.Datasets {
		var exists bool
		if err := ex.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cube_datasets WHERE dataset_id = $1)`, dsID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: storage unit %s/%s references uncatalogued dataset %q",
				cube.ErrLineage, su.StorageType, su.StorageID, dsID)
		}
		_, err = ex.ExecContext(ctx, `INSERT INTO cube_storage_unit_datasets (storage_type, storage_id, version, dataset_id)
			VALUES ($1, $2, $3, $4)`, su.StorageType, su.StorageID, su.Version, dsID)
		if err != nil {
			return fmt.Errorf("catalogue/postgres: link dataset to storage unit: %w", err)
		}
	}
	return nil
}

func findStorageUnits(ctx context.Context, ex execer, storageType string, pred catalogue.TileIndexPredicate, tr catalogue.TimeRange) ([]cube.StorageUnit, error) {
	query := `SELECT storage_type, storage_id, version, location, checksum, bytes, min_x, min_y, max_x, max_y, dimensions, archived, forgotten, created_at
		FROM cube_storage_units WHERE NOT forgotten AND NOT archived`
	var args []any
	if storageType != "" {
		args = append(args, storageType)
		query += fmt.Sprintf(" AND storage_type = $%d", len(args))
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalogue/postgres: find storage units: %w", err)
	}
	defer rows.Close()

	var out []cube.StorageUnit
	for rows.Next() {
		su, err := scanStorageUnit(rows)
		if err != nil {
			return nil, err
		}
		if pred != nil {
			idx := cube.TileIndex{}
			for _, d := range su.Dimensions {
				idx[d.Dimension] = d.Index
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
	return out, rows.Err()
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

func latestVersion(ctx context.Context, ex execer, storageType, storageID string) (cube.StorageUnit, bool, error) {
	row := ex.QueryRowContext(ctx, `SELECT storage_type, storage_id, version, location, checksum, bytes, min_x, min_y, max_x, max_y, dimensions, archived, forgotten, created_at
		FROM cube_storage_units
		WHERE storage_type = $1 AND storage_id = $2 AND NOT archived AND NOT forgotten
		ORDER BY version DESC LIMIT 1`, storageType, storageID)
	su, err := scanStorageUnit(row)
	if err == sql.ErrNoRows {
		return cube.StorageUnit{}, false, nil
	}
	if err != nil {
		return cube.StorageUnit{}, false, err
	}
	return su, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStorageUnit(r rowScanner) (cube.StorageUnit, error) {
	var su cube.StorageUnit
	var blob []byte
	err := r.Scan(&su.StorageType, &su.StorageID, &su.Version, &su.Location, &su.Checksum, &su.Bytes,
		&su.Footprint.MinX, &su.Footprint.MinY, &su.Footprint.MaxX, &su.Footprint.MaxY,
		&blob, &su.Archived, &su.Forgotten, &su.CreatedAt)
	if err != nil {
		return cube.StorageUnit{}, err
	}
	if err := json.Unmarshal(blob, &su.Dimensions); err != nil {
		return cube.StorageUnit{}, err
	}
	return su, nil
}

func setFlag(ctx context.Context, ex execer, storageType, storageID string, version int, column string, value bool) error {
	query := fmt.Sprintf(`UPDATE cube_storage_units SET %s = $1 WHERE storage_type = $2 AND storage_id = $3 AND version = $4`, column)
	res, err := ex.ExecContext(ctx, query, value, storageType, storageID, version)
	if err != nil {
		return fmt.Errorf("catalogue/postgres: set %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: storage unit %s/%s version %d not found", cube.ErrCatalogueConflict, storageType, storageID, version)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// pqStringArray scans a Postgres TEXT[] column without requiring the
// caller to import lib/pq's array helper at every call site.
type pqStringArray []string

func (a *pqStringArray) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return parsePQArray(string(v), a)
	case string:
		return parsePQArray(v, a)
	case nil:
		*a = nil
		return nil
	default:
		return fmt.Errorf("catalogue/postgres: cannot scan %T into string array", src)
	}
}

// parsePQArray parses Postgres's "{a,b,c}" text array representation.
// Dimension tags never contain commas or braces, so no quoting/escaping
// support is needed beyond stripping the braces.
func parsePQArray(raw string, a *pqStringArray) error {
	raw = trimBraces(raw)
	if raw == "" {
		*a = pqStringArray{}
		return nil
	}
	var out pqStringArray
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			out = append(out, raw[start:i])
			start = i + 1
		}
	}
	*a = out
	return nil
}

func trimBraces(s string) string {
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		return s[1 : len(s)-1]
	}
	return s
}
