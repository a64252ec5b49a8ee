package tilestore

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/earthcube/cube"
)

// Band is one measurement's pixel buffer for a tile write, row-major over
// [rows][cols] flattened to a single slice, matching TILEDB_ROW_MAJOR.
type Band struct {
	Tag  string
	Data any // one of the []intN/[]uintN/[]float32/[]float64 slice kinds
}

// ArrayOpen opens uri in mode, freeing the handle on a failed Open so
// callers never leak it.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}
	return array, nil
}

// Create materialises a new dense array at uri for spec's schema, sized
// rows x cols (the storage type's per-tile pixel extent).
func Create(ctx *tiledb.Context, uri string, spec cube.StorageType, rows, cols int) error {
	schema, err := CreateSchema(ctx, spec, rows, cols)
	if err != nil {
		return err
	}
	defer schema.Free()
	if err := tiledb.CreateArray(ctx, uri, schema); err != nil {
		return fmt.Errorf("tilestore: create array %s: %w", uri, err)
	}
	return nil
}

// WriteBands writes one or more measurement bands into the full extent of
// the array at uri, for the initial materialisation of a tile (§4.D step
// 3 "allocate a nodata-filled array, then overlay each contributing
// source in order").
func WriteBands(ctx *tiledb.Context, uri string, bands []Band) error {
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_WRITE)
	if err != nil {
		return fmt.Errorf("tilestore: open for write %s: %w", uri, err)
	}
	defer array.Free()
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return err
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}

	for _, b := range bands {
		if _, err := query.SetDataBuffer(b.Tag, b.Data); err != nil {
			return fmt.Errorf("tilestore: set buffer %q: %w", b.Tag, err)
		}
	}

	if err := query.Submit(); err != nil {
		return fmt.Errorf("tilestore: submit write %s: %w", uri, err)
	}
	return query.Finalize()
}

// ReadBands reads every named measurement's full extent from uri. Its
// caller is the query side (query.Materialize, through the Reader
// interface); ingest does not read an existing tile version back.
func ReadBands(ctx *tiledb.Context, uri string, tags []string, cellCount int) (map[string][]float64, error) {
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
	if err != nil {
		return nil, fmt.Errorf("tilestore: open for read %s: %w", uri, err)
	}
	defer array.Free()
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return nil, err
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, err
	}

	out := make(map[string][]float64, len(tags))
	for _, tag := range tags {
		buf := make([]float64, cellCount)
		if _, err := query.SetDataBuffer(tag, buf); err != nil {
			return nil, fmt.Errorf("tilestore: set read buffer %q: %w", tag, err)
		}
		out[tag] = buf
	}

	if err := query.Submit(); err != nil {
		return nil, fmt.Errorf("tilestore: submit read %s: %w", uri, err)
	}
	return out, nil
}
