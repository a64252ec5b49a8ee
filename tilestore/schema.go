package tilestore

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/earthcube/cube"
)

// CreateSchema builds the dense TileDB array schema for one materialised
// tile of spec: a row/col pixel grid plus one attribute per
// StorageMeasurement, each carrying its own compression filter pipeline
// (§4.B tile file format). Row and col share one chunk size: the first
// positive Cache found while ranging over spec.Dimensions (a map, so
// which one is not defined when several differ), or the full row/col
// count when no dimension sets Cache.
func CreateSchema(ctx *tiledb.Context, spec cube.StorageType, rows, cols int) (*tiledb.ArraySchema, error) {
	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, fmt.Errorf("tilestore: new array schema: %w", err)
	}

	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		schema.Free()
		return nil, err
	}
	defer domain.Free()

	rowDim, err := tiledb.NewDimension(ctx, "row", tiledb.TILEDB_INT32, []int32{0, int32(rows - 1)}, int32(chunkSize(spec, rows)))
	if err != nil {
		schema.Free()
		return nil, err
	}
	colDim, err := tiledb.NewDimension(ctx, "col", tiledb.TILEDB_INT32, []int32{0, int32(cols - 1)}, int32(chunkSize(spec, cols)))
	if err != nil {
		schema.Free()
		return nil, err
	}
	if err := domain.AddDimensions(rowDim, colDim); err != nil {
		schema.Free()
		return nil, err
	}
	if err := schema.SetDomain(domain); err != nil {
		schema.Free()
		return nil, err
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		schema.Free()
		return nil, err
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		schema.Free()
		return nil, err
	}

	for _, m := range spec.Measurements {
		if err := addMeasurementAttr(ctx, schema, m); err != nil {
			schema.Free()
			return nil, fmt.Errorf("tilestore: measurement %q: %w", m.Tag, err)
		}
	}

	return schema, nil
}

func chunkSize(spec cube.StorageType, fallback int) int {
	for _, d := range spec.Dimensions {
		if d.Cache > 0 {
			return d.Cache
		}
	}
	return fallback
}

func addMeasurementAttr(ctx *tiledb.Context, schema *tiledb.ArraySchema, m cube.StorageMeasurement) error {
	attr, err := tiledb.NewAttribute(ctx, m.Tag, tiledbDatatype(m.Datatype))
	if err != nil {
		return err
	}
	defer attr.Free()

	if err := attr.SetFillValue(nodataAs(m.Datatype, measurementNodata(m))); err != nil {
		return err
	}

	fl, err := filterPipeline(ctx, m.Datatype)
	if err != nil {
		return err
	}
	defer fl.Free()

	if err := attr.SetFilterList(fl); err != nil {
		return err
	}
	return schema.AddAttributes(attr)
}
