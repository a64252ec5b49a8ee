package ingest

import (
	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/tilestore"
)

// TiledbWriter is the production Writer, backed by a live TileDB
// context. It exists only to satisfy Writer so Driver.Run can submit
// tasks against real storage; every method is a direct pass-through to
// tilestore.
type TiledbWriter struct {
	Ctx *tiledb.Context
}

func (w TiledbWriter) Create(spec cube.StorageType, uri string, rows, cols int) error {
	return tilestore.Create(w.Ctx, uri, spec, rows, cols)
}

func (w TiledbWriter) WriteBands(uri string, bands []tilestore.Band) error {
	return tilestore.WriteBands(w.Ctx, uri, bands)
}

func (w TiledbWriter) ReadBands(uri string, tags []string, cellCount int) (map[string][]float64, error) {
	return tilestore.ReadBands(w.Ctx, uri, tags, cellCount)
}

func (w TiledbWriter) WriteProvenance(uri string, p tilestore.Provenance) error {
	return tilestore.WriteProvenance(w.Ctx, uri, p)
}
