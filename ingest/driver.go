package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"runtime"

	"github.com/alitto/pond"
	"github.com/samber/lo"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
	"github.com/earthcube/cube/gridcalc"
	"github.com/earthcube/cube/tilestore"
)

// Writer abstracts the chunked-array side of a tile write so ingest_task
// can be exercised without a live TileDB context; TiledbWriter (below) is
// the production implementation backed by tilestore.
type Writer interface {
	Create(spec cube.StorageType, uri string, rows, cols int) error
	WriteBands(uri string, bands []tilestore.Band) error
	ReadBands(uri string, tags []string, cellCount int) (map[string][]float64, error)
	WriteProvenance(uri string, p tilestore.Provenance) error
}

// Task is one (storage_type, tile_index) unit of work submitted to the
// ingest worker pool (§4.D, §5 "one task per storage-unit").
type Task struct {
	StorageType cube.StorageType
	Tile        gridcalc.Tile
	Sources     []Source
	OutputDir   string
	Version     int
}

// Outcome reports what ingest_task did for one tile: the recorded
// storage unit on success, or an error plus whether the task was skipped
// rather than failed outright (§4.D "skip_broken_datasets").
type Outcome struct {
	Task    Task
	Unit    cube.StorageUnit
	Err     error
	Skipped bool
}

// IngestTile runs the per-tile fusion algorithm of §4.D: order sources
// deterministically, allocate a nodata-filled array, fuse each source in
// order, write the result plus its provenance, then register the
// storage unit with the catalogue -- rolling back (and not leaving a
// half-written file registered) on any failure. It does not read or
// overlay an existing version of the tile: only t.Sources contribute,
// and the written version is t.Version.
func IngestTile(ctx context.Context, store catalogue.Store, w Writer, t Task) Outcome {
	ordered := FusionOrder(t.Sources)

	xDim, yDim := spatialDims(t.StorageType)
	gt, err := gridcalc.TileGeotransform(t.Tile.Index, t.StorageType, xDim, yDim)
	if err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("ingest: geotransform: %w", err)}
	}

	storageID := t.Tile.Index.Key(t.StorageType.DimOrder)
	uri := fmt.Sprintf("%s/%s/%s_v%d.tdb", t.OutputDir, t.StorageType.Tag, storageID, t.Version)

	if err := w.Create(t.StorageType, uri, gt.Rows, gt.Columns); err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("%w: %v", cube.ErrWrite, err)}
	}

	bands, datasetIDs, err := fuseBands(t.StorageType, ordered, gt)
	if err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("%w: %v", cube.ErrFusionConflict, err)}
	}

	if err := w.WriteBands(uri, bands); err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("%w: %v", cube.ErrWrite, err)}
	}

	checksum := checksumOf(bands)
	footprint := footprintFor(t.Tile, xDim, yDim)

	su := cube.StorageUnit{
		StorageType: t.StorageType.Tag,
		StorageID:   storageID,
		Version:     t.Version,
		Location:    uri,
		Checksum:    checksum,
		Footprint:   footprint,
		Dimensions:  dimensionRows(t.Tile),
		Datasets:    lo.Uniq(datasetIDs),
	}

	if err := w.WriteProvenance(uri, tilestore.Provenance{
		StorageType: su.StorageType,
		StorageID:   su.StorageID,
		Version:     su.Version,
		Datasets:    su.Datasets,
		Checksum:    su.Checksum,
	}); err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("%w: %v", cube.ErrWrite, err)}
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("%w: %v", cube.ErrCatalogueConflict, err)}
	}
	if err := tx.RecordStorageUnit(ctx, su); err != nil {
		_ = tx.Rollback()
		return Outcome{Task: t, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Outcome{Task: t, Err: fmt.Errorf("%w: %v", cube.ErrCatalogueConflict, err)}
	}

	return Outcome{Task: t, Unit: su}
}

func spatialDims(spec cube.StorageType) (x, y string) {
	for _, dim := range spec.DimOrder {
		d := spec.Dimensions[dim]
		if d.Domain == "spatial-xy" || d.Domain == "spatial-xyz" {
			if x == "" {
				x = dim
			} else if y == "" {
				y = dim
			}
		}
	}
	return x, y
}

// fuseBands overlays each source's pre-resampled pixels into one set of
// bands in fusion order: a pixel already covered by an earlier (higher-
// priority) source is left untouched, so the first source to cover a
// pixel wins (§4.D step 3 "overlay each contributing source in order").
// A source's NaN entries mean "this source has no data here" and never
// overwrite what is already in the buffer.
func fuseBands(spec cube.StorageType, ordered []Source, gt gridcalc.Geotransform) ([]tilestore.Band, []string, error) {
	cellCount := gt.Rows * gt.Columns
	buffers := make(map[string][]float64, len(spec.Measurements))
	covered := make(map[string][]bool, len(spec.Measurements))
	for _, m := range spec.Measurements {
		buf := make([]float64, cellCount)
		for i := range buf {
			buf[i] = m.Nodata
		}
		buffers[m.Tag] = buf
		covered[m.Tag] = make([]bool, cellCount)
	}

	var datasetIDs []string
	for _, src := range ordered {
		datasetIDs = append(datasetIDs, src.Dataset.DatasetID)
		for tag, buf := range buffers {
			srcBand, ok := src.Bands[tag]
			if !ok {
				continue
			}
			cov := covered[tag]
			for i := 0; i < cellCount && i < len(srcBand); i++ {
				if cov[i] || isNaN(srcBand[i]) {
					continue
				}
				buf[i] = srcBand[i]
				cov[i] = true
			}
		}
	}

	bands := make([]tilestore.Band, 0, len(buffers))
	for _, m := range spec.Measurements {
		bands = append(bands, tilestore.Band{Tag: m.Tag, Data: buffers[m.Tag]})
	}
	return bands, datasetIDs, nil
}

func isNaN(v float64) bool { return v != v }

func checksumOf(bands []tilestore.Band) string {
	h := md5.New()
	for _, b := range bands {
		fmt.Fprintf(h, "%s:%v;", b.Tag, b.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func footprintFor(tile gridcalc.Tile, xDim, yDim string) cube.Footprint {
	xr, yr := tile.Ranges[xDim], tile.Ranges[yDim]
	return cube.Footprint{MinX: xr.Min, MinY: yr.Min, MaxX: xr.Max, MaxY: yr.Max}
}

func dimensionRows(tile gridcalc.Tile) []cube.StorageUnitDimension {
	rows := make([]cube.StorageUnitDimension, 0, len(tile.Index))
	for dim, idx := range tile.Index {
		r := tile.Ranges[dim]
		rows = append(rows, cube.StorageUnitDimension{Dimension: dim, Index: idx, Min: r.Min, Max: r.Max})
	}
	return rows
}

// Driver fans Tasks out across a fixed worker pool: one pond.Pool sized
// at 2*NumCPU, cancelled by the caller's context, drained with
// StopAndWait.
type Driver struct {
	store              catalogue.Store
	writer             Writer
	skipBrokenDatasets bool
}

// NewDriver constructs a Driver. When skipBrokenDatasets is true, a
// failing task is recorded as a skip rather than aborting the run
// (§4.D "skip_broken_datasets").
func NewDriver(store catalogue.Store, w Writer, skipBrokenDatasets bool) *Driver {
	return &Driver{store: store, writer: w, skipBrokenDatasets: skipBrokenDatasets}
}

// Run submits every task to the worker pool and returns once all tasks
// have completed or ctx is cancelled.
func (d *Driver) Run(ctx context.Context, tasks []Task) []Outcome {
	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
	defer pool.StopAndWait()

	outcomes := make([]Outcome, len(tasks))
	for i, task := range tasks {
		i, task := i, task
		pool.Submit(func() {
			outcome := IngestTile(ctx, d.store, d.writer, task)
			if outcome.Err != nil {
				if d.skipBrokenDatasets {
					outcome.Skipped = true
					log.Printf("ingest: skipping broken tile %s: %v", task.Tile.Index.Key(task.StorageType.DimOrder), outcome.Err)
				} else {
					log.Printf("ingest: tile %s failed: %v", task.Tile.Index.Key(task.StorageType.DimOrder), outcome.Err)
				}
			}
			outcomes[i] = outcome
		})
	}

	return outcomes
}
