package ingest

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue/memstore"
	"github.com/earthcube/cube/gridcalc"
	"github.com/earthcube/cube/tilestore"
)

// fakeWriter records what would have been written to TileDB without
// requiring a live context, so IngestTile's fusion/atomicity logic can
// be exercised in isolation.
type fakeWriter struct {
	created    map[string]bool
	written    map[string][]tilestore.Band
	provenance map[string]tilestore.Provenance
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		created:    map[string]bool{},
		written:    map[string][]tilestore.Band{},
		provenance: map[string]tilestore.Provenance{},
	}
}

func (f *fakeWriter) Create(spec cube.StorageType, uri string, rows, cols int) error {
	f.created[uri] = true
	return nil
}

func (f *fakeWriter) WriteBands(uri string, bands []tilestore.Band) error {
	f.written[uri] = bands
	return nil
}

func (f *fakeWriter) ReadBands(uri string, tags []string, cellCount int) (map[string][]float64, error) {
	return nil, nil
}

func (f *fakeWriter) WriteProvenance(uri string, p tilestore.Provenance) error {
	f.provenance[uri] = p
	return nil
}

func smallStorageType() cube.StorageType {
	return cube.StorageType{
		Tag:      "LS5TM",
		DimOrder: []string{"longitude", "latitude"},
		Dimensions: map[string]cube.DimensionSpec{
			"longitude": {Domain: "spatial-xy", Extent: 1.0, Elements: 10, Origin: 0, IndexingType: cube.IndexingRegular},
			"latitude":  {Domain: "spatial-xy", Extent: 1.0, Elements: 10, Origin: 0, IndexingType: cube.IndexingRegular},
		},
		Measurements: []cube.StorageMeasurement{
			{Tag: "B10", Datatype: "int16", Nodata: -999},
		},
	}
}

func TestIngestTileFusesAndRegisters(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	spec := smallStorageType()
	if err := store.RegisterStorageType(ctx, spec); err != nil {
		t.Fatal(err)
	}

	ds1 := cube.Dataset{DatasetType: "LS5TM", DatasetID: "aaaaaaaa-0000-0000-0000-000000000001", Location: "file:///a"}
	ds2 := cube.Dataset{DatasetType: "LS5TM", DatasetID: "bbbbbbbb-0000-0000-0000-000000000002", Location: "file:///b"}
	if err := store.AddDataset(ctx, ds1, true); err != nil {
		t.Fatal(err)
	}
	if err := store.AddDataset(ctx, ds2, true); err != nil {
		t.Fatal(err)
	}

	tiles, err := gridcalc.Coverage([]cube.DimensionRange{
		{Dimension: "longitude", Min: 140.1, Max: 140.9},
		{Dimension: "latitude", Min: -35.9, Max: -35.1},
	}, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 {
		t.Fatalf("expected 1 tile, got %d", len(tiles))
	}

	t0 := time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
	cellCount := 100
	firstBand := make([]float64, cellCount)
	for i := range firstBand {
		if i < 50 {
			firstBand[i] = 100
		} else {
			firstBand[i] = math.NaN()
		}
	}
	secondBand := make([]float64, cellCount)
	for i := range secondBand {
		secondBand[i] = 200
	}

	sources := []Source{
		{Dataset: ds1, Observation: cube.Observation{ID: "obs-1", Start: t0}, CentroidLon: 140, CentroidLat: -35, Bands: map[string][]float64{"B10": firstBand}},
		{Dataset: ds2, Observation: cube.Observation{ID: "obs-2", Start: t0.Add(time.Hour)}, CentroidLon: 140, CentroidLat: -35, Bands: map[string][]float64{"B10": secondBand}},
	}

	w := newFakeWriter()
	task := Task{
		StorageType: spec,
		Tile:        tiles[0],
		Sources:     sources,
		OutputDir:   "file:///tiles",
		Version:     1,
	}

	outcome := IngestTile(ctx, store, w, task)
	if outcome.Err != nil {
		t.Fatalf("ingest task failed: %v", outcome.Err)
	}
	if len(outcome.Unit.Datasets) != 2 {
		t.Fatalf("expected 2 contributing datasets, got %v", outcome.Unit.Datasets)
	}

	bands := w.written[outcome.Unit.Location]
	if len(bands) != 1 {
		t.Fatalf("expected 1 band written, got %d", len(bands))
	}
	fused := bands[0].Data.([]float64)
	if fused[0] != 100 {
		t.Fatalf("expected first source's value to win at pixel 0, got %v", fused[0])
	}
	if fused[50] != 200 {
		t.Fatalf("expected second source to fill where first left NaN at pixel 50, got %v", fused[50])
	}

	latest, ok, err := store.LatestVersion(ctx, "LS5TM", outcome.Unit.StorageID)
	if err != nil || !ok {
		t.Fatalf("expected storage unit to be catalogued: %v %v", ok, err)
	}
	if latest.Checksum == "" {
		t.Fatal("expected a non-empty checksum")
	}
}

// failingWriter fails WriteBands for one designated uri and otherwise
// delegates to an embedded fakeWriter, letting a test drive one broken
// task alongside one healthy one through the same Driver.Run call.
type failingWriter struct {
	*fakeWriter
	failURI string
}

func (f *failingWriter) WriteBands(uri string, bands []tilestore.Band) error {
	if uri == f.failURI {
		return errWriteBoom
	}
	return f.fakeWriter.WriteBands(uri, bands)
}

var errWriteBoom = errBoom("boom")

type errBoom string

func (e errBoom) Error() string { return string(e) }

func TestDriverRunSkipsBrokenTasksWhenConfigured(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	spec := smallStorageType()
	if err := store.RegisterStorageType(ctx, spec); err != nil {
		t.Fatal(err)
	}

	ds := cube.Dataset{DatasetType: "LS5TM", DatasetID: "cccccccc-0000-0000-0000-000000000003", Location: "file:///c"}
	if err := store.AddDataset(ctx, ds, true); err != nil {
		t.Fatal(err)
	}

	good, err := gridcalc.Coverage([]cube.DimensionRange{
		{Dimension: "longitude", Min: 140.1, Max: 140.9},
		{Dimension: "latitude", Min: -35.9, Max: -35.1},
	}, spec)
	if err != nil {
		t.Fatal(err)
	}
	broken, err := gridcalc.Coverage([]cube.DimensionRange{
		{Dimension: "longitude", Min: 141.1, Max: 141.9},
		{Dimension: "latitude", Min: -36.9, Max: -36.1},
	}, spec)
	if err != nil {
		t.Fatal(err)
	}

	t0 := time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
	band := make([]float64, 100)
	for i := range band {
		band[i] = 42
	}
	src := Source{Dataset: ds, Observation: cube.Observation{ID: "obs-3", Start: t0}, CentroidLon: 140, CentroidLat: -35, Bands: map[string][]float64{"B10": band}}

	fw := newFakeWriter()
	goodTask := Task{StorageType: spec, Tile: good[0], Sources: []Source{src}, OutputDir: "file:///tiles", Version: 1}
	brokenTask := Task{StorageType: spec, Tile: broken[0], Sources: []Source{src}, OutputDir: "file:///tiles", Version: 1}
	brokenStorageID := broken[0].Index.Key(spec.DimOrder)
	brokenURI := fmt.Sprintf("%s/%s/%s_v%d.tdb", brokenTask.OutputDir, spec.Tag, brokenStorageID, brokenTask.Version)

	w := &failingWriter{fakeWriter: fw, failURI: brokenURI}

	driver := NewDriver(store, w, true)
	outcomes := driver.Run(ctx, []Task{goodTask, brokenTask})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	var sawSkip, sawSuccess bool
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			if !o.Skipped {
				t.Fatalf("expected the failing task to be marked skipped, got err=%v skipped=%v", o.Err, o.Skipped)
			}
			sawSkip = true
		case o.Err == nil:
			sawSuccess = true
		}
	}
	if !sawSkip {
		t.Fatal("expected one outcome to have failed and been skipped")
	}
	if !sawSuccess {
		t.Fatal("expected one outcome to have succeeded despite the other failing")
	}
}
