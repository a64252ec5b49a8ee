package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue"
)

func ls5tmSpec() cube.StorageType {
	return cube.StorageType{
		Name: "Landsat 5 TM",
		Tag:  "LS5TM",
		DimOrder: []string{"longitude", "latitude", "time"},
		Dimensions: map[string]cube.DimensionSpec{
			"longitude": {Domain: "spatial-xy", Order: 0, Extent: 1.0, Elements: 4000, Origin: 0, IndexingType: cube.IndexingRegular, ReferenceSystem: "EPSG:4326"},
			"latitude":  {Domain: "spatial-xy", Order: 1, Extent: 1.0, Elements: 4000, Origin: 0, IndexingType: cube.IndexingRegular, ReferenceSystem: "EPSG:4326"},
			"time":      {Domain: "temporal", Order: 2, Extent: 31_557_600, Elements: 1, Origin: 0, IndexingType: cube.IndexingRegular, ReferenceSystem: "seconds since 1970-01-01"},
		},
		Measurements: []cube.StorageMeasurement{
			{Metatype: "LS5TM", Tag: "B10", Datatype: "int16", OutputIndex: 1},
			{Metatype: "LS5TM", Tag: "B20", Datatype: "int16", OutputIndex: 2},
			{Metatype: "LS5TM", Tag: "B30", Datatype: "int16", OutputIndex: 3},
			{Metatype: "LS5TM", Tag: "B40", Datatype: "int16", OutputIndex: 4},
			{Metatype: "LS5TM", Tag: "B50", Datatype: "int16", OutputIndex: 5},
			{Metatype: "LS5TM", Tag: "B70", Datatype: "int16", OutputIndex: 6},
		},
	}
}

func TestRegisterStorageTypeAndDuplicateTag(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.RegisterStorageType(ctx, ls5tmSpec()); err != nil {
		t.Fatalf("register LS5TM: %v", err)
	}

	st, ok, err := s.FindStorageType(ctx, "LS5TM")
	if err != nil || !ok {
		t.Fatalf("FindStorageType(LS5TM) = %v, %v, %v", st, ok, err)
	}
	if len(st.Measurements) != 6 {
		t.Fatalf("expected 6 measurements, got %d", len(st.Measurements))
	}

	err = s.RegisterStorageType(ctx, ls5tmSpec())
	if !errors.Is(err, cube.ErrSchema) {
		t.Fatalf("expected SchemaError on duplicate tag, got %v", err)
	}
}

func TestRegisterStorageTypeUndeclaredDomain(t *testing.T) {
	ctx := context.Background()
	s := New()

	spec := ls5tmSpec()
	spec.Tag = "BAD"
	dim := spec.Dimensions["longitude"]
	dim.Domain = "no-such-domain"
	spec.Dimensions["longitude"] = dim

	err := s.RegisterStorageType(ctx, spec)
	if !errors.Is(err, cube.ErrSchema) {
		t.Fatalf("expected SchemaError for unknown domain, got %v", err)
	}
}

func datasetDescriptor(id, obs string) cube.Dataset {
	return cube.Dataset{
		DatasetType: "LS5TM",
		DatasetID:   id,
		Observation: obs,
		Location:    "file:///scenes/" + id,
		Ranges: []cube.DimensionRange{
			{Dimension: "longitude", Min: 140.2, Max: 141.1},
			{Dimension: "latitude", Min: -35.9, Max: -35.0},
			{Dimension: "time", Min: 1276560000, Max: 1276560000},
		},
	}
}

func TestAddDatasetLineage(t *testing.T) {
	ctx := context.Background()
	s := New()

	ds := datasetDescriptor("11111111-1111-1111-1111-111111111111", "obs-1")

	err := s.AddDataset(ctx, ds, false)
	if !errors.Is(err, cube.ErrLineage) {
		t.Fatalf("expected LineageError without auto_add_lineage, got %v", err)
	}

	if err := s.AddDataset(ctx, ds, true); err != nil {
		t.Fatalf("AddDataset with auto_add_lineage: %v", err)
	}

	got, ok, err := s.FindDataset(ctx, "LS5TM", ds.DatasetID)
	if err != nil || !ok {
		t.Fatalf("FindDataset: %v %v %v", got, ok, err)
	}

	// idempotent re-add
	if err := s.AddDataset(ctx, ds, true); err != nil {
		t.Fatalf("idempotent AddDataset: %v", err)
	}
}

func TestRecordStorageUnitVersioningAndArchive(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.RegisterStorageType(ctx, ls5tmSpec()); err != nil {
		t.Fatal(err)
	}
	ds := datasetDescriptor("22222222-2222-2222-2222-222222222222", "obs-2")
	if err := s.AddDataset(ctx, ds, true); err != nil {
		t.Fatal(err)
	}

	su := cube.StorageUnit{
		StorageType: "LS5TM",
		StorageID:   "140_-36_2010",
		Version:     1,
		Location:    "file:///tiles/140_-36_2010_v1.tdb",
		Footprint:   cube.Footprint{MinX: 140, MinY: -36, MaxX: 141, MaxY: -35},
		Dimensions: []cube.StorageUnitDimension{
			{Dimension: "longitude", Index: 140, Min: 140, Max: 141},
			{Dimension: "latitude", Index: -36, Min: -36, Max: -35},
			{Dimension: "time", Index: 2010, Min: 2010 * 31_557_600, Max: 2011 * 31_557_600},
		},
		Datasets: []string{ds.DatasetID},
	}
	if err := s.RecordStorageUnit(ctx, su); err != nil {
		t.Fatalf("record v1: %v", err)
	}

	latest, ok, err := s.LatestVersion(ctx, "LS5TM", su.StorageID)
	if err != nil || !ok || latest.Version != 1 {
		t.Fatalf("LatestVersion after v1 = %v, %v, %v", latest, ok, err)
	}

	su2 := su
	su2.Version = 2
	if err := s.RecordStorageUnit(ctx, su2); err != nil {
		t.Fatalf("record v2: %v", err)
	}

	latest, ok, err = s.LatestVersion(ctx, "LS5TM", su.StorageID)
	if err != nil || !ok || latest.Version != 2 {
		t.Fatalf("LatestVersion after v2 = %v, %v, %v", latest, ok, err)
	}

	if err := s.Archive(ctx, "LS5TM", su.StorageID, 2); err != nil {
		t.Fatalf("archive v2: %v", err)
	}
	latest, ok, err = s.LatestVersion(ctx, "LS5TM", su.StorageID)
	if err != nil || !ok || latest.Version != 1 {
		t.Fatalf("LatestVersion after archiving v2 = %v, %v, %v", latest, ok, err)
	}

	// restoring v1 keeps it the latest after v2 is re-archived (it already
	// is); explicitly restoring v2 would make it latest again.
	if err := s.Restore(ctx, "LS5TM", su.StorageID, 2); err != nil {
		t.Fatalf("restore v2: %v", err)
	}
	latest, ok, err = s.LatestVersion(ctx, "LS5TM", su.StorageID)
	if err != nil || !ok || latest.Version != 2 {
		t.Fatalf("LatestVersion after restoring v2 = %v, %v, %v", latest, ok, err)
	}
}

func TestTransactionRollbackLeavesNothingCommitted(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.RegisterStorageType(ctx, ls5tmSpec()); err != nil {
		t.Fatal(err)
	}
	ds := datasetDescriptor("33333333-3333-3333-3333-333333333333", "obs-3")
	if err := s.AddDataset(ctx, ds, true); err != nil {
		t.Fatal(err)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}

	su := cube.StorageUnit{
		StorageType: "LS5TM",
		StorageID:   "sim-fail",
		Version:     1,
		Footprint:   cube.Footprint{MinX: 140, MinY: -36, MaxX: 141, MaxY: -35},
		Dimensions: []cube.StorageUnitDimension{
			{Dimension: "longitude", Index: 140, Min: 140, Max: 141},
			{Dimension: "latitude", Index: -36, Min: -36, Max: -35},
			{Dimension: "time", Index: 2010, Min: 2010 * 31_557_600, Max: 2011 * 31_557_600},
		},
		Datasets: []string{ds.DatasetID},
	}
	if err := tx.RecordStorageUnit(ctx, su); err != nil {
		t.Fatalf("record within tx: %v", err)
	}

	// simulate a failure discovered after the write (e.g. checksum
	// mismatch, §8 "Catalogue atomicity") and roll back instead of
	// committing.
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	_, ok, _ := s.LatestVersion(ctx, "LS5TM", "sim-fail")
	if ok {
		t.Fatal("expected no storage unit to be visible after rollback")
	}

	units, err := s.FindStorageUnits(ctx, "LS5TM", nil, catalogue.TimeRange{})
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range units {
		if u.StorageID == "sim-fail" {
			t.Fatal("rolled-back storage unit leaked into FindStorageUnits")
		}
	}
}

func TestFindDatasetsRangeQuery(t *testing.T) {
	ctx := context.Background()
	s := New()
	ds := datasetDescriptor("44444444-4444-4444-4444-444444444444", "obs-4")
	if err := s.AddDataset(ctx, ds, true); err != nil {
		t.Fatal(err)
	}

	found, err := s.FindDatasets(ctx, catalogue.DatasetQuery{
		DatasetType: "LS5TM",
		Ranges: map[string]catalogue.Range{
			"longitude": catalogue.NewRange(140.5, 140.6),
			"latitude":  catalogue.NewRange(-35.5, -35.4),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 matching dataset, got %d", len(found))
	}

	none, err := s.FindDatasets(ctx, catalogue.DatasetQuery{
		Ranges: map[string]catalogue.Range{"longitude": catalogue.NewRange(10, 11)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected 0 matching datasets outside range, got %d", len(none))
	}
}
