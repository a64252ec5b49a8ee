package query

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/earthcube/cube"
	"github.com/earthcube/cube/catalogue/memstore"
	"github.com/earthcube/cube/refsystem"
)

func registerUnit(t *testing.T, store *memstore.Store, id string, minX, minY float64, day string) {
	t.Helper()
	ctx := context.Background()
	parsedDay, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatal(err)
	}
	ds := cube.Dataset{DatasetType: "LS5TM", DatasetID: "ds-" + id, Location: "file:///scenes/" + id}
	if err := store.AddDataset(ctx, ds, true); err != nil {
		t.Fatalf("add dataset for %s: %v", id, err)
	}
	su := cube.StorageUnit{
		StorageType: "LS5TM",
		StorageID:   id,
		Version:     1,
		Location:    "file:///" + id,
		Checksum:    "deadbeef",
		Footprint:   cube.Footprint{MinX: minX, MinY: minY, MaxX: minX + 1, MaxY: minY + 1},
		Dimensions: []cube.StorageUnitDimension{
			{Dimension: "longitude", Index: int64(minX), Min: minX, Max: minX + 1},
			{Dimension: "latitude", Index: int64(minY), Min: minY, Max: minY + 1},
			{Dimension: "time", Index: parsedDay.Unix(), Min: float64(parsedDay.Unix()), Max: float64(parsedDay.Unix())},
		},
		Datasets: []string{"ds-" + id},
	}
	if err := store.RecordStorageUnit(ctx, su); err != nil {
		t.Fatalf("record %s: %v", id, err)
	}
}

func testStorageType() cube.StorageType {
	return cube.StorageType{
		Tag:      "LS5TM",
		DimOrder: []string{"longitude", "latitude", "time"},
		Dimensions: map[string]cube.DimensionSpec{
			"longitude": {Domain: "spatial-xy", Extent: 1, Elements: 10, Origin: 0, IndexingType: cube.IndexingRegular},
			"latitude":  {Domain: "spatial-xy", Extent: 1, Elements: 10, Origin: 0, IndexingType: cube.IndexingRegular},
			"time":      {Domain: "temporal", Extent: 1, Elements: 1, Origin: 0, IndexingType: cube.IndexingIrregular},
		},
	}
}

func TestPlanGroupsBySolarDayAndOrdersKeysAscending(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := store.RegisterStorageType(ctx, testStorageType()); err != nil {
		t.Fatal(err)
	}

	registerUnit(t, store, "unit-a", 140, -35, "2010-06-16")
	registerUnit(t, store, "unit-b", 141, -35, "2010-06-15")

	req := Request{
		StorageType: "LS5TM",
		Footprint:   cube.Footprint{MinX: 139, MinY: -36, MaxX: 143, MaxY: -34},
	}

	plan, err := Plan(ctx, store, nil, refsystem.Geographic{Auth: "EPSG:4326"}, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(plan.Groups))
	}
	if plan.Groups[0].Key != "2010-06-15" || plan.Groups[1].Key != "2010-06-16" {
		t.Fatalf("expected ascending solar-day keys, got %s, %s", plan.Groups[0].Key, plan.Groups[1].Key)
	}
}

func TestPlanExcludesUnitsOutsideFootprint(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := store.RegisterStorageType(ctx, testStorageType()); err != nil {
		t.Fatal(err)
	}

	registerUnit(t, store, "near", 140, -35, "2010-06-15")
	registerUnit(t, store, "far", 10, 10, "2010-06-15")

	req := Request{
		StorageType: "LS5TM",
		Footprint:   cube.Footprint{MinX: 139, MinY: -36, MaxX: 143, MaxY: -34},
	}

	plan, err := Plan(ctx, store, nil, refsystem.Geographic{Auth: "EPSG:4326"}, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Groups) != 1 || len(plan.Groups[0].Units) != 1 {
		t.Fatalf("expected exactly the near unit to match, got %+v", plan.Groups)
	}
	if plan.Groups[0].Units[0].StorageID != "near" {
		t.Fatalf("expected 'near' to match, got %s", plan.Groups[0].Units[0].StorageID)
	}
}

func TestPlanReprojectsTransformToWebMercator(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := store.RegisterStorageType(ctx, testStorageType()); err != nil {
		t.Fatal(err)
	}
	registerUnit(t, store, "unit-a", 140, -35, "2010-06-15")

	req := Request{
		StorageType: "LS5TM",
		Footprint:   cube.Footprint{MinX: 139, MinY: -36, MaxX: 143, MaxY: -34},
		TargetCRS:   refsystem.Projected{Auth: "EPSG:3857", MetersPerUnit: 1},
	}

	plan, err := Plan(ctx, store, nil, refsystem.Geographic{Auth: "EPSG:4326"}, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(plan.Groups))
	}

	got, err := plan.Transform.Point(orb.Point{140, -35})
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	// Spherical Web Mercator at (140, -35) is a known reference value;
	// this pins the planner's choice of projection, not the formula
	// itself (covered by refsystem's own tests).
	wantX := 15584728.71
	if math.Abs(got[0]-wantX) > 1.0 {
		t.Fatalf("expected x near %v, got %v", wantX, got[0])
	}
	if got[1] >= 0 {
		t.Fatalf("expected a negative y for a southern-hemisphere point, got %v", got[1])
	}
}

func TestPlanIdentityTransformWhenNoTargetCRS(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	if err := store.RegisterStorageType(ctx, testStorageType()); err != nil {
		t.Fatal(err)
	}

	req := Request{StorageType: "LS5TM", Footprint: cube.Footprint{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}}
	plan, err := Plan(ctx, store, nil, refsystem.Geographic{Auth: "EPSG:4326"}, req)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Transform == nil {
		t.Fatal("expected a non-nil identity transform")
	}
}
