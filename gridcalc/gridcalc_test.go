package gridcalc

import (
	"testing"

	"github.com/earthcube/cube"
)

func testStorageType() cube.StorageType {
	return cube.StorageType{
		Tag: "LS5TM",
		Dimensions: map[string]cube.DimensionSpec{
			"longitude": {Order: 0, Extent: 1.0, Elements: 4000, Origin: 0, IndexingType: cube.IndexingRegular},
			"latitude":  {Order: 1, Extent: 1.0, Elements: 4000, Origin: 0, IndexingType: cube.IndexingRegular},
		},
	}
}

func TestCoverageSingleTile(t *testing.T) {
	spec := testStorageType()
	ranges := []cube.DimensionRange{
		{Dimension: "longitude", Min: 140.2, Max: 140.8},
		{Dimension: "latitude", Min: -35.9, Max: -35.1},
	}
	tiles, err := Coverage(ranges, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 1 {
		t.Fatalf("expected 1 tile, got %d: %+v", len(tiles), tiles)
	}
	if tiles[0].Index["longitude"] != 140 {
		t.Fatalf("expected longitude tile 140, got %d", tiles[0].Index["longitude"])
	}
	if tiles[0].Index["latitude"] != -36 {
		t.Fatalf("expected latitude tile -36, got %d", tiles[0].Index["latitude"])
	}
}

func TestCoverageSpansMultipleTiles(t *testing.T) {
	spec := testStorageType()
	ranges := []cube.DimensionRange{
		{Dimension: "longitude", Min: 140.5, Max: 142.5},
		{Dimension: "latitude", Min: -35.5, Max: -35.1},
	}
	tiles, err := Coverage(ranges, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 3 {
		t.Fatalf("expected 3 tiles (140,141,142 longitude), got %d: %+v", len(tiles), tiles)
	}
}

func TestCoverageGrazingBoundaryNoAdjacentTile(t *testing.T) {
	spec := testStorageType()
	// footprint ends exactly on the 141 tile's min edge: must not claim tile 141.
	ranges := []cube.DimensionRange{
		{Dimension: "longitude", Min: 140.0, Max: 141.0},
		{Dimension: "latitude", Min: -36.0, Max: -35.0},
	}
	tiles, err := Coverage(ranges, spec)
	if err != nil {
		t.Fatal(err)
	}
	for _, tile := range tiles {
		if tile.Index["longitude"] == 141 {
			t.Fatalf("grazing footprint incorrectly claimed adjacent tile 141: %+v", tiles)
		}
	}
}

func TestTileGeotransformPixelIndex(t *testing.T) {
	spec := testStorageType()
	idx := cube.TileIndex{"longitude": 140, "latitude": -36}
	gt, err := TileGeotransform(idx, spec, "longitude", "latitude")
	if err != nil {
		t.Fatal(err)
	}
	if gt.Columns != 4000 || gt.Rows != 4000 {
		t.Fatalf("unexpected pixel counts: %+v", gt)
	}
	col, row := gt.PixelIndex(140.0005, -35.0005)
	if col != 2 {
		t.Fatalf("expected col 2, got %d", col)
	}
	if row != 2 {
		t.Fatalf("expected row 2, got %d", row)
	}
}
