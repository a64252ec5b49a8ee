package ingest

import (
	"testing"
	"time"

	"github.com/earthcube/cube"
)

func mkSource(id string, start time.Time, lat float64) Source {
	return Source{
		Dataset:     cube.Dataset{DatasetID: id},
		Observation: cube.Observation{ID: "obs-" + id, Start: start},
		CentroidLon: 140,
		CentroidLat: lat,
	}
}

func TestFusionOrderByStartTime(t *testing.T) {
	t0 := time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)
	sources := []Source{
		mkSource("b", t0.Add(2*time.Hour), -35),
		mkSource("a", t0, -35),
	}
	ordered := FusionOrder(sources)
	if ordered[0].Dataset.DatasetID != "a" || ordered[1].Dataset.DatasetID != "b" {
		t.Fatalf("expected [a,b], got %v, %v", ordered[0].Dataset.DatasetID, ordered[1].Dataset.DatasetID)
	}
}

func TestFusionOrderNorthernSceneWinsOnSameSolarDay(t *testing.T) {
	t0 := time.Date(2010, 6, 15, 1, 0, 0, 0, time.UTC)
	south := mkSource("south", t0, -40)
	north := mkSource("north", t0, -10)

	ordered := FusionOrder([]Source{south, north})
	if ordered[0].Dataset.DatasetID != "north" {
		t.Fatalf("expected north scene first, got %s", ordered[0].Dataset.DatasetID)
	}
}

func TestFusionOrderDatasetIDTiebreak(t *testing.T) {
	t0 := time.Date(2010, 6, 15, 1, 0, 0, 0, time.UTC)
	a := mkSource("bbbb", t0, -35)
	b := mkSource("aaaa", t0, -35)

	ordered := FusionOrder([]Source{a, b})
	if ordered[0].Dataset.DatasetID != "aaaa" {
		t.Fatalf("expected ascending dataset id tiebreak, got %s first", ordered[0].Dataset.DatasetID)
	}
}
