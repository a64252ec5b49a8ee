package refsystem

import "testing"

func TestRegularRoundTrip(t *testing.T) {
	spec := DimSpec{Origin: 0, Extent: 1.0, IndexingType: "regular"}

	for index := int64(-5); index <= 5; index++ {
		rng, err := IndexToRange(index, spec)
		if err != nil {
			t.Fatalf("IndexToRange(%d): %v", index, err)
		}

		got, err := CoordToIndex(rng.Min, spec)
		if err != nil {
			t.Fatalf("CoordToIndex(min): %v", err)
		}
		if got != index {
			t.Errorf("min round trip: index %d -> range %v -> %d", index, rng, got)
		}

		gotMid, err := CoordToIndex(rng.Mid(), spec)
		if err != nil {
			t.Fatalf("CoordToIndex(mid): %v", err)
		}
		if gotMid != index {
			t.Errorf("mid round trip: index %d -> mid %v -> %d", index, rng.Mid(), gotMid)
		}
	}
}

func TestFixedIndexUnknown(t *testing.T) {
	spec := DimSpec{IndexingType: "fixed", Enumeration: []string{"B10", "B20", "B30"}}

	idx, err := FixedIndex("B20", spec)
	if err != nil || idx != 1 {
		t.Fatalf("FixedIndex(B20) = %d, %v; want 1, nil", idx, err)
	}

	if _, err := FixedIndex("B99", spec); err == nil {
		t.Fatal("expected UnknownIndex error for absent enumeration value")
	}
}

func TestIrregularBracketSearch(t *testing.T) {
	spec := DimSpec{IndexingType: "irregular", Breaks: []float64{0, 1, 3, 10}}

	cases := []struct {
		value float64
		want  int64
	}{
		{0, 0}, {0.5, 0}, {1, 1}, {2.9, 1}, {3, 2}, {9.9, 2},
	}
	for _, c := range cases {
		got, err := CoordToIndex(c.value, spec)
		if err != nil {
			t.Fatalf("CoordToIndex(%v): %v", c.value, err)
		}
		if got != c.want {
			t.Errorf("CoordToIndex(%v) = %d, want %d", c.value, got, c.want)
		}
	}

	if _, err := CoordToIndex(10, spec); err == nil {
		t.Fatal("expected error for value at upper open bound")
	}
	if _, err := CoordToIndex(-1, spec); err == nil {
		t.Fatal("expected error for value below lower bound")
	}
}

func TestCRSEquality(t *testing.T) {
	a := Geographic{Auth: "EPSG:4326"}
	b := Geographic{Auth: "EPSG:4326"}
	if !a.Equal(b) {
		t.Fatal("expected equal by authority string")
	}

	p1 := Projected{Auth: "vendor-a:3857", FalseEasting: 0, FalseNorthing: 0, ScaleFactor: 1, CentralMeridian: 0}
	p2 := Projected{Auth: "vendor-b:3857", FalseEasting: 0, FalseNorthing: 0, ScaleFactor: 1, CentralMeridian: 0}
	if !p1.Equal(p2) {
		t.Fatal("expected equal by projection parameters despite differing authority strings")
	}
}
