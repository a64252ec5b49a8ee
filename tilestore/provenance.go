package tilestore

import (
	"encoding/json"
	"fmt"
	"time"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// Provenance is the per-tile lineage record component F attaches as array
// metadata: which datasets contributed, in what fusion order, and when.
// CF-compliant axis metadata (standard_name, units, calendar) lives
// alongside it under separate keys so a reader can distinguish the two
// without parsing a combined blob.
type Provenance struct {
	StorageType string    `json:"storage_type"`
	StorageID   string    `json:"storage_id"`
	Version     int       `json:"version"`
	Datasets    []string  `json:"datasets"` // dataset ids, in fusion order
	Checksum    string    `json:"checksum"`
	WrittenAt   time.Time `json:"written_at"`
}

const provenanceKey = "cube.provenance"

// WriteProvenance attaches p to the array at uri as a single JSON-encoded
// metadata entry, marshalling once and writing under one well-known key
// rather than flattening fields into separate metadata entries.
func WriteProvenance(ctx *tiledb.Context, uri string, p Provenance) error {
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_WRITE)
	if err != nil {
		return fmt.Errorf("tilestore: open for metadata write %s: %w", uri, err)
	}
	defer array.Free()
	defer array.Close()

	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("tilestore: marshal provenance: %w", err)
	}
	if err := array.PutMetadata(provenanceKey, string(blob)); err != nil {
		return fmt.Errorf("tilestore: write provenance to %s: %w", uri, err)
	}
	return nil
}

// ReadProvenance retrieves the provenance record written by WriteProvenance.
func ReadProvenance(ctx *tiledb.Context, uri string) (Provenance, error) {
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_READ)
	if err != nil {
		return Provenance{}, fmt.Errorf("tilestore: open for metadata read %s: %w", uri, err)
	}
	defer array.Free()
	defer array.Close()

	_, _, value, err := array.GetMetadata(provenanceKey)
	if err != nil {
		return Provenance{}, fmt.Errorf("tilestore: read provenance from %s: %w", uri, err)
	}
	raw, ok := value.(string)
	if !ok {
		return Provenance{}, fmt.Errorf("tilestore: provenance metadata at %s has unexpected type %T", uri, value)
	}
	var p Provenance
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Provenance{}, fmt.Errorf("tilestore: unmarshal provenance: %w", err)
	}
	return p, nil
}

// DimensionMetadata is the CF-compliant coordinate description for one
// axis of a tile (§4.E operation 6): axis role, standard_name, long_name,
// units and, for the time axis, the calendar.
type DimensionMetadata struct {
	Axis         string `json:"axis"`
	StandardName string `json:"standard_name"`
	LongName     string `json:"long_name"`
	Units        string `json:"units"`
	Calendar     string `json:"calendar,omitempty"`
}

// WriteDimensionMetadata attaches CF axis metadata for one dimension
// under a per-dimension key so a reader can fetch axes independently of
// the provenance blob.
func WriteDimensionMetadata(ctx *tiledb.Context, uri, dimTag string, md DimensionMetadata) error {
	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_WRITE)
	if err != nil {
		return fmt.Errorf("tilestore: open for dimension metadata write %s: %w", uri, err)
	}
	defer array.Free()
	defer array.Close()

	blob, err := json.Marshal(md)
	if err != nil {
		return err
	}
	key := "cube.dim." + dimTag
	if err := array.PutMetadata(key, string(blob)); err != nil {
		return fmt.Errorf("tilestore: write dimension metadata %s: %w", key, err)
	}
	return nil
}

// CFDimensionMetadata returns the conventional CF attributes for the
// cube's well-known dimension tags (§4.E operation 6); unrecognised tags
// get a bare passthrough with no standard_name.
func CFDimensionMetadata(dimTag, unit string) DimensionMetadata {
	switch dimTag {
	case "longitude":
		return DimensionMetadata{Axis: "X", StandardName: "longitude", LongName: "longitude", Units: "degrees_east"}
	case "latitude":
		return DimensionMetadata{Axis: "Y", StandardName: "latitude", LongName: "latitude", Units: "degrees_north"}
	case "time":
		return DimensionMetadata{Axis: "T", StandardName: "time", LongName: "time", Units: unit, Calendar: "proleptic_gregorian"}
	case "height":
		return DimensionMetadata{Axis: "Z", StandardName: "height", LongName: "height above reference ellipsoid", Units: unit}
	default:
		return DimensionMetadata{LongName: dimTag, Units: unit}
	}
}
