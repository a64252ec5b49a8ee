package catalogue

import (
	"fmt"

	"github.com/earthcube/cube"
)

// ValidateStorageType enforces the §3.2 invariants that do not require a
// round-trip to the backing store: dimension/domain membership,
// uniqueness of dimension per storage type, and uniqueness of
// measurement_type_index. Backends call this before persisting a spec and
// return the result wrapped in cube.ErrSchema on failure.
//
// domainsOf resolves a domain tag to the dimension tags it contains, so
// that "every dimension referenced by a storage type must belong to a
// domain that the storage type declares" can be checked without the
// backend exposing its full Domain table to this package.
func ValidateStorageType(spec cube.StorageType, domainsOf func(domainTag string) ([]string, bool)) error {
	if spec.Tag == "" {
		return fmt.Errorf("%w: storage type tag must not be empty", cube.ErrSchema)
	}

	seenDim := make(map[string]bool, len(spec.Dimensions))
	for dimTag, ds := range spec.Dimensions {
		if seenDim[dimTag] {
			return fmt.Errorf("%w: dimension %q appears more than once in storage type %q", cube.ErrSchema, dimTag, spec.Tag)
		}
		seenDim[dimTag] = true

		members, ok := domainsOf(ds.Domain)
		if !ok {
			return fmt.Errorf("%w: storage type %q references unknown domain %q", cube.ErrSchema, spec.Tag, ds.Domain)
		}
		if !containsStr(members, dimTag) {
			return fmt.Errorf("%w: dimension %q does not belong to domain %q declared by storage type %q",
				cube.ErrSchema, dimTag, ds.Domain, spec.Tag)
		}

		if ds.IndexingType == cube.IndexingFixed && ds.Domain == "spectral" {
			// "reference_system_indexing row must correspond to an
			// existing measurement type when the dimension is spectral"
			for _, tag := range ds.FixedValues {
				if !measurementTagExists(spec.Measurements, tag) {
					return fmt.Errorf("%w: spectral fixed-dimension value %q has no matching measurement type in storage type %q",
						cube.ErrSchema, tag, spec.Tag)
				}
			}
		}
	}

	// every dimension named in DimOrder must have a spec
	for _, dimTag := range spec.DimOrder {
		if _, ok := spec.Dimensions[dimTag]; !ok {
			return fmt.Errorf("%w: dimension_order references undeclared dimension %q", cube.ErrSchema, dimTag)
		}
	}

	seenIndex := make(map[int]bool, len(spec.Measurements))
	for _, m := range spec.Measurements {
		if seenIndex[m.OutputIndex] {
			return fmt.Errorf("%w: duplicate measurement output index %d in storage type %q", cube.ErrSchema, m.OutputIndex, spec.Tag)
		}
		seenIndex[m.OutputIndex] = true
	}

	return nil
}

// ValidateDatasetType enforces the dataset-type half of the
// measurement_type_index uniqueness invariant (§3.2): unique per dataset
// type, 1..N, no gaps required but no duplicates either.
func ValidateDatasetType(dt cube.DatasetType) error {
	seen := make(map[int]bool, len(dt.Measurements))
	for _, m := range dt.Measurements {
		if m.MeasurementTypeIndex < 1 {
			return fmt.Errorf("%w: measurement_type_index must be >= 1, got %d for %q", cube.ErrSchema, m.MeasurementTypeIndex, m.Name)
		}
		if seen[m.MeasurementTypeIndex] {
			return fmt.Errorf("%w: duplicate measurement_type_index %d in dataset type %q", cube.ErrSchema, m.MeasurementTypeIndex, dt.Tag)
		}
		seen[m.MeasurementTypeIndex] = true
	}
	return nil
}

// ValidateStorageUnitFootprint checks the §3.2 rule that a storage unit's
// per-dimension index is consistent with its footprint.
func ValidateStorageUnitFootprint(su cube.StorageUnit, spec cube.StorageType) error {
	for _, d := range su.Dimensions {
		dimSpec, ok := spec.Dimensions[d.Dimension]
		if !ok {
			return fmt.Errorf("%w: storage unit dimension %q not declared on storage type %q", cube.ErrSchema, d.Dimension, spec.Tag)
		}
		switch dimSpec.IndexingType {
		case cube.IndexingRegular:
			wantMin := dimSpec.Origin + float64(d.Index)*dimSpec.Extent
			wantMax := wantMin + dimSpec.Extent
			if !floatEq(d.Min, wantMin) || !floatEq(d.Max, wantMax) {
				return fmt.Errorf("%w: regular dimension %q index %d expects min=%v max=%v, got min=%v max=%v",
					cube.ErrSchema, d.Dimension, d.Index, wantMin, wantMax, d.Min, d.Max)
			}
		case cube.IndexingFixed:
			if d.Min != float64(d.Index) || d.Max != float64(d.Index) {
				return fmt.Errorf("%w: fixed dimension %q expects min=max=index (%d), got min=%v max=%v",
					cube.ErrSchema, d.Dimension, d.Index, d.Min, d.Max)
			}
		}
	}
	if len(su.Datasets) == 0 {
		return fmt.Errorf("%w: storage unit %s/%s must reference at least one dataset", cube.ErrSchema, su.StorageType, su.StorageID)
	}
	return nil
}

func floatEq(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func measurementTagExists(measurements []cube.StorageMeasurement, tag string) bool {
	for _, m := range measurements {
		if m.Tag == tag {
			return true
		}
	}
	return false
}
