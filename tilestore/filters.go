// Package tilestore is the chunked array writer (component F collaborator):
// TileDB-Go array lifecycle, filter-pipeline selection, and band
// read/write against the cube's tile schema: a 2-D row/col pixel grid
// with one attribute per measurement.
package tilestore

import (
	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/earthcube/cube"
)

// ZstdFilter, GzipFilter, Lz4Filter, RleFilter, Bzip2Filter and
// BitWidthReductionFilter are one-option-per-codec constructors: each
// builds one tiledb.Filter and sets its single option.

func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_ZSTD, level)
}

func GzipFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_GZIP, level)
}

func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_LZ4, level)
}

func RleFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_RLE, level)
}

func Bzip2Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_BZIP2, level)
}

func levelFilter(ctx *tiledb.Context, kind tiledb.FilterType, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, kind)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

func BitWidthReductionFilter(ctx *tiledb.Context, window int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BIT_WIDTH_REDUCTION)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_BIT_WIDTH_MAX_WINDOW, window); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// filterPipeline builds the compression filter list a measurement's
// Datatype implies: zstd-19 is the cube's default for
// archival data, with bit-width reduction prepended for integer types
// where it pays off.
func filterPipeline(ctx *tiledb.Context, datatype string) (*tiledb.FilterList, error) {
	fl, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return nil, err
	}
	if isInteger(datatype) {
		bitw, err := BitWidthReductionFilter(ctx, -1)
		if err != nil {
			fl.Free()
			return nil, err
		}
		defer bitw.Free()
		if err := fl.AddFilter(bitw); err != nil {
			fl.Free()
			return nil, err
		}
	}
	zstd, err := ZstdFilter(ctx, 19)
	if err != nil {
		fl.Free()
		return nil, err
	}
	defer zstd.Free()
	if err := fl.AddFilter(zstd); err != nil {
		fl.Free()
		return nil, err
	}
	return fl, nil
}

func isInteger(datatype string) bool {
	switch datatype {
	case "int8", "uint8", "int16", "uint16", "int32", "uint32", "int64", "uint64":
		return true
	default:
		return false
	}
}

func tiledbDatatype(datatype string) tiledb.Datatype {
	switch datatype {
	case "int8":
		return tiledb.TILEDB_INT8
	case "uint8":
		return tiledb.TILEDB_UINT8
	case "int16":
		return tiledb.TILEDB_INT16
	case "uint16":
		return tiledb.TILEDB_UINT16
	case "int32":
		return tiledb.TILEDB_INT32
	case "uint32":
		return tiledb.TILEDB_UINT32
	case "int64":
		return tiledb.TILEDB_INT64
	case "uint64":
		return tiledb.TILEDB_UINT64
	case "float32":
		return tiledb.TILEDB_FLOAT32
	default:
		return tiledb.TILEDB_FLOAT64
	}
}

// measurementNodata resolves a StorageMeasurement's configured nodata
// value, defaulting to 0 when unset (mirrors cube.StorageMeasurement.Nodata).
func measurementNodata(m cube.StorageMeasurement) float64 { return m.Nodata }

// nodataAs converts a measurement's float64 nodata value to the concrete
// Go type TileDB's SetFillValue expects for datatype, since the fill
// value must match the attribute's declared datatype exactly.
func nodataAs(datatype string, v float64) any {
	switch datatype {
	case "int8":
		return int8(v)
	case "uint8":
		return uint8(v)
	case "int16":
		return int16(v)
	case "uint16":
		return uint16(v)
	case "int32":
		return int32(v)
	case "uint32":
		return uint32(v)
	case "int64":
		return int64(v)
	case "uint64":
		return uint64(v)
	case "float32":
		return float32(v)
	default:
		return v
	}
}
