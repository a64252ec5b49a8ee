// Package cube defines the shared entity types and error kinds for the
// Earth-observation data cube: the dimensional catalogue, the tile grid
// calculator, the ingestor and the query planner all build on the types
// declared here.
package cube

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes the error categories that must be recognisable at
// the boundary of the cube (catalogue callers, ingestion drivers, query
// callers). Concrete errors are constructed with errors.New/fmt.Errorf and
// chained with errors.Join; callers test for a kind with errors.Is against
// the matching sentinel below, or with Kind(err).
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSchemaError
	KindLineageError
	KindCatalogueConflict
	KindReadError
	KindReprojectError
	KindWriteError
	KindFusionConflict
	KindUnknownIndex
	KindCancelled
	KindTimeout
	KindQueryError
)

func (k ErrorKind) String() string {
	switch k {
	case KindSchemaError:
		return "SchemaError"
	case KindLineageError:
		return "LineageError"
	case KindCatalogueConflict:
		return "CatalogueConflict"
	case KindReadError:
		return "ReadError"
	case KindReprojectError:
		return "ReprojectError"
	case KindWriteError:
		return "WriteError"
	case KindFusionConflict:
		return "FusionConflict"
	case KindUnknownIndex:
		return "UnknownIndex"
	case KindCancelled:
		return "Cancelled"
	case KindTimeout:
		return "Timeout"
	case KindQueryError:
		return "QueryError"
	default:
		return "Unknown"
	}
}

// kindError is a sentinel carrying its ErrorKind, so Kind(err) can recover
// it through arbitrarily wrapped/joined errors via errors.As.
type kindError struct {
	kind ErrorKind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// newKind constructs a base sentinel for one of the error kinds below. Wrap
// it with fmt.Errorf("...: %w", base) or errors.Join(base, cause) at the
// call site to attach context without losing the kind.
func newKind(kind ErrorKind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Kind recovers the ErrorKind carried by err, walking Join/Wrap chains.
// Returns KindUnknown if err does not originate from this package's
// sentinels.
func Kind(err error) ErrorKind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Sentinel errors for the kinds in §7. Use errors.Is(err, ErrSchema) etc,
// or Kind(err) for the symbolic form.
var (
	ErrSchema            = newKind(KindSchemaError, "schema error")
	ErrLineage           = newKind(KindLineageError, "lineage error")
	ErrCatalogueConflict = newKind(KindCatalogueConflict, "catalogue conflict")
	ErrRead              = newKind(KindReadError, "read error")
	ErrReproject         = newKind(KindReprojectError, "reproject error")
	ErrWrite             = newKind(KindWriteError, "write error")
	ErrFusionConflict    = newKind(KindFusionConflict, "fusion conflict")
	ErrUnknownIndex      = newKind(KindUnknownIndex, "unknown index")
	ErrCancelled         = newKind(KindCancelled, "cancelled")
	ErrTimeout           = newKind(KindTimeout, "timeout")
	ErrQuery             = newKind(KindQueryError, "query error")
)

// Wrapf joins a sentinel kind with a formatted message via errors.Join,
// so a caller can errors.Is against the sentinel while still carrying
// the original error's detail.
func Wrapf(sentinel error, format string, args ...any) error {
	return errors.Join(sentinel, fmt.Errorf(format, args...))
}
