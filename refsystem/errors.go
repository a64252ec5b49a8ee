package refsystem

import "errors"

var ErrUnsupportedTransform = errors.New("refsystem: unsupported CRS transform")
var ErrReprojectOutOfRange = errors.New("refsystem: coordinate out of range for transform")
var ErrUnknownIndexValue = errors.New("refsystem: unknown index")
