package sequence

import "errors"

// ErrOutOfBounds is returned when a position argument falls outside the
// sequence's current visible length.
var ErrOutOfBounds = errors.New("sequence: position out of bounds")
