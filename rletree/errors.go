package rletree

import "errors"

// ErrOutOfBounds is returned when a position argument falls outside the
// tree's current visible length.
var ErrOutOfBounds = errors.New("rletree: position out of bounds")
