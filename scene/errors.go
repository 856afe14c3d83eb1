package scene

import "errors"

var (
	// ErrMalformedInput reports a broken record graph or interchange document.
	ErrMalformedInput = errors.New("malformed input")
	// ErrCapacityExceeded reports a mesh that does not fit 16-bit indices.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)
