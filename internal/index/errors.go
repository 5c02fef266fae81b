package index

import "errors"

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrUnreachable       = errors.New("index backend unreachable")
	ErrBadSnapshot       = errors.New("malformed index snapshot")
)
