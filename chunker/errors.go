package chunker

import "errors"

var (
	// ErrInvalidTarget is returned when the target chunk size is not positive.
	ErrInvalidTarget = errors.New("target words must be greater than 0")

	// ErrInvalidOverlap is returned when the overlap is negative or not smaller than the target.
	ErrInvalidOverlap = errors.New("overlap words must be in [0, target)")

	// ErrInvalidMinWords is returned when the minimum chunk size is negative.
	ErrInvalidMinWords = errors.New("min words cannot be negative")
)
