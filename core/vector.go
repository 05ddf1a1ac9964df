package core

import (
	"encoding/binary"
	"fmt"
	"math"
)

// bytesPerDimension is the packed size of one float32 component.
const bytesPerDimension = 4

// Vector is a dense embedding. All vectors stored together share one dimensionality.
type Vector []float32

// Dimensions returns the number of components.
func (v Vector) Dimensions() int {
	return len(v)
}

// Validate checks that the vector is non-empty and, when dim > 0, has exactly dim components.
func (v Vector) Validate(dim int) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, len(v))
	}
	return nil
}

// Norm returns the Euclidean length.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// EncodeVector packs a vector as little-endian IEEE-754 float32 values, 4 bytes per dimension.
func EncodeVector(v Vector) []byte {
	buf := make([]byte, len(v)*bytesPerDimension)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*bytesPerDimension:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector unpacks a blob written by EncodeVector.
// When dim > 0 the blob must hold exactly dim components.
func DecodeVector(data []byte, dim int) (Vector, error) {
	if len(data)%bytesPerDimension != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedVector, len(data))
	}
	n := len(data) / bytesPerDimension
	if dim > 0 && n != dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dim, n)
	}
	if n == 0 {
		return nil, nil
	}
	v := make(Vector, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*bytesPerDimension:]))
	}
	return v, nil
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// It is 0 when either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MeanVector returns the element-wise average of vs.
// Empty vectors are skipped; mixed dimensionality is an error.
func MeanVector(vs []Vector) (Vector, error) {
	var sum []float64
	count := 0
	for _, v := range vs {
		if len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		} else if len(v) != len(sum) {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, len(sum), len(v))
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}
	if count == 0 {
		return nil, ErrEmptyVector
	}
	mean := make(Vector, len(sum))
	for i, s := range sum {
		mean[i] = float32(s / float64(count))
	}
	return mean, nil
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
