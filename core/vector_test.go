package core

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestEncodeDecodeVector_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vectors := []Vector{
		{0},
		{1, -1, 0.5, -0.25},
		{float32(math.Inf(1)), float32(math.Inf(-1)), math.SmallestNonzeroFloat32, math.MaxFloat32},
		{float32(math.Copysign(0, -1))},
	}
	random := make(Vector, 1536)
	for i := range random {
		random[i] = rng.Float32()*2 - 1
	}
	vectors = append(vectors, random)

	for _, v := range vectors {
		blob := EncodeVector(v)
		if len(blob) != 4*len(v) {
			t.Fatalf("blob length = %d, want %d", len(blob), 4*len(v))
		}
		decoded, err := DecodeVector(blob, len(v))
		if err != nil {
			t.Fatalf("DecodeVector() error = %v", err)
		}
		for i := range v {
			if math.Float32bits(v[i]) != math.Float32bits(decoded[i]) {
				t.Fatalf("component %d: got bits %x, want %x", i, math.Float32bits(decoded[i]), math.Float32bits(v[i]))
			}
		}
	}
}

func TestEncodeVector_NaNPayloadPreserved(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001)
	decoded, err := DecodeVector(EncodeVector(Vector{nan}), 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Float32bits(decoded[0]) != 0x7fc00001 {
		t.Errorf("NaN payload changed: %x", math.Float32bits(decoded[0]))
	}
}

func TestEncodeVector_LittleEndian(t *testing.T) {
	blob := EncodeVector(Vector{1.0})
	want := []byte{0x00, 0x00, 0x80, 0x3f}
	for i := range want {
		if blob[i] != want[i] {
			t.Fatalf("blob = %x, want %x", blob, want)
		}
	}
}

func TestDecodeVector_Errors(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}, 0); !errors.Is(err, ErrMalformedVector) {
		t.Errorf("expected ErrMalformedVector, got %v", err)
	}
	if _, err := DecodeVector(EncodeVector(Vector{1, 2}), 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	v, err := DecodeVector(nil, 0)
	if err != nil || v != nil {
		t.Errorf("empty blob should decode to nil vector, got %v, %v", v, err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	v := Vector{0.3, -1.2, 4.5}
	w := Vector{2, 0.1, -0.7}
	zero := Vector{0, 0, 0}

	if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("cosine(v, v) = %v, want 1", got)
	}
	if CosineSimilarity(v, w) != CosineSimilarity(w, v) {
		t.Error("cosine is not symmetric")
	}
	if CosineSimilarity(v, zero) != 0 || CosineSimilarity(zero, v) != 0 {
		t.Error("cosine with zero vector should be 0")
	}
	if CosineSimilarity(v, Vector{1, 2}) != 0 {
		t.Error("cosine of mismatched lengths should be 0")
	}
	if got := CosineSimilarity(Vector{1, 0}, Vector{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Errorf("opposite vectors = %v, want -1", got)
	}
}

func TestMeanVector(t *testing.T) {
	mean, err := MeanVector([]Vector{{1, 2}, {3, 4}, nil})
	if err != nil {
		t.Fatal(err)
	}
	if mean[0] != 2 || mean[1] != 3 {
		t.Errorf("mean = %v, want [2 3]", mean)
	}

	if _, err := MeanVector([]Vector{{1, 2}, {1}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := MeanVector(nil); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("expected ErrEmptyVector, got %v", err)
	}
}

func TestVector_Validate(t *testing.T) {
	if err := (Vector{}).Validate(0); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("expected ErrEmptyVector, got %v", err)
	}
	if err := (Vector{1, 2}).Validate(2); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := (Vector{1, 2}).Validate(0); err != nil {
		t.Errorf("dim 0 should skip the check, got %v", err)
	}
}

func TestRound(t *testing.T) {
	if Round(0.95049, 3) != 0.95 {
		t.Errorf("Round() = %v", Round(0.95049, 3))
	}
	if Round(0.9126, 3) != 0.913 {
		t.Errorf("Round() = %v", Round(0.9126, 3))
	}
}
