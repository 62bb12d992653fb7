package memoryindex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes a float32 embedding as fixed-width little-endian
// 32-bit floats, per §4.G ("4*dim bytes").
func EncodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector reverses EncodeVector. It rejects blobs whose length is not
// a multiple of 4, and blobs whose implied dimensionality does not match
// wantDim when wantDim > 0.
func DecodeVector(raw []byte, wantDim int) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("memoryindex: vector blob length %d is not a multiple of 4", len(raw))
	}
	dim := len(raw) / 4
	if wantDim > 0 && dim != wantDim {
		return nil, fmt.Errorf("memoryindex: vector blob has dim %d, want %d", dim, wantDim)
	}
	out := make([]float32, dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
