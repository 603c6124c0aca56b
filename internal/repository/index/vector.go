package index

import (
	"encoding/binary"
	"math"
)

// vectorToBytes serializes a vector as little-endian float32 bytes, the
// layout FT vector fields expect in hash storage.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
