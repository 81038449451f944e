// Package network ingests landmark frames from the outside world: a binary
// UDP datagram listener and a line-oriented pipe reader, both feeding the
// same sink.
package network

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxDatagramFloats bounds a decoded datagram. Anything larger than a frame
// plus its optional trailing delta is garbage.
const MaxDatagramFloats = 128

// ParseDatagram decodes a little-endian float32 datagram into float64
// scalars. Length validation against the frame layout is the sink's concern;
// this only rejects byte streams that cannot be a float array at all.
func ParseDatagram(b []byte) ([]float64, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("datagram length %d is not a float32 array", len(b))
	}
	count := len(b) / 4
	if count > MaxDatagramFloats {
		return nil, fmt.Errorf("datagram holds %d floats, max %d", count, MaxDatagramFloats)
	}

	out := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		v := float64(math.Float32frombits(bits))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("datagram float %d is not finite", i)
		}
		out[i] = v
	}
	return out, nil
}

// EncodeDatagram packs scalars into the little-endian float32 wire layout.
func EncodeDatagram(values []float64) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}
