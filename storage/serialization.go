// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// floatSize is the byte width of one stored vector component.
const floatSize = 4

// MarshalVector serializes a vector as consecutive little-endian float32 values.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, len(v)*floatSize)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*floatSize:], math.Float32bits(f))
	}
	return buf
}

// UnmarshalVector deserializes a vector blob.
// With dim > 0 the blob must be exactly dim*4 bytes long; with dim == 0 any
// non-empty multiple of 4 is accepted. Anything else is ErrCorruptVector.
func UnmarshalVector(blob []byte, dim int) ([]float32, error) {
	if dim < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", ErrInvalidQuery, dim)
	}
	if len(blob) == 0 || len(blob)%floatSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of float32 values", ErrCorruptVector, len(blob))
	}
	if dim > 0 && len(blob) != dim*floatSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for dimension %d", ErrCorruptVector, len(blob), dim*floatSize, dim)
	}

	v := make([]float32, len(blob)/floatSize)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*floatSize:]))
	}
	return v, nil
}
