package statestore

import (
	"encoding/binary"
	"fmt"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/vmihailenco/msgpack/v5"
)

// frameHeader is the little-endian uint32 payload length that precedes the
// msgpack body in a fixed-size shared region.
const frameHeader = 4

// RegionSize returns a shared-region size large enough for the encoded state
// of an n-ingredient factory.
func RegionSize(n int) int {
	return 4096 + 256*n
}

// Marshal encodes st with msgpack.
func Marshal(st *factory.State) ([]byte, error) {
	b, err := msgpack.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: encode state: %v", ErrPrimitive, err)
	}
	return b, nil
}

// Unmarshal decodes a msgpack-encoded state.
func Unmarshal(b []byte) (*factory.State, error) {
	st := new(factory.State)
	if err := msgpack.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("%w: decode state: %v", ErrPrimitive, err)
	}
	return st, nil
}

// WriteFrame encodes st into region as a length-prefixed frame.
func WriteFrame(region []byte, st *factory.State) error {
	b, err := Marshal(st)
	if err != nil {
		return err
	}
	if frameHeader+len(b) > len(region) {
		return fmt.Errorf("%w: encoded state is %d bytes, region holds %d", ErrPrimitive, len(b), len(region)-frameHeader)
	}
	copy(region[frameHeader:], b)
	binary.LittleEndian.PutUint32(region[:frameHeader], uint32(len(b)))
	return nil
}

// ReadFrame decodes the frame stored in region. A zero length means the
// region was never written.
func ReadFrame(region []byte) (*factory.State, error) {
	if len(region) < frameHeader {
		return nil, fmt.Errorf("%w: region too small (%d bytes)", ErrPrimitive, len(region))
	}
	n := int(binary.LittleEndian.Uint32(region[:frameHeader]))
	if n == 0 {
		return nil, ErrMissing
	}
	if frameHeader+n > len(region) {
		return nil, fmt.Errorf("%w: frame length %d exceeds region", ErrPrimitive, n)
	}
	// decode from a private copy; the region may be rewritten after unlock
	b := make([]byte, n)
	copy(b, region[frameHeader:frameHeader+n])
	return Unmarshal(b)
}
