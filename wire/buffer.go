// Package wire provides bounds-checked, byte-order-aware primitives for
// building and parsing the fixed-endian wire formats used by the EIP/CIP/
// PCCC protocol stack: integer get/set with advancing offsets, IEEE-754
// float encode/decode, and a permuting reader/writer driven by a per-tag
// ByteOrder descriptor.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/yatesdr/ablink/plcerr"
)

// Buffer is a mutable byte region paired with a payload window
// [Start, End). Reserving space for a protocol layer advances Start;
// fixing up a request moves Start backward to write a header; processing
// a response advances Start past a peeled header. Data bounds the region
// that Start/End may ever reference.
type Buffer struct {
	Data  []byte
	Start int
	End   int
}

// NewBuffer wraps data with the payload window set to the whole slice.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Data: data, Start: 0, End: len(data)}
}

// Payload returns the current payload window.
func (b *Buffer) Payload() []byte {
	return b.Data[b.Start:b.End]
}

// Reserve advances Start by n bytes, returning the reserved region so a
// layer can fill it later in FixUpRequest. Fails with OutOfBounds if n
// would push Start past End.
func (b *Buffer) Reserve(n int) ([]byte, error) {
	if b.Start+n > b.End || n < 0 {
		return nil, plcerr.New(plcerr.OutOfBounds, "wire: reserve %d bytes exceeds buffer", n)
	}
	region := b.Data[b.Start : b.Start+n]
	b.Start += n
	return region, nil
}

// Unreserve moves Start backward by n bytes so a layer can write its
// header into space an inner layer already reserved.
func (b *Buffer) Unreserve(n int) ([]byte, error) {
	if b.Start-n < 0 {
		return nil, plcerr.New(plcerr.OutOfBounds, "wire: unreserve %d bytes underflows buffer", n)
	}
	b.Start -= n
	return b.Data[b.Start : b.Start+n], nil
}

// Consume advances Start past a header a layer just parsed out of a
// response, returning the consumed bytes.
func (b *Buffer) Consume(n int) ([]byte, error) {
	if b.Start+n > b.End || n < 0 {
		return nil, plcerr.New(plcerr.OutOfBounds, "wire: consume %d bytes exceeds buffer", n)
	}
	region := b.Data[b.Start : b.Start+n]
	b.Start += n
	return region, nil
}

// GetU8 reads a byte at offset without advancing any cursor.
func GetU8(data []byte, offset int) (byte, error) {
	if offset < 0 || offset >= len(data) {
		return 0, plcerr.New(plcerr.OutOfBounds, "wire: GetU8 offset %d out of bounds (len %d)", offset, len(data))
	}
	return data[offset], nil
}

// SetU8 writes a byte at offset.
func SetU8(data []byte, offset int, v byte) error {
	if offset < 0 || offset >= len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: SetU8 offset %d out of bounds (len %d)", offset, len(data))
	}
	data[offset] = v
	return nil
}

// GetU16LE reads a little-endian u16 at offset.
func GetU16LE(data []byte, offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(data) {
		return 0, plcerr.New(plcerr.OutOfBounds, "wire: GetU16LE offset %d out of bounds (len %d)", offset, len(data))
	}
	return binary.LittleEndian.Uint16(data[offset : offset+2]), nil
}

// SetU16LE writes a little-endian u16 at offset.
func SetU16LE(data []byte, offset int, v uint16) error {
	if offset < 0 || offset+2 > len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: SetU16LE offset %d out of bounds (len %d)", offset, len(data))
	}
	binary.LittleEndian.PutUint16(data[offset:offset+2], v)
	return nil
}

// GetU32LE reads a little-endian u32 at offset.
func GetU32LE(data []byte, offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(data) {
		return 0, plcerr.New(plcerr.OutOfBounds, "wire: GetU32LE offset %d out of bounds (len %d)", offset, len(data))
	}
	return binary.LittleEndian.Uint32(data[offset : offset+4]), nil
}

// SetU32LE writes a little-endian u32 at offset.
func SetU32LE(data []byte, offset int, v uint32) error {
	if offset < 0 || offset+4 > len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: SetU32LE offset %d out of bounds (len %d)", offset, len(data))
	}
	binary.LittleEndian.PutUint32(data[offset:offset+4], v)
	return nil
}

// GetU64LE reads a little-endian u64 at offset.
func GetU64LE(data []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(data) {
		return 0, plcerr.New(plcerr.OutOfBounds, "wire: GetU64LE offset %d out of bounds (len %d)", offset, len(data))
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}

// SetU64LE writes a little-endian u64 at offset.
func SetU64LE(data []byte, offset int, v uint64) error {
	if offset < 0 || offset+8 > len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: SetU64LE offset %d out of bounds (len %d)", offset, len(data))
	}
	binary.LittleEndian.PutUint64(data[offset:offset+8], v)
	return nil
}

// GetU16BE reads a big-endian u16 at offset.
//
// Reads from offset and offset+1. An earlier revision of this accessor
// read from offset+2/offset+3, which silently pulled in whatever bytes
// followed the intended field; that off-by-two is the bug this function
// must not reproduce.
func GetU16BE(data []byte, offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(data) {
		return 0, plcerr.New(plcerr.OutOfBounds, "wire: GetU16BE offset %d out of bounds (len %d)", offset, len(data))
	}
	return binary.BigEndian.Uint16(data[offset : offset+2]), nil
}

// SetU16BE writes a big-endian u16 at offset.
func SetU16BE(data []byte, offset int, v uint16) error {
	if offset < 0 || offset+2 > len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: SetU16BE offset %d out of bounds (len %d)", offset, len(data))
	}
	binary.BigEndian.PutUint16(data[offset:offset+2], v)
	return nil
}

// GetS16BE reads a big-endian s16 at offset, from offset/offset+1.
func GetS16BE(data []byte, offset int) (int16, error) {
	v, err := GetU16BE(data, offset)
	return int16(v), err
}

// GetF32LE reads a little-endian IEEE-754 float32 via bit reinterpretation.
func GetF32LE(data []byte, offset int) (float32, error) {
	v, err := GetU32LE(data, offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// SetF32LE writes a little-endian IEEE-754 float32 via bit reinterpretation.
func SetF32LE(data []byte, offset int, f float32) error {
	return SetU32LE(data, offset, math.Float32bits(f))
}

// GetF64LE reads a little-endian IEEE-754 float64 via bit reinterpretation.
func GetF64LE(data []byte, offset int) (float64, error) {
	v, err := GetU64LE(data, offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// SetF64LE writes a little-endian IEEE-754 float64 via bit reinterpretation.
func SetF64LE(data []byte, offset int, f float64) error {
	return SetU64LE(data, offset, math.Float64bits(f))
}
