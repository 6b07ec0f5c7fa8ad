package tag

import (
	"github.com/yatesdr/ablink/plcerr"
	"github.com/yatesdr/ablink/wire"
)

// setOOB records an out-of-bounds status, replacing whatever status the
// tag held (including one a Read/Write set) — per spec.md, an
// out-of-bounds accessor call sets the tag's status and returns a
// sentinel rather than panicking or blocking the caller.
func (t *Tag) setOOB(offset int) {
	t.mu.Lock()
	t.status = plcerr.New(plcerr.OutOfBounds, "tag: %s: accessor offset %d out of bounds (size %d)", t.Name, offset, len(t.raw))
	t.mu.Unlock()
}

// GetU8 returns the byte at offset, or 0 if out of bounds.
func (t *Tag) GetU8(offset int) byte {
	t.mu.Lock()
	oob := offset < 0 || offset >= len(t.raw)
	var v byte
	if !oob {
		v = t.raw[offset]
	}
	t.mu.Unlock()
	if oob {
		t.setOOB(offset)
		return 0
	}
	return v
}

// SetU8 writes b at offset, growing the buffer if necessary.
func (t *Tag) SetU8(offset int, b byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + 1)
	t.raw[offset] = b
}

// GetU16 returns the little-endian uint16 at offset, or 0 if out of bounds.
func (t *Tag) GetU16(offset int) uint16 {
	t.mu.Lock()
	v, err := wire.GetU16LE(t.raw, offset)
	t.mu.Unlock()
	if err != nil {
		t.setOOB(offset)
		return 0
	}
	return v
}

// SetU16 writes v as little-endian at offset, growing the buffer if necessary.
func (t *Tag) SetU16(offset int, v uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + 2)
	_ = wire.SetU16LE(t.raw, offset, v)
}

// GetU32 returns the little-endian uint32 at offset, or 0 if out of bounds.
func (t *Tag) GetU32(offset int) uint32 {
	t.mu.Lock()
	v, err := wire.GetU32LE(t.raw, offset)
	t.mu.Unlock()
	if err != nil {
		t.setOOB(offset)
		return 0
	}
	return v
}

// SetU32 writes v as little-endian at offset, growing the buffer if necessary.
func (t *Tag) SetU32(offset int, v uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + 4)
	_ = wire.SetU32LE(t.raw, offset, v)
}

// GetU64 returns the little-endian uint64 at offset, or 0 if out of bounds.
func (t *Tag) GetU64(offset int) uint64 {
	t.mu.Lock()
	v, err := wire.GetU64LE(t.raw, offset)
	t.mu.Unlock()
	if err != nil {
		t.setOOB(offset)
		return 0
	}
	return v
}

// SetU64 writes v as little-endian at offset, growing the buffer if necessary.
func (t *Tag) SetU64(offset int, v uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + 8)
	_ = wire.SetU64LE(t.raw, offset, v)
}

// GetS32 returns the little-endian int32 at offset, or 0 if out of bounds.
func (t *Tag) GetS32(offset int) int32 {
	return int32(t.GetU32(offset))
}

// SetS32 writes v as little-endian at offset.
func (t *Tag) SetS32(offset int, v int32) {
	t.SetU32(offset, uint32(v))
}

// GetS16 returns the little-endian int16 at offset, or 0 if out of bounds.
func (t *Tag) GetS16(offset int) int16 {
	return int16(t.GetU16(offset))
}

// SetS16 writes v as little-endian at offset.
func (t *Tag) SetS16(offset int, v int16) {
	t.SetU16(offset, uint16(v))
}

// GetF32 returns the float32 at offset, decoded per the tag's byte-order
// descriptor (PLC-5 word-swapped vs. Logix natural order).
func (t *Tag) GetF32(offset int) float32 {
	t.mu.Lock()
	v, err := wire.GetF32(t.bo, t.raw, offset)
	t.mu.Unlock()
	if err != nil {
		t.setOOB(offset)
		return 0
	}
	return v
}

// SetF32 writes f at offset, encoded per the tag's byte-order descriptor.
func (t *Tag) SetF32(offset int, f float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + 4)
	_ = wire.SetF32(t.bo, t.raw, offset, f)
}

// GetF64 returns the little-endian float64 at offset, or 0 if out of bounds.
func (t *Tag) GetF64(offset int) float64 {
	t.mu.Lock()
	v, err := wire.GetF64LE(t.raw, offset)
	t.mu.Unlock()
	if err != nil {
		t.setOOB(offset)
		return 0
	}
	return v
}

// SetF64 writes f as little-endian at offset.
func (t *Tag) SetF64(offset int, f float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + 8)
	_ = wire.SetF64LE(t.raw, offset, f)
}

// GetBit returns the value of bit bitOffset (counted from the start of
// the buffer, LSB-first within each byte), or false if out of bounds.
func (t *Tag) GetBit(bitOffset int) bool {
	byteIdx := bitOffset / 8
	v := t.GetU8(byteIdx)
	return v&(1<<uint(bitOffset%8)) != 0
}

// SetBit sets or clears bit bitOffset, growing the buffer if necessary.
func (t *Tag) SetBit(bitOffset int, value bool) {
	byteIdx := bitOffset / 8
	bit := byte(1) << uint(bitOffset%8)

	t.mu.Lock()
	t.growLocked(byteIdx + 1)
	if value {
		t.raw[byteIdx] |= bit
	} else {
		t.raw[byteIdx] &^= bit
	}
	t.mu.Unlock()
}

// GetString decodes a counted string at offset per the tag's byte-order
// descriptor.
func (t *Tag) GetString(offset int) string {
	t.mu.Lock()
	s, err := wire.DecodeString(t.bo, t.raw, offset)
	t.mu.Unlock()
	if err != nil {
		t.setOOB(offset)
		return ""
	}
	return s
}

// SetString encodes s as a counted string at offset, growing the buffer
// to the descriptor's total string width if necessary.
func (t *Tag) SetString(offset int, s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growLocked(offset + t.bo.StringTotalBytes)
	return wire.EncodeString(t.bo, t.raw, offset, s)
}

// growLocked extends t.raw to at least n bytes, zero-filling the new tail.
// Caller must hold t.mu.
func (t *Tag) growLocked(n int) {
	if len(t.raw) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, t.raw)
	t.raw = grown
}
