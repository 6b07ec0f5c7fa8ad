package wire

import "github.com/yatesdr/ablink/plcerr"

// ByteOrder describes how a tag's native data is laid out on the wire,
// independent of the accessor width. Different PLC families permute
// multi-byte values and encode strings differently; a tag's ByteOrder is
// fixed at creation and never mutated afterward.
type ByteOrder struct {
	// Word order for 32-bit values (2 16-bit words, indices into the
	// 4-byte region). PLC-5: {2,3,0,1}; Logix: {0,1,2,3}.
	Float32Order [4]int

	// String layout.
	StringCountBytes int  // bytes in the leading length field (1, 2, or 4)
	StringSwapChars  bool // characters stored as byte-swapped pairs
	StringMaxChars   int  // declared character capacity
	StringTotalBytes int  // total on-wire size including count field and padding
}

// PLC5ByteOrder is the default descriptor for PLC-5/SLC/MicroLogix tags:
// floats word-swapped, strings 2-byte-counted, byte-swapped, fixed at an
// 82-character capacity inside an 84-byte payload.
var PLC5ByteOrder = ByteOrder{
	Float32Order:     [4]int{2, 3, 0, 1},
	StringCountBytes: 2,
	StringSwapChars:  true,
	StringMaxChars:   82,
	StringTotalBytes: 84,
}

// LogixByteOrder is the default descriptor for Logix/Micro800/Omron-CIP
// tags: floats in natural order, strings 4-byte-counted, not
// byte-swapped, 82-character capacity inside an 88-byte payload (2 pad
// bytes after the declared characters).
var LogixByteOrder = ByteOrder{
	Float32Order:     [4]int{0, 1, 2, 3},
	StringCountBytes: 4,
	StringSwapChars:  false,
	StringMaxChars:   82,
	StringTotalBytes: 88,
}

// GetF32 decodes a float32 at offset according to bo's word order.
func GetF32(bo ByteOrder, data []byte, offset int) (float32, error) {
	if offset < 0 || offset+4 > len(data) {
		return 0, plcerr.New(plcerr.OutOfBounds, "wire: GetF32 offset %d out of bounds (len %d)", offset, len(data))
	}
	var raw [4]byte
	for i, srcWord := range bo.Float32Order {
		raw[i] = data[offset+srcWord]
	}
	return GetF32LE(raw[:], 0)
}

// SetF32 encodes f into data at offset according to bo's word order.
func SetF32(bo ByteOrder, data []byte, offset int, f float32) error {
	if offset < 0 || offset+4 > len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: SetF32 offset %d out of bounds (len %d)", offset, len(data))
	}
	var raw [4]byte
	if err := SetF32LE(raw[:], 0, f); err != nil {
		return err
	}
	for i, dstWord := range bo.Float32Order {
		data[offset+dstWord] = raw[i]
	}
	return nil
}

// DecodeString reads a counted string at offset per bo's string layout,
// undoing character byte-swapping if the descriptor calls for it.
func DecodeString(bo ByteOrder, data []byte, offset int) (string, error) {
	if offset < 0 || offset+bo.StringTotalBytes > len(data) {
		return "", plcerr.New(plcerr.OutOfBounds, "wire: DecodeString offset %d out of bounds (len %d)", offset, len(data))
	}
	var count int
	switch bo.StringCountBytes {
	case 1:
		count = int(data[offset])
	case 2:
		v, err := GetU16LE(data, offset)
		if err != nil {
			return "", err
		}
		count = int(v)
	case 4:
		v, err := GetU32LE(data, offset)
		if err != nil {
			return "", err
		}
		count = int(v)
	default:
		return "", plcerr.New(plcerr.BadParam, "wire: unsupported string count width %d", bo.StringCountBytes)
	}
	if count > bo.StringMaxChars {
		count = bo.StringMaxChars
	}
	chars := data[offset+bo.StringCountBytes : offset+bo.StringCountBytes+count]
	if !bo.StringSwapChars {
		return string(chars), nil
	}
	out := make([]byte, len(chars))
	for i := 0; i < len(chars); i += 2 {
		if i+1 < len(chars) {
			out[i], out[i+1] = chars[i+1], chars[i]
		} else {
			out[i] = chars[i]
		}
	}
	return string(out), nil
}

// EncodeString writes s into data at offset per bo's string layout,
// zero-padding the unused capacity.
func EncodeString(bo ByteOrder, data []byte, offset int, s string) error {
	if offset < 0 || offset+bo.StringTotalBytes > len(data) {
		return plcerr.New(plcerr.OutOfBounds, "wire: EncodeString offset %d out of bounds (len %d)", offset, len(data))
	}
	if len(s) > bo.StringMaxChars {
		return plcerr.New(plcerr.TooLarge, "wire: string %d chars exceeds capacity %d", len(s), bo.StringMaxChars)
	}
	switch bo.StringCountBytes {
	case 1:
		if err := SetU8(data, offset, byte(len(s))); err != nil {
			return err
		}
	case 2:
		if err := SetU16LE(data, offset, uint16(len(s))); err != nil {
			return err
		}
	case 4:
		if err := SetU32LE(data, offset, uint32(len(s))); err != nil {
			return err
		}
	default:
		return plcerr.New(plcerr.BadParam, "wire: unsupported string count width %d", bo.StringCountBytes)
	}
	body := data[offset+bo.StringCountBytes : offset+bo.StringTotalBytes]
	for i := range body {
		body[i] = 0
	}
	chars := []byte(s)
	if !bo.StringSwapChars {
		copy(body, chars)
		return nil
	}
	for i := 0; i < len(chars); i += 2 {
		if i+1 < len(chars) {
			body[i], body[i+1] = chars[i+1], chars[i]
		} else {
			body[i] = chars[i]
		}
	}
	return nil
}
