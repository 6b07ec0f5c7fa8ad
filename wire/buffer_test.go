package wire

import (
	"testing"

	"github.com/yatesdr/ablink/plcerr"
)

func TestU16LERoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 0xFE, 0xFF, 0x100, 0xFFFF} {
		buf := make([]byte, 2)
		if err := SetU16LE(buf, 0, v); err != nil {
			t.Fatalf("SetU16LE(%d): %v", v, err)
		}
		got, err := GetU16LE(buf, 0)
		if err != nil {
			t.Fatalf("GetU16LE(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
}

func TestGetU16BEReadsFromOffsetNotOffsetPlus2(t *testing.T) {
	// bytes at offset/offset+1 are the intended field; offset+2/+3 are
	// unrelated trailing data that must not be read.
	data := []byte{0xAA, 0x12, 0x34, 0xBB, 0xCC}
	got, err := GetU16BE(data, 1)
	if err != nil {
		t.Fatalf("GetU16BE: %v", err)
	}
	want := uint16(0x1234)
	if got != want {
		t.Errorf("GetU16BE = 0x%04X, want 0x%04X (must read offset/offset+1, not offset+2/offset+3)", got, want)
	}
}

func TestOutOfBoundsReturnsOutOfBoundsKind(t *testing.T) {
	buf := make([]byte, 2)
	_, err := GetU32LE(buf, 0)
	if plcerr.KindOf(err) != plcerr.OutOfBounds {
		t.Errorf("KindOf = %v, want OutOfBounds", plcerr.KindOf(err))
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	want := float32(3.25)
	if err := SetF32LE(buf, 0, want); err != nil {
		t.Fatal(err)
	}
	got, err := GetF32LE(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestBufferReserveAndUnreserve(t *testing.T) {
	b := NewBuffer(make([]byte, 32))
	region, err := b.Reserve(24)
	if err != nil {
		t.Fatal(err)
	}
	if len(region) != 24 || b.Start != 24 {
		t.Fatalf("Reserve did not advance Start correctly: len=%d start=%d", len(region), b.Start)
	}
	header, err := b.Unreserve(24)
	if err != nil {
		t.Fatal(err)
	}
	if len(header) != 24 || b.Start != 0 {
		t.Fatalf("Unreserve did not rewind Start correctly: len=%d start=%d", len(header), b.Start)
	}
}

func TestBufferReserveOutOfBounds(t *testing.T) {
	b := NewBuffer(make([]byte, 4))
	if _, err := b.Reserve(8); plcerr.KindOf(err) != plcerr.OutOfBounds {
		t.Errorf("Reserve beyond capacity: KindOf = %v, want OutOfBounds", plcerr.KindOf(err))
	}
}

func TestPLC5FloatWordOrder(t *testing.T) {
	data := make([]byte, 4)
	if err := SetF32(PLC5ByteOrder, data, 0, 1.5); err != nil {
		t.Fatal(err)
	}
	got, err := GetF32(PLC5ByteOrder, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.5 {
		t.Errorf("PLC-5 float round trip: got %v want 1.5", got)
	}
}

func TestLogixStringEncodeDecode(t *testing.T) {
	data := make([]byte, LogixByteOrder.StringTotalBytes)
	if err := EncodeString(LogixByteOrder, data, 0, "HELLO"); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeString(LogixByteOrder, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "HELLO" {
		t.Errorf("got %q want %q", got, "HELLO")
	}
}

func TestPLC5StringSwapsCharPairs(t *testing.T) {
	data := make([]byte, PLC5ByteOrder.StringTotalBytes)
	if err := EncodeString(PLC5ByteOrder, data, 0, "AB"); err != nil {
		t.Fatal(err)
	}
	// count field is 2 bytes, then swapped char pairs: 'B','A'
	if data[2] != 'B' || data[3] != 'A' {
		t.Errorf("expected swapped char pair B,A got %c,%c", data[2], data[3])
	}
	got, err := DecodeString(PLC5ByteOrder, data, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != "AB" {
		t.Errorf("got %q want %q", got, "AB")
	}
}
