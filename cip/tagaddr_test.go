package cip

import "testing"

func TestParseSymbolicTagPlain(t *testing.T) {
	pt, err := ParseSymbolicTag("Count")
	if err != nil {
		t.Fatal(err)
	}
	if pt.IsBit {
		t.Error("plain tag should not be a bit reference")
	}
	want := []byte{0x91, 0x05, 'C', 'o', 'u', 'n', 't', 0x00}
	if string(pt.Path) != string(want) {
		t.Errorf("path = % X, want % X", pt.Path, want)
	}
}

func TestParseSymbolicTagTrailingBit(t *testing.T) {
	pt, err := ParseSymbolicTag("MyDint.7")
	if err != nil {
		t.Fatal(err)
	}
	if !pt.IsBit || pt.Bit != 7 {
		t.Errorf("IsBit=%v Bit=%d, want true/7", pt.IsBit, pt.Bit)
	}
}

func TestParseSymbolicTagRejectsBitOver255(t *testing.T) {
	if _, err := ParseSymbolicTag("Foo.256"); err == nil {
		t.Error("expected error for bit index > 255")
	}
}

func TestParseSymbolicTagProgramScoped(t *testing.T) {
	pt, err := ParseSymbolicTag("Program:MainProgram.Foo[3]")
	if err != nil {
		t.Fatal(err)
	}
	if pt.IsBit {
		t.Error("array index should not be mistaken for a bit reference")
	}
}
