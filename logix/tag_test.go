package logix

import (
	"encoding/binary"
	"testing"

	"github.com/yatesdr/ablink/cip"
)

func TestDescribeTagAtomicType(t *testing.T) {
	send := func(req []byte) ([]byte, error) {
		resp := make([]byte, 0, 10)
		resp = append(resp, SvcReadTag|0x80, 0x00, StatusSuccess, 0x00)
		resp = binary.LittleEndian.AppendUint16(resp, TypeDINT)
		resp = append(resp, 0x07, 0x00, 0x00, 0x00) // value = 7
		return resp, nil
	}

	desc, err := DescribeTag(send, "SomeDint")
	if err != nil {
		t.Fatalf("DescribeTag: %v", err)
	}
	if desc.IsStructure {
		t.Error("DINT tag should not be described as a structure")
	}
	if desc.ElemSize != 4 {
		t.Errorf("ElemSize = %d, want 4", desc.ElemSize)
	}
	if desc.DataType != TypeDINT {
		t.Errorf("DataType = 0x%04X, want 0x%04X", desc.DataType, TypeDINT)
	}
}

func TestDescribeTagStructureFollowsUpWithTemplateSize(t *testing.T) {
	structType := TypeStructureMask | 0x0005 // template instance 5
	calls := 0
	send := func(req []byte) ([]byte, error) {
		calls++
		switch req[0] {
		case SvcReadTag:
			resp := make([]byte, 0, 10)
			resp = append(resp, SvcReadTag|0x80, 0x00, StatusSuccess, 0x00)
			resp = binary.LittleEndian.AppendUint16(resp, structType)
			resp = append(resp, make([]byte, 8)...)
			return resp, nil
		case 0x03: // Get Attribute List
			resp := make([]byte, 0, 14)
			resp = append(resp, 0x83, 0x00, StatusSuccess, 0x00)
			resp = append(resp, 0x01, 0x00) // attr count
			resp = append(resp, 0x05, 0x00) // attr id 5
			resp = append(resp, 0x00, 0x00) // attr status success
			resp = binary.LittleEndian.AppendUint32(resp, 48)
			return resp, nil
		default:
			t.Fatalf("unexpected service 0x%02X", req[0])
			return nil, nil
		}
	}

	desc, err := DescribeTag(send, "SomeUDT")
	if err != nil {
		t.Fatalf("DescribeTag: %v", err)
	}
	if !desc.IsStructure {
		t.Error("expected a structure type to be reported")
	}
	if desc.ElemSize != 48 {
		t.Errorf("ElemSize = %d, want 48 (from the template size query)", desc.ElemSize)
	}
	if calls != 2 {
		t.Errorf("expected a ReadTag probe followed by a template-size query, got %d calls", calls)
	}
}

func TestParseReadModifyWriteTagResponseSuccess(t *testing.T) {
	resp := []byte{SvcReadModifyWriteTag | 0x80, 0x00, StatusSuccess, 0x00}
	if err := ParseReadModifyWriteTagResponse(resp); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseReadModifyWriteTagResponseWrongService(t *testing.T) {
	resp := []byte{SvcWriteTag | 0x80, 0x00, StatusSuccess, 0x00}
	if err := ParseReadModifyWriteTagResponse(resp); err == nil {
		t.Fatal("expected an error for a mismatched reply service")
	}
}

func TestBuildReadModifyWriteTagRequestRejectsMismatchedMasks(t *testing.T) {
	path, err := cip.EPath().Symbol("MyTag").Build()
	if err != nil {
		t.Fatalf("building path: %v", err)
	}
	_, err = BuildReadModifyWriteTagRequest(path, []byte{1, 2}, []byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error when or/and masks differ in length")
	}
}

func TestBuildReadModifyWriteTagRequestRejectsBadMaskSize(t *testing.T) {
	path, err := cip.EPath().Symbol("MyTag").Build()
	if err != nil {
		t.Fatalf("building path: %v", err)
	}
	_, err = BuildReadModifyWriteTagRequest(path, []byte{1, 2, 3}, []byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error for an unsupported mask size (3 bytes)")
	}
}

func TestParseWriteTagFragmentedResponseSuccess(t *testing.T) {
	resp := []byte{SvcWriteTagFragmented | 0x80, 0x00, StatusSuccess, 0x00}
	if err := ParseWriteTagFragmentedResponse(resp); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
