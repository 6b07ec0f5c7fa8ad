package omron

import (
	"testing"

	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/wire"
)

func TestReadTagDelegatesToLogix(t *testing.T) {
	var calledReq []byte
	send := func(req []byte) ([]byte, error) {
		calledReq = req
		return []byte{logix.SvcReadTag | 0x80, 0x00, 0x00, 0x00, 0xC4, 0x00, 0x2A, 0x00, 0x00, 0x00}, nil
	}

	tag, err := Layer{}.ReadTag(send, "MyTag")
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag.DataType != logix.TypeDINT {
		t.Errorf("DataType = 0x%X, want DINT", tag.DataType)
	}
	if len(calledReq) == 0 {
		t.Fatal("expected a request to be sent")
	}
}

func TestByteOrderMatchesLogix(t *testing.T) {
	if ByteOrder != wire.LogixByteOrder {
		t.Errorf("omron.ByteOrder diverges from wire.LogixByteOrder defaults")
	}
}
