package tag

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/pccc"
)

var errBadFakeRequest = errors.New("tag test: malformed fake PCCC request")

func readTagResponse(dataType uint16, value []byte) []byte {
	resp := make([]byte, 0, 4+2+len(value))
	resp = append(resp, logix.SvcReadTag|0x80, 0x00, logix.StatusSuccess, 0x00)
	resp = binary.LittleEndian.AppendUint16(resp, dataType)
	resp = append(resp, value...)
	return resp
}

func writeTagResponse(svc byte) []byte {
	return []byte{svc | 0x80, 0x00, logix.StatusSuccess, 0x00}
}

func pcccCipResponse(pcccPayload []byte) []byte {
	resp := make([]byte, 0, 11+len(pcccPayload))
	resp = append(resp, pccc.CipSvcExecutePCCCReply, 0x00, pccc.StsSuccess, 0x00)
	resp = append(resp, 0x07, 0x37, 0x13, 0xDD, 0xCC, 0xBB, 0xAA)
	resp = append(resp, pcccPayload...)
	return resp
}

func pcccReadResponse(data []byte) []byte {
	payload := make([]byte, 0, 4+len(data))
	payload = append(payload, pccc.CmdTypedReply, pccc.StsSuccess, 0x01, 0x00)
	payload = append(payload, data...)
	return pcccCipResponse(payload)
}

func pcccWriteResponse() []byte {
	return pcccCipResponse([]byte{pccc.CmdTypedReply, pccc.StsSuccess, 0x01, 0x00})
}

func newLogixTestTag(send func([]byte) ([]byte, error)) *Tag {
	t := &Tag{
		Name:      "TestTag",
		Variant:   VariantLogix,
		sendFunc:  send,
		bo:        VariantLogix.defaultByteOrder(),
		elemCount: 1,
	}
	t.vt = newVtable(VariantLogix)
	return t
}

func TestLogixReadFillsRawAndDataType(t *testing.T) {
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		return readTagResponse(logix.TypeDINT, []byte{0x2A, 0x00, 0x00, 0x00}), nil
	})
	if err := tag.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tag.dataType != logix.TypeDINT {
		t.Errorf("dataType = 0x%04X, want 0x%04X", tag.dataType, logix.TypeDINT)
	}
	if tag.GetU32(0) != 42 {
		t.Errorf("value = %d, want 42", tag.GetU32(0))
	}
}

func TestLogixWriteSmallPayloadUsesPlainWrite(t *testing.T) {
	var gotService byte
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		gotService = req[0]
		return writeTagResponse(logix.SvcWriteTag), nil
	})
	tag.dataType = logix.TypeDINT
	tag.raw = []byte{0x01, 0x00, 0x00, 0x00}

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if gotService != logix.SvcWriteTag {
		t.Errorf("service = 0x%02X, want plain WriteTag 0x%02X", gotService, logix.SvcWriteTag)
	}
}

func TestLogixWriteLargePayloadUsesFragmentedForEveryChunk(t *testing.T) {
	var services []byte
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		services = append(services, req[0])
		return writeTagResponse(logix.SvcWriteTagFragmented), nil
	})
	tag.dataType = logix.TypeDINT
	tag.raw = make([]byte, maxChunkBytes+10)

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(services))
	}
	for i, svc := range services {
		if svc != logix.SvcWriteTagFragmented {
			t.Errorf("chunk %d service = 0x%02X, want 0x%02X (fragmented from the first chunk)", i, svc, logix.SvcWriteTagFragmented)
		}
	}
}

func TestLogixWriteBitSetsOnlyThatBit(t *testing.T) {
	var gotReq []byte
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		gotReq = req
		return writeTagResponse(logix.SvcReadModifyWriteTag), nil
	})
	tag.isBit = true
	tag.bitIndex = 3
	tag.raw = []byte{0x01}

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// request layout: [svc][pathlen][path...][masksizeLE2][orMask][andMask]
	if gotReq[0] != logix.SvcReadModifyWriteTag {
		t.Fatalf("service = 0x%02X, want 0x%02X", gotReq[0], logix.SvcReadModifyWriteTag)
	}
	pathLen := int(gotReq[1]) * 2
	maskStart := 2 + pathLen + 2
	orMask := gotReq[maskStart : maskStart+4]
	andMask := gotReq[maskStart+4 : maskStart+8]
	if orMask[0] != 1<<3 {
		t.Errorf("orMask[0] = 0x%02X, want 0x%02X", orMask[0], byte(1<<3))
	}
	for i, b := range andMask {
		if b != 0xFF {
			t.Errorf("andMask[%d] = 0x%02X, want 0xFF (bit write must not clobber other bits)", i, b)
		}
	}
}

func TestLogixWriteBitClearedMasksOutBit(t *testing.T) {
	var gotReq []byte
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		gotReq = req
		return writeTagResponse(logix.SvcReadModifyWriteTag), nil
	})
	tag.isBit = true
	tag.bitIndex = 0
	tag.raw = []byte{0x00}

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pathLen := int(gotReq[1]) * 2
	maskStart := 2 + pathLen + 2
	andMask := gotReq[maskStart+4 : maskStart+8]
	if andMask[0] != 0xFE {
		t.Errorf("andMask[0] = 0x%02X, want 0xFE (bit 0 cleared, others preserved)", andMask[0])
	}
}

func TestRawTagRoundTrip(t *testing.T) {
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		if req[0] != 0xAB {
			t.Errorf("raw request not passed through verbatim: got 0x%02X", req[0])
		}
		return []byte{0xCD, 0xEF}, nil
	})
	tag.isRaw = true
	tag.raw = []byte{0xAB}

	if err := tag.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := tag.Raw(); len(got) != 2 || got[0] != 0xCD || got[1] != 0xEF {
		t.Errorf("raw = %X, want CDEF", got)
	}
}

// --- PCCC ---

func newPCCCTestTag(addrStr string, send func([]byte) ([]byte, error)) *Tag {
	addr, err := pccc.ParseAddress(addrStr)
	if err != nil {
		panic(err)
	}
	tg := &Tag{
		Name:      addrStr,
		Variant:   VariantPCCC,
		sendFunc:  send,
		bo:        VariantPCCC.defaultByteOrder(),
		pcccAddr:  addr,
		pcccSess:  pccc.NewSession(0x1337, 0xAABBCCDD, pccc.TypeSLC500),
		isBit:     addr.BitNumber >= 0,
		bitIndex:  addr.BitNumber,
		elemCount: 1,
	}
	tg.vt = newVtable(VariantPCCC)
	return tg
}

func TestPCCCReadDecodesIntegerWord(t *testing.T) {
	tag := newPCCCTestTag("N7:0", func(req []byte) ([]byte, error) {
		return pcccReadResponse([]byte{0x2A, 0x00}), nil
	})
	if err := tag.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tag.GetU16(0) != 42 {
		t.Errorf("value = %d, want 42", tag.GetU16(0))
	}
}

func TestPCCCWriteSmallPayload(t *testing.T) {
	var sawWrite bool
	tag := newPCCCTestTag("N7:0", func(req []byte) ([]byte, error) {
		cipResp, err := exercisePCCCRequest(req)
		if err != nil {
			return nil, err
		}
		sawWrite = true
		return cipResp, nil
	})
	tag.raw = []byte{0x01, 0x00}

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !sawWrite {
		t.Error("expected a write round trip")
	}
}

func TestPCCCBitWriteReadsThenWritesWholeWord(t *testing.T) {
	var requests int
	tag := newPCCCTestTag("B3:0/5", func(req []byte) ([]byte, error) {
		requests++
		if requests == 1 {
			// read-back of the containing word
			return pcccReadResponse([]byte{0x00, 0x00}), nil
		}
		return pcccWriteResponse(), nil
	})
	tag.raw = []byte{0x01}

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if requests != 2 {
		t.Errorf("expected read-then-write for a bit address, got %d round trips", requests)
	}
}

// exercisePCCCRequest is a minimal fake: any well-formed Execute PCCC
// request gets a generic success write response, since tests only care
// that the request made it through the vtable dispatch, not the exact
// command bytes (those are covered by pccc's own package tests).
func exercisePCCCRequest(req []byte) ([]byte, error) {
	if len(req) == 0 || req[0] != pccc.CipSvcExecutePCCC {
		return nil, errBadFakeRequest
	}
	return pcccWriteResponse(), nil
}
