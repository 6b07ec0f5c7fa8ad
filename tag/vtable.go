package tag

import (
	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/omron"
	"github.com/yatesdr/ablink/pccc"
	"github.com/yatesdr/ablink/plcerr"
)

// maxChunkBytes is the conservative per-request payload size below which
// a whole-tag transfer fits one unconnected-send packet. Grounded on the
// 480-byte figure the teacher's own readTagChunked/ReadTagFragmented use
// for array/structure chunking against a 504-byte unconnected message.
const maxChunkBytes = 480

func newVtable(v Variant) vtable {
	if v == VariantPCCC {
		return vtable{read: pcccRead, write: pcccWrite}
	}
	return vtable{read: logixRead, write: logixWrite}
}

// --- Logix / Omron (same CIP symbolic services) ---

func logixRead(t *Tag) error {
	if t.isRaw {
		return rawRoundTrip(t)
	}

	var tagResult *logix.Tag
	var err error
	if t.Variant == VariantOmron {
		tagResult, err = omron.Layer{}.ReadTagCount(t.send, t.Name, uint16(t.elemCount))
	} else {
		tagResult, err = logix.ReadTagCount(t.send, t.Name, uint16(t.elemCount))
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.dataType = tagResult.DataType
	if t.elemSize == 0 {
		if sz := logix.TypeSize(tagResult.DataType); sz > 0 {
			t.elemSize = sz
		}
	}
	t.raw = tagResult.Bytes
	t.mu.Unlock()
	return nil
}

func logixWrite(t *Tag) error {
	if t.isRaw {
		return rawRoundTrip(t)
	}

	t.mu.Lock()
	path := t.cipPath
	dataType := t.dataType
	count := uint16(t.elemCount)
	value := append([]byte(nil), t.raw...)
	isBit := t.isBit
	bitIndex := t.bitIndex
	variant := t.Variant
	t.mu.Unlock()

	if isBit {
		return logixWriteBit(t, path, bitIndex, value)
	}

	// Pinned fragmentation dispatch: a payload that fits in one packet
	// always uses plain WRITE, even as the "first chunk" of what would
	// otherwise be a fragmented transfer — WRITE_FRAGMENTED is used for
	// every chunk (including the first) only once the payload doesn't
	// fit in one packet. There is no branch here that picks WRITE for a
	// first chunk that still has continuations following it.
	if len(value) <= maxChunkBytes {
		if variant == VariantOmron {
			return omron.Layer{}.WriteTagCount(t.send, t.Name, dataType, value, count)
		}
		return logix.WriteTagCount(t.send, t.Name, dataType, value, count)
	}

	total := uint32(len(value))
	var offset uint32
	for offset < total {
		end := offset + maxChunkBytes
		if end > total {
			end = total
		}
		chunk := value[offset:end]
		req := logix.BuildWriteTagFragmentedRequest(path, dataType, count, offset, total, chunk)
		resp, err := t.send(req)
		if err != nil {
			return plcerr.Wrap(plcerr.Write, err, "tag: %s: write fragment at offset %d", t.Name, offset)
		}
		if err := logix.ParseWriteTagFragmentedResponse(resp); err != nil {
			return plcerr.Wrap(plcerr.Write, err, "tag: %s: write fragment at offset %d", t.Name, offset)
		}
		offset = end

		t.mu.Lock()
		t.transOffset = offset
		t.mu.Unlock()
	}
	return nil
}

// logixWriteBit writes a single bit of a word/DINT tag using the
// Read-Modify-Write Tag service so the word's other bits are preserved —
// a plain Write Tag would clobber them.
func logixWriteBit(t *Tag, path cip.EPath_t, bitIndex int, value []byte) error {
	if bitIndex < 0 || bitIndex > 31 {
		return plcerr.New(plcerr.BadParam, "tag: %s: bit index %d out of range", t.Name, bitIndex)
	}
	set := len(value) > 0 && value[0] != 0

	maskSize := 4 // DINT-sized mask covers BOOL-within-DINT and within-word cases alike
	byteIdx := bitIndex / 8
	bitInByte := uint(bitIndex % 8)

	orMask := make([]byte, maskSize)
	andMask := make([]byte, maskSize)
	for i := range andMask {
		andMask[i] = 0xFF
	}
	if set {
		orMask[byteIdx] = 1 << bitInByte
	} else {
		andMask[byteIdx] &^= 1 << bitInByte
	}

	req, err := logix.BuildReadModifyWriteTagRequest(path, orMask, andMask)
	if err != nil {
		return plcerr.Wrap(plcerr.Write, err, "tag: %s: build read-modify-write", t.Name)
	}
	resp, err := t.send(req)
	if err != nil {
		return plcerr.Wrap(plcerr.Write, err, "tag: %s: read-modify-write", t.Name)
	}
	return logix.ParseReadModifyWriteTagResponse(resp)
}

func rawRoundTrip(t *Tag) error {
	t.mu.Lock()
	req := append([]byte(nil), t.raw...)
	t.mu.Unlock()

	resp, err := t.send(req)
	if err != nil {
		return plcerr.Wrap(plcerr.Read, err, "tag: %s: raw round trip", t.Name)
	}

	t.mu.Lock()
	t.raw = resp
	t.mu.Unlock()
	return nil
}

// --- PCCC (PLC-5 / SLC 500 / MicroLogix) ---

func pcccRead(t *Tag) error {
	t.mu.Lock()
	addr := t.pcccAddr
	sess := t.pcccSess
	isBit := t.isBit
	count := t.elemCount
	t.mu.Unlock()

	if isBit {
		wordAddr := bitlessAddress(addr)
		result, err := sess.ReadAddress(t.send, wordAddr)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.raw = result.Bytes
		t.elemSize = len(result.Bytes)
		t.mu.Unlock()
		return nil
	}

	var result *pccc.Tag
	var err error
	if count > 1 {
		result, err = sess.ReadAddressN(t.send, addr, count)
	} else {
		result, err = sess.ReadAddress(t.send, addr)
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.raw = result.Bytes
	if t.elemSize == 0 {
		t.elemSize = pccc.ElementSize(addr.FileType)
	}
	t.mu.Unlock()
	return nil
}

func pcccWrite(t *Tag) error {
	t.mu.Lock()
	addr := t.pcccAddr
	sess := t.pcccSess
	isBit := t.isBit
	value := append([]byte(nil), t.raw...)
	t.mu.Unlock()

	if isBit {
		set := len(value) > 0 && value[0] != 0
		return sess.WriteBit(t.send, addr, set)
	}

	if len(value) <= maxChunkBytes {
		return sess.WriteAddress(t.send, addr, value)
	}

	// PCCC has no fragmented write service of its own; split into
	// per-element-aligned chunks and issue one typed write per chunk,
	// advancing the element offset each time.
	elemSize := pccc.ElementSize(addr.FileType)
	if elemSize <= 0 {
		return plcerr.New(plcerr.BadParam, "tag: %s: unknown element size, cannot chunk write", t.Name)
	}
	elemsPerChunk := maxChunkBytes / elemSize
	if elemsPerChunk < 1 {
		elemsPerChunk = 1
	}

	offset := 0
	elemOffset := uint16(0)
	for offset < len(value) {
		end := offset + elemsPerChunk*elemSize
		if end > len(value) {
			end = len(value)
		}
		chunkAddr := *addr
		chunkAddr.Element = addr.Element + elemOffset
		chunkAddr.RawAddress = indexedAddress(addr.RawAddress, int(elemOffset))
		if err := sess.WriteAddress(t.send, &chunkAddr, value[offset:end]); err != nil {
			return err
		}
		n := (end - offset) / elemSize
		elemOffset += uint16(n)
		offset = end

		t.mu.Lock()
		t.transOffset = uint32(offset)
		t.mu.Unlock()
	}
	return nil
}

func bitlessAddress(addr *pccc.FileAddress) *pccc.FileAddress {
	cp := *addr
	cp.BitNumber = -1
	return &cp
}
