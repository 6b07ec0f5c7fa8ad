package pccc

import (
	"encoding/binary"
	"strings"
	"sync/atomic"

	"github.com/yatesdr/ablink/plcerr"
)

// Requester sends a bare CIP request (already wrapped in Execute PCCC) to a
// target and returns its CIP response bytes. The coordinator that owns the
// EtherNet/IP session and protocol-stack plumbing supplies this; Session
// itself never touches a socket.
type Requester func(cipRequest []byte) ([]byte, error)

// Tag holds raw data read from a PCCC data table address.
type Tag struct {
	Address  string // Original address string (e.g., "N7:0")
	FileType byte   // PCCC file type code
	Bytes    []byte // Raw value bytes (little-endian)
}

// Session tracks the PCCC requester-ID and transaction-number state a
// gateway needs across a run of typed reads/writes. It holds no connection;
// every operation takes a Requester to perform the actual round trip.
type Session struct {
	VendorID  uint16
	SerialNum uint32
	PLCType   PLCType

	tns uint32
}

// NewSession returns a Session identifying itself to the target with the
// given vendor ID and serial number (the PCCC "requester ID").
func NewSession(vendorID uint16, serialNum uint32, plcType PLCType) *Session {
	return &Session{VendorID: vendorID, SerialNum: serialNum, PLCType: plcType}
}

// nextTNS returns the next transaction number, wrapping at 16 bits.
func (s *Session) nextTNS() uint16 {
	return uint16(atomic.AddUint32(&s.tns, 1))
}

// ReadAddress reads a single data table address and returns the raw bytes.
func (s *Session) ReadAddress(send Requester, addr *FileAddress) (*Tag, error) {
	if addr == nil {
		return nil, plcerr.New(plcerr.BadParam, "pccc: ReadAddress: nil address")
	}

	debugLog("ReadAddress %s: file=%d type=0x%02X elem=%d sub=%d readSize=%d",
		addr.RawAddress, addr.FileNumber, addr.FileType, addr.Element, addr.SubElement, addr.ReadSize())

	tns := s.nextTNS()
	cipReq, err := buildReadRequest(addr, tns, s.VendorID, s.SerialNum)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Encode, err, "pccc: ReadAddress")
	}

	data, err := s.roundTripRead(send, cipReq, addr.RawAddress)
	if err != nil {
		return nil, err
	}

	debugLog("ReadAddress %s: got %d bytes", addr.RawAddress, len(data))
	return &Tag{Address: addr.RawAddress, FileType: addr.FileType, Bytes: data}, nil
}

// ReadAddressN reads count contiguous elements starting at addr.Element.
// The returned Tag.Bytes contains up to count * ElementSize(addr.FileType) bytes.
func (s *Session) ReadAddressN(send Requester, addr *FileAddress, count int) (*Tag, error) {
	if addr == nil {
		return nil, plcerr.New(plcerr.BadParam, "pccc: ReadAddressN: nil address")
	}
	if count <= 0 {
		return nil, plcerr.New(plcerr.BadParam, "pccc: ReadAddressN: count must be > 0")
	}

	elemSize := ElementSize(addr.FileType)
	byteCount := count * elemSize

	debugLog("ReadAddressN %s: count=%d elemSize=%d byteCount=%d", addr.RawAddress, count, elemSize, byteCount)

	tns := s.nextTNS()
	cipReq, err := buildReadRequestN(addr, byteCount, tns, s.VendorID, s.SerialNum)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Encode, err, "pccc: ReadAddressN")
	}

	data, err := s.roundTripRead(send, cipReq, addr.RawAddress)
	if err != nil {
		return nil, err
	}

	debugLog("ReadAddressN %s: got %d bytes (expected %d)", addr.RawAddress, len(data), byteCount)
	return &Tag{Address: addr.RawAddress, FileType: addr.FileType, Bytes: data}, nil
}

// WriteAddress writes raw bytes to a data table address.
func (s *Session) WriteAddress(send Requester, addr *FileAddress, data []byte) error {
	if addr == nil {
		return plcerr.New(plcerr.BadParam, "pccc: WriteAddress: nil address")
	}

	debugLog("WriteAddress %s: file=%d type=0x%02X elem=%d sub=%d data=%X",
		addr.RawAddress, addr.FileNumber, addr.FileType, addr.Element, addr.SubElement, data)

	tns := s.nextTNS()
	cipReq, err := buildWriteRequest(addr, data, tns, s.VendorID, s.SerialNum)
	if err != nil {
		return plcerr.Wrap(plcerr.Encode, err, "pccc: WriteAddress")
	}

	cipResp, err := send(cipReq)
	if err != nil {
		return plcerr.Wrap(plcerr.Write, err, "pccc: WriteAddress %s", addr.RawAddress)
	}

	pcccResp, err := parseCipExecutePCCCResponse(cipResp)
	if err != nil {
		return plcerr.Wrap(plcerr.Decode, err, "pccc: WriteAddress %s", addr.RawAddress)
	}

	if err := parsePCCCWriteResponse(pcccResp); err != nil {
		return plcerr.Wrap(plcerr.RemoteErr, err, "pccc: WriteAddress %s", addr.RawAddress)
	}

	debugLog("WriteAddress %s: success", addr.RawAddress)
	return nil
}

// roundTripRead sends a PCCC read request through send and returns the decoded data bytes.
func (s *Session) roundTripRead(send Requester, cipReq []byte, rawAddr string) ([]byte, error) {
	cipResp, err := send(cipReq)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "pccc: read %s", rawAddr)
	}

	pcccResp, err := parseCipExecutePCCCResponse(cipResp)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Decode, err, "pccc: read %s", rawAddr)
	}

	data, err := parsePCCCReadResponse(pcccResp)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.RemoteErr, err, "pccc: read %s", rawAddr)
	}
	return data, nil
}

// WriteBit performs a read-modify-write to set or clear a single bit of a
// PCCC word address (e.g. "B3:0/5"). PCCC has no atomic bit-set/bit-clear
// service like the Logix object does, so this is a plain read-modify-write —
// callers racing a write against the same bit address can lose an update.
func (s *Session) WriteBit(send Requester, addr *FileAddress, set bool) error {
	if addr == nil || addr.BitNumber < 0 {
		return plcerr.New(plcerr.BadParam, "pccc: WriteBit: address has no bit number")
	}

	readAddr := &FileAddress{
		FileType:   addr.FileType,
		FileNumber: addr.FileNumber,
		Element:    addr.Element,
		SubElement: addr.SubElement,
		BitNumber:  -1,
		RawAddress: addr.RawAddress,
	}

	tag, err := s.ReadAddress(send, readAddr)
	if err != nil {
		return plcerr.Wrap(plcerr.Read, err, "pccc: WriteBit %s: read-back failed", addr.RawAddress)
	}
	if len(tag.Bytes) < 2 {
		return plcerr.New(plcerr.TooSmall, "pccc: WriteBit %s: read returned %d bytes, need 2", addr.RawAddress, len(tag.Bytes))
	}

	word := binary.LittleEndian.Uint16(tag.Bytes[:2])
	if set {
		word |= 1 << uint(addr.BitNumber)
	} else {
		word &^= 1 << uint(addr.BitNumber)
	}

	data := binary.LittleEndian.AppendUint16(nil, word)
	return s.WriteAddress(send, readAddr, data)
}

// GetProcessorType sends a Diagnostic Status command (CMD 0x06) and returns
// the processor catalog string (e.g., "1747-L552").
func (s *Session) GetProcessorType(send Requester) (string, error) {
	tns := s.nextTNS()

	// CMD 0x06 has no FNC byte — the header is just [CMD] [STS] [TNS lo] [TNS hi]
	pcccCmd := make([]byte, 0, 4)
	pcccCmd = append(pcccCmd, CmdDiagnosticStatus)
	pcccCmd = append(pcccCmd, 0x00)
	pcccCmd = binary.LittleEndian.AppendUint16(pcccCmd, tns)

	cipReq, err := wrapInCipExecutePCCC(pcccCmd, s.VendorID, s.SerialNum)
	if err != nil {
		return "", plcerr.Wrap(plcerr.Encode, err, "pccc: GetProcessorType")
	}

	cipResp, err := send(cipReq)
	if err != nil {
		return "", plcerr.Wrap(plcerr.Read, err, "pccc: GetProcessorType")
	}

	pcccResp, err := parseCipExecutePCCCResponse(cipResp)
	if err != nil {
		return "", plcerr.Wrap(plcerr.Decode, err, "pccc: GetProcessorType")
	}

	// Response: [CMD 0x46] [STS] [TNS lo] [TNS hi] [data...]
	if len(pcccResp) < 4 {
		return "", plcerr.New(plcerr.TooSmall, "pccc: GetProcessorType: response too short: %d bytes", len(pcccResp))
	}

	cmd := pcccResp[0]
	sts := pcccResp[1]

	if cmd != CmdDiagnosticReply {
		return "", plcerr.New(plcerr.BadReply, "pccc: GetProcessorType: unexpected reply command 0x%02X", cmd)
	}
	if sts != StsSuccess {
		return "", PCCCStatusError(sts, 0)
	}

	// The catalog string is a null/space-terminated ASCII field at bytes 12-21
	// of the diagnostic data, for SLC/MicroLogix processors.
	data := pcccResp[4:]
	if len(data) < 22 {
		return "", plcerr.New(plcerr.TooSmall, "pccc: GetProcessorType: diagnostic data too short: %d bytes", len(data))
	}

	catalog := extractCatalog(data[12:22])
	debugLog("GetProcessorType: catalog=%q", catalog)
	return catalog, nil
}

// extractCatalog extracts a catalog string from a fixed-width byte field,
// trimming null bytes and trailing spaces.
func extractCatalog(raw []byte) string {
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	return strings.TrimRight(string(raw[:end]), " ")
}

// extractCatalogPrefix returns the first 4 characters of a catalog string,
// which identify the processor family (e.g., "1747", "1762").
func extractCatalogPrefix(catalog string) string {
	if len(catalog) < 4 {
		return catalog
	}
	return catalog[:4]
}

// readSection reads a chunk of data from a data file using the
// Protected Typed Logical Read (CMD 0x0F, FNC 0xA1) command. Used to read
// the system file directory (file 0) during data-file discovery.
func (s *Session) readSection(send Requester, fileNum uint16, fileType byte, offset uint16, size uint16) ([]byte, error) {
	tns := s.nextTNS()

	pcccCmd := buildPCCCHeader(CmdTypedCommand, tns, FncReadSection)
	pcccCmd = appendCompactValue(pcccCmd, size)
	pcccCmd = appendCompactValue(pcccCmd, fileNum)
	pcccCmd = append(pcccCmd, fileType)
	pcccCmd = appendCompactValue(pcccCmd, offset)
	pcccCmd = appendCompactValue(pcccCmd, 0)

	cipReq, err := wrapInCipExecutePCCC(pcccCmd, s.VendorID, s.SerialNum)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Encode, err, "pccc: readSection")
	}

	cipResp, err := send(cipReq)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "pccc: readSection file %d offset %d", fileNum, offset)
	}

	pcccResp, err := parseCipExecutePCCCResponse(cipResp)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Decode, err, "pccc: readSection file %d offset %d", fileNum, offset)
	}

	data, err := parsePCCCReadResponse(pcccResp)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.RemoteErr, err, "pccc: readSection file %d offset %d", fileNum, offset)
	}

	return data, nil
}
