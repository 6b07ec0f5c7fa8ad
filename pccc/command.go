package pccc

import (
	"encoding/binary"

	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/plcerr"
)

// buildReadRequest builds a PCCC "Protected Typed Logical Read with 3 Address Fields"
// command (CMD=0x0F, FNC=0xA2) wrapped in CIP Execute PCCC service (0x4B).
//
// PCCC command format:
//
//	[CMD:1] [STS:1] [TNS:2 LE] [FNC:1] [ByteSize] [FileNumber] [FileType] [Element] [SubElement]
//
// Each address field uses compact encoding: values 0-254 as a single byte,
// values 255+ as 0xFF followed by 2-byte little-endian value.
func buildReadRequest(addr *FileAddress, tns uint16, vendorID uint16, serialNum uint32) ([]byte, error) {
	return buildReadRequestN(addr, addr.ReadSize(), tns, vendorID, serialNum)
}

// buildReadRequestN builds a PCCC typed logical read with an explicit byte count.
// This is used for bulk reads where multiple contiguous elements are requested
// in a single PCCC command by specifying byteCount = count * ElementSize.
func buildReadRequestN(addr *FileAddress, byteCount int, tns uint16, vendorID uint16, serialNum uint32) ([]byte, error) {
	pcccCmd := buildPCCCHeader(CmdTypedCommand, tns, FncProtectedTypedLogicalRead)
	pcccCmd = appendCompactValue(pcccCmd, uint16(byteCount))
	pcccCmd = appendCompactValue(pcccCmd, addr.FileNumber)
	pcccCmd = append(pcccCmd, addr.FileType)
	pcccCmd = appendCompactValue(pcccCmd, addr.Element)
	pcccCmd = appendCompactValue(pcccCmd, addr.SubElement)

	return wrapInCipExecutePCCC(pcccCmd, vendorID, serialNum)
}

// buildWriteRequest builds a PCCC "Protected Typed Logical Write with 3 Address Fields"
// command (CMD=0x0F, FNC=0xAA) wrapped in CIP Execute PCCC service (0x4B).
//
// PCCC command format:
//
//	[CMD:1] [STS:1] [TNS:2 LE] [FNC:1] [ByteSize] [FileNumber] [FileType] [Element] [SubElement] [Data...]
func buildWriteRequest(addr *FileAddress, data []byte, tns uint16, vendorID uint16, serialNum uint32) ([]byte, error) {
	pcccCmd := buildPCCCHeader(CmdTypedCommand, tns, FncProtectedTypedLogicalWrite)
	pcccCmd = appendCompactValue(pcccCmd, uint16(len(data)))
	pcccCmd = appendCompactValue(pcccCmd, addr.FileNumber)
	pcccCmd = append(pcccCmd, addr.FileType)
	pcccCmd = appendCompactValue(pcccCmd, addr.Element)
	pcccCmd = appendCompactValue(pcccCmd, addr.SubElement)
	pcccCmd = append(pcccCmd, data...)

	return wrapInCipExecutePCCC(pcccCmd, vendorID, serialNum)
}

// buildPCCCHeader creates the common PCCC command header.
//
//	[CMD:1] [STS:1=0x00] [TNS:2 LE] [FNC:1]
func buildPCCCHeader(cmd byte, tns uint16, fnc byte) []byte {
	header := make([]byte, 0, 5)
	header = append(header, cmd)
	header = append(header, 0x00) // STS = 0 in request
	header = binary.LittleEndian.AppendUint16(header, tns)
	header = append(header, fnc)
	return header
}

// appendCompactValue appends a value using PCCC compact encoding:
// values 0-254 as a single byte, values 255+ as 0xFF + 2-byte LE.
func appendCompactValue(buf []byte, value uint16) []byte {
	if value < 255 {
		return append(buf, byte(value))
	}
	buf = append(buf, 0xFF)
	return binary.LittleEndian.AppendUint16(buf, value)
}

// wrapInCipExecutePCCC wraps a PCCC command in a CIP Execute PCCC request.
// The result is a bare CIP service request — routing it over connected,
// routed-unconnected, or direct-unconnected messaging is the protocol
// stack's job, not this package's.
//
// CIP request format:
//
//	[Service:0x4B] [PathSize] [Path: class 0x67, instance 1]
//	[RequesterIDLen:7] [VendorID:2 LE] [SerialNum:4 LE]
//	[PCCC command bytes...]
func wrapInCipExecutePCCC(pcccPayload []byte, vendorID uint16, serialNum uint32) ([]byte, error) {
	path, err := cip.EPath().Class(CipClassPCCC).Instance(1).Build()
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Encode, err, "pccc: build PCCC Object path")
	}

	req := make([]byte, 0, 2+len(path)+7+len(pcccPayload))
	req = append(req, CipSvcExecutePCCC) // Service code
	req = append(req, path.WordLen())    // Path size in words
	req = append(req, path...)           // Path bytes

	// Requester ID (7 bytes: length + vendor ID + serial number)
	req = append(req, RequesterIDLength)
	req = binary.LittleEndian.AppendUint16(req, vendorID)
	req = binary.LittleEndian.AppendUint32(req, serialNum)

	req = append(req, pcccPayload...)

	return req, nil
}

// parseCipExecutePCCCResponse parses the CIP response to extract the PCCC response payload.
//
// CIP response format:
//
//	[ReplyService:0xCB] [Reserved:1] [Status:1] [AddlStatusSize:1] [AddlStatus...]
//	[RequesterIDLen:7] [VendorID:2] [SerialNum:4]
//	[PCCC response bytes...]
func parseCipExecutePCCCResponse(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, plcerr.New(plcerr.TooSmall, "pccc: CIP response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]

	// Verify it's an Execute PCCC reply (0x4B | 0x80 = 0xCB). An Unconnected_Send
	// reply (0xD2) is unwrapped by the protocol stack before this parses it.
	if replyService != CipSvcExecutePCCCReply {
		return nil, plcerr.New(plcerr.BadReply, "pccc: unexpected CIP reply service: 0x%02X (expected 0x%02X)", replyService, CipSvcExecutePCCCReply)
	}

	// Check CIP status
	if status != 0 {
		if addlStatusSize >= 1 && len(data) >= 6 {
			extStatus := binary.LittleEndian.Uint16(data[4:6])
			return nil, plcerr.New(plcerr.RemoteErr, "pccc: CIP Execute PCCC error: status=0x%02X, extended=0x%04X", status, extStatus)
		}
		return nil, plcerr.New(plcerr.RemoteErr, "pccc: CIP Execute PCCC error: status=0x%02X", status)
	}

	// Skip CIP header (4 bytes + additional status words)
	payloadStart := 4 + int(addlStatusSize)*2
	if payloadStart >= len(data) {
		return nil, plcerr.New(plcerr.NoData, "pccc: CIP response has no PCCC payload")
	}
	payload := data[payloadStart:]

	// Skip requester ID (1-byte length + vendor + serial = 7 bytes)
	if len(payload) < 7 {
		return nil, plcerr.New(plcerr.TooSmall, "pccc: CIP response missing requester ID")
	}
	idLen := int(payload[0])
	if len(payload) < idLen {
		return nil, plcerr.New(plcerr.TooSmall, "pccc: CIP response requester ID truncated")
	}
	pcccData := payload[idLen:]

	return pcccData, nil
}

// parsePCCCReadResponse parses the PCCC response to a typed read command.
//
// PCCC response format (success):
//
//	[CMD:1 = 0x4F] [STS:1 = 0x00] [TNS:2 LE] [Data...]
//
// PCCC response format (error with extended status):
//
//	[CMD:1 = 0x4F] [STS:1 with 0xF0] [TNS:2 LE] [EXT_STS:1]
func parsePCCCReadResponse(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, plcerr.New(plcerr.TooSmall, "pccc: response too short: %d bytes", len(data))
	}

	cmd := data[0]
	sts := data[1]

	if cmd != CmdTypedReply {
		return nil, plcerr.New(plcerr.BadReply, "pccc: unexpected reply command: 0x%02X (expected 0x%02X)", cmd, CmdTypedReply)
	}

	if sts != StsSuccess {
		var extSts byte
		if sts&0xF0 == 0xF0 && len(data) >= 5 {
			extSts = data[4]
		}
		return nil, PCCCStatusError(sts, extSts)
	}

	return data[4:], nil
}

// parsePCCCWriteResponse parses the PCCC response to a typed write command.
// The response has no data payload on success, just the 4-byte header.
func parsePCCCWriteResponse(data []byte) error {
	if len(data) < 4 {
		return plcerr.New(plcerr.TooSmall, "pccc: response too short: %d bytes", len(data))
	}

	cmd := data[0]
	sts := data[1]

	if cmd != CmdTypedReply {
		return plcerr.New(plcerr.BadReply, "pccc: unexpected reply command: 0x%02X (expected 0x%02X)", cmd, CmdTypedReply)
	}

	if sts != StsSuccess {
		var extSts byte
		if sts&0xF0 == 0xF0 && len(data) >= 5 {
			extSts = data[4]
		}
		return PCCCStatusError(sts, extSts)
	}

	return nil
}
