package logix

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/plcerr"
)

// Requester sends a raw CIP request (service + path + data, unwrapped from
// any CPF/UCMM/connected envelope) and returns the raw CIP reply in the
// same unwrapped form. The plc package's coordinator implements this by
// routing through whatever messaging mode the gateway is using (connected,
// routed unconnected, or direct unconnected); these functions don't care
// which.
type Requester func(cipRequest []byte) ([]byte, error)

// Tag holds the raw data read from a PLC tag.
// Decoding is deferred - the caller interprets Bytes according to DataType.
type Tag struct {
	Name     string // Tag name as requested
	DataType uint16 // CIP data type code (e.g., 0xC1=BOOL, 0xC3=DINT, 0xCA=REAL)
	Bytes    []byte // Raw tag value bytes (little-endian)
}

// BuildReadTagRequest builds a Read Tag (0x4C) CIP request body.
func BuildReadTagRequest(path cip.EPath_t, count uint16) []byte {
	req := make([]byte, 0, 2+len(path)+2)
	req = append(req, SvcReadTag)
	req = append(req, path.WordLen())
	req = append(req, path...)
	req = binary.LittleEndian.AppendUint16(req, count)
	return req
}

// BuildReadTagFragmentedRequest builds a Read Tag Fragmented (0x52) request
// body for the element starting at byte offset.
func BuildReadTagFragmentedRequest(path cip.EPath_t, count uint16, offset uint32) []byte {
	req := make([]byte, 0, 2+len(path)+6)
	req = append(req, SvcReadTagFragmented)
	req = append(req, path.WordLen())
	req = append(req, path...)
	req = binary.LittleEndian.AppendUint16(req, count)
	req = binary.LittleEndian.AppendUint32(req, offset)
	return req
}

// BuildWriteTagRequest builds a Write Tag (0x4D) request body.
func BuildWriteTagRequest(path cip.EPath_t, dataType uint16, count uint16, value []byte) []byte {
	req := make([]byte, 0, 2+len(path)+4+len(value))
	req = append(req, SvcWriteTag)
	req = append(req, path.WordLen())
	req = append(req, path...)
	req = binary.LittleEndian.AppendUint16(req, dataType)
	req = binary.LittleEndian.AppendUint16(req, count)
	req = append(req, value...)
	return req
}

// BuildWriteTagFragmentedRequest builds a Write Tag Fragmented (0x53)
// request body for a chunk of value starting at byte offset, out of
// totalSize total bytes.
func BuildWriteTagFragmentedRequest(path cip.EPath_t, dataType uint16, count uint16, offset, totalSize uint32, chunk []byte) []byte {
	req := make([]byte, 0, 2+len(path)+10+len(chunk))
	req = append(req, SvcWriteTagFragmented)
	req = append(req, path.WordLen())
	req = append(req, path...)
	req = binary.LittleEndian.AppendUint16(req, dataType)
	req = binary.LittleEndian.AppendUint16(req, count)
	req = binary.LittleEndian.AppendUint32(req, offset)
	req = append(req, chunk...)
	return req
}

// BuildReadModifyWriteTagRequest builds a Read Modify Write Tag (0x4E)
// request body: the result word is (current & andMask) | orMask, applied
// atomically by the controller. orMask and andMask must both be maskSize
// bytes (1, 2, 4, 8, or 12). Used for single-bit writes into a tag whose
// other bits must be preserved — a plain Write Tag would clobber them.
func BuildReadModifyWriteTagRequest(path cip.EPath_t, orMask, andMask []byte) ([]byte, error) {
	if len(orMask) != len(andMask) {
		return nil, plcerr.New(plcerr.BadParam, "logix: BuildReadModifyWriteTagRequest: mask length mismatch (%d vs %d)", len(orMask), len(andMask))
	}
	maskSize := len(orMask)
	switch maskSize {
	case 1, 2, 4, 8, 12:
	default:
		return nil, plcerr.New(plcerr.BadParam, "logix: BuildReadModifyWriteTagRequest: unsupported mask size %d", maskSize)
	}

	req := make([]byte, 0, 2+len(path)+2+2*maskSize)
	req = append(req, SvcReadModifyWriteTag)
	req = append(req, path.WordLen())
	req = append(req, path...)
	req = binary.LittleEndian.AppendUint16(req, uint16(maskSize))
	req = append(req, orMask...)
	req = append(req, andMask...)
	return req, nil
}

// ParseReadModifyWriteTagResponse parses the CIP response for a Read
// Modify Write Tag request.
func ParseReadModifyWriteTagResponse(data []byte) error {
	if len(data) < 4 {
		return plcerr.New(plcerr.BadReply, "logix: read-modify-write response too short: %d bytes", len(data))
	}
	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]
	if replyService != (SvcReadModifyWriteTag | 0x80) {
		return plcerr.New(plcerr.BadReply, "logix: unexpected reply service 0x%02X", replyService)
	}
	if status != StatusSuccess {
		return parseCipError(status, addlStatusSize, data[4:])
	}
	return nil
}

// ReadTag reads a single tag by symbolic name via send, reassembling
// partial transfers (status 0x06) by resuming with array-index chunks.
// This mirrors how a structure array that exceeds one packet is read in
// practice: byte-offset fragmentation works for atomic arrays, but Logix
// structure arrays are read more reliably element-by-element.
func ReadTag(send Requester, tagName string) (*Tag, error) {
	return ReadTagCount(send, tagName, 1)
}

// ReadTagCount reads count elements of tagName, chunking via array
// indexing if the PLC reports a partial transfer.
func ReadTagCount(send Requester, tagName string, count uint16) (*Tag, error) {
	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		return nil, plcerr.Wrap(plcerr.BadParam, err, "logix: building path for %q", tagName)
	}

	tag, partial, err := readTagCountInternal(send, path, tagName, count)
	if err != nil {
		return nil, err
	}
	if !partial {
		return tag, nil
	}
	return readTagChunked(send, tagName, count, tag)
}

func readTagCountInternal(send Requester, path cip.EPath_t, tagName string, count uint16) (*Tag, bool, error) {
	cipResp, err := send(BuildReadTagRequest(path, count))
	if err != nil {
		return nil, false, plcerr.Wrap(plcerr.Read, err, "logix: ReadTag %s", tagName)
	}
	return parseReadTagResponseEx(cipResp, tagName)
}

// readTagChunked reads the remainder of a large array using array-index
// syntax once the element size is known from a single-element probe read.
func readTagChunked(send Requester, tagName string, totalCount uint16, initialTag *Tag) (*Tag, error) {
	if initialTag == nil || len(initialTag.Bytes) == 0 {
		return nil, plcerr.New(plcerr.Decode, "logix: readTagChunked: no initial data for %s", tagName)
	}

	allBytes := make([]byte, 0, len(initialTag.Bytes)*int(totalCount)/10+len(initialTag.Bytes))
	allBytes = append(allBytes, initialTag.Bytes...)

	probePath, err := cip.EPath().Symbol(tagName + "[0]").Build()
	if err != nil {
		return &Tag{Name: tagName, DataType: initialTag.DataType, Bytes: allBytes}, nil
	}
	singleTag, _, err := readTagCountInternal(send, probePath, tagName+"[0]", 1)
	if err != nil || len(singleTag.Bytes) == 0 {
		return &Tag{Name: tagName, DataType: initialTag.DataType, Bytes: allBytes}, nil
	}

	elemSize := len(singleTag.Bytes)
	elementsRead := len(initialTag.Bytes) / elemSize

	elemsPerChunk := 480 / elemSize
	if elemsPerChunk < 1 {
		elemsPerChunk = 1
	}
	if elemsPerChunk > 100 {
		elemsPerChunk = 100
	}

	for elementsRead < int(totalCount) {
		remaining := int(totalCount) - elementsRead
		chunkSize := elemsPerChunk
		if chunkSize > remaining {
			chunkSize = remaining
		}

		chunkName := indexedName(tagName, elementsRead)
		chunkPath, err := cip.EPath().Symbol(chunkName).Build()
		if err != nil {
			break
		}
		chunkTag, _, err := readTagCountInternal(send, chunkPath, chunkName, uint16(chunkSize))
		if err != nil {
			break
		}
		allBytes = append(allBytes, chunkTag.Bytes...)
		n := len(chunkTag.Bytes) / elemSize
		if n == 0 {
			break
		}
		elementsRead += n
	}

	return &Tag{Name: tagName, DataType: initialTag.DataType, Bytes: allBytes}, nil
}

func indexedName(tagName string, index int) string {
	return tagName + "[" + strconv.Itoa(index) + "]"
}

// ReadTagFragmented reads a tag of expectedSize bytes using the Read Tag
// Fragmented service (0x52), for structures that exceed one packet.
func ReadTagFragmented(send Requester, tagName string, expectedSize uint32) (*Tag, error) {
	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		return nil, plcerr.Wrap(plcerr.BadParam, err, "logix: ReadTagFragmented: building path for %q", tagName)
	}

	const maxChunk = uint32(480)
	var allBytes []byte
	var dataType uint16
	offset := uint32(0)

	for offset < expectedSize {
		cipResp, err := send(BuildReadTagFragmentedRequest(path, 1, offset))
		if err != nil {
			if len(allBytes) > 0 {
				break
			}
			return nil, plcerr.Wrap(plcerr.Read, err, "logix: ReadTagFragmented %s", tagName)
		}

		tag, partial, err := parseReadTagFragmentedResponse(cipResp, tagName)
		if err != nil {
			if len(allBytes) > 0 {
				break
			}
			return nil, err
		}
		if offset == 0 {
			dataType = tag.DataType
		}
		allBytes = append(allBytes, tag.Bytes...)
		offset += uint32(len(tag.Bytes))
		if !partial {
			break
		}
	}

	return &Tag{Name: tagName, DataType: dataType, Bytes: allBytes}, nil
}

// WriteTag writes value as a single element of dataType to tagName.
func WriteTag(send Requester, tagName string, dataType uint16, value []byte) error {
	return WriteTagCount(send, tagName, dataType, value, 1)
}

// WriteTagCount writes count elements of dataType to tagName.
func WriteTagCount(send Requester, tagName string, dataType uint16, value []byte, count uint16) error {
	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		return plcerr.Wrap(plcerr.BadParam, err, "logix: WriteTag: building path for %q", tagName)
	}

	cipResp, err := send(BuildWriteTagRequest(path, dataType, count, value))
	if err != nil {
		return plcerr.Wrap(plcerr.Write, err, "logix: WriteTag %s", tagName)
	}
	return parseWriteTagResponse(cipResp)
}

// parseReadTagResponse parses the CIP response for a Read Tag request.
func parseReadTagResponse(data []byte, tagName string) (*Tag, error) {
	tag, _, err := parseReadTagResponseEx(data, tagName)
	return tag, err
}

// parseReadTagResponseEx parses a Read Tag response and also returns
// whether the PLC reported a partial transfer (more data to fetch).
func parseReadTagResponseEx(data []byte, tagName string) (*Tag, bool, error) {
	if len(data) < 4 {
		return nil, false, plcerr.New(plcerr.BadReply, "logix: read tag response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]

	if replyService != (SvcReadTag | 0x80) {
		return nil, false, plcerr.New(plcerr.BadReply, "logix: unexpected reply service 0x%02X", replyService)
	}

	partialTransfer := status == StatusPartialTransfer
	if status != StatusSuccess && status != StatusPartialTransfer {
		return nil, false, parseCipError(status, addlStatusSize, data[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if len(data) < dataStart+2 {
		return nil, false, plcerr.New(plcerr.BadReply, "logix: response missing data type field")
	}

	dataType := binary.LittleEndian.Uint16(data[dataStart : dataStart+2])
	tagData := data[dataStart+2:]

	return &Tag{Name: tagName, DataType: dataType, Bytes: tagData}, partialTransfer, nil
}

// parseReadTagFragmentedResponse parses the response for Read Tag Fragmented.
func parseReadTagFragmentedResponse(data []byte, tagName string) (*Tag, bool, error) {
	if len(data) < 4 {
		return nil, false, plcerr.New(plcerr.BadReply, "logix: read tag fragmented response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]

	if replyService != (SvcReadTagFragmented | 0x80) {
		return nil, false, plcerr.New(plcerr.BadReply, "logix: unexpected reply service 0x%02X", replyService)
	}

	partialTransfer := status == StatusPartialTransfer
	if status != StatusSuccess && status != StatusPartialTransfer {
		return nil, false, parseCipError(status, addlStatusSize, data[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if len(data) < dataStart+2 {
		return nil, false, plcerr.New(plcerr.BadReply, "logix: response missing data type field")
	}

	dataType := binary.LittleEndian.Uint16(data[dataStart : dataStart+2])
	tagData := data[dataStart+2:]

	return &Tag{Name: tagName, DataType: dataType, Bytes: tagData}, partialTransfer, nil
}

// ParseWriteTagFragmentedResponse parses the CIP response for a Write Tag
// Fragmented request. Exported because the tag package's write-fragment
// dispatch (first chunk WRITE vs WRITE_FRAGMENTED, continuations always
// WRITE_FRAGMENTED) lives outside this package.
func ParseWriteTagFragmentedResponse(data []byte) error {
	if len(data) < 4 {
		return plcerr.New(plcerr.BadReply, "logix: write tag fragmented response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]

	if replyService != (SvcWriteTagFragmented | 0x80) {
		return plcerr.New(plcerr.BadReply, "logix: unexpected reply service 0x%02X", replyService)
	}
	if status != StatusSuccess {
		return parseCipError(status, addlStatusSize, data[4:])
	}
	return nil
}

// parseWriteTagResponse parses the CIP response for a Write Tag request.
func parseWriteTagResponse(data []byte) error {
	if len(data) < 4 {
		return plcerr.New(plcerr.BadReply, "logix: write tag response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]

	if replyService != (SvcWriteTag | 0x80) {
		return plcerr.New(plcerr.BadReply, "logix: unexpected reply service 0x%02X", replyService)
	}
	if status != StatusSuccess {
		return parseCipError(status, addlStatusSize, data[4:])
	}
	return nil
}

// parseCipError maps a CIP general/extended status pair to a *plcerr.Error
// of the appropriate Kind.
func parseCipError(status byte, addlSize byte, addlData []byte) error {
	var extStatus uint16
	if addlSize >= 1 && len(addlData) >= 2 {
		extStatus = binary.LittleEndian.Uint16(addlData[:2])
	}

	kind := plcerr.RemoteErr
	switch {
	case status == StatusObjectNotExist, extStatus == ExtStatusTagNotFound:
		kind = plcerr.NotFound
	case extStatus == ExtStatusTagReadOnly:
		kind = plcerr.NotAllowed
	case extStatus == ExtStatusIllegalType:
		kind = plcerr.BadData
	case extStatus == ExtStatusSizeTooSmall:
		kind = plcerr.TooSmall
	case extStatus == ExtStatusSizeTooLarge, status == StatusTooMuchData:
		kind = plcerr.TooLarge
	case status == StatusServiceNotSupport:
		kind = plcerr.Unsupported
	}

	statusName := cipStatusName(status)
	if extStatus != 0 {
		return plcerr.New(kind, "CIP error: %s (0x%02X), extended: %s (0x%04X)",
			statusName, status, cipExtStatusName(extStatus), extStatus)
	}
	return plcerr.New(kind, "CIP error: %s (0x%02X)", statusName, status)
}

func cipStatusName(status byte) string {
	switch status {
	case StatusSuccess:
		return "Success"
	case 0x01:
		return "Connection Failure"
	case 0x02:
		return "Resource Unavailable"
	case 0x03:
		return "Invalid Parameter"
	case StatusPathSegmentError:
		return "Path Segment Error"
	case StatusPathUnknown:
		return "Path Unknown"
	case StatusPartialTransfer:
		return "Partial Transfer"
	case 0x07:
		return "Connection Lost"
	case StatusServiceNotSupport:
		return "Service Not Supported"
	case 0x09:
		return "Invalid Attribute Value"
	case StatusObjectNotExist:
		return "Object Does Not Exist"
	case 0x0D:
		return "Object Already Exists"
	case 0x0E:
		return "Attribute Not Settable"
	case 0x0F:
		return "Privilege Violation"
	case 0x10:
		return "Device State Conflict"
	case 0x11:
		return "Reply Data Too Large"
	case 0x13:
		return "Not Enough Data"
	case 0x14:
		return "Attribute Not Supported"
	case 0x15:
		return "Too Much Data"
	case 0x1C:
		return "Not Enough Data Received"
	case 0x1E:
		return "Invalid Symbolic"
	case 0x20:
		return "Invalid Parameter Type"
	case 0x26:
		return "Invalid Path"
	case StatusGeneralError:
		return "General Error"
	default:
		return fmt.Sprintf("Status 0x%02X", status)
	}
}

func cipExtStatusName(extStatus uint16) string {
	switch extStatus {
	case ExtStatusTagNotFound:
		return "Tag Not Found"
	case ExtStatusIllegalType:
		return "Illegal Data Type"
	case ExtStatusTagReadOnly:
		return "Tag Read Only"
	case ExtStatusSizeTooSmall:
		return "Size Too Small"
	case ExtStatusSizeTooLarge:
		return "Size Too Large"
	case ExtStatusOffsetError:
		return "Offset Out of Range"
	case 0x0100:
		return "Connection In Use"
	case 0x0103:
		return "Transport Class Not Supported"
	case 0x0106:
		return "Ownership Conflict"
	case 0x0107:
		return "Connection Not Found"
	case 0x0108:
		return "Invalid Connection Type"
	case 0x0109:
		return "Invalid Connection Size"
	case 0x0110:
		return "Module Not Found"
	case 0x0111:
		return "Connection Request Refused"
	case 0x0203:
		return "Connection Timed Out"
	case 0x0204:
		return "Unconnected Send Timed Out"
	case 0x0205:
		return "Parameter Error"
	case 0x0311:
		return "Connection Request Failed"
	case 0x0312:
		return "Connection Request Rejected"
	case 0xFF00:
		return "Extended Link Error"
	default:
		return fmt.Sprintf("Extended Status 0x%04X", extStatus)
	}
}
