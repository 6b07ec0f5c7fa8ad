package logix

import (
	"encoding/binary"

	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/plcerr"
)

// TagInfo contains metadata about a tag from the PLC's symbol table.
type TagInfo struct {
	Name       string // Full tag name (e.g., "MyTag" or "Program:MainProgram.MyTag")
	TypeCode   uint16 // CIP data type code
	Instance   uint32 // Symbol instance ID (used for pagination)
	Dimensions []int  // Array dimensions (nil for scalar)
}

// IsProgram returns true if this tag represents a program entry (not a program-scoped tag).
// Program entries look like "Program:MainProgram" (no dot after program name).
// Program-scoped tags look like "Program:MainProgram.TagName" (have a dot).
func (t TagInfo) IsProgram() bool {
	if len(t.Name) < 8 || t.Name[:8] != "Program:" {
		return false
	}
	for i := 8; i < len(t.Name); i++ {
		if t.Name[i] == '.' {
			return false
		}
	}
	return true
}

// IsSystem returns true if this is a system/internal tag (Map:, Task:, Cxn:, etc.)
func (t TagInfo) IsSystem() bool {
	if len(t.Name) >= 4 {
		prefix := t.Name[:4]
		if prefix == "Map:" || prefix == "Cxn:" {
			return true
		}
	}
	if len(t.Name) >= 5 && t.Name[:5] == "Task:" {
		return true
	}
	return false
}

// IsRoutine returns true if this is a routine entry (not a readable tag).
func (t TagInfo) IsRoutine() bool {
	for i := 0; i < len(t.Name)-8; i++ {
		if t.Name[i:i+8] == "Routine:" {
			return true
		}
	}
	return false
}

// IsReadable returns true if this tag can be read/written (not a program, routine, or system entry).
func (t TagInfo) IsReadable() bool {
	return !t.IsProgram() && !t.IsRoutine() && !t.IsSystem()
}

// TypeName returns the human-readable type name.
func (t TagInfo) TypeName() string {
	return TypeName(t.TypeCode)
}

// ElementCount returns the total number of elements for this tag.
// For scalars, returns 1. For arrays, returns the product of all dimensions.
func (t TagInfo) ElementCount() int {
	if len(t.Dimensions) == 0 {
		return 1
	}
	count := 1
	for _, d := range t.Dimensions {
		if d > 0 {
			count *= d
		}
	}
	if count < 1 {
		return 1
	}
	return count
}

// IsArray returns true if this tag is an array.
func (t TagInfo) IsArray() bool {
	return len(t.Dimensions) > 0 || IsArrayType(t.TypeCode)
}

// GetArrayDimensions fetches the array dimensions for a tag using Get Attribute Single.
// First tries attribute 8 (byte count), then falls back to attribute 3 (dimensions).
// Returns nil for scalars.
func GetArrayDimensions(send Requester, instance uint32, typeCode uint16) ([]int, error) {
	if !IsArrayType(typeCode) {
		return nil, nil
	}

	var attr8Err, attr3Err error

	byteCount, err := getSymbolByteCount(send, instance)
	if err != nil {
		attr8Err = err
	} else if byteCount > 0 {
		baseType := BaseType(typeCode)
		elemSize := TypeSize(baseType)
		if elemSize > 0 {
			elementCount := int(byteCount) / elemSize
			if elementCount > 1 {
				return []int{elementCount}, nil
			}
		}
	}

	numDims := ArrayDimensions(typeCode)
	if numDims == 0 {
		if attr8Err != nil {
			return nil, plcerr.Wrap(plcerr.Read, attr8Err, "logix: GetArrayDimensions attr8")
		}
		return nil, nil
	}

	dims, err := getSymbolDimensions(send, instance, numDims)
	if err != nil {
		attr3Err = err
	} else if len(dims) > 0 {
		return dims, nil
	}

	if attr8Err != nil && attr3Err != nil {
		return nil, plcerr.New(plcerr.Read, "logix: GetArrayDimensions: attr8: %v; attr3: %v", attr8Err, attr3Err)
	}
	if attr3Err != nil {
		return nil, plcerr.Wrap(plcerr.Read, attr3Err, "logix: GetArrayDimensions attr3")
	}
	if attr8Err != nil {
		return nil, plcerr.Wrap(plcerr.Read, attr8Err, "logix: GetArrayDimensions attr8")
	}
	return nil, nil
}

// getSymbolByteCount fetches attribute 8 (byte count) from a Symbol Object instance.
func getSymbolByteCount(send Requester, instance uint32) (uint32, error) {
	builder := cip.EPath().Class(0x6B)
	switch {
	case instance <= 0xFF:
		builder = builder.Instance(byte(instance))
	case instance <= 0xFFFF:
		builder = builder.Instance16(uint16(instance))
	default:
		builder = builder.Instance32(instance)
	}
	path, err := builder.Attribute(8).Build()
	if err != nil {
		return 0, err
	}

	reqData := make([]byte, 0, 2+len(path))
	reqData = append(reqData, SvcGetAttributeSingle)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)

	cipResp, err := send(reqData)
	if err != nil {
		return 0, err
	}
	if len(cipResp) < 4 {
		return 0, plcerr.New(plcerr.BadReply, "logix: getSymbolByteCount: response too short")
	}

	status := cipResp[2]
	addlStatusSize := cipResp[3]
	if status != StatusSuccess {
		return 0, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if len(cipResp) < dataStart+4 {
		return 0, plcerr.New(plcerr.BadReply, "logix: getSymbolByteCount: insufficient data")
	}
	return binary.LittleEndian.Uint32(cipResp[dataStart : dataStart+4]), nil
}

// GetTemplateSize returns the size in bytes of a structure/UDT type.
// The templateID is extracted from the type code (lower 12 bits when struct flag is set).
func GetTemplateSize(send Requester, typeCode uint16) (uint32, error) {
	if !IsStructure(typeCode) {
		return 0, plcerr.New(plcerr.BadParam, "logix: type 0x%04X is not a structure", typeCode)
	}
	templateID := typeCode & 0x0FFF
	if templateID == 0 {
		return 0, plcerr.New(plcerr.BadParam, "logix: invalid template ID 0")
	}
	return getTemplateStructureSize(send, templateID)
}

// TagDescription is the result of resolving a tag's data type and element
// size without relying on a caller-supplied elem_size attribute — the
// information `tag.Create` needs for a UDT tag whose layout the attribute
// string doesn't spell out.
type TagDescription struct {
	Name        string
	DataType    uint16
	IsStructure bool
	ElemSize    int // bytes per element; for a structure, the whole UDT's size
}

// DescribeTag reads one element of tagName to learn its data type, then
// (for a structure/UDT type) follows up with a Template Object query for
// the structure's byte size. Atomic types resolve their size from the
// type code alone.
func DescribeTag(send Requester, tagName string) (*TagDescription, error) {
	tag, err := ReadTag(send, tagName)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "logix: DescribeTag %s", tagName)
	}

	desc := &TagDescription{Name: tagName, DataType: tag.DataType}
	if IsStructure(tag.DataType) {
		desc.IsStructure = true
		size, err := GetTemplateSize(send, tag.DataType)
		if err != nil {
			return nil, plcerr.Wrap(plcerr.Read, err, "logix: DescribeTag %s: template size", tagName)
		}
		desc.ElemSize = int(size)
		return desc, nil
	}

	if sz := TypeSize(tag.DataType); sz > 0 {
		desc.ElemSize = sz
	} else {
		desc.ElemSize = len(tag.Bytes)
	}
	return desc, nil
}

// getTemplateStructureSize fetches the structure size using Get Attribute List (0x03),
// which is more widely supported than Get Attribute Single (0x0E) for this attribute.
func getTemplateStructureSize(send Requester, templateID uint16) (uint32, error) {
	builder := cip.EPath().Class(0x6C)
	if templateID <= 0xFF {
		builder = builder.Instance(byte(templateID))
	} else {
		builder = builder.Instance16(templateID)
	}
	path, err := builder.Build()
	if err != nil {
		return 0, err
	}

	attrData := []byte{
		0x01, 0x00, // Attribute count = 1
		0x05, 0x00, // Attribute 5: Structure size in bytes (UDINT)
	}

	reqData := make([]byte, 0, 2+len(path)+len(attrData))
	reqData = append(reqData, 0x03) // Get Attribute List service
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)
	reqData = append(reqData, attrData...)

	cipResp, err := send(reqData)
	if err != nil {
		return 0, err
	}
	if len(cipResp) < 4 {
		return 0, plcerr.New(plcerr.BadReply, "logix: getTemplateStructureSize: response too short: %d bytes", len(cipResp))
	}

	replyService := cipResp[0]
	status := cipResp[2]
	addlStatusSize := cipResp[3]
	if replyService != 0x83 {
		return 0, plcerr.New(plcerr.BadReply, "logix: unexpected reply service: 0x%02X", replyService)
	}
	if status != StatusSuccess {
		return 0, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	// Response: [attr_count:2] [attr_id:2] [status:2] [value:4]
	dataStart := 4 + int(addlStatusSize)*2
	if len(cipResp) < dataStart+10 {
		return 0, plcerr.New(plcerr.BadReply, "logix: response too short for attribute data")
	}

	data := cipResp[dataStart:]
	attrStatus := binary.LittleEndian.Uint16(data[4:6])
	if attrStatus != 0 {
		return 0, plcerr.New(plcerr.RemoteErr, "logix: attribute error status: 0x%04X", attrStatus)
	}
	return binary.LittleEndian.Uint32(data[6:10]), nil
}

// getTemplateAttributeUINT fetches a UINT (2-byte) attribute from a Template Object instance.
func getTemplateAttributeUINT(send Requester, templateID uint32, attrID byte) (uint32, error) {
	v, err := getTemplateAttribute(send, templateID, attrID, 2)
	return v, err
}

// getTemplateAttribute fetches a numeric attribute from a Template Object
// instance (class 0x6C). width is 2 for UINT or 4 for UDINT. Common
// attributes: 1 structure handle, 2 member count, 3 member byte count,
// 4 object definition size (32-bit words), 5 structure size (bytes).
func getTemplateAttribute(send Requester, templateID uint32, attrID byte, width ...int) (uint32, error) {
	w := 4
	if len(width) > 0 {
		w = width[0]
	}

	builder := cip.EPath().Class(0x6C)
	switch {
	case templateID <= 0xFF:
		builder = builder.Instance(byte(templateID))
	case templateID <= 0xFFFF:
		builder = builder.Instance16(uint16(templateID))
	default:
		builder = builder.Instance32(templateID)
	}
	path, err := builder.Attribute(attrID).Build()
	if err != nil {
		return 0, err
	}

	reqData := make([]byte, 0, 2+len(path))
	reqData = append(reqData, SvcGetAttributeSingle)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)

	cipResp, err := send(reqData)
	if err != nil {
		return 0, err
	}
	if len(cipResp) < 4 {
		return 0, plcerr.New(plcerr.BadReply, "logix: getTemplateAttribute: response too short")
	}

	status := cipResp[2]
	addlStatusSize := cipResp[3]
	if status != StatusSuccess {
		return 0, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if len(cipResp) < dataStart+w {
		return 0, plcerr.New(plcerr.BadReply, "logix: getTemplateAttribute: insufficient data")
	}
	if w == 2 {
		return uint32(binary.LittleEndian.Uint16(cipResp[dataStart : dataStart+2])), nil
	}
	return binary.LittleEndian.Uint32(cipResp[dataStart : dataStart+4]), nil
}

// getSymbolDimensions fetches attribute 3 (dimensions) from a Symbol Object instance.
func getSymbolDimensions(send Requester, instance uint32, numDims int) ([]int, error) {
	builder := cip.EPath().Class(0x6B)
	switch {
	case instance <= 0xFF:
		builder = builder.Instance(byte(instance))
	case instance <= 0xFFFF:
		builder = builder.Instance16(uint16(instance))
	default:
		builder = builder.Instance32(instance)
	}
	path, err := builder.Attribute(3).Build()
	if err != nil {
		return nil, err
	}

	reqData := make([]byte, 0, 2+len(path))
	reqData = append(reqData, SvcGetAttributeSingle)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)

	cipResp, err := send(reqData)
	if err != nil {
		return nil, err
	}
	if len(cipResp) < 4 {
		return nil, plcerr.New(plcerr.BadReply, "logix: getSymbolDimensions: response too short")
	}

	status := cipResp[2]
	addlStatusSize := cipResp[3]
	if status != StatusSuccess {
		return nil, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	data := cipResp[dataStart:]
	if len(data) < numDims*4 {
		return nil, plcerr.New(plcerr.BadReply, "logix: insufficient data for %d dimensions", numDims)
	}

	dimensions := make([]int, numDims)
	for i := 0; i < numDims; i++ {
		dimensions[i] = int(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return dimensions, nil
}

// ListTags returns all controller-scope tags and program entries.
// Use ListProgramTags to get tags within a specific program.
func ListTags(send Requester) ([]TagInfo, error) {
	return listSymbols(send, "", 0)
}

// ListPrograms returns just the program names from the PLC.
func ListPrograms(send Requester) ([]string, error) {
	tags, err := ListTags(send)
	if err != nil {
		return nil, err
	}

	var programs []string
	seen := make(map[string]bool)
	for _, t := range tags {
		if t.IsProgram() && !seen[t.Name] {
			seen[t.Name] = true
			programs = append(programs, t.Name)
		}
	}
	return programs, nil
}

// ListProgramTags returns all tags within a specific program.
// programName should be just the program name (e.g., "MainProgram"),
// or the full form (e.g., "Program:MainProgram").
func ListProgramTags(send Requester, programName string) ([]TagInfo, error) {
	if len(programName) < 8 || programName[:8] != "Program:" {
		programName = "Program:" + programName
	}
	return listSymbols(send, programName, 0)
}

// ListDataTags returns only readable/writable data tags, excluding programs, routines, and system tags.
func ListDataTags(send Requester) ([]TagInfo, error) {
	allTags, err := ListAllTags(send)
	if err != nil {
		return nil, err
	}

	var dataTags []TagInfo
	for _, t := range allTags {
		if t.IsReadable() {
			dataTags = append(dataTags, t)
		}
	}
	return dataTags, nil
}

// ListAllTags returns all tags: controller-scope, program entries, and tags within each program.
func ListAllTags(send Requester) ([]TagInfo, error) {
	baseTags, err := ListTags(send)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "logix: ListAllTags")
	}

	var programs []string
	seen := make(map[string]bool)
	for _, t := range baseTags {
		if t.IsProgram() && !seen[t.Name] {
			seen[t.Name] = true
			programs = append(programs, t.Name)
		}
	}

	allTags := make([]TagInfo, 0, len(baseTags))
	allTags = append(allTags, baseTags...)

	for _, prog := range programs {
		progTags, err := listSymbols(send, prog, 0)
		if err != nil {
			continue // Skip programs that can't be browsed
		}

		prefix := prog + "."
		for i := range progTags {
			if len(progTags[i].Name) < len(prefix) || progTags[i].Name[:len(prefix)] != prefix {
				if len(progTags[i].Name) < 8 || progTags[i].Name[:8] != "Program:" {
					progTags[i].Name = prefix + progTags[i].Name
				}
			}
		}

		allTags = append(allTags, progTags...)
	}

	return allTags, nil
}

// listSymbols queries the Symbol Object (class 0x6B) for tag information.
// scope: "" for controller scope, or "Program:ProgramName" for program scope.
func listSymbols(send Requester, scope string, startInstance uint32) ([]TagInfo, error) {
	var allTags []TagInfo
	instance := startInstance

	for page := 0; page < 1000; page++ {
		tags, lastInstance, hasMore, err := listSymbolsPage(send, scope, instance)
		if err != nil {
			return nil, err
		}

		allTags = append(allTags, tags...)

		if !hasMore || len(tags) == 0 {
			break
		}
		instance = lastInstance + 1
	}

	return allTags, nil
}

// listSymbolsPage fetches one page of symbols.
func listSymbolsPage(send Requester, scope string, startInstance uint32) (tags []TagInfo, lastInstance uint32, hasMore bool, err error) {
	path, err := buildSymbolPath(scope, startInstance)
	if err != nil {
		return nil, 0, false, plcerr.Wrap(plcerr.BadParam, err, "logix: buildSymbolPath")
	}

	// Attributes: name (1), type (2), byte count (8) - enough to size arrays at discovery time.
	attrData := []byte{
		0x03, 0x00,
		0x01, 0x00,
		0x02, 0x00,
		0x08, 0x00,
	}

	reqData := make([]byte, 0, 2+len(path)+len(attrData))
	reqData = append(reqData, SvcGetInstanceAttributeList)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)
	reqData = append(reqData, attrData...)

	cipResp, err := send(reqData)
	if err != nil {
		return nil, 0, false, err
	}

	if len(cipResp) < 4 {
		return nil, 0, false, plcerr.New(plcerr.BadReply, "logix: listSymbolsPage: response too short: %d bytes", len(cipResp))
	}

	replyService := cipResp[0]
	status := cipResp[2]
	addlStatusSize := cipResp[3]

	if replyService != (SvcGetInstanceAttributeList | 0x80) {
		return nil, 0, false, plcerr.New(plcerr.BadReply, "logix: unexpected reply service: 0x%02X", replyService)
	}

	hasMore = status == StatusPartialTransfer
	if status != StatusSuccess && status != StatusPartialTransfer {
		return nil, 0, false, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if dataStart > len(cipResp) {
		return nil, 0, hasMore, nil
	}

	tags, lastInstance = parseSymbolListResponse(cipResp[dataStart:])
	return tags, lastInstance, hasMore, nil
}

// buildSymbolPath builds the EPath for symbol listing.
func buildSymbolPath(scope string, startInstance uint32) (cip.EPath_t, error) {
	builder := cip.EPath()

	if scope != "" {
		builder = builder.Symbol(scope)
	}
	builder = builder.Class(0x6B)

	switch {
	case startInstance <= 0xFF:
		builder = builder.Instance(byte(startInstance))
	case startInstance <= 0xFFFF:
		builder = builder.Instance16(uint16(startInstance))
	default:
		return nil, plcerr.New(plcerr.BadParam, "logix: instance %d exceeds 16-bit maximum", startInstance)
	}

	return builder.Build()
}

// parseSymbolListResponse parses the tag list data from a Get Instance
// Attribute List response. Each entry: instance(2) unknown(2) nameLen(2)
// name(nameLen) type(2) arraySize(2), followed by padding up to
// nameLen+20 bytes total.
func parseSymbolListResponse(data []byte) (tags []TagInfo, lastInstance uint32) {
	i := 0

	for i < len(data) {
		if i+8 > len(data) {
			break
		}

		instance := uint32(binary.LittleEndian.Uint16(data[i : i+2]))
		nameLen := int(binary.LittleEndian.Uint16(data[i+4 : i+6]))

		entrySize := nameLen + 20
		if i+entrySize > len(data) {
			break
		}

		entry := data[i : i+entrySize]
		name := string(entry[6 : 6+nameLen])
		typeCode := binary.LittleEndian.Uint16(entry[6+nameLen : 8+nameLen])
		arraySize := binary.LittleEndian.Uint16(entry[8+nameLen : 10+nameLen])

		i += entrySize

		if name == "" || instance == 0 {
			continue
		}

		var dimensions []int
		if IsArrayType(typeCode) && arraySize > 0 {
			dimensions = []int{int(arraySize)}
		}

		tags = append(tags, TagInfo{
			Name:       name,
			TypeCode:   typeCode,
			Instance:   instance,
			Dimensions: dimensions,
		})

		lastInstance = instance
	}

	return tags, lastInstance
}
