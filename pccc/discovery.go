package pccc

import (
	"encoding/binary"

	"github.com/yatesdr/ablink/plcerr"
)

// Sys0Info describes the binary layout of the file directory (system file 0)
// for a specific processor family. Different processors store the directory
// in different formats.
type Sys0Info struct {
	FileType     byte // Offset within a row for the file type byte
	SizeElement  byte // Offset within a row for the element size/count byte
	FilePosition int  // Byte offset where file directory entries begin
	RowSize      int  // Size of each directory entry row in bytes
	SizeConst    int  // Constant subtracted from the raw size value (MicroLogix 1100+ only)
}

// FileDirectoryEntry describes a single data file discovered from the file directory.
type FileDirectoryEntry struct {
	FileNumber   int    // Data file number (e.g., 7 for N7)
	FileType     byte   // PCCC file type code (e.g., 0x89 for Integer)
	FileTypeName string // Human-readable type name (e.g., "Integer")
	TypePrefix   string // Address prefix letter (e.g., "N")
	ElementCount int    // Number of elements in the file
}

// FileTypePlaceholder marks a deleted or unused slot in the file directory.
const FileTypePlaceholder byte = 0x81

// GetFileDirectory discovers all data files by reading the file directory (system file 0).
// This works for SLC 500 and MicroLogix processors (not PLC-5).
func (s *Session) GetFileDirectory(send Requester) ([]FileDirectoryEntry, error) {
	catalog, err := s.GetProcessorType(send)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "pccc: GetFileDirectory")
	}

	prefix := extractCatalogPrefix(catalog)
	sys0, err := lookupSys0Info(prefix)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Unsupported, err, "pccc: GetFileDirectory")
	}

	debugLog("GetFileDirectory: catalog=%q prefix=%q sys0=%+v", catalog, prefix, *sys0)

	// The first 2 bytes at offset 0 of sys file 0 give the total directory size.
	sizeData, err := s.readSection(send, 0, FileTypeStatus, 0, 2)
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "pccc: GetFileDirectory: read directory size")
	}
	if len(sizeData) < 2 {
		return nil, plcerr.New(plcerr.TooSmall, "pccc: GetFileDirectory: directory size response too short")
	}
	totalSize := int(binary.LittleEndian.Uint16(sizeData[:2])) - sys0.SizeConst
	if totalSize <= sys0.FilePosition {
		return nil, plcerr.New(plcerr.BadReply, "pccc: GetFileDirectory: directory size %d too small", totalSize)
	}

	debugLog("GetFileDirectory: totalSize=%d filePosition=%d", totalSize, sys0.FilePosition)

	dirSize := totalSize - sys0.FilePosition
	const maxChunk = 80
	dirData := make([]byte, 0, dirSize)

	for offset := 0; offset < dirSize; offset += maxChunk {
		chunk := maxChunk
		if offset+chunk > dirSize {
			chunk = dirSize - offset
		}
		data, err := s.readSection(send, 0, FileTypeStatus, uint16(sys0.FilePosition+offset), uint16(chunk))
		if err != nil {
			return nil, plcerr.Wrap(plcerr.Read, err, "pccc: GetFileDirectory: read offset %d", offset)
		}
		dirData = append(dirData, data...)
	}

	entries := parseFileDirectory(dirData, sys0)
	debugLog("GetFileDirectory: found %d data files", len(entries))
	return entries, nil
}

// lookupSys0Info returns the file directory layout for the given catalog prefix.
func lookupSys0Info(prefix string) (*Sys0Info, error) {
	switch prefix {
	case "1747": // SLC 5/03, 5/04, 5/05
		return &Sys0Info{FileType: 0x01, SizeElement: 0x23, FilePosition: 79, RowSize: 10, SizeConst: 0}, nil
	case "1761": // MicroLogix 1000
		return &Sys0Info{FileType: 0x00, SizeElement: 0x23, FilePosition: 93, RowSize: 8, SizeConst: 0}, nil
	case "1762", "1763", "1764": // MicroLogix 1100, 1200, 1500
		return &Sys0Info{FileType: 0x02, SizeElement: 0x28, FilePosition: 233, RowSize: 10, SizeConst: 19968}, nil
	case "1766": // MicroLogix 1400
		return &Sys0Info{FileType: 0x03, SizeElement: 0x2b, FilePosition: 233, RowSize: 10, SizeConst: 19968}, nil
	default:
		return nil, plcerr.New(plcerr.Unsupported, "pccc: unknown processor catalog prefix %q", prefix)
	}
}

// parseFileDirectory walks the raw file directory data and extracts data file entries.
func parseFileDirectory(data []byte, sys0 *Sys0Info) []FileDirectoryEntry {
	var entries []FileDirectoryEntry

	fileNumber := 0
	for offset := 0; offset+sys0.RowSize <= len(data); offset += sys0.RowSize {
		row := data[offset : offset+sys0.RowSize]

		if int(sys0.FileType) >= len(row) {
			fileNumber++
			continue
		}
		ft := row[sys0.FileType]

		if ft == FileTypePlaceholder || ft == 0x00 {
			fileNumber++
			continue
		}

		sizeOffset := int(sys0.SizeElement)
		var elemCount int
		if sizeOffset+1 < len(row) {
			elemCount = int(binary.LittleEndian.Uint16(row[sizeOffset : sizeOffset+2]))
		} else if sizeOffset < len(row) {
			elemCount = int(row[sizeOffset])
		}

		entries = append(entries, FileDirectoryEntry{
			FileNumber:   fileNumber,
			FileType:     ft,
			FileTypeName: FileTypeName(ft),
			TypePrefix:   FileTypePrefix(ft),
			ElementCount: elemCount,
		})

		fileNumber++
	}

	return entries
}
