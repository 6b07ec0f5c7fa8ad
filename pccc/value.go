package pccc

import (
	"encoding/binary"
	"math"

	"github.com/yatesdr/ablink/plcerr"
)

// TagValue holds a decoded value read from a data table address.
type TagValue struct {
	Name     string      // Address as requested (e.g., "N7:0")
	FileType byte        // PCCC file type code
	Value    interface{} // Decoded Go value
	Bytes    []byte      // Raw bytes from the PLC
	Error    error       // Per-tag error (nil on success)
}

// DecodeValue converts raw PLC bytes to a Go value based on the address type.
func DecodeValue(addr *FileAddress, data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}

	// For bit addresses, extract the specific bit from the word
	if addr.BitNumber >= 0 && len(data) >= 2 {
		word := binary.LittleEndian.Uint16(data[:2])
		return (word>>uint(addr.BitNumber))&1 != 0
	}

	switch addr.FileType {
	case FileTypeInteger, FileTypeOutput, FileTypeInput, FileTypeStatus, FileTypeBinary, FileTypeASCII:
		if len(data) < 2 {
			return data
		}
		return int16(binary.LittleEndian.Uint16(data[:2]))

	case FileTypeFloat:
		if len(data) < 4 {
			return data
		}
		bits := binary.LittleEndian.Uint32(data[:4])
		return math.Float32frombits(bits)

	case FileTypeLong:
		if len(data) < 4 {
			return data
		}
		return int32(binary.LittleEndian.Uint32(data[:4]))

	case FileTypeTimer, FileTypeCounter, FileTypeControl:
		if addr.SubElement > 0 && len(data) >= 2 {
			return int16(binary.LittleEndian.Uint16(data[:2]))
		}
		return DecodeComplexElement(addr.FileType, data)

	case FileTypeString:
		// SLC string: 2-byte length + up to 82 chars
		if len(data) < 2 {
			return data
		}
		strLen := int(binary.LittleEndian.Uint16(data[:2]))
		if strLen > len(data)-2 {
			strLen = len(data) - 2
		}
		if strLen > 82 {
			strLen = 82
		}
		return string(data[2 : 2+strLen])

	default:
		return data
	}
}

// DecodeComplexElement decodes a full Timer, Counter, or Control element into
// a map keyed by PLC mnemonic (EN, TT, DN, PRE, ACC, ...).
func DecodeComplexElement(fileType byte, data []byte) map[string]interface{} {
	result := make(map[string]interface{})

	if len(data) < 2 {
		return result
	}
	controlWord := binary.LittleEndian.Uint16(data[:2])

	switch fileType {
	case FileTypeTimer:
		result["EN"] = (controlWord>>TimerBitEN)&1 != 0
		result["TT"] = (controlWord>>TimerBitTT)&1 != 0
		result["DN"] = (controlWord>>TimerBitDN)&1 != 0
		if len(data) >= 4 {
			result["PRE"] = int16(binary.LittleEndian.Uint16(data[2:4]))
		}
		if len(data) >= 6 {
			result["ACC"] = int16(binary.LittleEndian.Uint16(data[4:6]))
		}

	case FileTypeCounter:
		result["CU"] = (controlWord>>CounterBitCU)&1 != 0
		result["CD"] = (controlWord>>CounterBitCD)&1 != 0
		result["DN"] = (controlWord>>CounterBitDN)&1 != 0
		result["OV"] = (controlWord>>CounterBitOV)&1 != 0
		result["UN"] = (controlWord>>CounterBitUN)&1 != 0
		if len(data) >= 4 {
			result["PRE"] = int16(binary.LittleEndian.Uint16(data[2:4]))
		}
		if len(data) >= 6 {
			result["ACC"] = int16(binary.LittleEndian.Uint16(data[4:6]))
		}

	case FileTypeControl:
		result["EN"] = (controlWord>>ControlBitEN)&1 != 0
		result["EU"] = (controlWord>>ControlBitEU)&1 != 0
		result["DN"] = (controlWord>>ControlBitDN)&1 != 0
		result["EM"] = (controlWord>>ControlBitEM)&1 != 0
		result["ER"] = (controlWord>>ControlBitER)&1 != 0
		result["UL"] = (controlWord>>ControlBitUL)&1 != 0
		result["IN"] = (controlWord>>ControlBitIN)&1 != 0
		result["FD"] = (controlWord>>ControlBitFD)&1 != 0
		if len(data) >= 4 {
			result["LEN"] = int16(binary.LittleEndian.Uint16(data[2:4]))
		}
		if len(data) >= 6 {
			result["POS"] = int16(binary.LittleEndian.Uint16(data[4:6]))
		}
	}

	return result
}

// EncodeValue converts a Go value to bytes for the given address type.
func EncodeValue(addr *FileAddress, value interface{}) ([]byte, error) {
	switch addr.FileType {
	case FileTypeInteger, FileTypeOutput, FileTypeInput, FileTypeStatus, FileTypeBinary, FileTypeASCII:
		return encodeInt16(value)

	case FileTypeFloat:
		return encodeFloat32(value)

	case FileTypeLong:
		return encodeInt32(value)

	case FileTypeTimer, FileTypeCounter, FileTypeControl:
		if addr.SubElement > 0 {
			return encodeInt16(value)
		}
		return nil, plcerr.New(plcerr.BadParam, "pccc: cannot write full Timer/Counter/Control element; specify a sub-element (e.g., .PRE, .ACC)")

	case FileTypeString:
		return encodeString(value)

	default:
		return nil, plcerr.New(plcerr.Unsupported, "pccc: unsupported file type 0x%02X for write", addr.FileType)
	}
}

func encodeInt16(value interface{}) ([]byte, error) {
	var intVal int16
	switch v := value.(type) {
	case int16:
		intVal = v
	case int:
		intVal = int16(v)
	case int32:
		intVal = int16(v)
	case int64:
		intVal = int16(v)
	case int8:
		intVal = int16(v)
	case uint8:
		intVal = int16(v)
	case uint16:
		intVal = int16(v)
	case float32:
		intVal = int16(v)
	case float64:
		intVal = int16(v)
	case bool:
		if v {
			intVal = 1
		}
	default:
		return nil, plcerr.New(plcerr.BadParam, "pccc: cannot convert %T to INT (int16)", value)
	}
	return binary.LittleEndian.AppendUint16(nil, uint16(intVal)), nil
}

func encodeFloat32(value interface{}) ([]byte, error) {
	var floatVal float32
	switch v := value.(type) {
	case float32:
		floatVal = v
	case float64:
		floatVal = float32(v)
	case int:
		floatVal = float32(v)
	case int16:
		floatVal = float32(v)
	case int32:
		floatVal = float32(v)
	case int64:
		floatVal = float32(v)
	default:
		return nil, plcerr.New(plcerr.BadParam, "pccc: cannot convert %T to REAL (float32)", value)
	}
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(floatVal)), nil
}

func encodeInt32(value interface{}) ([]byte, error) {
	var intVal int32
	switch v := value.(type) {
	case int32:
		intVal = v
	case int:
		intVal = int32(v)
	case int16:
		intVal = int32(v)
	case int64:
		intVal = int32(v)
	case int8:
		intVal = int32(v)
	case uint8:
		intVal = int32(v)
	case uint16:
		intVal = int32(v)
	case uint32:
		intVal = int32(v)
	case float32:
		intVal = int32(v)
	case float64:
		intVal = int32(v)
	default:
		return nil, plcerr.New(plcerr.BadParam, "pccc: cannot convert %T to LONG (int32)", value)
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(intVal)), nil
}

func encodeString(value interface{}) ([]byte, error) {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return nil, plcerr.New(plcerr.BadParam, "pccc: cannot convert %T to STRING", value)
	}

	strBytes := []byte(str)
	if len(strBytes) > 82 {
		strBytes = strBytes[:82]
	}

	// SLC string format: 2-byte length (LE) + character data
	data := binary.LittleEndian.AppendUint16(nil, uint16(len(strBytes)))
	data = append(data, strBytes...)
	return data, nil
}
