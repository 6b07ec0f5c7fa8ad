package cip

import (
	"strconv"
	"strings"

	"github.com/yatesdr/ablink/plcerr"
)

// ParsedTag is the result of parsing a CIP symbolic tag name per the
// grammar: symbolic ( '.' symbolic | '[' index (',' index){0,2} ']' )*
// ( '.' bit )?
type ParsedTag struct {
	Path   EPath_t
	IsBit  bool
	Bit    int
}

// ParseSymbolicTag parses a Logix-style tag name into its encoded EPATH
// and an optional trailing bit index. A trailing ".N" where N is all
// digits is a bit reference (0-255), not a further symbolic segment; it
// is stripped from the path and returned separately, since the address
// itself never embeds the bit — it's applied by the read/write callback.
func ParseSymbolicTag(tag string) (*ParsedTag, error) {
	if tag == "" {
		return nil, plcerr.New(plcerr.BadParam, "cip: empty tag name")
	}

	name := tag
	isBit := false
	bit := 0

	if idx := strings.LastIndexByte(tag, '.'); idx >= 0 {
		candidate := tag[idx+1:]
		if candidate != "" && isAllDigits(candidate) {
			v, err := strconv.Atoi(candidate)
			if err != nil || v < 0 || v > 255 {
				return nil, plcerr.New(plcerr.BadParam, "cip: bit index %q out of range 0-255", candidate)
			}
			name = tag[:idx]
			isBit = true
			bit = v
		}
	}

	path, err := EPath().Symbol(name).Build()
	if err != nil {
		return nil, plcerr.Wrap(plcerr.BadParam, err, "cip: parsing tag %q", tag)
	}

	return &ParsedTag{Path: path, IsBit: isBit, Bit: bit}, nil
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
