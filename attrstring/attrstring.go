// Package attrstring parses the "protocol=...&gateway=...&name=..." tag
// attribute strings used at the public create boundary into a CreateOptions
// struct. Parsing is case-insensitive on keys; the core never touches the
// raw string itself past this point.
package attrstring

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/yatesdr/ablink/plcerr"
)

// CreateOptions is the parsed form of a tag attribute string — the only
// thing the rest of the library depends on.
type CreateOptions struct {
	Protocol             string // always "ab_eip" for this library
	Gateway              string
	Path                 string // CIP route, e.g. "1,0"
	CPU                  string // controllogix, compactlogix, plc5, slc500, micrologix, omron-njnx, ...
	Name                 string // tag name or address
	ElemSize             int    // bytes per element; 0 = unknown, probe on first read
	ElemCount            int    // 0 defaults to 1
	ReadCacheMs          int    // 0 disables read caching
	ShareSession         bool
	ConnectionGroupID    int
	Debug                int
	CIPPayload           int  // negotiated max CIP payload size override, 0 = default
	ForwardOpenExEnabled bool
	IdleTimeoutMs        int // 0 = use the coordinator default
}

// recognizedKeys is the closed key set this library understands. Unknown
// keys are rejected rather than silently ignored, since a typo'd key
// otherwise fails silently at runtime far from where it was written.
var recognizedKeys = map[string]bool{
	"protocol":                true,
	"gateway":                 true,
	"path":                    true,
	"cpu":                     true,
	"name":                    true,
	"elem_size":               true,
	"elem_count":              true,
	"read_cache_ms":           true,
	"share_session":           true,
	"connection_group_id":     true,
	"debug":                   true,
	"cip_payload":             true,
	"forward_open_ex_enabled": true,
	"idle_timeout_ms":         true,
}

// Parse parses a "k=v&k=v" attribute string into CreateOptions.
func Parse(s string) (*CreateOptions, error) {
	opts := &CreateOptions{ElemCount: 1}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		var val string
		if len(kv) == 2 {
			var err error
			val, err = url.QueryUnescape(kv[1])
			if err != nil {
				return nil, plcerr.Wrap(plcerr.BadParam, err, "attrstring: unescaping value for %q", key)
			}
		}
		if !recognizedKeys[key] {
			return nil, plcerr.New(plcerr.BadParam, "attrstring: unrecognized attribute key %q", key)
		}

		var err error
		switch key {
		case "protocol":
			opts.Protocol = val
		case "gateway":
			opts.Gateway = val
		case "path":
			opts.Path = val
		case "cpu":
			opts.CPU = strings.ToLower(val)
		case "name":
			opts.Name = val
		case "elem_size":
			opts.ElemSize, err = parseInt(key, val)
		case "elem_count":
			opts.ElemCount, err = parseInt(key, val)
		case "read_cache_ms":
			opts.ReadCacheMs, err = parseInt(key, val)
		case "share_session":
			opts.ShareSession, err = parseBool(key, val)
		case "connection_group_id":
			opts.ConnectionGroupID, err = parseInt(key, val)
		case "debug":
			opts.Debug, err = parseInt(key, val)
		case "cip_payload":
			opts.CIPPayload, err = parseInt(key, val)
		case "forward_open_ex_enabled":
			opts.ForwardOpenExEnabled, err = parseBool(key, val)
		case "idle_timeout_ms":
			opts.IdleTimeoutMs, err = parseInt(key, val)
		}
		if err != nil {
			return nil, err
		}
	}

	if opts.Gateway == "" {
		return nil, plcerr.New(plcerr.BadParam, "attrstring: missing required key \"gateway\"")
	}
	if opts.Name == "" {
		return nil, plcerr.New(plcerr.BadParam, "attrstring: missing required key \"name\"")
	}
	if opts.ElemCount <= 0 {
		opts.ElemCount = 1
	}
	return opts, nil
}

func parseInt(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, plcerr.Wrap(plcerr.BadParam, err, "attrstring: %s=%q is not an integer", key, val)
	}
	return n, nil
}

func parseBool(key, val string) (bool, error) {
	switch strings.ToLower(val) {
	case "1", "true", "yes":
		return true, nil
	case "", "0", "false", "no":
		return false, nil
	default:
		return false, plcerr.New(plcerr.BadParam, "attrstring: %s=%q is not a boolean", key, val)
	}
}
