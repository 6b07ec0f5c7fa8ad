package logix

import (
	"sync"

	"github.com/yatesdr/ablink/plcerr"
)

// TemplateCache fetches and memoizes UDT templates by ID, so repeated
// reads of the same structure type don't re-query the Template Object
// on every poll. Safe for concurrent use.
type TemplateCache struct {
	send Requester

	mu        sync.Mutex
	templates map[uint16]*Template
}

// NewTemplateCache returns a cache that fetches templates through send.
func NewTemplateCache(send Requester) *TemplateCache {
	return &TemplateCache{send: send, templates: make(map[uint16]*Template)}
}

// Get returns the template for templateID, fetching and parsing it on
// first use.
func (c *TemplateCache) Get(templateID uint16) (*Template, error) {
	c.mu.Lock()
	if t, ok := c.templates[templateID]; ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	t, err := GetTemplate(c.send, templateID)
	if err != nil {
		return nil, err
	}
	t.calculateOffsetsWithSizes(c.sizeOf)

	c.mu.Lock()
	c.templates[templateID] = t
	c.mu.Unlock()
	return t, nil
}

// sizeOf returns the byte size of a (possibly nested-structure) type
// code, fetching its template if necessary. Used to compute correct
// member offsets for UDTs that nest other UDTs.
func (c *TemplateCache) sizeOf(typeCode uint16) uint32 {
	if !IsStructure(typeCode) {
		return uint32(TypeSize(typeCode & 0x0FFF))
	}
	nested, err := c.Get(typeCode & 0x0FFF)
	if err != nil {
		return 0
	}
	return nested.Size
}

// Decoder returns a UDTDecoder bound to this cache, suitable for
// TagValue.GoValueDecoded.
func (c *TemplateCache) Decoder() UDTDecoder {
	return c.DecodeUDT
}

// DecodeUDT decodes raw structure bytes into a map keyed by visible
// member name. Nested structures decode recursively.
func (c *TemplateCache) DecodeUDT(dataType uint16, raw []byte) (map[string]interface{}, error) {
	if !IsStructure(dataType) {
		return nil, plcerr.New(plcerr.BadParam, "logix: DecodeUDT: type 0x%04X is not a structure", dataType)
	}
	tmpl, err := c.Get(dataType & 0x0FFF)
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(tmpl.MemberMap))
	for name, idx := range tmpl.MemberMap {
		m := tmpl.Members[idx]
		result[name] = c.decodeMember(m, raw)
	}
	return result, nil
}

func (c *TemplateCache) decodeMember(m TemplateMember, raw []byte) interface{} {
	baseType := m.Type & 0x0FFF

	if baseType == TypeBOOL && !m.IsArray() {
		// BitOffset counts from the start of the 32-bit host at Offset.
		byteIdx := int(m.Offset) + int(m.BitOffset/8)
		if byteIdx >= len(raw) {
			return false
		}
		return raw[byteIdx]&(1<<(m.BitOffset%8)) != 0
	}

	size := int(c.sizeOf(m.Type))
	if m.IsArray() {
		size *= m.ElementCount()
	}
	if size <= 0 || int(m.Offset) >= len(raw) {
		return nil
	}
	end := int(m.Offset) + size
	if end > len(raw) {
		end = len(raw)
	}
	memberBytes := raw[m.Offset:end]

	if IsStructure(m.Type) {
		decoded, err := c.DecodeUDT(m.Type, memberBytes)
		if err != nil {
			return memberBytes
		}
		return decoded
	}

	tv := &TagValue{DataType: m.Type, Bytes: memberBytes, Count: m.ElementCount()}
	return tv.GoValue()
}
