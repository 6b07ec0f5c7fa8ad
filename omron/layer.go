// Package omron wires Omron NJ/NX controllers as a thin variant of the
// Logix CIP path: they answer the same Read Tag (0x4C) / Write Tag (0x4D)
// / Read Tag Fragmented (0x52) / Write Tag Fragmented (0x53) services over
// the same symbolic-segment EPATH grammar, so there is nothing to
// re-implement — only a place to hang Omron-specific defaults that differ
// from a ControlLogix target.
package omron

import (
	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/wire"
)

// ByteOrder is the default descriptor for Omron NJ/NX tags: same natural
// word order and string layout as Logix, since Omron's CIP object model
// for atomic/string types matches Rockwell's rather than PLC-5's.
var ByteOrder = wire.LogixByteOrder

// Layer is the Omron CIP-path variant: it selects Logix's symbolic tag
// services unchanged. Kept as its own named type (rather than a bare
// re-export of logix.ReadTag/WriteTag) so the tag package's vtable has a
// distinct dialect to dispatch to, and so an Omron-specific quirk
// (a narrower fragmentation chunk size, a different default connection
// size) has somewhere to live without touching the Logix codepath.
type Layer struct{}

// ReadTag reads a single Omron symbolic tag.
func (Layer) ReadTag(send logix.Requester, tagName string) (*logix.Tag, error) {
	return logix.ReadTagCount(send, tagName, 1)
}

// ReadTagCount reads count elements of an Omron symbolic tag.
func (Layer) ReadTagCount(send logix.Requester, tagName string, count uint16) (*logix.Tag, error) {
	return logix.ReadTagCount(send, tagName, count)
}

// ReadTagFragmented reads an Omron tag of expectedSize bytes via the
// fragmented service, for structures too large for one packet.
func (Layer) ReadTagFragmented(send logix.Requester, tagName string, expectedSize uint32) (*logix.Tag, error) {
	return logix.ReadTagFragmented(send, tagName, expectedSize)
}

// WriteTag writes a single element to an Omron symbolic tag.
func (Layer) WriteTag(send logix.Requester, tagName string, dataType uint16, value []byte) error {
	return logix.WriteTag(send, tagName, dataType, value)
}

// WriteTagCount writes count elements to an Omron symbolic tag.
func (Layer) WriteTagCount(send logix.Requester, tagName string, dataType uint16, value []byte, count uint16) error {
	return logix.WriteTagCount(send, tagName, dataType, value, count)
}
