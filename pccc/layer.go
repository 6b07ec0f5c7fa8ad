package pccc

import "github.com/yatesdr/ablink/stack"

// Layer tunnels a PCCC command through CIP's Execute PCCC service (0x4B),
// the stack.Layer promotion of wrapInCipExecutePCCC/parseCipExecutePCCCResponse.
// It sits directly below the application layer in a pipeline built for a
// PLC-5, SLC 500, or MicroLogix target; a Logix target never has one.
type Layer struct {
	VendorID  uint16
	SerialNum uint32
}

// NewLayer returns a Layer identifying the requester with vendorID and
// serialNum, echoed back by the target in every Execute PCCC reply.
func NewLayer(vendorID uint16, serialNum uint32) *Layer {
	return &Layer{VendorID: vendorID, SerialNum: serialNum}
}

func (l *Layer) Initialize() error { return nil }

func (l *Layer) Connect() error { return nil }

func (l *Layer) ReserveSpace() int {
	return 2 + 4 + 7 // CIP service+path-size + PCCC Object path + requester ID
}

// FixUpRequest wraps a PCCC command (CMD/STS/TNS header plus data) in an
// Execute PCCC CIP request.
func (l *Layer) FixUpRequest(payload []byte) ([]byte, error) {
	return wrapInCipExecutePCCC(payload, l.VendorID, l.SerialNum)
}

// ProcessResponse strips the Execute PCCC CIP envelope, returning the raw
// PCCC reply (CMD/STS/TNS header plus data) to the application layer.
func (l *Layer) ProcessResponse(data []byte) ([]byte, error) {
	return parseCipExecutePCCCResponse(data)
}

var _ stack.Layer = (*Layer)(nil)
