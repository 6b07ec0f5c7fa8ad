package eip

import "github.com/yatesdr/ablink/stack"

// Layer is the bottom of a protocol stack.Pipeline. It brings up the
// EtherNet/IP session (TCP dial + RegisterSession) that every layer above
// it depends on, but does none of the actual request wrapping: the
// encapsulation framing and wire round trip already live in
// EipClient.SendRRData/SendUnitDataTransaction, and the coordinator that
// drives the pipeline calls those directly rather than through another
// layer of byte wrapping. So FixUpRequest and ProcessResponse here are
// identity passthroughs — this layer's only real job is Connect.
type Layer struct {
	Client *EipClient
}

// NewLayer returns a Layer wrapping an already-configured EipClient.
func NewLayer(client *EipClient) *Layer {
	return &Layer{Client: client}
}

func (l *Layer) Initialize() error { return nil }

// Connect dials the target and registers an EIP session.
func (l *Layer) Connect() error {
	return l.Client.Connect()
}

func (l *Layer) ReserveSpace() int { return 0 }

func (l *Layer) FixUpRequest(payload []byte) ([]byte, error) { return payload, nil }

func (l *Layer) ProcessResponse(data []byte) ([]byte, error) { return data, nil }

var _ stack.Layer = (*Layer)(nil)
