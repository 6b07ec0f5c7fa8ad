// Package stack generalizes the EIP→CIP(→PCCC)→application wrapping that
// every blocking call in the teacher packages used to inline per call site
// into a reusable, ordered pipeline of layers.
//
// Layers are ordered bottom-to-top, mirroring the OSI convention the naming
// below borrows: index 0 is the bottom (closest to the wire — EIP
// encapsulation), and the last index is the top (closest to the
// application — a Logix symbolic-tag request or a PCCC typed command).
// Building a request wraps outward from the top layer down to the bottom;
// processing a response peels inward from the bottom layer up to the top.
package stack

// Layer is one wrapping stage in the protocol pipeline: EIP encapsulation,
// CIP connection management (unconnected routed or connected via Forward
// Open), an optional PCCC Execute-PCCC tunnel, or the leaf application
// codec (Logix symbolic services or PCCC typed commands).
type Layer interface {
	// Initialize prepares any layer-local state (sequence counters,
	// requester IDs) that doesn't depend on a live connection.
	Initialize() error

	// Connect performs this layer's part of session establishment —
	// dialing the TCP socket, registering an EIP session, opening a CIP
	// connection. Layers with nothing to establish return nil.
	Connect() error

	// ReserveSpace returns the number of header bytes this layer will
	// prepend when wrapping a request, so the pipeline can size its
	// buffer once instead of reallocating at every layer.
	ReserveSpace() int

	// FixUpRequest wraps payload (the bytes produced by the layer above)
	// in this layer's header and returns the combined bytes to pass to
	// the layer below.
	FixUpRequest(payload []byte) ([]byte, error)

	// ProcessResponse strips this layer's header from data (the bytes
	// received from the layer below) and returns the remainder to pass
	// to the layer above.
	ProcessResponse(data []byte) ([]byte, error)
}

// Pipeline is an ordered stack of Layers, bottom (index 0, nearest the
// wire) to top (last index, nearest the application).
type Pipeline struct {
	layers []Layer
}

// New returns a Pipeline over layers, ordered bottom-to-top.
func New(layers ...Layer) *Pipeline {
	return &Pipeline{layers: layers}
}

// Initialize runs every layer's Initialize, bottom-to-top.
func (p *Pipeline) Initialize() error {
	for _, l := range p.layers {
		if err := l.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

// Connect runs every layer's Connect, bottom-to-top: the socket comes up
// before a session registers on it, and a session exists before a CIP
// connection can Forward-Open across it.
func (p *Pipeline) Connect() error {
	for _, l := range p.layers {
		if err := l.Connect(); err != nil {
			return err
		}
	}
	return nil
}

// Build wraps leafPayload (the application layer's own request bytes,
// e.g. a Read Tag Service request) through every layer below it, bottom
// layer's header outermost, and returns the bytes ready to write to the
// wire.
func (p *Pipeline) Build(leafPayload []byte) ([]byte, error) {
	reserve := 0
	for _, l := range p.layers {
		reserve += l.ReserveSpace()
	}

	buf := make([]byte, len(leafPayload), len(leafPayload)+reserve)
	copy(buf, leafPayload)

	// Top-down: wrap outward starting at the layer nearest the
	// application, finishing at the layer nearest the wire.
	for i := len(p.layers) - 1; i >= 0; i-- {
		wrapped, err := p.layers[i].FixUpRequest(buf)
		if err != nil {
			return nil, err
		}
		buf = wrapped
	}
	return buf, nil
}

// Unwrap peels every layer's header off wire bytes and returns the leaf
// application's response payload.
func (p *Pipeline) Unwrap(wire []byte) ([]byte, error) {
	data := wire
	// Bottom-up: peel the layer nearest the wire first, finishing at the
	// layer nearest the application.
	for _, l := range p.layers {
		stripped, err := l.ProcessResponse(data)
		if err != nil {
			return nil, err
		}
		data = stripped
	}
	return data, nil
}
