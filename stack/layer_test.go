package stack

import (
	"bytes"
	"testing"
)

// taggingLayer prepends/strips a single marker byte, recording the order
// it was invoked in via the shared log slice.
type taggingLayer struct {
	tag byte
	log *[]byte
}

func (l *taggingLayer) Initialize() error { *l.log = append(*l.log, l.tag); return nil }
func (l *taggingLayer) Connect() error    { return nil }
func (l *taggingLayer) ReserveSpace() int { return 1 }

func (l *taggingLayer) FixUpRequest(payload []byte) ([]byte, error) {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, l.tag)
	out = append(out, payload...)
	return out, nil
}

func (l *taggingLayer) ProcessResponse(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != l.tag {
		panic("unexpected layer order")
	}
	return data[1:], nil
}

func TestPipelineBuildWrapsTopDown(t *testing.T) {
	bottom := &taggingLayer{tag: 'B', log: &[]byte{}}
	top := &taggingLayer{tag: 'T', log: &[]byte{}}
	p := New(bottom, top)

	wire, err := p.Build([]byte("X"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Top wraps first (outermost from the leaf's point of view), bottom
	// wraps last, so bottom's tag ends up outermost on the wire.
	want := []byte("BTX")
	if !bytes.Equal(wire, want) {
		t.Errorf("wire = %q, want %q", wire, want)
	}
}

func TestPipelineUnwrapPeelsBottomUp(t *testing.T) {
	bottom := &taggingLayer{tag: 'B', log: &[]byte{}}
	top := &taggingLayer{tag: 'T', log: &[]byte{}}
	p := New(bottom, top)

	leaf, err := p.Unwrap([]byte("BTX"))
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if string(leaf) != "X" {
		t.Errorf("leaf = %q, want %q", leaf, "X")
	}
}

func TestPipelineRoundTrip(t *testing.T) {
	bottom := &taggingLayer{tag: 'B', log: &[]byte{}}
	mid := &taggingLayer{tag: 'M', log: &[]byte{}}
	top := &taggingLayer{tag: 'T', log: &[]byte{}}
	p := New(bottom, mid, top)

	wire, err := p.Build([]byte("payload"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	leaf, err := p.Unwrap(wire)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if string(leaf) != "payload" {
		t.Errorf("round trip = %q, want %q", leaf, "payload")
	}
}

func TestPipelineInitializeRunsEveryLayer(t *testing.T) {
	log := []byte{}
	bottom := &taggingLayer{tag: 'B', log: &log}
	top := &taggingLayer{tag: 'T', log: &log}
	p := New(bottom, top)

	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !bytes.Equal(log, []byte("BT")) {
		t.Errorf("Initialize order = %q, want %q", log, "BT")
	}
}
