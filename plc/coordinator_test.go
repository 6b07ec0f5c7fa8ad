package plc

import (
	"testing"
	"time"

	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/plcerr"
	"github.com/yatesdr/ablink/telemetry"
)

type fakeSink struct {
	events []telemetry.Event
}

func (f *fakeSink) Publish(e telemetry.Event) { f.events = append(f.events, e) }
func (f *fakeSink) Close() error              { return nil }

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected:   "disconnected",
		StateTCPConnecting:  "tcp_connecting",
		StateRegistering:    "registering",
		StateForwardOpening: "forward_opening",
		StateReady:          "ready",
		StateClosing:        "closing",
		StateRestarting:     "restarting",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestDialectString(t *testing.T) {
	cases := map[Dialect]string{
		DialectLogix: "logix",
		DialectPCCC:  "pccc",
		DialectOmron: "omron",
	}
	for d, want := range cases {
		if got := d.String(); got != want {
			t.Errorf("Dialect(%d).String() = %q, want %q", d, got, want)
		}
	}
}

func TestNewDefaultsIdleTimeout(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1"})
	if c.opts.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want default %v", c.opts.IdleTimeout, DefaultIdleTimeout)
	}
}

func TestNewHonorsExplicitIdleTimeout(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1", IdleTimeout: 250 * time.Millisecond})
	if c.opts.IdleTimeout != 250*time.Millisecond {
		t.Errorf("IdleTimeout = %v, want 250ms", c.opts.IdleTimeout)
	}
}

func TestSendAfterCloseReturnsAbort(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1"})
	// No Start() call — the background loop never runs, so Send must not
	// block forever once the coordinator is closed out from under it.
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	done := make(chan struct{})
	var sendErr error
	go func() {
		_, sendErr = c.Send([]byte{0x01})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return after Close")
	}

	if sendErr == nil {
		t.Fatal("expected an error from Send after Close")
	}
	if perr, ok := sendErr.(*plcerr.Error); ok && perr.Kind != plcerr.Abort {
		t.Errorf("error kind = %v, want Abort", perr.Kind)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1"})
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCompletePublishesTelemetryEventOnSuccess(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{Gateway: "10.0.0.1"}, WithTelemetry(sink))

	req := &request{tagName: "MyTag", result: make(chan requestResult, 1)}
	c.complete(req, []byte{1, 2, 3}, nil)

	res := <-req.result
	if res.err != nil {
		t.Fatalf("unexpected error on req.result: %v", res.err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Gateway != "10.0.0.1" || ev.TagName != "MyTag" || ev.Status != "ok" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestCompletePublishesTelemetryEventOnError(t *testing.T) {
	sink := &fakeSink{}
	c := New(Options{Gateway: "10.0.0.1"}, WithTelemetry(sink))

	req := &request{tagName: "MyTag", result: make(chan requestResult, 1)}
	sendErr := plcerr.New(plcerr.BadReply, "boom")
	c.complete(req, nil, sendErr)

	if len(sink.events) != 1 || sink.events[0].Status != sendErr.Error() {
		t.Fatalf("expected one event carrying the error status, got %+v", sink.events)
	}
}

func TestRestartTransitionsThroughRestartingToDisconnected(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1"})
	c.setState(StateReady)

	c.restart()

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State() after restart = %v, want %v", got, StateDisconnected)
	}
}

func TestDispatchRestartsOnTransportError(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1"})
	c.setState(StateReady)
	// No live socket — Transact against an unconnected eip.EipClient fails
	// with plcerr.BadConnection, which is exactly the transport-error case
	// dispatch must react to by tearing the connection down rather than
	// leaving state stuck at StateReady forever.
	c.connLayer = cip.NewConnectionLayer(c.client, nil)

	req := &request{cipReq: []byte{0x01}, result: make(chan requestResult, 1)}
	c.dispatch(req)
	<-req.result

	if got := c.State(); got == StateReady {
		t.Errorf("State() after a transport error = %v, want anything but StateReady", got)
	}
}

func TestCompleteWithoutSinkDoesNotPanic(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1"})
	req := &request{result: make(chan requestResult, 1)}
	c.complete(req, []byte{1}, nil)
	<-req.result
}
