// Package plc is the coordinator component: one instance owns a gateway's
// TCP socket, EtherNet/IP session, optional CIP connection, and a FIFO of
// in-flight tag requests, serviced by a single background goroutine. No
// teacher package has a direct one-to-one analogue — eip.EipClient and the
// logix/pccc synchronous wrappers call-and-block; this generalizes that
// into an async, per-gateway request queue in the same idiom (a
// mutex-guarded struct, atomic sequence counters, a single dial-with-
// keepalive TCP connect).
package plc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/eip"
	"github.com/yatesdr/ablink/logging"
	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/plcerr"
	"github.com/yatesdr/ablink/telemetry"
)

// maxPackedBytes and maxPackedRequests bound how aggressively dispatchBatch
// packs same-tick Logix requests into one Multiple Service Packet — kept
// well under the 504-byte unconnected message budget (see
// cip.DefaultForwardOpenConfig's connection size) and the format's own
// 200-request ceiling (cip.BuildMultipleServiceRequest).
const (
	maxPackedBytes    = 480
	maxPackedRequests = 20
)

// packableServices are the plain symbolic-tag services whose wire shape
// (service, path-word-len, path, data) cip.DecomposeRequest can split back
// apart cleanly. Anything else — raw passthrough requests, PCCC's Execute
// PCCC envelope, Forward Open/Close — is dispatched standalone.
var packableServices = map[byte]bool{
	logix.SvcReadTag:            true,
	logix.SvcWriteTag:           true,
	logix.SvcReadTagFragmented:  true,
	logix.SvcWriteTagFragmented: true,
	logix.SvcReadModifyWriteTag: true,
}

// State is the coordinator's connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateTCPConnecting
	StateRegistering
	StateForwardOpening
	StateReady
	StateClosing
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateTCPConnecting:
		return "tcp_connecting"
	case StateRegistering:
		return "registering"
	case StateForwardOpening:
		return "forward_opening"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Dialect selects which leaf application protocol a Coordinator's tags
// speak: Logix symbolic services, PCCC typed commands for PLC-5/SLC/
// MicroLogix, or Omron's NJ/NX CIP-path variant.
type Dialect int

const (
	DialectLogix Dialect = iota
	DialectPCCC
	DialectOmron
)

func (d Dialect) String() string {
	switch d {
	case DialectLogix:
		return "logix"
	case DialectPCCC:
		return "pccc"
	case DialectOmron:
		return "omron"
	default:
		return "unknown"
	}
}

// DefaultIdleTimeout is how long a Coordinator waits with no in-flight or
// queued requests before it lets its connection go idle and closes it.
const DefaultIdleTimeout = 5000 * time.Millisecond

// Options configures a Coordinator at construction.
type Options struct {
	Gateway    string // host[:port]
	Dialect    Dialect
	RoutePath  []byte // backplane/CIP route to the target CPU, nil for direct
	UseConnect bool   // Forward-Open a CIP connection instead of unconnected messaging
	VendorID   uint16
	SerialNum  uint32

	IdleTimeout time.Duration // 0 => DefaultIdleTimeout
}

// request is one queued tag operation awaiting its round trip.
type request struct {
	cipReq  []byte
	tagName string // empty for an anonymous Send, set by SendNamed
	result  chan requestResult
}

type requestResult struct {
	data []byte
	err  error
}

// Coordinator owns one gateway connection and serializes every request
// through a single background goroutine, per spec.md's single-queue
// invariant: at most one in-flight request per tag, and every request for
// a gateway shares its session rather than opening one per tag.
type Coordinator struct {
	opts Options

	mu    sync.Mutex
	state State

	client *eip.EipClient
	conn   *cip.Connection // non-nil only when opts.UseConnect

	connLayer *cip.ConnectionLayer

	queue   chan *request
	closing chan struct{}
	closed  sync.Once

	lastActivity atomic.Int64 // unix nanos

	telemetry telemetry.Sink
}

// Option configures a Coordinator beyond its base Options, for settings
// that don't belong in the plain data struct (e.g. an attached sink).
type Option func(*Coordinator)

// WithTelemetry attaches a sink that receives a side-channel Event after
// every completed request this coordinator dispatches. Publish runs
// synchronously on the coordinator's single I/O goroutine, so a sink must
// not block for long — KafkaSink and MQTTSink both hand off to an async
// writer internally for exactly this reason.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(c *Coordinator) { c.telemetry = sink }
}

// New returns a Coordinator for gw, not yet connected. Call Start to bring
// up the background I/O loop.
func New(opts Options, optFuncs ...Option) *Coordinator {
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	c := &Coordinator{
		opts:    opts,
		client:  eip.NewEipClient(opts.Gateway),
		queue:   make(chan *request),
		closing: make(chan struct{}),
	}
	for _, opt := range optFuncs {
		opt(c)
	}
	return c
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	logging.DebugLog("plc", "%s: state -> %s", c.opts.Gateway, s)
}

// Start dials the gateway, brings the session (and CIP connection, if
// configured) up, and launches the background I/O loop. Safe to call once;
// Send will lazily reconnect if the loop exits due to an idle timeout.
func (c *Coordinator) Start() error {
	if err := c.connect(); err != nil {
		return err
	}
	go c.loop()
	return nil
}

func (c *Coordinator) connect() error {
	c.setState(StateTCPConnecting)
	if err := c.client.Connect(); err != nil {
		c.setState(StateDisconnected)
		return plcerr.Wrap(plcerr.BadConnection, err, "plc: %s: connect", c.opts.Gateway)
	}

	c.setState(StateRegistering)
	// Connect() already performs RegisterSession internally; nothing further
	// to do here beyond the state transition matching spec.md's machine.

	if c.opts.UseConnect {
		c.setState(StateForwardOpening)
		if err := c.forwardOpen(); err != nil {
			c.setState(StateDisconnected)
			return err
		}
		c.connLayer = cip.NewConnectedLayer(c.client, c.conn)
	} else {
		c.connLayer = cip.NewConnectionLayer(c.client, c.opts.RoutePath)
	}

	c.lastActivity.Store(time.Now().UnixNano())
	c.setState(StateReady)
	return nil
}

func (c *Coordinator) forwardOpen() error {
	cfg := cip.DefaultForwardOpenConfig()
	cfg.ConnectionPath = c.opts.RoutePath
	if c.opts.VendorID != 0 {
		cfg.VendorID = c.opts.VendorID
	}
	if c.opts.SerialNum != 0 {
		cfg.OriginatorSerial = c.opts.SerialNum
	}

	reqData, connSerial, err := cip.BuildForwardOpenRequest(cfg)
	if err != nil {
		return plcerr.Wrap(plcerr.Encode, err, "plc: %s: build Forward Open", c.opts.Gateway)
	}

	cpf := eip.EipCommonPacket{Items: []eip.EipCommonPacketItem{
		{TypeId: eip.CpfAddressNullId, Length: 0, Data: nil},
		{TypeId: eip.CpfUnconnectedMessageId, Length: uint16(len(reqData)), Data: reqData},
	}}
	resp, err := c.client.SendRRData(cpf)
	if err != nil {
		return plcerr.Wrap(plcerr.BadConnection, err, "plc: %s: Forward Open", c.opts.Gateway)
	}
	if len(resp.Items) < 2 {
		return plcerr.New(plcerr.BadReply, "plc: %s: Forward Open: expected 2 CPF items, got %d", c.opts.Gateway, len(resp.Items))
	}

	reply := resp.Items[1].Data
	if len(reply) < 4 {
		return plcerr.New(plcerr.TooSmall, "plc: %s: Forward Open reply too short", c.opts.Gateway)
	}
	status := reply[2]
	if status != 0 {
		return plcerr.New(plcerr.BadConnection, "plc: %s: Forward Open failed: status=0x%02X", c.opts.Gateway, status)
	}

	fo, err := cip.ParseForwardOpenResponse(reply[4:])
	if err != nil {
		return plcerr.Wrap(plcerr.Decode, err, "plc: %s: parse Forward Open response", c.opts.Gateway)
	}

	c.conn = &cip.Connection{
		OTConnID:     fo.OTConnectionID,
		TOConnID:     fo.TOConnectionID,
		SerialNumber: connSerial,
		VendorID:     cfg.VendorID,
		OrigSerial:   cfg.OriginatorSerial,
	}
	return nil
}

// Send enqueues a bare CIP request and blocks until its response arrives
// (or the coordinator errors out). It is the Requester the logix/pccc leaf
// functions are built against.
func (c *Coordinator) Send(cipReq []byte) ([]byte, error) {
	return c.SendNamed("", cipReq)
}

// SendNamed is Send with a tag name attached for telemetry purposes — the
// published Event carries it, where a bare Send leaves it blank.
func (c *Coordinator) SendNamed(tagName string, cipReq []byte) ([]byte, error) {
	req := &request{cipReq: cipReq, tagName: tagName, result: make(chan requestResult, 1)}
	select {
	case c.queue <- req:
	case <-c.closing:
		return nil, plcerr.New(plcerr.Abort, "plc: %s: coordinator closed", c.opts.Gateway)
	}

	res := <-req.result
	return res.data, res.err
}

// loop is the single background goroutine that owns the wire: it pulls
// requests off the queue one at a time (enforcing at-most-one-in-flight
// for the whole gateway, the simplest correct serialization) and idles the
// connection down after opts.IdleTimeout with nothing queued. Idling
// closes the socket but does not stop the loop — the next queued request
// reconnects lazily via dispatch. Only Close stops the loop.
func (c *Coordinator) loop() {
	timer := time.NewTimer(c.opts.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-c.closing:
			c.disconnect()
			return

		case req := <-c.queue:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			c.dispatchBatch(c.drainQueue(req))
			c.lastActivity.Store(time.Now().UnixNano())
			timer.Reset(c.opts.IdleTimeout)

		case <-timer.C:
			if c.State() == StateReady {
				logging.DebugLog("plc", "%s: idle for %s, disconnecting", c.opts.Gateway, c.opts.IdleTimeout)
				c.disconnect()
			}
			timer.Reset(c.opts.IdleTimeout)
		}
	}
}

// drainQueue collects any requests already waiting behind first without
// blocking, so dispatchBatch can consider packing them into one Multiple
// Service Packet instead of round-tripping each alone.
func (c *Coordinator) drainQueue(first *request) []*request {
	batch := []*request{first}
	for len(batch) < maxPackedRequests {
		select {
		case req := <-c.queue:
			batch = append(batch, req)
		default:
			return batch
		}
	}
	return batch
}

// dispatchBatch packs whichever requests in batch are eligible — Logix
// dialect, plain symbolic-service requests, within the size cap — into one
// Multiple Service Packet, and dispatches everything else individually.
// This is spec.md §4.3's "Packing": every layer reserves space bottom-up,
// so a batch that doesn't fit the cap shrinks rather than erroring.
func (c *Coordinator) dispatchBatch(batch []*request) {
	if c.opts.Dialect != DialectLogix || len(batch) < 2 {
		for _, req := range batch {
			c.dispatch(req)
		}
		return
	}

	packedReqs, parts, solo := splitPackable(batch)
	if len(packedReqs) < 2 {
		// Packing only one request adds overhead for nothing; fall back to
		// dispatching every request in the batch standalone.
		for _, req := range batch {
			c.dispatch(req)
		}
		return
	}

	c.dispatchPacked(packedReqs, parts)
	for _, req := range solo {
		c.dispatch(req)
	}
}

// splitPackable partitions batch into the requests that decompose into a
// plain symbolic-service shape cip.DecomposeRequest understands and fit
// within maxPackedBytes (packedReqs/parts, same length and order) versus
// everything else (solo). Pure and side-effect-free so the packing
// decision can be tested without a live coordinator.
func splitPackable(batch []*request) (packedReqs []*request, parts []cip.MultiServiceRequest, solo []*request) {
	size := 0
	for _, req := range batch {
		part, ok := cip.DecomposeRequest(req.cipReq)
		partSize := 2 + len(part.Path) + len(part.Data)
		if !ok || !packableServices[part.Service] || len(packedReqs) >= maxPackedRequests || size+partSize > maxPackedBytes {
			solo = append(solo, req)
			continue
		}
		size += partSize
		packedReqs = append(packedReqs, req)
		parts = append(parts, part)
	}
	return packedReqs, parts, solo
}

// dispatchPacked sends reqs/parts as a single Multiple Service Packet and
// fans the PLC's per-service replies back out to each waiting caller.
func (c *Coordinator) dispatchPacked(reqs []*request, parts []cip.MultiServiceRequest) {
	fail := func(err error) {
		for _, req := range reqs {
			c.complete(req, nil, err)
		}
	}

	if c.State() != StateReady {
		if err := c.connect(); err != nil {
			fail(err)
			return
		}
	}

	path, err := cip.EPath().Class(cip.ClassMessageRouter).Instance(cip.InstanceMessageRouter).Build()
	if err != nil {
		fail(plcerr.Wrap(plcerr.Encode, err, "plc: %s: Message Router path", c.opts.Gateway))
		return
	}
	body, err := cip.BuildMultipleServiceRequest(parts)
	if err != nil {
		fail(plcerr.Wrap(plcerr.Encode, err, "plc: %s: pack Multiple Service Packet", c.opts.Gateway))
		return
	}
	cipReq := make([]byte, 0, 2+len(path)+len(body))
	cipReq = append(cipReq, cip.SvcMultipleServicePacket, path.WordLen())
	cipReq = append(cipReq, path...)
	cipReq = append(cipReq, body...)

	wrapped, err := c.connLayer.FixUpRequest(cipReq)
	if err != nil {
		fail(plcerr.Wrap(plcerr.Encode, err, "plc: %s: FixUpRequest", c.opts.Gateway))
		return
	}

	raw, err := c.connLayer.Transact(wrapped)
	if err != nil {
		if plcerr.KindOf(err) == plcerr.BadConnection {
			c.restart()
		}
		fail(err)
		return
	}

	data, err := c.connLayer.ProcessResponse(raw)
	if err != nil {
		fail(err)
		return
	}
	if len(data) < 4 {
		fail(plcerr.New(plcerr.BadReply, "plc: %s: Multiple Service Packet reply too short", c.opts.Gateway))
		return
	}
	addlStatusSize := int(data[3]) * 2
	bodyStart := 4 + addlStatusSize
	if bodyStart > len(data) {
		fail(plcerr.New(plcerr.BadReply, "plc: %s: Multiple Service Packet reply too short for its own status", c.opts.Gateway))
		return
	}

	replies, err := cip.ParseMultipleServiceResponse(data[bodyStart:])
	if err != nil {
		fail(plcerr.Wrap(plcerr.BadReply, err, "plc: %s: parse Multiple Service Packet reply", c.opts.Gateway))
		return
	}
	if len(replies) != len(reqs) {
		fail(plcerr.New(plcerr.BadReply, "plc: %s: Multiple Service Packet returned %d replies for %d requests", c.opts.Gateway, len(replies), len(reqs)))
		return
	}
	for i, req := range reqs {
		c.complete(req, assembleSingleReply(replies[i]), nil)
	}
}

// assembleSingleReply re-wraps one Multiple Service Packet reply entry in
// the same [service|0x80][reserved][status][addl-status-size]... shape
// ProcessResponse returns for a standalone request, so the logix package's
// response parsers don't need to know their request was ever packed.
func assembleSingleReply(r cip.MultiServiceResponse) []byte {
	out := make([]byte, 0, 4+len(r.ExtStatus)+len(r.Data))
	out = append(out, r.Service, 0x00, r.Status, byte(len(r.ExtStatus)/2))
	out = append(out, r.ExtStatus...)
	out = append(out, r.Data...)
	return out
}

func (c *Coordinator) dispatch(req *request) {
	if c.State() != StateReady {
		if err := c.connect(); err != nil {
			c.complete(req, nil, err)
			return
		}
	}

	wrapped, err := c.connLayer.FixUpRequest(req.cipReq)
	if err != nil {
		c.complete(req, nil, plcerr.Wrap(plcerr.Encode, err, "plc: %s: FixUpRequest", c.opts.Gateway))
		return
	}

	raw, err := c.connLayer.Transact(wrapped)
	if err != nil {
		if plcerr.KindOf(err) == plcerr.BadConnection {
			c.restart()
		}
		c.complete(req, nil, err)
		return
	}

	data, err := c.connLayer.ProcessResponse(raw)
	c.complete(req, data, err)
}

// restart tears the connection down in response to a transport-class
// error from Transact, per the ready -- socket error --> restarting
// transition: the next dispatch finds the state isn't StateReady and
// reconnects on demand rather than retrying the same dead net.Conn.
func (c *Coordinator) restart() {
	c.setState(StateRestarting)
	if c.conn != nil {
		c.forwardClose()
		c.conn = nil
	}
	_ = c.client.Disconnect()
	c.setState(StateDisconnected)
}

// complete delivers a request's result to its waiting caller and, if a
// sink is attached, publishes a side-channel Event describing it. The
// publish never affects req.result — a slow or failing sink cannot delay
// or corrupt the actual read/write outcome.
func (c *Coordinator) complete(req *request, data []byte, err error) {
	req.result <- requestResult{data: data, err: err}

	if c.telemetry == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = err.Error()
	}
	c.telemetry.Publish(telemetry.Event{
		Gateway:   c.opts.Gateway,
		TagName:   req.tagName,
		Value:     data,
		Status:    status,
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) disconnect() {
	c.setState(StateClosing)
	if c.conn != nil {
		c.forwardClose()
		c.conn = nil
	}
	_ = c.client.Disconnect()
	c.setState(StateDisconnected)
}

func (c *Coordinator) forwardClose() {
	data, err := cip.BuildForwardCloseRequest(c.conn, c.opts.RoutePath)
	if err != nil {
		logging.DebugLog("plc", "%s: BuildForwardCloseRequest: %v", c.opts.Gateway, err)
		return
	}
	cpf := eip.EipCommonPacket{Items: []eip.EipCommonPacketItem{
		{TypeId: eip.CpfAddressNullId, Length: 0, Data: nil},
		{TypeId: eip.CpfUnconnectedMessageId, Length: uint16(len(data)), Data: data},
	}}
	if _, err := c.client.SendRRData(cpf); err != nil {
		logging.DebugLog("plc", "%s: Forward Close: %v", c.opts.Gateway, err)
	}
}

// Close shuts the coordinator down, closing any CIP connection and the
// underlying socket.
func (c *Coordinator) Close() error {
	c.closed.Do(func() { close(c.closing) })
	return nil
}

// Identity queries the target's EIP ListIdentity record (vendor, device
// type, product name, serial, revision) for diagnostics.
func (c *Coordinator) Identity() (*eip.Identity, error) {
	idents, err := c.client.ListIdentityTCP()
	if err != nil {
		return nil, plcerr.Wrap(plcerr.Read, err, "plc: %s: Identity", c.opts.Gateway)
	}
	if len(idents) == 0 {
		return nil, plcerr.New(plcerr.NoData, "plc: %s: Identity: no identity returned", c.opts.Gateway)
	}
	return &idents[0], nil
}
