// Package tag implements the per-tag state machine: a data buffer, element
// size/count, in-flight/complete flags, a status word, and a vtable of
// (BuildRequest, HandleResponse)-shaped callbacks selected at creation time
// by dialect. It is the library's public surface — everything else (plc,
// cip, eip, logix, pccc, omron) exists to give a Tag somewhere to send its
// requests.
package tag

import (
	"strconv"
	"sync"
	"time"

	"github.com/yatesdr/ablink/attrstring"
	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/pccc"
	"github.com/yatesdr/ablink/plc"
	"github.com/yatesdr/ablink/plcerr"
	"github.com/yatesdr/ablink/wire"
)

// DefaultRequestTimeoutMs is the timeout_ms an API layer should pass to
// Read/Write when the caller hasn't specified one of its own.
const DefaultRequestTimeoutMs = 5000

// Variant selects which dialect's vtable a Tag dispatches through.
type Variant int

const (
	VariantLogix Variant = iota
	VariantPCCC
	VariantOmron
)

func variantForCPU(cpu string) Variant {
	switch cpu {
	case "plc5", "slc500", "micrologix":
		return VariantPCCC
	case "omron-njnx":
		return VariantOmron
	default:
		return VariantLogix
	}
}

func pcccPLCType(cpu string) pccc.PLCType {
	switch cpu {
	case "plc5":
		return pccc.TypePLC5
	case "micrologix":
		return pccc.TypeMicroLogix
	default:
		return pccc.TypeSLC500
	}
}

func (v Variant) dialect() plc.Dialect {
	switch v {
	case VariantPCCC:
		return plc.DialectPCCC
	case VariantOmron:
		return plc.DialectOmron
	default:
		return plc.DialectLogix
	}
}

func (v Variant) defaultByteOrder() wire.ByteOrder {
	if v == VariantPCCC {
		return wire.PLC5ByteOrder
	}
	return wire.LogixByteOrder
}

// vtable is the dispatch table of build/handle callbacks a Tag was created
// with. Unlike the wire-level stack.Layer vtable (reserve/fix-up/process,
// called per packet), this one operates at the tag level: read and write
// each drive as many round trips as fragmentation requires and leave the
// result in t.raw.
type vtable struct {
	read  func(t *Tag) error
	write func(t *Tag) error
}

// Tag is one named region of controller memory: a data buffer plus the
// state needed to read and write it asynchronously through its owning
// PLC coordinator.
type Tag struct {
	Name    string
	Variant Variant

	coord    *plc.Coordinator
	sendFunc func([]byte) ([]byte, error) // defaults to a coord.SendNamed closure; overridable in tests
	vt       vtable
	bo       wire.ByteOrder

	// Addressing, resolved once at creation and never mutated afterward.
	cipPath  cip.EPath_t // Logix/Omron
	pcccAddr *pccc.FileAddress
	pcccSess *pccc.Session
	isRaw    bool

	isBit    bool
	bitIndex int

	mu            sync.Mutex
	raw           []byte
	elemSize      int // 0 = unknown, probed on first read
	elemCount     int
	transOffset   uint32
	readInFlight  bool
	writeInFlight bool
	readComplete  bool
	writeComplete bool
	status        error // nil = OK
	dataType      uint16

	cacheTTL      time.Duration
	cacheExpireAt time.Time

	gateway  string    // for ReadCache keying and telemetry tag-name; set once at creation
	extCache ReadCache // optional shared second-tier cache, nil unless configured

	abortCh    chan struct{} // non-nil only while a Read/Write is in flight; closed by Abort
	deadlineAt time.Time     // zero means no deadline; set at the start of Read/Write

	lock sync.Mutex // held across Lock/Unlock to serialize a caller's critical section
}

// Create parses an attribute string, resolves (lazily creating, if needed)
// the PLC coordinator it names, and returns a ready-to-use Tag. An initial
// read is not performed here — the caller drives that via Read, matching
// spec's "kicks off an initial read when element size is unknown" only in
// the sense that Read will probe and grow the buffer on its first call.
func Create(attrString string) (*Tag, error) {
	opts, err := attrstring.Parse(attrString)
	if err != nil {
		return nil, err
	}
	return CreateFromOptions(opts)
}

// CreateFromOptions is Create without the string-parsing step, for callers
// (e.g. config.PoolConfig-driven setups) that already have structured
// options.
func CreateFromOptions(opts *attrstring.CreateOptions) (*Tag, error) {
	variant := variantForCPU(opts.CPU)

	routePath, err := cip.ParseRoutePath(opts.Path)
	if err != nil {
		return nil, err
	}

	coord, err := acquireCoordinator(opts, variant.dialect(), routePath)
	if err != nil {
		return nil, err
	}

	t := &Tag{
		Name:    opts.Name,
		Variant: variant,
		coord:   coord,
		sendFunc: func(req []byte) ([]byte, error) {
			return coord.SendNamed(opts.Name, req)
		},
		bo:        variant.defaultByteOrder(),
		elemSize:  opts.ElemSize,
		elemCount: opts.ElemCount,
		gateway:   opts.Gateway,
		extCache:  readCacheFor(opts.Gateway),
	}
	if opts.ReadCacheMs > 0 {
		t.cacheTTL = time.Duration(opts.ReadCacheMs) * time.Millisecond
	}
	switch {
	case opts.Name == "@raw":
		t.isRaw = true
	case variant == VariantPCCC:
		addr, err := pccc.ParseAddress(opts.Name)
		if err != nil {
			return nil, err
		}
		t.pcccAddr = addr
		t.isBit = addr.BitNumber >= 0
		t.bitIndex = addr.BitNumber
		t.pcccSess = pccc.NewSession(0, 0, pcccPLCType(opts.CPU))
		if t.elemSize == 0 {
			t.elemSize = addr.ReadSize()
		}
	default:
		parsed, err := cip.ParseSymbolicTag(opts.Name)
		if err != nil {
			return nil, err
		}
		t.cipPath = parsed.Path
		t.isBit = parsed.IsBit
		t.bitIndex = parsed.Bit
	}
	t.vt = newVtable(variant)

	return t, nil
}

// Close releases the tag's reference on its coordinator. A private
// (share_session=false) coordinator is closed here. A shared one is not
// torn down directly — the coordinator idles its own connection down, and
// is reused by the next tag that names the same (gateway, connection-group).
func (t *Tag) Close() error {
	releaseCoordinator(t)
	return nil
}

// Status returns the tag's last operation error, or nil if its last
// operation succeeded (or none has run yet).
func (t *Tag) Status() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Size returns the current data buffer size in bytes.
func (t *Tag) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.raw)
}

// ElemSize returns the per-element size in bytes (0 if not yet known).
func (t *Tag) ElemSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elemSize
}

// ElemCount returns the configured element count.
func (t *Tag) ElemCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elemCount
}

// Raw returns a copy of the tag's current data buffer.
func (t *Tag) Raw() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.raw))
	copy(out, t.raw)
	return out
}

// SetRaw replaces the tag's data buffer wholesale. Used by @raw tags and
// by callers that build a value out-of-band before calling Write.
func (t *Tag) SetRaw(data []byte) {
	t.mu.Lock()
	t.raw = append([]byte(nil), data...)
	t.mu.Unlock()
}

// Read performs a (possibly multi-packet) read and leaves the result in
// the tag's data buffer. Invariant: a tag has at most one of
// read-in-flight/write-in-flight set at a time. timeoutMs bounds the whole
// operation (0 means no deadline); on expiry or Abort, Read returns a
// plcerr.Timeout/plcerr.Abort error and clears the read cache so a stale
// value isn't served on the next call.
func (t *Tag) Read(timeoutMs int) error {
	t.mu.Lock()
	if t.readInFlight || t.writeInFlight {
		t.mu.Unlock()
		return plcerr.New(plcerr.Pending, "tag: %s: operation already in flight", t.Name)
	}
	if t.cacheValidLocked() {
		t.mu.Unlock()
		return nil
	}
	extCache, cacheTTL, key := t.extCache, t.cacheTTL, t.cacheKey()
	t.readInFlight = true
	t.readComplete = false
	t.transOffset = 0
	t.abortCh = make(chan struct{})
	t.setDeadlineLocked(timeoutMs)
	t.mu.Unlock()

	// A shared ReadCache (e.g. RedisCache) lets another process's recent
	// read satisfy this one without a round trip to the gateway at all.
	if cacheTTL > 0 && extCache != nil {
		if data, ok := extCache.Get(key); ok {
			t.mu.Lock()
			t.raw = data
			t.readInFlight = false
			t.readComplete = true
			t.refreshCacheLocked()
			t.abortCh = nil
			t.mu.Unlock()
			return nil
		}
	}

	err := t.vt.read(t)

	t.mu.Lock()
	t.readInFlight = false
	t.readComplete = true
	t.transOffset = 0
	t.status = err
	t.abortCh = nil
	if plcerr.Is(err, plcerr.Timeout) || plcerr.Is(err, plcerr.Abort) {
		t.cacheExpireAt = time.Time{}
	}
	if err == nil {
		t.refreshCacheLocked()
		if cacheTTL > 0 && extCache != nil {
			raw := append([]byte(nil), t.raw...)
			t.mu.Unlock()
			extCache.Set(key, raw, cacheTTL)
			return nil
		}
	}
	t.mu.Unlock()
	return err
}

// Write performs a (possibly multi-packet) write of the tag's current
// data buffer contents. For a tag whose element type is unknown (no
// elem_size attribute, never yet read), Write first performs a read to
// learn the data type — the read-before-write sequence spec.md calls for.
// timeoutMs bounds the whole operation, including that probe read (0 means
// no deadline); see Read for timeout/abort semantics.
func (t *Tag) Write(timeoutMs int) error {
	t.mu.Lock()
	if t.readInFlight || t.writeInFlight {
		t.mu.Unlock()
		return plcerr.New(plcerr.Pending, "tag: %s: operation already in flight", t.Name)
	}
	needsProbe := !t.isRaw && t.Variant == VariantLogix && t.dataType == 0
	t.mu.Unlock()

	if needsProbe {
		if err := t.Read(timeoutMs); err != nil {
			return plcerr.Wrap(plcerr.Write, err, "tag: %s: read-before-write probe", t.Name)
		}
	}

	t.mu.Lock()
	t.writeInFlight = true
	t.writeComplete = false
	t.transOffset = 0
	t.abortCh = make(chan struct{})
	t.setDeadlineLocked(timeoutMs)
	t.mu.Unlock()

	err := t.vt.write(t)

	t.mu.Lock()
	t.writeInFlight = false
	t.writeComplete = true
	t.transOffset = 0
	t.status = err
	t.abortCh = nil
	t.cacheExpireAt = time.Time{} // a write invalidates any cached read
	extCache, key := t.extCache, t.cacheKey()
	t.mu.Unlock()
	if extCache != nil {
		extCache.Delete(key)
	}
	return err
}

// Abort cooperatively cancels the tag's in-flight Read or Write, if any.
// It flips the signal the current send call is racing against rather than
// forcibly killing the request — the underlying coordinator round trip may
// still complete on the wire, but Read/Write returns a plcerr.Abort error
// as soon as the in-flight send notices. A no-op if nothing is in flight.
func (t *Tag) Abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.abortCh == nil {
		return
	}
	select {
	case <-t.abortCh:
	default:
		close(t.abortCh)
	}
}

// Lock acquires the tag's operation lock, serializing callers that need to
// hold a tag across more than one Read/Write without another goroutine's
// request interleaving.
func (t *Tag) Lock() {
	t.lock.Lock()
}

// Unlock releases the lock acquired by Lock.
func (t *Tag) Unlock() {
	t.lock.Unlock()
}

// setDeadlineLocked records the absolute deadline for the operation about
// to start. Caller must hold t.mu. timeoutMs <= 0 means no deadline.
func (t *Tag) setDeadlineLocked(timeoutMs int) {
	if timeoutMs > 0 {
		t.deadlineAt = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	} else {
		t.deadlineAt = time.Time{}
	}
}

// send issues one request/response round trip through the tag's
// coordinator, racing it against the current operation's deadline and
// abort signal so a stuck PLC or an explicit Abort call doesn't leave the
// caller blocked forever.
func (t *Tag) send(req []byte) ([]byte, error) {
	t.mu.Lock()
	abortCh := t.abortCh
	deadline := t.deadlineAt
	t.mu.Unlock()

	select {
	case <-abortCh:
		return nil, plcerr.New(plcerr.Abort, "tag: %s: aborted", t.Name)
	default:
	}
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return nil, plcerr.New(plcerr.Timeout, "tag: %s: timed out", t.Name)
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := t.sendFunc(req)
		ch <- result{data, err}
	}()

	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case res := <-ch:
		return res.data, res.err
	case <-timeoutCh:
		return nil, plcerr.New(plcerr.Timeout, "tag: %s: timed out", t.Name)
	case <-abortCh:
		return nil, plcerr.New(plcerr.Abort, "tag: %s: aborted", t.Name)
	}
}

func (t *Tag) cacheValidLocked() bool {
	if t.cacheTTL <= 0 || t.cacheExpireAt.IsZero() {
		return false
	}
	return time.Now().Before(t.cacheExpireAt)
}

func (t *Tag) refreshCacheLocked() {
	if t.cacheTTL > 0 {
		t.cacheExpireAt = time.Now().Add(t.cacheTTL)
	}
}

func (t *Tag) cacheKey() string {
	return t.gateway + ":" + t.Name
}

// indexedAddress is a small helper the PCCC/logix write paths use to
// describe a chunk number in error messages.
func indexedAddress(name string, n int) string {
	return name + "#" + strconv.Itoa(n)
}
