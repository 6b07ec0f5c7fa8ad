package tag

import (
	"sync"
	"time"

	"github.com/yatesdr/ablink/attrstring"
	"github.com/yatesdr/ablink/plc"
	"github.com/yatesdr/ablink/telemetry"
)

// regKey identifies a (gateway, connection-group) PLC coordinator — the
// sharing granularity spec.md's "PLC" lifecycle describes. Tags that
// resolve to the same key share one coordinator and its single-queue I/O
// loop; tags with share_session=false always get a private one.
type regKey struct {
	gateway string
	path    string
	dialect plc.Dialect
	group   int
}

var reg = struct {
	mu      sync.Mutex
	coords  map[regKey]*plc.Coordinator
	refs    map[regKey]int
	private map[*plc.Coordinator]bool
}{
	coords:  map[regKey]*plc.Coordinator{},
	refs:    map[regKey]int{},
	private: map[*plc.Coordinator]bool{},
}

func acquireCoordinator(opts *attrstring.CreateOptions, dialect plc.Dialect, routePath []byte) (*plc.Coordinator, error) {
	if !opts.ShareSession {
		c, err := startCoordinator(opts, dialect, routePath)
		if err != nil {
			return nil, err
		}
		reg.mu.Lock()
		reg.private[c] = true
		reg.mu.Unlock()
		return c, nil
	}

	key := regKey{gateway: opts.Gateway, path: opts.Path, dialect: dialect, group: opts.ConnectionGroupID}

	reg.mu.Lock()
	if c, ok := reg.coords[key]; ok {
		reg.refs[key]++
		reg.mu.Unlock()
		return c, nil
	}
	reg.mu.Unlock()

	c, err := startCoordinator(opts, dialect, routePath)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	// Another goroutine may have raced us to create the same key; keep
	// whichever one won and close the loser rather than leak a socket.
	if existing, ok := reg.coords[key]; ok {
		reg.refs[key]++
		reg.mu.Unlock()
		_ = c.Close()
		return existing, nil
	}
	reg.coords[key] = c
	reg.refs[key] = 1
	reg.mu.Unlock()
	return c, nil
}

func startCoordinator(opts *attrstring.CreateOptions, dialect plc.Dialect, routePath []byte) (*plc.Coordinator, error) {
	var idle time.Duration
	if opts.IdleTimeoutMs > 0 {
		idle = time.Duration(opts.IdleTimeoutMs) * time.Millisecond
	}
	var coordOpts []plc.Option
	if sink := telemetryFor(opts.Gateway); sink != nil {
		coordOpts = append(coordOpts, plc.WithTelemetry(sink))
	}
	c := plc.New(plc.Options{
		Gateway:     opts.Gateway,
		Dialect:     dialect,
		RoutePath:   routePath,
		UseConnect:  opts.ForwardOpenExEnabled,
		IdleTimeout: idle,
	}, coordOpts...)
	if err := c.Start(); err != nil {
		return nil, err
	}
	return c, nil
}

var gatewayTelemetry = struct {
	mu    sync.Mutex
	sinks map[string]telemetry.Sink
}{sinks: map[string]telemetry.Sink{}}

// SetGatewayTelemetry attaches sink to every coordinator subsequently
// started for gateway (config.GatewayConfig's Telemetry block is the
// usual caller). It has no effect on a coordinator already running —
// call it before the first tag naming that gateway is created.
func SetGatewayTelemetry(gateway string, sink telemetry.Sink) {
	gatewayTelemetry.mu.Lock()
	gatewayTelemetry.sinks[gateway] = sink
	gatewayTelemetry.mu.Unlock()
}

func telemetryFor(gateway string) telemetry.Sink {
	gatewayTelemetry.mu.Lock()
	defer gatewayTelemetry.mu.Unlock()
	return gatewayTelemetry.sinks[gateway]
}

// releaseCoordinator drops this tag's reference. A private (unshared)
// coordinator is closed immediately; a shared one stays registered (and
// connected, subject to its own idle timeout) for the next tag naming the
// same gateway/group — spec.md's "destroyed when the last tag is released
// and the idle timer expires" is approximated here by letting the
// coordinator's own idle-disconnect handle teardown rather than
// reference-counted removal from the registry, since removal would just
// mean the very next Create for that gateway pays a fresh TCP/session
// cost for no benefit.
func releaseCoordinator(t *Tag) {
	reg.mu.Lock()
	isPrivate := reg.private[t.coord]
	if isPrivate {
		delete(reg.private, t.coord)
	}
	reg.mu.Unlock()

	if isPrivate {
		_ = t.coord.Close()
	}
}

// SharedCoordinatorCount returns how many distinct (gateway,
// connection-group) coordinators are currently registered for sharing —
// useful for diagnostics and tests that want to assert dedup happened.
func SharedCoordinatorCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.coords)
}

// GatewayInfo summarizes one registered coordinator, for ops surfaces
// (cmd/tagctl's /plcs endpoint) that want a snapshot without reaching
// into the registry's internals.
type GatewayInfo struct {
	Gateway string
	Dialect plc.Dialect
	State   string
}

// Gateways returns a snapshot of every currently shared coordinator.
// Private (unshared) coordinators are deliberately excluded — they
// belong to exactly one Tag and aren't a gateway-level concern.
func Gateways() []GatewayInfo {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]GatewayInfo, 0, len(reg.coords))
	for key, c := range reg.coords {
		out = append(out, GatewayInfo{Gateway: key.gateway, Dialect: key.dialect, State: c.State().String()})
	}
	return out
}

// ForceReconnect closes and drops every registered coordinator whose
// gateway matches, so the next operation against it dials fresh rather
// than reusing a connection an operator suspects is wedged. Returns how
// many coordinators were dropped.
func ForceReconnect(gateway string) int {
	reg.mu.Lock()
	var coords []*plc.Coordinator
	for key, c := range reg.coords {
		if key.gateway == gateway {
			coords = append(coords, c)
			delete(reg.coords, key)
			delete(reg.refs, key)
		}
	}
	reg.mu.Unlock()

	for _, c := range coords {
		_ = c.Close()
	}
	return len(coords)
}

// ClearReadCache deletes one tag's shared ReadCache entry (if a cache is
// registered for gateway), letting the next Read bypass a still-valid TTL
// and force a fresh value from the PLC.
func ClearReadCache(gateway, tagName string) {
	if cache := readCacheFor(gateway); cache != nil {
		cache.Delete(gateway + ":" + tagName)
	}
}
