package plc

import (
	"testing"

	"github.com/yatesdr/ablink/cip"
	"github.com/yatesdr/ablink/logix"
)

func readTagCipReq(t *testing.T, tagName string) []byte {
	t.Helper()
	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		t.Fatalf("building path for %q: %v", tagName, err)
	}
	req := make([]byte, 0, 2+len(path)+2)
	req = append(req, logix.SvcReadTag, path.WordLen())
	req = append(req, path...)
	req = append(req, 0x01, 0x00)
	return req
}

func TestSplitPackableGroupsCompatibleRequests(t *testing.T) {
	reqs := []*request{
		{cipReq: readTagCipReq(t, "TagA")},
		{cipReq: readTagCipReq(t, "TagB")},
		{cipReq: []byte{0xAB, 0xCD, 0xEF}}, // not a decomposable shape
	}

	packed, parts, solo := splitPackable(reqs)
	if len(packed) != 2 || len(parts) != 2 {
		t.Fatalf("packed = %d reqs / %d parts, want 2/2", len(packed), len(parts))
	}
	if len(solo) != 1 || solo[0] != reqs[2] {
		t.Fatalf("solo = %v, want just the undecomposable request", solo)
	}
	if parts[0].Service != logix.SvcReadTag || parts[1].Service != logix.SvcReadTag {
		t.Errorf("packed parts carry the wrong service: %+v", parts)
	}
}

func TestSplitPackableRejectsUnlistedServices(t *testing.T) {
	path, _ := cip.EPath().Class(0x01).Instance(1).Build()
	forwardOpenShaped := append([]byte{0x54, path.WordLen()}, path...)

	packed, _, solo := splitPackable([]*request{{cipReq: forwardOpenShaped}})
	if len(packed) != 0 {
		t.Error("a non-whitelisted service must not be packed")
	}
	if len(solo) != 1 {
		t.Fatalf("expected the request to fall back to solo dispatch, got %v", solo)
	}
}

func TestSplitPackableStopsAtTheSizeCap(t *testing.T) {
	var reqs []*request
	for i := 0; i < maxPackedRequests*2; i++ {
		reqs = append(reqs, &request{cipReq: readTagCipReq(t, "Tag")})
	}

	packed, parts, solo := splitPackable(reqs)
	if len(packed) == 0 || len(packed) == len(reqs) {
		t.Fatalf("expected the cap to both include some requests and exclude some, got %d of %d packed", len(packed), len(reqs))
	}
	if len(packed)+len(solo) != len(reqs) {
		t.Errorf("packed+solo = %d, want %d (every request accounted for)", len(packed)+len(solo), len(reqs))
	}
	if len(parts) != len(packed) {
		t.Errorf("parts = %d, want one per packed request (%d)", len(parts), len(packed))
	}
}

func TestAssembleSingleReplyMatchesStandaloneShape(t *testing.T) {
	reply := assembleSingleReply(cip.MultiServiceResponse{
		Service: logix.SvcReadTag | 0x80,
		Status:  0,
		Data:    []byte{0xC3, 0x00, 0x2A, 0x00, 0x00, 0x00},
	})
	if len(reply) < 4 {
		t.Fatalf("reply = %v, too short", reply)
	}
	if reply[0] != logix.SvcReadTag|0x80 {
		t.Errorf("reply[0] = 0x%02X, want the reply-service byte", reply[0])
	}
	if reply[2] != 0 {
		t.Errorf("reply[2] (status) = 0x%02X, want 0", reply[2])
	}
	if reply[3] != 0 {
		t.Errorf("reply[3] (addl status size) = %d, want 0 with no ExtStatus", reply[3])
	}
	if string(reply[4:]) != "\xC3\x00\x2A\x00\x00\x00" {
		t.Errorf("reply data = %v, want the original Data bytes", reply[4:])
	}
}

func TestDispatchBatchFallsBackToSoloForNonLogixDialect(t *testing.T) {
	c := New(Options{Gateway: "10.0.0.1", Dialect: DialectPCCC})
	c.setState(StateReady)
	c.connLayer = cip.NewConnectionLayer(c.client, nil)

	reqs := []*request{
		{cipReq: []byte{0x01}, result: make(chan requestResult, 1)},
		{cipReq: []byte{0x01}, result: make(chan requestResult, 1)},
	}
	c.dispatchBatch(reqs)

	for _, req := range reqs {
		<-req.result // dispatch() was called per-request; each must have completed
	}
}
