package cip

import "testing"

func TestBuildMultipleServiceRequestRejectsEmpty(t *testing.T) {
	if _, err := BuildMultipleServiceRequest(nil); err == nil {
		t.Error("expected an error for zero requests")
	}
}

func TestBuildMultipleServiceRequestRejectsTooMany(t *testing.T) {
	reqs := make([]MultiServiceRequest, 201)
	for i := range reqs {
		reqs[i] = MultiServiceRequest{Service: 0x4C}
	}
	if _, err := BuildMultipleServiceRequest(reqs); err == nil {
		t.Error("expected an error for more than 200 requests")
	}
}

func TestMultipleServiceRequestResponseRoundTrip(t *testing.T) {
	pathA, _ := EPath().Symbol("TagA").Build()
	pathB, _ := EPath().Symbol("TagB").Build()

	body, err := BuildMultipleServiceRequest([]MultiServiceRequest{
		{Service: 0x4C, Path: pathA, Data: []byte{0x01, 0x00}},
		{Service: 0x4D, Path: pathB, Data: []byte{0xC3, 0x00, 0x01, 0x00, 0x2A, 0x00, 0x00, 0x00}},
	})
	if err != nil {
		t.Fatalf("BuildMultipleServiceRequest: %v", err)
	}
	if len(body) < 2 || body[0] != 2 {
		t.Fatalf("packed request header = %v, want a leading service count of 2", body[:2])
	}

	// Fake a PLC's reply: [count][offsets...][service|0x80, reserved,
	// status, addl-status-size, data...] per entry, the shape
	// ParseMultipleServiceResponse expects.
	payloads := [][]byte{
		{0x4C | 0x80, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00},
		{0x4D | 0x80, 0x00, 0x00, 0x00},
	}
	headerSize := 2 + len(payloads)*2
	offsets := make([]uint16, len(payloads))
	cur := uint16(headerSize)
	for i, p := range payloads {
		offsets[i] = cur
		cur += uint16(len(p))
	}
	respBody := []byte{byte(len(payloads)), byte(len(payloads) >> 8)}
	for _, off := range offsets {
		respBody = append(respBody, byte(off), byte(off>>8))
	}
	for _, p := range payloads {
		respBody = append(respBody, p...)
	}

	responses, err := ParseMultipleServiceResponse(respBody)
	if err != nil {
		t.Fatalf("ParseMultipleServiceResponse: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if responses[0].Service != 0x4C|0x80 || responses[0].Status != 0 {
		t.Errorf("response[0] = %+v", responses[0])
	}
	if len(responses[0].Data) != 4 || responses[0].Data[0] != 0x2A {
		t.Errorf("response[0].Data = %v, want the DINT value bytes", responses[0].Data)
	}
	if responses[1].Service != 0x4D|0x80 || responses[1].Status != 0 {
		t.Errorf("response[1] = %+v", responses[1])
	}
}

func TestDecomposeRequestRoundTripsWithBuildReadTagRequest(t *testing.T) {
	path, _ := EPath().Symbol("SomeTag").Build()
	req := make([]byte, 0, 2+len(path)+2)
	req = append(req, 0x4C, path.WordLen())
	req = append(req, path...)
	req = append(req, 0x01, 0x00)

	part, ok := DecomposeRequest(req)
	if !ok {
		t.Fatal("DecomposeRequest: ok = false, want true")
	}
	if part.Service != 0x4C {
		t.Errorf("Service = 0x%02X, want 0x4C", part.Service)
	}
	if string(part.Path) != string(path) {
		t.Errorf("Path = %v, want %v", part.Path, path)
	}
	if string(part.Data) != "\x01\x00" {
		t.Errorf("Data = %v, want [0x01 0x00]", part.Data)
	}
}

func TestDecomposeRequestRejectsShortBuffers(t *testing.T) {
	if _, ok := DecomposeRequest(nil); ok {
		t.Error("expected ok = false for an empty request")
	}
	if _, ok := DecomposeRequest([]byte{0x4C, 0xFF}); ok {
		t.Error("expected ok = false when the declared path length overruns the buffer")
	}
}
