package cip

import "testing"

func TestParseRoutePathEmpty(t *testing.T) {
	path, err := ParseRoutePath("")
	if err != nil {
		t.Fatalf("ParseRoutePath(\"\"): %v", err)
	}
	if path != nil {
		t.Errorf("path = %v, want nil for a direct (unrouted) connection", path)
	}
}

func TestParseRoutePathSinglePair(t *testing.T) {
	path, err := ParseRoutePath("1,0")
	if err != nil {
		t.Fatalf("ParseRoutePath: %v", err)
	}
	want := EPath_t{1, 0}
	if len(path) != len(want) || path[0] != want[0] || path[1] != want[1] {
		t.Errorf("path = %v, want %v", path, want)
	}
}

func TestParseRoutePathMultiHop(t *testing.T) {
	path, err := ParseRoutePath("1, 0, 2, 5")
	if err != nil {
		t.Fatalf("ParseRoutePath: %v", err)
	}
	want := EPath_t{1, 0, 2, 5}
	if len(path) != len(want) {
		t.Fatalf("path len = %d, want %d", len(path), len(want))
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = %d, want %d", i, path[i], want[i])
		}
	}
}

func TestParseRoutePathOddSegmentsRejected(t *testing.T) {
	if _, err := ParseRoutePath("1,0,2"); err == nil {
		t.Fatal("expected an error for an unpaired route segment")
	}
}

func TestParseRoutePathNonNumericRejected(t *testing.T) {
	if _, err := ParseRoutePath("backplane,0"); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}
