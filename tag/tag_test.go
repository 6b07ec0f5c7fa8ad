package tag

import (
	"errors"
	"testing"
	"time"

	"github.com/yatesdr/ablink/logix"
	"github.com/yatesdr/ablink/pccc"
	"github.com/yatesdr/ablink/plc"
	"github.com/yatesdr/ablink/plcerr"
)

func TestVariantForCPU(t *testing.T) {
	cases := map[string]Variant{
		"plc5":         VariantPCCC,
		"slc500":       VariantPCCC,
		"micrologix":   VariantPCCC,
		"omron-njnx":   VariantOmron,
		"controllogix": VariantLogix,
		"compactlogix": VariantLogix,
		"":             VariantLogix,
	}
	for cpu, want := range cases {
		if got := variantForCPU(cpu); got != want {
			t.Errorf("variantForCPU(%q) = %v, want %v", cpu, got, want)
		}
	}
}

func TestVariantDialectMapping(t *testing.T) {
	if VariantLogix.dialect() != plc.DialectLogix {
		t.Error("VariantLogix should map to plc.DialectLogix")
	}
	if VariantPCCC.dialect() != plc.DialectPCCC {
		t.Error("VariantPCCC should map to plc.DialectPCCC")
	}
	if VariantOmron.dialect() != plc.DialectOmron {
		t.Error("VariantOmron should map to plc.DialectOmron")
	}
}

func TestVariantByteOrder(t *testing.T) {
	if VariantPCCC.defaultByteOrder().StringSwapChars != true {
		t.Error("PCCC byte order should swap string characters")
	}
	if VariantLogix.defaultByteOrder().StringSwapChars != false {
		t.Error("Logix byte order should not swap string characters")
	}
}

func TestPcccPLCType(t *testing.T) {
	cases := map[string]pccc.PLCType{
		"plc5":       pccc.TypePLC5,
		"micrologix": pccc.TypeMicroLogix,
		"slc500":     pccc.TypeSLC500,
		"":           pccc.TypeSLC500,
	}
	for cpu, want := range cases {
		if got := pcccPLCType(cpu); got != want {
			t.Errorf("pcccPLCType(%q) = %v, want %v", cpu, got, want)
		}
	}
}

func TestReadRejectsConcurrentInFlight(t *testing.T) {
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	tag.readInFlight = true

	err := tag.Read(0)
	if !plcerr.Is(err, plcerr.Pending) {
		t.Errorf("expected Pending error, got %v", err)
	}
}

func TestWriteRejectsConcurrentInFlight(t *testing.T) {
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		return writeTagResponse(logix.SvcWriteTag), nil
	})
	tag.writeInFlight = true

	err := tag.Write(0)
	if !plcerr.Is(err, plcerr.Pending) {
		t.Errorf("expected Pending error, got %v", err)
	}
}

func TestReadCacheHitSkipsRoundTrip(t *testing.T) {
	calls := 0
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		calls++
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	tag.cacheTTL = time.Minute

	if err := tag.Read(0); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	if err := tag.Read(0); err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 round trip (second Read served from cache), got %d", calls)
	}
}

func TestReadCacheExpiresAfterTTL(t *testing.T) {
	calls := 0
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		calls++
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	tag.cacheTTL = time.Nanosecond

	if err := tag.Read(0); err != nil {
		t.Fatalf("first Read: %v", err)
	}
	time.Sleep(time.Millisecond)
	if err := tag.Read(0); err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected cache to expire and trigger a second round trip, got %d calls", calls)
	}
}

func TestWriteInvalidatesCache(t *testing.T) {
	reads := 0
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		if req[0] == logix.SvcWriteTag {
			return writeTagResponse(logix.SvcWriteTag), nil
		}
		reads++
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	tag.cacheTTL = time.Minute
	tag.dataType = logix.TypeDINT // skip the read-before-write probe
	tag.raw = []byte{2, 0, 0, 0}

	if err := tag.Read(0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tag.Read(0); err != nil {
		t.Fatalf("Read after Write: %v", err)
	}
	if reads != 2 {
		t.Errorf("expected Write to invalidate the cache and force a fresh read, got %d reads", reads)
	}
}

func TestWriteProbesUnknownDataTypeForLogix(t *testing.T) {
	var services []byte
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		services = append(services, req[0])
		if req[0] == logix.SvcReadTag {
			return readTagResponse(logix.TypeDINT, []byte{0, 0, 0, 0}), nil
		}
		return writeTagResponse(logix.SvcWriteTag), nil
	})
	tag.raw = []byte{9, 0, 0, 0}
	// dataType left at zero: Write must probe with a Read first.

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(services) != 2 || services[0] != logix.SvcReadTag || services[1] != logix.SvcWriteTag {
		t.Errorf("expected [ReadTag, WriteTag] sequence, got %v", services)
	}
}

func TestWriteSkipsProbeWhenDataTypeKnown(t *testing.T) {
	var services []byte
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		services = append(services, req[0])
		return writeTagResponse(logix.SvcWriteTag), nil
	})
	tag.dataType = logix.TypeDINT
	tag.raw = []byte{9, 0, 0, 0}

	if err := tag.Write(0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(services) != 1 || services[0] != logix.SvcWriteTag {
		t.Errorf("expected a single WriteTag with no probe, got %v", services)
	}
}

func TestStatusReflectsLastOperationError(t *testing.T) {
	sendErr := errors.New("boom")
	tag := newLogixTestTag(func(req []byte) ([]byte, error) {
		return nil, sendErr
	})

	if err := tag.Read(0); err == nil {
		t.Fatal("expected Read to fail")
	}
	if tag.Status() == nil {
		t.Error("Status() should reflect the failed Read")
	}
}

func TestAccessorsGrowBufferOnSet(t *testing.T) {
	tag := newLogixTestTag(nil)
	tag.SetU32(4, 0xDEADBEEF)
	if tag.Size() != 8 {
		t.Fatalf("Size() = %d, want 8 after growing to offset 4", tag.Size())
	}
	if tag.GetU32(4) != 0xDEADBEEF {
		t.Errorf("GetU32(4) = 0x%X, want 0xDEADBEEF", tag.GetU32(4))
	}
}

func TestAccessorOutOfBoundsSetsStatus(t *testing.T) {
	tag := newLogixTestTag(nil)
	tag.raw = []byte{1, 2}

	v := tag.GetU32(10)
	if v != 0 {
		t.Errorf("out-of-bounds GetU32 = %d, want 0", v)
	}
	if !plcerr.Is(tag.Status(), plcerr.OutOfBounds) {
		t.Errorf("Status() = %v, want an OutOfBounds error", tag.Status())
	}
}

func TestGetBitAndSetBit(t *testing.T) {
	tag := newLogixTestTag(nil)
	tag.SetBit(9, true)
	if tag.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (bit 9 is in the second byte)", tag.Size())
	}
	if !tag.GetBit(9) {
		t.Error("GetBit(9) = false, want true")
	}
	if tag.GetBit(8) {
		t.Error("GetBit(8) = true, want false (only bit 9 was set)")
	}
	tag.SetBit(9, false)
	if tag.GetBit(9) {
		t.Error("GetBit(9) after clear = true, want false")
	}
}

func TestSharedCoordinatorCountStartsAtZero(t *testing.T) {
	// Not exhaustive concurrency coverage (that requires a live dial) — just
	// confirms the registry's diagnostic counter reflects an empty registry
	// absent any acquireCoordinator calls in this package's test binary.
	if n := SharedCoordinatorCount(); n != 0 {
		t.Errorf("SharedCoordinatorCount() = %d, want 0", n)
	}
}

func TestForceReconnectOnUnknownGatewayIsANoOp(t *testing.T) {
	if n := ForceReconnect("no-such-gateway-in-registry"); n != 0 {
		t.Errorf("ForceReconnect(unregistered) = %d, want 0", n)
	}
}

func TestClearReadCacheWithoutARegisteredCacheDoesNotPanic(t *testing.T) {
	ClearReadCache("no-such-gateway-in-registry", "SomeTag")
}

func TestReadTimesOutAgainstAStalledGateway(t *testing.T) {
	unblock := make(chan struct{})
	tg := newLogixTestTag(func(req []byte) ([]byte, error) {
		<-unblock
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	defer close(unblock)

	err := tg.Read(10)
	if !plcerr.Is(err, plcerr.Timeout) {
		t.Errorf("expected a Timeout error, got %v", err)
	}
	if !tg.cacheExpireAt.IsZero() {
		t.Error("a timed-out read must not leave a read cache entry in place")
	}
}

func TestAbortStopsAnInFlightRead(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	tg := newLogixTestTag(func(req []byte) ([]byte, error) {
		close(started)
		<-unblock
		return readTagResponse(logix.TypeDINT, []byte{1, 0, 0, 0}), nil
	})
	defer close(unblock)

	done := make(chan error, 1)
	go func() { done <- tg.Read(0) }()

	<-started
	tg.Abort()

	select {
	case err := <-done:
		if !plcerr.Is(err, plcerr.Abort) {
			t.Errorf("expected an Abort error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Abort")
	}
}

func TestAbortWithNothingInFlightIsANoOp(t *testing.T) {
	tg := newLogixTestTag(nil)
	tg.Abort()
}

func TestLockSerializesCallers(t *testing.T) {
	tg := newLogixTestTag(nil)
	tg.Lock()

	unlocked := make(chan struct{})
	go func() {
		tg.Lock()
		close(unlocked)
		tg.Unlock()
	}()

	select {
	case <-unlocked:
		t.Fatal("second Lock should block while the first holder has it")
	case <-time.After(50 * time.Millisecond):
	}

	tg.Unlock()
	select {
	case <-unlocked:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock did not proceed after Unlock")
	}
}
