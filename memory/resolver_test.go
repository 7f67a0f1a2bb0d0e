package memory

import (
	"testing"

	"github.com/kdyn/n64dynarec/state"
)

func TestResolveKseg0DirectMapped(t *testing.T) {
	var cp0 state.CP0
	paddr, fault := Resolve(&cp0, 0x80001000, AccessLoad)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if paddr != 0x1000 {
		t.Fatalf("paddr = %#x, want 0x1000", paddr)
	}
}

func TestResolveKseg1DirectMapped(t *testing.T) {
	var cp0 state.CP0
	paddr, fault := Resolve(&cp0, 0xA0002000, AccessFetch)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if paddr != 0x2000 {
		t.Fatalf("paddr = %#x, want 0x2000", paddr)
	}
}

// Scenario 3 from the end-to-end test list: an unmapped mapped-segment
// address with no matching TLB entry raises a TLB-miss fault carrying
// the offending VA.
func TestResolveMappedNoMatchIsTLBMiss(t *testing.T) {
	var cp0 state.CP0
	_, fault := Resolve(&cp0, 0xC0000000, AccessLoad)
	if fault == nil || fault.Kind != FaultTLBMiss {
		t.Fatalf("fault = %+v, want TLBMiss", fault)
	}
	if fault.VAddr != 0xC0000000 {
		t.Fatalf("fault.VAddr = %#x, want 0xC0000000", fault.VAddr)
	}
	if fault.Kind.ExceptionCode(AccessLoad) != state.ExcTLBLoad {
		t.Fatalf("ExceptionCode = %d, want ExcTLBLoad", fault.Kind.ExceptionCode(AccessLoad))
	}
}

func TestResolveMatchedEntryEvenOddPageSelect(t *testing.T) {
	var cp0 state.CP0
	cp0.EntryHi = 0xC0000000 | 0x42 // VPN2 | ASID
	cp0.EntryLo0 = (0x1234 << 6) | 0x3 // PFN | valid | global
	cp0.EntryLo1 = (0x5678 << 6) | 0x3
	cp0.PageMask = 0
	cp0.WriteTLBEntry(0)

	// Even page of the pair: EntryLo0 applies.
	paddr, fault := Resolve(&cp0, 0xC0000000, AccessLoad)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if paddr != 0x1234000 {
		t.Fatalf("paddr = %#x, want 0x1234000", paddr)
	}

	// Odd page of the pair: EntryLo1 applies.
	paddr, fault = Resolve(&cp0, 0xC0001000, AccessLoad)
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if paddr != 0x5678000 {
		t.Fatalf("paddr = %#x, want 0x5678000", paddr)
	}
}

func TestResolveInvalidEntryFaults(t *testing.T) {
	var cp0 state.CP0
	cp0.EntryHi = 0xC0000000 | 0x7
	cp0.EntryLo0 = 0x0 // not valid
	cp0.EntryLo1 = 0x0
	cp0.WriteTLBEntry(0)

	_, fault := Resolve(&cp0, 0xC0000000, AccessLoad)
	if fault == nil || fault.Kind != FaultTLBInvalid {
		t.Fatalf("fault = %+v, want TLBInvalid", fault)
	}
}

func TestResolveStoreToCleanPageIsModification(t *testing.T) {
	var cp0 state.CP0
	cp0.EntryHi = 0xC0000000 | 0x9
	cp0.EntryLo0 = 0x2 // valid, not dirty
	cp0.EntryLo1 = 0x2
	cp0.WriteTLBEntry(0)

	_, fault := Resolve(&cp0, 0xC0000000, AccessStore)
	if fault == nil || fault.Kind != FaultTLBModification {
		t.Fatalf("fault = %+v, want TLBModification", fault)
	}
	if fault.Kind.ExceptionCode(AccessStore) != state.ExcTLBModification {
		t.Fatalf("ExceptionCode = %d, want ExcTLBModification", fault.Kind.ExceptionCode(AccessStore))
	}
}

func TestResolveGlobalEntryBypassesASID(t *testing.T) {
	var cp0 state.CP0
	cp0.EntryHi = 0xC0000000 | 0x11 // this ASID never matches a later lookup
	cp0.EntryLo0 = (0x1 << 6) | 0x3 // valid + global
	cp0.EntryLo1 = (0x1 << 6) | 0x3
	cp0.WriteTLBEntry(0)

	cp0.EntryHi = 0x99 // change current ASID; global entry must still match
	_, fault := Resolve(&cp0, 0xC0000000, AccessLoad)
	if fault != nil {
		t.Fatalf("unexpected fault on global entry: %+v", fault)
	}
}
