// Package memory implements the guest virtual-address resolver (C2):
// kernel unmapped-segment masking plus a 32-entry software TLB walk,
// exactly as emitted code and the interpreter oracle both need it.
package memory

import "github.com/kdyn/n64dynarec/state"

// AccessKind selects which TLB permission bit resolution checks.
type AccessKind uint8

const (
	AccessLoad AccessKind = iota
	AccessStore
	AccessFetch
)

// FaultKind enumerates the TLB exceptions Resolve can raise.
type FaultKind uint8

const (
	FaultNone FaultKind = iota
	FaultTLBMiss
	FaultTLBInvalid
	FaultTLBModification
)

// Fault carries the offending virtual address so the exception
// handler can populate bad_vaddr/context (spec.md §4.2).
type Fault struct {
	Kind  FaultKind
	VAddr uint64
}

// Segment boundaries for the kernel 32-bit compatibility address map
// (kseg0/kseg1 unmapped, kseg2/kuseg mapped). Only the unmapped-vs-
// mapped distinction matters to this resolver; devices attached to
// kseg1 are the bus's concern, not this package's.
const (
	kuSegTop  = 0x80000000
	kSeg0Base = 0x80000000
	kSeg1Base = 0xA0000000
	kSeg2Base = 0xC0000000
)

// Resolve translates a 64-bit guest virtual address to a 32-bit guest
// physical address, or returns a Fault describing why it could not.
func Resolve(cp0 *state.CP0, vaddr uint64, kind AccessKind) (paddr uint32, fault *Fault) {
	v32 := uint32(vaddr)

	switch {
	case v32 >= kSeg0Base && v32 < kSeg1Base:
		// kseg0: cached, unmapped, direct-mapped to physical 0.
		return v32 - kSeg0Base, nil
	case v32 >= kSeg1Base && v32 < kSeg2Base:
		// kseg1: uncached, unmapped, direct-mapped to physical 0.
		return v32 - kSeg1Base, nil
	}

	return resolveMapped(cp0, vaddr, kind)
}

// pageShift fixes the base page size at 4KiB; variable page masks (spec.md §3 TLB
// PageMask field) widen the VPN2 comparison mask per entry.
const pageShift = 12

func resolveMapped(cp0 *state.CP0, vaddr uint64, kind AccessKind) (uint32, *Fault) {
	asid := uint8(cp0.EntryHi & 0xFF)
	vpn2 := vaddr >> (pageShift + 1)

	for i := range cp0.TLB {
		e := &cp0.TLB[i]
		mask := uint64(e.PageMask) >> 13 // 12-bit field, widens VPN2 compare
		entryVPN2 := (e.EntryHi >> (pageShift + 1)) &^ mask
		if (vpn2&^mask) != entryVPN2 {
			continue
		}
		if !e.Global && e.ASID != asid {
			continue
		}

		oddPage := (vaddr>>pageShift)&1 != 0
		lo := e.EntryLo0
		if oddPage {
			lo = e.EntryLo1
		}

		const loValid = 1 << 1
		const loDirty = 1 << 2
		valid := lo&loValid != 0
		if !valid {
			return 0, &Fault{Kind: FaultTLBInvalid, VAddr: vaddr}
		}
		if kind == AccessStore && lo&loDirty == 0 {
			return 0, &Fault{Kind: FaultTLBModification, VAddr: vaddr}
		}

		pfn := (lo >> 6) & 0xFFFFF
		offset := uint32(vaddr) & ((1 << pageShift) - 1)
		paddr := (pfn << pageShift) | offset
		return paddr, nil
	}

	return 0, &Fault{Kind: FaultTLBMiss, VAddr: vaddr}
}

// ExceptionCode maps a FaultKind plus the access kind to the guest
// cause.exception_code value the exception tail must write.
func (f FaultKind) ExceptionCode(kind AccessKind) uint8 {
	switch f {
	case FaultTLBModification:
		return state.ExcTLBModification
	case FaultTLBMiss, FaultTLBInvalid:
		if kind == AccessStore {
			return state.ExcTLBStore
		}
		return state.ExcTLBLoad
	default:
		return 0
	}
}
