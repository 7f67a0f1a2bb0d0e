// Package regalloc implements the linear-scan host register allocator
// (C9): one forward pass over the already-optimized IR list, freeing
// expired registers as it goes, spilling the occupant with the
// furthest next use when none are free, and annotating every IR value
// with {host_reg, spilled, spill_slot} for the emitter to read.
//
// There is no teacher or pack example with a register allocator;
// this is grounded on original_source's IR shape plus the general
// linear-scan shape visible in the wazero wazevo backend files under
// other_examples (reference shape only, not a teacher).
package regalloc

import "github.com/kdyn/n64dynarec/ir"

// NumHostRegs is the number of general-purpose host registers made
// available to the allocator. The emitter reserves the rest (stack
// pointer, frame/state-struct pointer, scratch for calls into C2/C3)
// for its own fixed use and never asks the allocator for them.
const NumHostRegs = 13

// NoHostReg marks a value the allocator chose not to keep in a
// register — constants, which may be materialised at their use sites
// instead (spec.md §4.9 "at the allocator's discretion").
const NoHostReg = -1

// Allocate runs the linear scan over ctx, which must already have had
// Optimize called so DeadCode and LastUse are populated. Dead values
// are skipped entirely; live values get host_reg/spilled/spill_slot.
func Allocate(ctx *ir.Context) {
	a := &allocator{ctx: ctx}
	for r := 0; r < NumHostRegs; r++ {
		a.freeRegs = append(a.freeRegs, r)
		a.regOccupant[r] = NoHostReg
	}

	for i := 0; i < ctx.Len(); i++ {
		v := ctx.Node(i)
		a.expireAt(i)
		if v.DeadCode {
			v.HostReg = NoHostReg
			continue
		}
		if v.Kind == ir.KindSetConstant {
			v.HostReg = NoHostReg
			continue
		}
		if !producesValue(v.Kind) {
			v.HostReg = NoHostReg
			continue
		}
		a.assign(v)
	}
}

type allocator struct {
	ctx         *ir.Context
	freeRegs    []int
	regOccupant [NumHostRegs]int
	spillSlots  int
}

// expireAt frees every host register whose occupant's last use is
// already behind index i.
func (a *allocator) expireAt(i int) {
	for r := 0; r < NumHostRegs; r++ {
		occ := a.regOccupant[r]
		if occ == NoHostReg {
			continue
		}
		if a.ctx.Node(occ).LastUse < i {
			a.regOccupant[r] = NoHostReg
			a.freeRegs = append(a.freeRegs, r)
		}
	}
}

func (a *allocator) assign(v *ir.Value) {
	if len(a.freeRegs) > 0 {
		r := a.freeRegs[len(a.freeRegs)-1]
		a.freeRegs = a.freeRegs[:len(a.freeRegs)-1]
		a.regOccupant[r] = v.Index
		v.HostReg = r
		v.Spilled = false
		return
	}

	worstReg, worstLastUse := -1, -1
	for r := 0; r < NumHostRegs; r++ {
		occ := a.regOccupant[r]
		if occ == NoHostReg {
			continue
		}
		if lu := a.ctx.Node(occ).LastUse; lu > worstLastUse {
			worstLastUse, worstReg = lu, r
		}
	}
	occupant := a.ctx.Node(a.regOccupant[worstReg])
	occupant.Spilled = true
	occupant.SpillSlot = a.spillSlots
	a.spillSlots++

	a.regOccupant[worstReg] = v.Index
	v.HostReg = worstReg
	v.Spilled = false
}

// producesValue reports whether a node's Kind yields a value other
// instructions can consume (and so needs a register at all).
func producesValue(k ir.Kind) bool {
	switch k {
	case ir.KindOr, ir.KindAnd, ir.KindNot, ir.KindXor, ir.KindAdd, ir.KindSub,
		ir.KindShift, ir.KindLoad, ir.KindGetPtr, ir.KindMaskAndCast,
		ir.KindCheckCondition, ir.KindTLBLookup, ir.KindLoadGuestReg,
		ir.KindMultiply, ir.KindDivide:
		return true
	default:
		return false
	}
}
