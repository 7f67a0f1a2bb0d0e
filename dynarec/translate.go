// This file is the block translator: it walks a sequence of
// already-decoded guest instructions and emits the equivalent IR into
// a *ir.Context, one decoder.Decoded at a time. Anything it cannot
// express statically (register-indirect jumps, MULT/DIV/HI/LO,
// coprocessor register transfers, traps, SYSCALL/BREAK) is reported
// back to the dispatcher as an unsupported error from translateOne so
// it can fall back to interp.Step for that instruction instead.
package dynarec

import (
	"github.com/kdyn/n64dynarec/decoder"
	"github.com/kdyn/n64dynarec/ir"
	"github.com/kdyn/n64dynarec/state"
)

// unsupported reports an opcode translateOne will not lower to IR,
// so the dispatcher must fall back to the interpreter for it.
type unsupported struct {
	op decoder.Op
}

func (u unsupported) Error() string { return "dynarec: opcode not supported statically" }

// translateOne emits the IR for one non-control-flow guest
// instruction at pc. Branches and jumps are handled by the
// dispatcher directly (it needs to see the delay slot), so this
// function is never called with a branch/jump Op.
func translateOne(ctx *ir.Context, d decoder.Decoded, pc uint32) error {
	switch d.Op {
	case decoder.OpReserved:
		return unsupported{d.Op}

	case decoder.OpADD, decoder.OpADDU:
		return translateAddSub32(ctx, d, true, d.Op == decoder.OpADD)
	case decoder.OpSUB, decoder.OpSUBU:
		return translateAddSub32(ctx, d, false, d.Op == decoder.OpSUB)
	case decoder.OpDADD, decoder.OpDADDU:
		return translateAddSub64(ctx, d, true, d.Op == decoder.OpDADD)
	case decoder.OpDSUB, decoder.OpDSUBU:
		return translateAddSub64(ctx, d, false, d.Op == decoder.OpDSUB)

	case decoder.OpAND, decoder.OpOR, decoder.OpXOR, decoder.OpNOR:
		return translateLogical(ctx, d)
	case decoder.OpSLT, decoder.OpSLTU:
		return translateSlt(ctx, d, d.Op == decoder.OpSLT)

	case decoder.OpADDI, decoder.OpADDIU:
		return translateAddImm32(ctx, d, d.Op == decoder.OpADDI)
	case decoder.OpDADDI, decoder.OpDADDIU:
		return translateAddImm64(ctx, d, d.Op == decoder.OpDADDI)
	case decoder.OpSLTI, decoder.OpSLTIU:
		return translateSltImm(ctx, d, d.Op == decoder.OpSLTI)
	case decoder.OpANDI, decoder.OpORI, decoder.OpXORI:
		return translateLogicalImm(ctx, d)
	case decoder.OpLUI:
		return translateLui(ctx, d)

	case decoder.OpSLL, decoder.OpSRL, decoder.OpSRA,
		decoder.OpSLLV, decoder.OpSRLV, decoder.OpSRAV,
		decoder.OpDSLL, decoder.OpDSRL, decoder.OpDSRA,
		decoder.OpDSLLV, decoder.OpDSRLV, decoder.OpDSRAV,
		decoder.OpDSLL32, decoder.OpDSRL32, decoder.OpDSRA32:
		return translateShift(ctx, d)

	case decoder.OpLB, decoder.OpLBU, decoder.OpLH, decoder.OpLHU,
		decoder.OpLW, decoder.OpLWU, decoder.OpLD:
		return translateLoad(ctx, d)
	case decoder.OpSB, decoder.OpSH, decoder.OpSW, decoder.OpSD:
		return translateStore(ctx, d)

	case decoder.OpCACHE:
		return nil // no-op: no self-modifying-code i-cache simulation (Non-goals)

	default:
		return unsupported{d.Op}
	}
}

// isUnsupported reports whether err came from translateOne declining
// an opcode (as opposed to an ir.ErrCacheOverflow or similar).
func isUnsupported(err error) bool {
	_, ok := err.(unsupported)
	return ok
}

func loadRS(ctx *ir.Context, d decoder.Decoded) (int, error) {
	v, err := ctx.LoadGuestReg(d.RS)
	if err != nil {
		return 0, err
	}
	return v.Index, nil
}

func loadRT(ctx *ir.Context, d decoder.Decoded) (int, error) {
	v, err := ctx.LoadGuestReg(d.RT)
	if err != nil {
		return 0, err
	}
	return v.Index, nil
}

// translateAddSub32 emits ADD/ADDU/SUB/SUBU: 64-bit arithmetic on the
// full register values, truncated and sign-extended to 32 bits
// (MIPS III's "32-bit result is undefined if it does not sign-extend"
// rule, spec.md §4.9). The trapping forms additionally detect signed
// 32-bit overflow and emit a guest exception early-out.
func translateAddSub32(ctx *ir.Context, d decoder.Decoded, isAdd, traps bool) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	b, err := loadRT(ctx, d)
	if err != nil {
		return err
	}

	var wide *ir.Value
	if isAdd {
		wide, err = ctx.EmitAdd(ir.TypeU64, a, b)
	} else {
		wide, err = ctx.EmitSub(ir.TypeU64, a, b)
	}
	if err != nil {
		return err
	}

	result, err := ctx.EmitMaskAndCast(ir.TypeS32, wide.Index)
	if err != nil {
		return err
	}

	if traps {
		if err := emitOverflowCheck32(ctx, a, b, result.Index, isAdd); err != nil {
			return err
		}
	}

	ctx.BindGuestReg(d.RD, result.Index)
	return nil
}

// translateAddSub64 emits DADD/DADDU/DSUB/DSUBU: full 64-bit
// arithmetic, no truncation. DADD/DSUB additionally trap on signed
// 64-bit overflow.
func translateAddSub64(ctx *ir.Context, d decoder.Decoded, isAdd, traps bool) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	b, err := loadRT(ctx, d)
	if err != nil {
		return err
	}

	var result *ir.Value
	if isAdd {
		result, err = ctx.EmitAdd(ir.TypeU64, a, b)
	} else {
		result, err = ctx.EmitSub(ir.TypeU64, a, b)
	}
	if err != nil {
		return err
	}

	if traps {
		if err := emitOverflowCheck64(ctx, a, b, result.Index, isAdd); err != nil {
			return err
		}
	}

	ctx.BindGuestReg(d.RD, result.Index)
	return nil
}

// emitOverflowCheck32/64 emit the ADD/SUB signed-overflow test and the
// conditional fault exit. Overflow happened iff the operand signs
// agree (for ADD: a and b share a sign; for SUB: a and b differ) and
// the result's sign differs from the operand(s) that predict it — the
// standard two's-complement overflow formula:
//
//	add: overflow = ((a ^ result) & (b ^ result)) < 0
//	sub: overflow = ((a ^ b) & (a ^ result)) < 0
//
// result must already be the truncated/sign-extended value at the
// destination width so the sign-bit test lines up.
func emitOverflowCheck32(ctx *ir.Context, a, b, result int, isAdd bool) error {
	return emitOverflowCheck(ctx, ir.TypeS32, a, b, result, isAdd)
}

func emitOverflowCheck64(ctx *ir.Context, a, b, result int, isAdd bool) error {
	return emitOverflowCheck(ctx, ir.TypeS64, a, b, result, isAdd)
}

func emitOverflowCheck(ctx *ir.Context, typ ir.ValueType, a, b, result int, isAdd bool) error {
	var left, right int
	if isAdd {
		xa, err := ctx.EmitXor(typ, a, result)
		if err != nil {
			return err
		}
		xb, err := ctx.EmitXor(typ, b, result)
		if err != nil {
			return err
		}
		left, right = xa.Index, xb.Index
	} else {
		xab, err := ctx.EmitXor(typ, a, b)
		if err != nil {
			return err
		}
		xar, err := ctx.EmitXor(typ, a, result)
		if err != nil {
			return err
		}
		left, right = xab.Index, xar.Index
	}

	masked, err := ctx.EmitAnd(typ, left, right)
	if err != nil {
		return err
	}
	zero, err := ctx.EmitConstant(typ, 0)
	if err != nil {
		return err
	}
	cond, err := ctx.EmitCheckCondition(ir.PredLTS, masked.Index, zero.Index)
	if err != nil {
		return err
	}
	_, err = ctx.EmitFaultBlockExit(cond.Index, state.ExcOverflow)
	return err
}

func translateLogical(ctx *ir.Context, d decoder.Decoded) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	b, err := loadRT(ctx, d)
	if err != nil {
		return err
	}

	var result *ir.Value
	switch d.Op {
	case decoder.OpAND:
		result, err = ctx.EmitAnd(ir.TypeU64, a, b)
	case decoder.OpOR:
		result, err = ctx.EmitOr(ir.TypeU64, a, b)
	case decoder.OpXOR:
		result, err = ctx.EmitXor(ir.TypeU64, a, b)
	case decoder.OpNOR:
		or, oerr := ctx.EmitOr(ir.TypeU64, a, b)
		if oerr != nil {
			return oerr
		}
		result, err = ctx.EmitNot(ir.TypeU64, or.Index)
	}
	if err != nil {
		return err
	}
	ctx.BindGuestReg(d.RD, result.Index)
	return nil
}

func translateSlt(ctx *ir.Context, d decoder.Decoded, signed bool) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	b, err := loadRT(ctx, d)
	if err != nil {
		return err
	}
	pred := ir.PredLTU
	if signed {
		pred = ir.PredLTS
	}
	result, err := ctx.EmitCheckCondition(pred, a, b)
	if err != nil {
		return err
	}
	ctx.BindGuestReg(d.RD, result.Index)
	return nil
}

func translateAddImm32(ctx *ir.Context, d decoder.Decoded, traps bool) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	imm, err := ctx.EmitConstant(ir.TypeU64, uint64(int64(d.Imm16)))
	if err != nil {
		return err
	}
	wide, err := ctx.EmitAdd(ir.TypeU64, a, imm.Index)
	if err != nil {
		return err
	}
	result, err := ctx.EmitMaskAndCast(ir.TypeS32, wide.Index)
	if err != nil {
		return err
	}
	if traps {
		if err := emitOverflowCheck32(ctx, a, imm.Index, result.Index, true); err != nil {
			return err
		}
	}
	ctx.BindGuestReg(d.RT, result.Index)
	return nil
}

func translateAddImm64(ctx *ir.Context, d decoder.Decoded, traps bool) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	imm, err := ctx.EmitConstant(ir.TypeU64, uint64(int64(d.Imm16)))
	if err != nil {
		return err
	}
	result, err := ctx.EmitAdd(ir.TypeU64, a, imm.Index)
	if err != nil {
		return err
	}
	if traps {
		if err := emitOverflowCheck64(ctx, a, imm.Index, result.Index, true); err != nil {
			return err
		}
	}
	ctx.BindGuestReg(d.RT, result.Index)
	return nil
}

func translateSltImm(ctx *ir.Context, d decoder.Decoded, signed bool) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	// SLTI and SLTIU both sign-extend the immediate (only the
	// comparison's signedness differs between them).
	imm, err := ctx.EmitConstant(ir.TypeU64, uint64(int64(d.Imm16)))
	if err != nil {
		return err
	}
	pred := ir.PredLTU
	if signed {
		pred = ir.PredLTS
	}
	result, err := ctx.EmitCheckCondition(pred, a, imm.Index)
	if err != nil {
		return err
	}
	ctx.BindGuestReg(d.RT, result.Index)
	return nil
}

func translateLogicalImm(ctx *ir.Context, d decoder.Decoded) error {
	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}
	imm, err := ctx.EmitConstant(ir.TypeU64, uint64(d.Imm16U))
	if err != nil {
		return err
	}
	var result *ir.Value
	switch d.Op {
	case decoder.OpANDI:
		result, err = ctx.EmitAnd(ir.TypeU64, a, imm.Index)
	case decoder.OpORI:
		result, err = ctx.EmitOr(ir.TypeU64, a, imm.Index)
	case decoder.OpXORI:
		result, err = ctx.EmitXor(ir.TypeU64, a, imm.Index)
	}
	if err != nil {
		return err
	}
	ctx.BindGuestReg(d.RT, result.Index)
	return nil
}

func translateLui(ctx *ir.Context, d decoder.Decoded) error {
	result, err := ctx.EmitConstant(ir.TypeU64, uint64(int64(int32(uint32(d.Imm16U)<<16))))
	if err != nil {
		return err
	}
	ctx.BindGuestReg(d.RT, result.Index)
	return nil
}

// translateShift emits the shift family. 32-bit forms operate on the
// low 32 bits and sign-extend the (always 32-bit) result; 64-bit
// forms operate on the full register. *V forms take the shift amount
// from rs&0x3f (or &0x1f for the 32-bit forms); the DSLL32/DSRL32/
// DSRA32 forms add a fixed 32 to the shamt.
func translateShift(ctx *ir.Context, d decoder.Decoded) error {
	value, err := loadRT(ctx, d)
	if err != nil {
		return err
	}

	is64 := false
	dir := ir.ShiftLeft
	var amount int

	switch d.Op {
	case decoder.OpSLL, decoder.OpSRL, decoder.OpSRA:
		amtV, err := ctx.EmitConstant(ir.TypeU64, uint64(d.Shamt))
		if err != nil {
			return err
		}
		amount = amtV.Index
	case decoder.OpSLLV, decoder.OpSRLV, decoder.OpSRAV:
		rs, err := loadRS(ctx, d)
		if err != nil {
			return err
		}
		mask, err := ctx.EmitConstant(ir.TypeU64, 0x1f)
		if err != nil {
			return err
		}
		masked, err := ctx.EmitAnd(ir.TypeU64, rs, mask.Index)
		if err != nil {
			return err
		}
		amount = masked.Index
	case decoder.OpDSLL, decoder.OpDSRL, decoder.OpDSRA:
		is64 = true
		amtV, err := ctx.EmitConstant(ir.TypeU64, uint64(d.Shamt))
		if err != nil {
			return err
		}
		amount = amtV.Index
	case decoder.OpDSLL32, decoder.OpDSRL32, decoder.OpDSRA32:
		is64 = true
		amtV, err := ctx.EmitConstant(ir.TypeU64, uint64(d.Shamt)+32)
		if err != nil {
			return err
		}
		amount = amtV.Index
	case decoder.OpDSLLV, decoder.OpDSRLV, decoder.OpDSRAV:
		is64 = true
		rs, err := loadRS(ctx, d)
		if err != nil {
			return err
		}
		mask, err := ctx.EmitConstant(ir.TypeU64, 0x3f)
		if err != nil {
			return err
		}
		masked, err := ctx.EmitAnd(ir.TypeU64, rs, mask.Index)
		if err != nil {
			return err
		}
		amount = masked.Index
	}

	switch d.Op {
	case decoder.OpSRA, decoder.OpSRAV, decoder.OpDSRA, decoder.OpDSRA32, decoder.OpDSRAV:
		dir = ir.ShiftRight
	case decoder.OpSRL, decoder.OpSRLV, decoder.OpDSRL, decoder.OpDSRL32, decoder.OpDSRLV:
		dir = ir.ShiftRight
	}

	typ := ir.TypeS32
	if is64 {
		typ = ir.TypeS64
	}
	if dir == ir.ShiftRight && isUnsignedShift(d.Op) {
		typ = ir.TypeU32
		if is64 {
			typ = ir.TypeU64
		}
	}

	if !is64 {
		// 32-bit shifts operate on the low word: mask to 32 bits first
		// so a right shift doesn't drag high-register garbage down.
		lowered, err := ctx.EmitMaskAndCast(ir.TypeU32, value)
		if err != nil {
			return err
		}
		value = lowered.Index
	}

	shifted, err := ctx.EmitShift(typ, dir, value, amount)
	if err != nil {
		return err
	}

	result := shifted
	if !is64 {
		result, err = ctx.EmitMaskAndCast(ir.TypeS32, shifted.Index)
		if err != nil {
			return err
		}
	}

	ctx.BindGuestReg(d.RD, result.Index)
	return nil
}

// isUnsignedShift reports whether op is a logical- (not arithmetic-)
// right shift, which needs an unsigned type so EmitShift doesn't
// sign-extend.
func isUnsignedShift(op decoder.Op) bool {
	switch op {
	case decoder.OpSRL, decoder.OpSRLV, decoder.OpDSRL, decoder.OpDSRL32, decoder.OpDSRLV:
		return true
	default:
		return false
	}
}

// effectiveAddrIR emits base + sign-extend(imm16) and the TLB lookup
// that resolves it to a physical address, the shared prelude for
// every load/store this translator emits.
func effectiveAddrIR(ctx *ir.Context, d decoder.Decoded) (int, error) {
	base, err := loadRS(ctx, d)
	if err != nil {
		return 0, err
	}
	imm, err := ctx.EmitConstant(ir.TypeU64, uint64(int64(d.Imm16)))
	if err != nil {
		return 0, err
	}
	vaddr, err := ctx.EmitAdd(ir.TypeU64, base, imm.Index)
	if err != nil {
		return 0, err
	}
	paddr, err := ctx.EmitTLBLookup(vaddr.Index)
	if err != nil {
		return 0, err
	}
	return paddr.Index, nil
}

func translateLoad(ctx *ir.Context, d decoder.Decoded) error {
	paddr, err := effectiveAddrIR(ctx, d)
	if err != nil {
		return err
	}

	var typ ir.ValueType
	switch d.Op {
	case decoder.OpLB:
		typ = ir.TypeS8
	case decoder.OpLBU:
		typ = ir.TypeU8
	case decoder.OpLH:
		typ = ir.TypeS16
	case decoder.OpLHU:
		typ = ir.TypeU16
	case decoder.OpLW:
		typ = ir.TypeS32
	case decoder.OpLWU:
		typ = ir.TypeU32
	case decoder.OpLD:
		typ = ir.TypeU64
	}

	loaded, err := ctx.EmitLoad(typ, paddr)
	if err != nil {
		return err
	}
	ctx.BindGuestReg(d.RT, loaded.Index)
	return nil
}

func translateStore(ctx *ir.Context, d decoder.Decoded) error {
	paddr, err := effectiveAddrIR(ctx, d)
	if err != nil {
		return err
	}
	value, err := loadRT(ctx, d)
	if err != nil {
		return err
	}

	var typ ir.ValueType
	switch d.Op {
	case decoder.OpSB:
		typ = ir.TypeU8
	case decoder.OpSH:
		typ = ir.TypeU16
	case decoder.OpSW:
		typ = ir.TypeU32
	case decoder.OpSD:
		typ = ir.TypeU64
	}

	_, err = ctx.EmitStore(typ, paddr, value)
	return err
}
