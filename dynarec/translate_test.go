package dynarec

import (
	"testing"

	"github.com/kdyn/n64dynarec/decoder"
	"github.com/kdyn/n64dynarec/emitter"
	"github.com/kdyn/n64dynarec/ir"
	"github.com/kdyn/n64dynarec/memory"
	"github.com/kdyn/n64dynarec/regalloc"
	"github.com/kdyn/n64dynarec/state"
)

// runBlock translates a single non-branch instruction at pc, always
// terminating with an unconditional exit to pc+4, then compiles and
// runs it against cpu/ram. It returns the cycles the entry consumed.
func runBlock(t *testing.T, cpu *state.CPU, ram *memory.RAM, d decoder.Decoded, pc uint32) (nextPC uint32, cycles int) {
	t.Helper()
	ctx := &ir.Context{}
	ctx.Reset()
	if err := translateOne(ctx, d, pc); err != nil {
		t.Fatalf("translateOne: %v", err)
	}
	if _, err := ctx.EmitSetBlockExitPC(pc + 4); err != nil {
		t.Fatalf("EmitSetBlockExitPC: %v", err)
	}
	ctx.Optimize()
	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	regalloc.Allocate(ctx)

	entry, _, err := emitter.Compile(ctx, ram)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cpu.PC = pc
	return entry(cpu)
}

func TestTranslateAddImmediate(t *testing.T) {
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 0x1234)
	ram := memory.NewRAM(0x10000)

	d := decoder.Decoded{Op: decoder.OpADDI, RS: 1, RT: 3, Imm16: 0x6EAC}

	nextPC, _ := runBlock(t, cpu, ram, d, 0x1000)

	if got, want := cpu.GPRRead(3), uint64(0x1234+0x6EAC); got != want {
		t.Fatalf("gpr[3] = %#x, want %#x", got, want)
	}
	if nextPC != 0x1004 {
		t.Fatalf("nextPC = %#x, want 0x1004", nextPC)
	}
}

func TestTranslateAddOverflowTraps(t *testing.T) {
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 0x7FFFFFFF) // INT32_MAX
	cpu.GPRWrite(2, 1)
	ram := memory.NewRAM(0x10000)

	d := decoder.Decoded{Op: decoder.OpADD, RS: 1, RT: 2, RD: 3}
	cpu.PC = 0x80001000
	nextPC, _ := runBlock(t, cpu, ram, d, 0x80001000)

	if cpu.CP0.Cause.ExceptionCode != state.ExcOverflow {
		t.Fatalf("exception_code = %d, want ExcOverflow(%d)", cpu.CP0.Cause.ExceptionCode, state.ExcOverflow)
	}
	if !cpu.CP0.Status.EXL() {
		t.Fatal("expected status.exl set after overflow trap")
	}
	if nextPC != 0x80000180 {
		t.Fatalf("nextPC = %#x, want general exception vector", nextPC)
	}
}

func TestTranslateAddUnsignedNeverTraps(t *testing.T) {
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 0x7FFFFFFF)
	cpu.GPRWrite(2, 1)
	ram := memory.NewRAM(0x10000)

	d := decoder.Decoded{Op: decoder.OpADDU, RS: 1, RT: 2, RD: 3}
	runBlock(t, cpu, ram, d, 0x1000)

	if cpu.CP0.Status.EXL() {
		t.Fatal("ADDU must never raise overflow")
	}
	if got, want := int32(cpu.GPRRead(3)), int32(-0x80000000); got != want {
		t.Fatalf("gpr[3] = %#x, want %#x (wrapped)", got, want)
	}
}

func TestTranslateLoadStoreRoundTrip(t *testing.T) {
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 0x80002000) // kseg0: unmapped, physical 0x2000
	cpu.GPRWrite(2, 0xDEADBEEF)
	ram := memory.NewRAM(0x10000)

	store := decoder.Decoded{Op: decoder.OpSW, RS: 1, RT: 2, Imm16: 0x10}
	runBlock(t, cpu, ram, store, 0x1000)

	load := decoder.Decoded{Op: decoder.OpLW, RS: 1, RT: 4, Imm16: 0x10}
	runBlock(t, cpu, ram, load, 0x1004)

	if got := uint32(cpu.GPRRead(4)); got != 0xDEADBEEF {
		t.Fatalf("gpr[4] = %#x, want 0xDEADBEEF", got)
	}
}

func TestTranslateShiftLeft(t *testing.T) {
	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 1)
	ram := memory.NewRAM(0x10000)

	d := decoder.Decoded{Op: decoder.OpSLL, RT: 1, RD: 2, Shamt: 4}
	runBlock(t, cpu, ram, d, 0x1000)

	if got := cpu.GPRRead(2); got != 16 {
		t.Fatalf("gpr[2] = %d, want 16", got)
	}
}

func TestTranslateUnsupportedOpcodeReported(t *testing.T) {
	ctx := &ir.Context{}
	ctx.Reset()
	err := translateOne(ctx, decoder.Decoded{Op: decoder.OpMULT}, 0x1000)
	if !isUnsupported(err) {
		t.Fatalf("expected unsupported error for MULT, got %v", err)
	}
}
