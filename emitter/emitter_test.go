package emitter

import (
	"testing"

	"github.com/kdyn/n64dynarec/ir"
	"github.com/kdyn/n64dynarec/memory"
	"github.com/kdyn/n64dynarec/state"
)

// buildAddImmediateBlock emits gpr[3] = gpr[1] + 0x6EAC, store to
// 0x1000, then an unconditional exit to 0x1008 — spec.md §8 scenario 1.
func buildAddImmediateBlock(t *testing.T) *ir.Context {
	t.Helper()
	ctx := &ir.Context{}
	ctx.Reset()

	lhs, err := ctx.LoadGuestReg(1)
	if err != nil {
		t.Fatalf("LoadGuestReg: %v", err)
	}
	imm, err := ctx.EmitConstant(ir.TypeU64, 0x6EAC)
	if err != nil {
		t.Fatalf("EmitConstant: %v", err)
	}
	sum, err := ctx.EmitAdd(ir.TypeU64, lhs.Index, imm.Index)
	if err != nil {
		t.Fatalf("EmitAdd: %v", err)
	}
	ctx.BindGuestReg(3, sum.Index)

	addrConst, err := ctx.EmitConstant(ir.TypeU32, 0x1000)
	if err != nil {
		t.Fatalf("EmitConstant addr: %v", err)
	}
	if _, err := ctx.EmitStore(ir.TypeU32, addrConst.Index, sum.Index); err != nil {
		t.Fatalf("EmitStore: %v", err)
	}

	if _, err := ctx.EmitSetBlockExitPC(0x1008); err != nil {
		t.Fatalf("EmitSetBlockExitPC: %v", err)
	}
	ctx.Optimize()
	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return ctx
}

func TestLowerBytesProducesNonEmptyOutput(t *testing.T) {
	ctx := buildAddImmediateBlock(t)
	bytes, err := LowerBytes(ctx)
	if err != nil {
		t.Fatalf("LowerBytes: %v", err)
	}
	if len(bytes) == 0 {
		t.Fatal("expected non-empty host bytes")
	}
}

func TestCompileAddImmediateScenario(t *testing.T) {
	ctx := buildAddImmediateBlock(t)
	ram := memory.NewRAM(0x10000)

	entry, hostBytes, err := Compile(ctx, ram)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(hostBytes) == 0 {
		t.Fatal("expected non-empty host bytes")
	}

	cpu := &state.CPU{}
	cpu.Reset()
	cpu.GPRWrite(1, 0x1234)
	cpu.PC = 0x1000

	nextPC, cycles := entry(cpu)

	if got := cpu.GPRRead(3); got != 0x1234+0x6EAC {
		t.Fatalf("gpr[3] = %#x, want %#x", got, 0x1234+0x6EAC)
	}
	if got := ram.ReadWord(0x1000); got != 0x1234+0x6EAC {
		t.Fatalf("mem[0x1000] = %#x, want %#x", got, 0x1234+0x6EAC)
	}
	if nextPC != 0x1008 {
		t.Fatalf("nextPC = %#x, want 0x1008", nextPC)
	}
	if cycles <= 0 {
		t.Fatalf("expected positive cycle count, got %d", cycles)
	}
}

func TestCompileTLBMissRaisesException(t *testing.T) {
	ctx := &ir.Context{}
	ctx.Reset()

	vaddr, err := ctx.EmitConstant(ir.TypeU64, 0x00001234)
	if err != nil {
		t.Fatalf("EmitConstant: %v", err)
	}
	paddr, err := ctx.EmitTLBLookup(vaddr.Index)
	if err != nil {
		t.Fatalf("EmitTLBLookup: %v", err)
	}
	loaded, err := ctx.EmitLoad(ir.TypeU32, paddr.Index)
	if err != nil {
		t.Fatalf("EmitLoad: %v", err)
	}
	ctx.BindGuestReg(2, loaded.Index)
	if _, err := ctx.EmitSetBlockExitPC(0x2000); err != nil {
		t.Fatalf("EmitSetBlockExitPC: %v", err)
	}
	ctx.Optimize()
	if err := ctx.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	ram := memory.NewRAM(0x10000)
	entry, _, err := Compile(ctx, ram)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cpu := &state.CPU{}
	cpu.Reset()
	cpu.PC = 0x3000
	cpu.PrevPC = 0x2FFC

	entry(cpu)

	if cpu.PC != tlbRefillVector {
		t.Fatalf("pc = %#x, want tlb-refill vector", cpu.PC)
	}
	if cpu.CP0.Cause.ExceptionCode != state.ExcTLBLoad {
		t.Fatalf("cause.exception_code = %d, want ExcTLBLoad", cpu.CP0.Cause.ExceptionCode)
	}
	if cpu.CP0.EPC != cpu.PrevPC {
		t.Fatalf("epc = %#x, want %#x", cpu.CP0.EPC, 0x2FFC)
	}
	if !cpu.CP0.Status.EXL() {
		t.Fatal("expected status.exl set after exception")
	}
}

func TestEvalConditionPredicates(t *testing.T) {
	cases := []struct {
		p    ir.Predicate
		a, b uint64
		want uint64
	}{
		{ir.PredEQ, 5, 5, 1},
		{ir.PredNE, 5, 5, 0},
		{ir.PredLTU, 1, 2, 1},
		{ir.PredLTS, ^uint64(0), 1, 1}, // -1 < 1 signed
		{ir.PredGTU, ^uint64(0), 1, 1}, // max uint > 1 unsigned
	}
	for _, c := range cases {
		if got := evalCondition(c.p, c.a, c.b); got != c.want {
			t.Errorf("evalCondition(%v, %#x, %#x) = %d, want %d", c.p, c.a, c.b, got, c.want)
		}
	}
}

func TestCastValueSignExtends(t *testing.T) {
	got := castValue(ir.TypeS8, 0xFF)
	if got != uint64(^uint64(0)) {
		t.Fatalf("castValue(TypeS8, 0xFF) = %#x, want all-ones (sign extended -1)", got)
	}
}
