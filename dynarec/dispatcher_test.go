package dynarec

import (
	"testing"

	"github.com/kdyn/n64dynarec/config"
	"github.com/kdyn/n64dynarec/memory"
	"github.com/kdyn/n64dynarec/state"
)

// encodeI packs a primary-opcode (I-type) word: opcode|rs|rt|imm16.
func encodeI(opcode, rs, rt uint32, imm16 int16) uint32 {
	return opcode<<26 | rs<<21 | rt<<16 | uint32(uint16(imm16))
}

// encodeR packs a SPECIAL (R-type) word: rs|rt|rd|shamt|funct.
func encodeR(rs, rt, rd, shamt, funct uint32) uint32 {
	return rs<<21 | rt<<16 | rd<<11 | shamt<<6 | funct
}

func newDispatcher(t *testing.T) (*Dispatcher, *state.CPU, *memory.RAM) {
	t.Helper()
	cpu := &state.CPU{}
	cpu.Reset()
	ram := memory.NewRAM(0x10000)
	d, err := New(cpu, ram, config.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, cpu, ram
}

// TestDispatcherAddImmediateScenario exercises spec.md §8 scenario 1
// end to end: decode, translate, install and run the block from a
// cache miss.
func TestDispatcherAddImmediateScenario(t *testing.T) {
	d, cpu, ram := newDispatcher(t)

	// Two ADDIU in a row, then a branch whose delay slot is a no-op
	// ADDIU ends the block.
	ram.WriteWord(0x1000, encodeI(0x09, 1, 3, 0x6EAC)) // addiu $3, $1, 0x6EAC
	ram.WriteWord(0x1004, encodeI(0x09, 0, 4, 5))      // addiu $4, $0, 5
	ram.WriteWord(0x1008, encodeI(0x04, 0, 0, 0))      // beq $0,$0,+0 (ends the block)
	ram.WriteWord(0x100C, encodeI(0x09, 0, 0, 0))      // addiu $0,$0,0 (delay slot)

	cpu.GPRWrite(1, 0x1234)
	cpu.PC = 0xA0001000 // kseg1: uncached, unmapped

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got, want := cpu.GPRRead(3), uint64(0x1234+0x6EAC); got != want {
		t.Fatalf("gpr[3] = %#x, want %#x", got, want)
	}
}

func TestDispatcherUnsupportedOpcodeFallsBackToInterpreter(t *testing.T) {
	d, cpu, ram := newDispatcher(t)

	// mult $1, $2 then addiu $3,$1,1 — MULT isn't statically
	// translated, so the dispatcher must run it via the interpreter
	// and still make progress to the next instruction.
	ram.WriteWord(0x2000, encodeR(1, 2, 0, 0, 0x18)) // mult $1,$2
	ram.WriteWord(0x2004, encodeI(0x09, 0, 5, 7))    // addiu $5, $0, 7
	ram.WriteWord(0x2008, encodeI(0x04, 0, 0, 0))    // beq $0,$0,+0 (ends the block)
	ram.WriteWord(0x200C, encodeI(0x09, 0, 0, 0))    // addiu $0,$0,0 (delay slot)

	cpu.GPRWrite(1, 6)
	cpu.GPRWrite(2, 7)
	cpu.PC = 0xA0002000

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step (mult): %v", err)
	}
	if got := cpu.MultLo; got != 42 {
		t.Fatalf("MultLo = %d, want 42", got)
	}
	if cpu.PC != 0xA0002004 {
		t.Fatalf("PC = %#x, want 0xA0002004 after interpreted MULT", cpu.PC)
	}

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step (addiu): %v", err)
	}
	if got := cpu.GPRRead(5); got != 7 {
		t.Fatalf("gpr[5] = %d, want 7", got)
	}
}

func TestDispatcherBranchTakenAndDelaySlot(t *testing.T) {
	d, cpu, ram := newDispatcher(t)

	// beq $1, $1, +2 ; addiu $2, $0, 9 (delay slot, always runs)
	ram.WriteWord(0x3000, encodeI(0x04, 1, 1, 2)) // beq $1,$1,+2
	ram.WriteWord(0x3004, encodeI(0x09, 0, 2, 9)) // addiu $2,$0,9 (delay slot)
	ram.WriteWord(0x300C, encodeI(0x09, 0, 6, 1)) // addiu $6,$0,1 (branch target)

	cpu.PC = 0xA0003000

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if got := cpu.GPRRead(2); got != 9 {
		t.Fatalf("gpr[2] = %d, want 9 (delay slot must execute)", got)
	}
	if cpu.PC != 0xA000300C {
		t.Fatalf("PC = %#x, want branch target 0xA000300C", cpu.PC)
	}
}

func TestDispatcherTLBMissOnLoad(t *testing.T) {
	d, cpu, _ := newDispatcher(t)

	// lw $2, 0($1) with $1 pointing at an address with no TLB entry
	// installed — spec.md §8 scenario 3.
	ram := memory.NewRAM(0x10000)
	d.Bus = ram
	ram.WriteWord(0x4000, encodeI(0x23, 1, 2, 0)) // lw $2, 0($1)
	ram.WriteWord(0x4004, encodeI(0x04, 0, 0, 0)) // beq $0,$0,+0 (ends the block)
	ram.WriteWord(0x4008, encodeI(0x09, 0, 0, 0)) // addiu $0,$0,0 (delay slot)

	cpu.GPRWrite(1, 0x00001000) // kuseg, mapped, no TLB entry -> miss
	cpu.PC = 0xA0004000

	if _, err := d.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if cpu.CP0.Cause.ExceptionCode != state.ExcTLBLoad {
		t.Fatalf("exception_code = %d, want ExcTLBLoad(%d)", cpu.CP0.Cause.ExceptionCode, state.ExcTLBLoad)
	}
	if !cpu.CP0.Status.EXL() {
		t.Fatal("expected status.exl set after TLB miss")
	}
}
