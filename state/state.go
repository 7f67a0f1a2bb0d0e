// Package state holds the guest CPU's architectural state: the
// general-purpose register file, program counters, coprocessor-0
// (system control) registers and TLB, and coprocessor-1 (FPU)
// registers. Generated code and the interpreter fallback both operate
// on a *CPU; no other package keeps a second copy of this state.
package state

// CPU is the architectural register file consumed by translated
// blocks. Entry 0 of GPR always reads as zero; GPRWrite enforces that.
type CPU struct {
	GPR [32]uint64

	PC     uint32 // current instruction
	NextPC uint32 // delay-slot resolution target
	PrevPC uint32 // instruction whose side effects last committed

	// MultHi/MultLo hold the 128-bit multiply/divide result pair
	// (original_source/src/cpu/r4300i.h's mult_hi/mult_lo), read and
	// written by MFHI/MFLO/MTHI/MTLO and the multiply/divide family.
	MultHi uint64
	MultLo uint64

	CP0 CP0
	FPU FPU

	// HostCycles accumulates cycles consumed since the last
	// Scheduler.Advance call; the dispatcher reads and resets it.
	HostCycles int
}

// GPRRead returns gpr[i], reading as zero for r0.
func (c *CPU) GPRRead(i uint8) uint64 {
	if i == 0 {
		return 0
	}
	return c.GPR[i]
}

// GPRWrite stores v into gpr[i]; writes to r0 are ignored.
func (c *CPU) GPRWrite(i uint8, v uint64) {
	if i == 0 {
		return
	}
	c.GPR[i] = v
}

// Reset restores the CPU to power-on state.
func (c *CPU) Reset() {
	*c = CPU{}
	c.CP0.reset()
	c.FPU.reset()
}
