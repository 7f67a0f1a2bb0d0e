package state

import "math"

// Rounding modes for fcr31.RoundingMode.
const (
	RoundNearest = 0
	RoundZero    = 1
	RoundPosInf  = 2
	RoundNegInf  = 3
)

// FCR31 is the FPU control/status register. Cause/Enable/Flag each
// carry five IEEE trap classes plus the unconditional
// CauseUnimplemented bit (spec.md §3, GLOSSARY).
type FCR31 struct {
	RoundingMode uint8

	FlagInexact        bool
	FlagUnderflow      bool
	FlagOverflow       bool
	FlagDivideByZero   bool
	FlagInvalid        bool

	EnableInexact      bool
	EnableUnderflow    bool
	EnableOverflow     bool
	EnableDivideByZero bool
	EnableInvalid      bool

	CauseInexact      bool
	CauseUnderflow    bool
	CauseOverflow     bool
	CauseDivideByZero bool
	CauseInvalid      bool
	CauseUnimplemented bool

	Compare         bool
	FlushSubnormals bool
}

// Pending reports whether any cause bit AND its enable (or the
// unconditional unimplemented-operation bit) is set, i.e. whether an
// FPU exception should fire right now (spec.md §3 invariant,
// GLOSSARY "Cause/Enable/Flag").
func (f *FCR31) Pending() bool {
	if f.CauseUnimplemented {
		return true
	}
	return (f.CauseInexact && f.EnableInexact) ||
		(f.CauseUnderflow && f.EnableUnderflow) ||
		(f.CauseOverflow && f.EnableOverflow) ||
		(f.CauseDivideByZero && f.EnableDivideByZero) ||
		(f.CauseInvalid && f.EnableInvalid)
}

// ClearCause clears the six cause bits (done at the start of every FPU
// operation, per the reference's check_fpu_arg/check_fpu_result
// sequence).
func (f *FCR31) ClearCause() {
	f.CauseInexact = false
	f.CauseUnderflow = false
	f.CauseOverflow = false
	f.CauseDivideByZero = false
	f.CauseInvalid = false
	f.CauseUnimplemented = false
}

// RaiseFlags copies any set cause bit into the matching sticky flag,
// per the FPU's cause/flag coupling (spec.md §3 "five flag_* sticky
// bits"). Called once per FPU op, after its cause bits are set and
// before fpu.Fire decides whether to trap: flag accumulation doesn't
// depend on whether the trap is actually taken.
func (f *FCR31) RaiseFlags() {
	f.FlagInexact = f.FlagInexact || f.CauseInexact
	f.FlagUnderflow = f.FlagUnderflow || f.CauseUnderflow
	f.FlagOverflow = f.FlagOverflow || f.CauseOverflow
	f.FlagDivideByZero = f.FlagDivideByZero || f.CauseDivideByZero
	f.FlagInvalid = f.FlagInvalid || f.CauseInvalid
}

func (f FCR31) raw() uint32 {
	var v uint32
	v |= uint32(f.RoundingMode & 0x3)
	setBit := func(bit uint, b bool) {
		if b {
			v |= 1 << bit
		}
	}
	setBit(2, f.FlagInexact)
	setBit(3, f.FlagUnderflow)
	setBit(4, f.FlagOverflow)
	setBit(5, f.FlagDivideByZero)
	setBit(6, f.FlagInvalid)
	setBit(7, f.EnableInexact)
	setBit(8, f.EnableUnderflow)
	setBit(9, f.EnableOverflow)
	setBit(10, f.EnableDivideByZero)
	setBit(11, f.EnableInvalid)
	setBit(12, f.CauseInexact)
	setBit(13, f.CauseUnderflow)
	setBit(14, f.CauseOverflow)
	setBit(15, f.CauseDivideByZero)
	setBit(16, f.CauseInvalid)
	setBit(17, f.CauseUnimplemented)
	setBit(23, f.Compare)
	setBit(24, f.FlushSubnormals)
	return v
}

// CTC1Mask is the mask ctc1-to-fcr31 applies; bits outside it are held
// zero (spec.md §4.3).
const CTC1Mask = 0x183FFFF

func fcr31FromRaw(v uint32) FCR31 {
	bit := func(n uint) bool { return v&(1<<n) != 0 }
	return FCR31{
		RoundingMode:       uint8(v & 0x3),
		FlagInexact:        bit(2),
		FlagUnderflow:      bit(3),
		FlagOverflow:       bit(4),
		FlagDivideByZero:   bit(5),
		FlagInvalid:        bit(6),
		EnableInexact:      bit(7),
		EnableUnderflow:    bit(8),
		EnableOverflow:     bit(9),
		EnableDivideByZero: bit(10),
		EnableInvalid:      bit(11),
		CauseInexact:       bit(12),
		CauseUnderflow:     bit(13),
		CauseOverflow:      bit(14),
		CauseDivideByZero:  bit(15),
		CauseInvalid:       bit(16),
		CauseUnimplemented: bit(17),
		Compare:            bit(23),
		FlushSubnormals:    bit(24),
	}
}

// FPU is the coprocessor-1 register file: 32 64-bit registers and the
// control/status register. Mapping of 32-bit views onto the register
// file depends on status.FR (spec.md §3); the register file itself is
// stored as 32 independent 64-bit words regardless of FR, and the
// 32-bit accessors below implement the FR=0/FR=1 addressing rules.
type FPU struct {
	Reg   [32]uint64
	FCR31 FCR31
}

func (f *FPU) reset() {
	*f = FPU{}
}

// ReadDouble returns register r as a raw 64-bit pattern (FR=1
// addressing, or any doubleword access).
func (f *FPU) ReadDouble(r uint8) uint64 {
	return f.Reg[r]
}

// WriteDouble stores v into register r verbatim.
func (f *FPU) WriteDouble(r uint8, v uint64) {
	f.Reg[r] = v
}

// ReadWord returns a 32-bit view of register r, honoring status.FR:
// when FR=0, odd r indexes the high half of register r&^1; when FR=1,
// each register is independently addressable and only its low half is
// used (spec.md §3).
func (f *FPU) ReadWord(r uint8, fr bool) uint32 {
	if fr {
		return uint32(f.Reg[r])
	}
	if r&1 != 0 {
		return uint32(f.Reg[r&^1] >> 32)
	}
	return uint32(f.Reg[r])
}

// WriteWord is the inverse of ReadWord.
func (f *FPU) WriteWord(r uint8, v uint32, fr bool) {
	if fr {
		f.Reg[r] = (f.Reg[r] &^ 0xFFFFFFFF) | uint64(v)
		return
	}
	if r&1 != 0 {
		base := r &^ 1
		f.Reg[base] = (f.Reg[base] & 0xFFFFFFFF) | (uint64(v) << 32)
		return
	}
	f.Reg[r] = (f.Reg[r] &^ 0xFFFFFFFF) | uint64(v)
}

// ReadFloat32/ReadFloat64/WriteFloat32/WriteFloat64 are typed
// convenience wrappers over the word/doubleword accessors.
func (f *FPU) ReadFloat32(r uint8, fr bool) float32 {
	return math.Float32frombits(f.ReadWord(r, fr))
}

func (f *FPU) WriteFloat32(r uint8, v float32, fr bool) {
	f.WriteWord(r, math.Float32bits(v), fr)
}

func (f *FPU) ReadFloat64(r uint8) float64 {
	return math.Float64frombits(f.ReadDouble(r))
}

func (f *FPU) WriteFloat64(r uint8, v float64) {
	f.WriteDouble(r, math.Float64bits(v))
}

// WriteFCR31 applies ctc1's mask, unused bits held zero (spec.md §4.3).
func (f *FPU) WriteFCR31(v uint32) {
	f.FCR31 = fcr31FromRaw(v & CTC1Mask)
}

func (f *FPU) ReadFCR31() uint32 {
	return f.FCR31.raw()
}
