// Package fpu implements the IEEE-754 semantic reference the emitted
// FPU opcodes and the interpreter oracle both call into (C3): argument
// and result classification, cause/enable/flag trap firing, rounding
// to integer, and the sixteen comparison predicates.
package fpu

import (
	"math"

	"github.com/kdyn/n64dynarec/state"
)

// generalExceptionVector is the address execution resumes at once an
// FPU trap is taken, assuming BEV=0 (Non-goal: boot-time vector
// relocation is out of scope).
const generalExceptionVector = 0x80000180

// Fire checks fcr31's cause/enable/unimplemented bits and, if an FPU
// exception is pending, commits it into cpu's architectural state:
// epc <- prev_pc, cause.exception_code <- FloatingPoint,
// cause.coprocessor_error <- 1, status.exl <- 1, pc <- the general
// vector. It reports whether a trap was taken.
func Fire(cpu *state.CPU) bool {
	if !cpu.FPU.FCR31.Pending() {
		return false
	}
	cpu.CP0.EPC = cpu.PrevPC
	cpu.CP0.Cause.ExceptionCode = state.ExcFloatingPoint
	cpu.CP0.Cause.CoprocessorError = 1
	cpu.CP0.SetEXL()
	cpu.PC = generalExceptionVector
	cpu.NextPC = generalExceptionVector + 4
	return true
}

// argClass is the classification of one input operand, used to decide
// whether an operation's arguments alone should force a trap before
// the operation is even evaluated.
type argClass int

const (
	classNormal argClass = iota
	classZero
	classInf
	classSubnormal
	classQuietNaN
	classSignalingNaN
)

func classify32(bits uint32) argClass {
	exp := (bits >> 23) & 0xFF
	mant := bits & 0x7FFFFF
	switch {
	case exp == 0xFF && mant == 0:
		return classInf
	case exp == 0xFF:
		if mant&0x400000 != 0 {
			return classQuietNaN
		}
		return classSignalingNaN
	case exp == 0 && mant == 0:
		return classZero
	case exp == 0:
		return classSubnormal
	default:
		return classNormal
	}
}

func classify64(bits uint64) argClass {
	exp := (bits >> 52) & 0x7FF
	mant := bits & 0xFFFFFFFFFFFFF
	switch {
	case exp == 0x7FF && mant == 0:
		return classInf
	case exp == 0x7FF:
		if mant&0x8000000000000 != 0 {
			return classQuietNaN
		}
		return classSignalingNaN
	case exp == 0 && mant == 0:
		return classZero
	case exp == 0:
		return classSubnormal
	default:
		return classNormal
	}
}

// CheckArgS/D set fcr31's cause bits for a single-/double-precision
// input operand, before the operation that consumes it runs. A
// signaling NaN operand is an invalid-operation trap; a quiet NaN or
// subnormal operand is unimplemented_operation, since this dynarec
// does not attempt to reproduce hardware behavior for them and always
// falls back (spec.md §4.3, GLOSSARY "unimplemented_operation").
func CheckArgS(f *state.FCR31, v float32) {
	checkArg(f, classify32(math.Float32bits(v)))
}

func CheckArgD(f *state.FCR31, v float64) {
	checkArg(f, classify64(math.Float64bits(v)))
}

func checkArg(f *state.FCR31, class argClass) {
	switch class {
	case classSignalingNaN:
		f.CauseInvalid = true
	case classQuietNaN, classSubnormal:
		f.CauseUnimplemented = true
	}
}

// float32Min and float64Min are the smallest positive *normal*
// magnitudes (C's FLT_MIN/DBL_MIN), used when coercing a subnormal
// result toward the nearest representable normal per rounding mode.
const (
	float32Min = 1.1754943508222875e-38
	float64Min = 2.2250738585072014e-308
)

// CheckResultS/D classify an operation's result. A NaN result is
// rewritten to a fixed signaling-pattern NaN (the reference always
// produces the same bit pattern rather than propagating whichever NaN
// the host FPU happened to produce). A subnormal result either traps
// unimplemented_operation (if subnormals aren't flushed, or underflow/
// inexact are individually enabled so software wants to see them) or
// is flushed to zero/FLT_MIN per the active rounding mode, with
// underflow and inexact both raised.
func CheckResultS(f *state.FCR31, v *float32) {
	switch classify32(math.Float32bits(*v)) {
	case classQuietNaN, classSignalingNaN:
		*v = math.Float32frombits(0x7FBFFFFF)
	case classSubnormal:
		if !f.FlushSubnormals || f.EnableUnderflow || f.EnableInexact {
			f.CauseUnimplemented = true
			return
		}
		f.CauseUnderflow = true
		f.CauseInexact = true
		*v = coerceSubnormal32(f.RoundingMode, *v)
	}
}

func CheckResultD(f *state.FCR31, v *float64) {
	switch classify64(math.Float64bits(*v)) {
	case classQuietNaN, classSignalingNaN:
		*v = math.Float64frombits(0x7FF7FFFFFFFFFFFF)
	case classSubnormal:
		if !f.FlushSubnormals || f.EnableUnderflow || f.EnableInexact {
			f.CauseUnimplemented = true
			return
		}
		f.CauseUnderflow = true
		f.CauseInexact = true
		*v = coerceSubnormal64(f.RoundingMode, *v)
	}
}

func coerceSubnormal32(mode uint8, v float32) float32 {
	neg := math.Signbit(float64(v))
	switch mode {
	case state.RoundPosInf:
		if neg {
			return float32(math.Copysign(0, float64(v)))
		}
		return float32(float32Min)
	case state.RoundNegInf:
		if neg {
			return float32(-float32Min)
		}
		return float32(math.Copysign(0, float64(v)))
	default: // RoundNearest, RoundZero
		return float32(math.Copysign(0, float64(v)))
	}
}

func coerceSubnormal64(mode uint8, v float64) float64 {
	neg := math.Signbit(v)
	switch mode {
	case state.RoundPosInf:
		if neg {
			return math.Copysign(0, v)
		}
		return float64Min
	case state.RoundNegInf:
		if neg {
			return -float64Min
		}
		return math.Copysign(0, v)
	default:
		return math.Copysign(0, v)
	}
}

// int32Bound and int64Bound are the magnitude thresholds cvt.w and
// cvt.l use to decide whether a value is representable.
const (
	int32Bound = 2147483648.0        // 2^31
	int64Bound = 9007199254740992.0  // 2^53, above which not every integer is exactly representable as a float64
)

// CheckCvtW32/64 classify a value ahead of a cvt.w.s/cvt.w.d
// conversion: NaN, infinity and subnormals are always
// unimplemented_operation; an out-of-range normal value is as well;
// zero and small normals convert cleanly.
func CheckCvtW32(f *state.FCR31, v float32) {
	checkCvt(f, classify32(math.Float32bits(v)), math.Abs(float64(v)), int32Bound)
}

func CheckCvtW64(f *state.FCR31, v float64) {
	checkCvt(f, classify64(math.Float64bits(v)), math.Abs(v), int32Bound)
}

// CheckCvtL32/64 are the cvt.l.s/cvt.l.d equivalents with the wider
// 64-bit bound.
func CheckCvtL32(f *state.FCR31, v float32) {
	checkCvt(f, classify32(math.Float32bits(v)), math.Abs(float64(v)), int64Bound)
}

func CheckCvtL64(f *state.FCR31, v float64) {
	checkCvt(f, classify64(math.Float64bits(v)), math.Abs(v), int64Bound)
}

func checkCvt(f *state.FCR31, class argClass, magnitude, bound float64) {
	switch class {
	case classQuietNaN, classSignalingNaN, classInf, classSubnormal:
		f.CauseUnimplemented = true
	case classNormal:
		if magnitude >= bound {
			f.CauseUnimplemented = true
		}
	}
}

// RoundToInt rounds v to the nearest integer per fcr31's active
// rounding mode, the shared helper cvt.w/cvt.l and round.w/round.l
// style opcodes use after CheckCvtW/CheckCvtL has cleared the value.
func RoundToInt(mode uint8, v float64) float64 {
	switch mode {
	case state.RoundZero:
		return math.Trunc(v)
	case state.RoundPosInf:
		return math.Ceil(v)
	case state.RoundNegInf:
		return math.Floor(v)
	default: // RoundNearest: round half to even
		return math.RoundToEven(v)
	}
}

// Predicate is one of the sixteen c.cond.fmt condition codes. The low
// three bits select the relational test; bit 3 (the "signaling" forms
// SF/NGLE/SEQ/NGL/LT/NGE/LE/NGT) additionally traps invalid on any
// NaN operand, not just a quiet one.
type Predicate uint8

// IsSignaling reports whether this predicate is one of the eight
// signaling forms (SF/NGLE/SEQ/NGL/LT/NGE/LE/NGT, bit 3 set), which
// raise invalid-operation on any NaN operand. The eight quiet forms
// (F/UN/EQ/UEQ/OLT/ULT/OLE/ULE) only raise it on a qNaN operand.
func (p Predicate) IsSignaling() bool { return p&8 != 0 }

// Evaluate runs the comparison and reports whether an invalid-operation
// trap must be raised in addition to the boolean result.
func Evaluate(p Predicate, a, b float64) (result bool, invalid bool) {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	isNaN := aNaN || bNaN
	if p.IsSignaling() {
		invalid = isNaN
	} else {
		invalid = isQuietNaN64(a) || isQuietNaN64(b)
	}

	switch p & 7 {
	case 0: // F / SF
		result = false
	case 1: // UN / NGLE
		result = isNaN
	case 2: // EQ / SEQ
		result = !isNaN && a == b
	case 3: // UEQ / NGL
		result = isNaN || a == b
	case 4: // OLT / LT
		result = !isNaN && a < b
	case 5: // ULT / NGE
		result = isNaN || a < b
	case 6: // OLE / LE
		result = !isNaN && a <= b
	case 7: // ULE / NGT
		result = isNaN || a <= b
	}
	return result, invalid
}

func isQuietNaN64(v float64) bool {
	return classify64(math.Float64bits(v)) == classQuietNaN
}
