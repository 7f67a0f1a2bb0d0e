package fpu

import (
	"math"
	"testing"

	"github.com/kdyn/n64dynarec/state"
)

func TestCheckArgSignalingNaNIsInvalid(t *testing.T) {
	var f state.FCR31
	sNaN := math.Float32frombits(0x7FA00000) // exponent all-1, quiet bit clear
	CheckArgS(&f, sNaN)
	if !f.CauseInvalid {
		t.Fatalf("signaling NaN argument should set CauseInvalid")
	}
}

func TestCheckArgQuietNaNIsUnimplemented(t *testing.T) {
	var f state.FCR31
	qNaN := math.Float32frombits(0x7FC00000)
	CheckArgS(&f, qNaN)
	if !f.CauseUnimplemented {
		t.Fatalf("quiet NaN argument should set CauseUnimplemented")
	}
}

func TestCheckArgSubnormalIsUnimplemented(t *testing.T) {
	var f state.FCR31
	CheckArgD(&f, math.Float64frombits(1)) // smallest subnormal
	if !f.CauseUnimplemented {
		t.Fatalf("subnormal argument should set CauseUnimplemented")
	}
}

func TestCheckArgNormalIsClean(t *testing.T) {
	var f state.FCR31
	CheckArgS(&f, 1.5)
	if f.Pending() {
		t.Fatalf("normal argument should not raise any cause bit")
	}
}

func TestCheckResultNaNRewritten(t *testing.T) {
	var f state.FCR31
	v := float32(math.NaN())
	CheckResultS(&f, &v)
	if math.Float32bits(v) != 0x7FBFFFFF {
		t.Fatalf("NaN result not rewritten, got %#x", math.Float32bits(v))
	}
}

func TestCheckResultSubnormalFlushedWhenEnabled(t *testing.T) {
	var f state.FCR31
	f.FlushSubnormals = true
	v := float32(1e-40) // subnormal
	CheckResultS(&f, &v)
	if !f.CauseUnderflow || !f.CauseInexact {
		t.Fatalf("subnormal flush should raise underflow+inexact")
	}
	if v != 0 {
		t.Fatalf("RoundNearest should flush subnormal to zero, got %v", v)
	}
}

func TestCheckResultSubnormalUnimplementedWhenNotFlushing(t *testing.T) {
	var f state.FCR31
	v := float32(1e-40)
	CheckResultS(&f, &v)
	if !f.CauseUnimplemented {
		t.Fatalf("subnormal result without FlushSubnormals should be unimplemented")
	}
}

func TestCheckCvtWOutOfRangeIsUnimplemented(t *testing.T) {
	var f state.FCR31
	CheckCvtW64(&f, 1e10)
	if !f.CauseUnimplemented {
		t.Fatalf("out-of-range cvt.w operand should be unimplemented")
	}
}

func TestCheckCvtWInRangeIsClean(t *testing.T) {
	var f state.FCR31
	CheckCvtW64(&f, 1234.5)
	if f.Pending() {
		t.Fatalf("in-range cvt.w operand should not trap")
	}
}

func TestRoundToIntModes(t *testing.T) {
	cases := []struct {
		mode uint8
		in   float64
		want float64
	}{
		{state.RoundNearest, 2.5, 2},
		{state.RoundZero, 2.9, 2},
		{state.RoundZero, -2.9, -2},
		{state.RoundPosInf, 2.1, 3},
		{state.RoundNegInf, 2.9, 2},
	}
	for _, c := range cases {
		if got := RoundToInt(c.mode, c.in); got != c.want {
			t.Fatalf("RoundToInt(%d, %v) = %v, want %v", c.mode, c.in, got, c.want)
		}
	}
}

func TestEvaluatePredicateOrderedVsUnordered(t *testing.T) {
	nan := math.NaN()
	if result, invalid := Evaluate(4 /* OLT */, 1.0, 2.0); !result || invalid {
		t.Fatalf("OLT(1,2) = %v,%v, want true,false", result, invalid)
	}
	if result, invalid := Evaluate(4 /* OLT */, nan, 2.0); result || !invalid {
		t.Fatalf("OLT(qNaN,2) = %v,%v, want false,true (quiet predicate traps on a qNaN operand)", result, invalid)
	}
	if result, invalid := Evaluate(12 /* LT, signaling form */, nan, 2.0); result || !invalid {
		t.Fatalf("LT(NaN,2) = %v,%v, want false,true (signaling predicate traps on any NaN)", result, invalid)
	}
}

func TestEvaluateQuietPredicateIgnoresSignalingNaN(t *testing.T) {
	sNaN := math.Float64frombits(0x7FF0000000000001) // exponent all-1, quiet bit clear
	if result, invalid := Evaluate(4 /* OLT, quiet form */, sNaN, 2.0); result || invalid {
		t.Fatalf("OLT(sNaN,2) = %v,%v, want false,false (quiet predicate only traps on qNaN)", result, invalid)
	}
	if result, invalid := Evaluate(12 /* LT, signaling form */, sNaN, 2.0); result || !invalid {
		t.Fatalf("LT(sNaN,2) = %v,%v, want false,true (signaling predicate traps on any NaN)", result, invalid)
	}
}

func TestFireTakesTrapAndSetsEPC(t *testing.T) {
	var cpu state.CPU
	cpu.PrevPC = 0x80010000
	cpu.FPU.FCR31.CauseUnimplemented = true
	if !Fire(&cpu) {
		t.Fatalf("Fire should report a trap was taken")
	}
	if cpu.CP0.EPC != 0x80010000 {
		t.Fatalf("epc = %#x, want prev_pc", cpu.CP0.EPC)
	}
	if cpu.CP0.Cause.ExceptionCode != state.ExcFloatingPoint {
		t.Fatalf("exception_code = %d, want FloatingPoint", cpu.CP0.Cause.ExceptionCode)
	}
	if !cpu.CP0.Status.EXL() {
		t.Fatalf("status.exl should be set after trap entry")
	}
}

func TestFireNoOpWhenNotPending(t *testing.T) {
	var cpu state.CPU
	if Fire(&cpu) {
		t.Fatalf("Fire should not trap with a clean fcr31")
	}
}
