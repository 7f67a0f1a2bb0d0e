package decoder

import "testing"

// encodeR builds an R-type word: opcode rs rt rd shamt funct.
func encodeR(opcode, rsv, rtv, rdv, shamtv, functv uint32) uint32 {
	return (opcode << 26) | (rsv << 21) | (rtv << 16) | (rdv << 11) | (shamtv << 6) | functv
}

func encodeI(opcode, rsv, rtv uint32, imm int16) uint32 {
	return (opcode << 26) | (rsv << 21) | (rtv << 16) | uint32(uint16(imm))
}

func TestDecodeADD(t *testing.T) {
	w := encodeR(0x00, 4, 5, 6, 0, 0x20)
	d := Decode(w)
	if d.Op != OpADD || d.RS != 4 || d.RT != 5 || d.RD != 6 {
		t.Fatalf("decode ADD = %+v", d)
	}
}

func TestDecodeADDISignExtends(t *testing.T) {
	w := encodeI(0x08, 1, 2, -1)
	d := Decode(w)
	if d.Op != OpADDI || d.Imm16 != -1 {
		t.Fatalf("decode ADDI = %+v, want Imm16=-1", d)
	}
}

func TestDecodeJExtractsTarget(t *testing.T) {
	w := uint32(0x02<<26) | 0x123456
	d := Decode(w)
	if d.Op != OpJ || d.Target != 0x123456<<2 {
		t.Fatalf("decode J = %+v", d)
	}
}

func TestDecodeReservedSpecialFunct(t *testing.T) {
	w := encodeR(0x00, 0, 0, 0, 0, 0x3D) // no such funct
	d := Decode(w)
	if d.Op != OpReserved {
		t.Fatalf("decode unknown SPECIAL funct = %+v, want OpReserved", d)
	}
}

func TestDecodeUnknownPrimaryOpcodeIsReserved(t *testing.T) {
	w := uint32(0x1C) << 26 // unused primary opcode
	d := Decode(w)
	if d.Op != OpReserved {
		t.Fatalf("decode unknown primary opcode = %+v, want OpReserved", d)
	}
}

func TestDecodeMTC0(t *testing.T) {
	w := encodeR(0x10, 0x04, 8, 12, 0, 0) // mtc0 $8, $12 (status)
	d := Decode(w)
	if d.Op != OpMTC0 || d.RT != 8 || d.RD != 12 {
		t.Fatalf("decode MTC0 = %+v", d)
	}
}

func TestDecodeERET(t *testing.T) {
	w := encodeR(0x10, 0x10, 0, 0, 0, 0x18)
	d := Decode(w)
	if d.Op != OpERET {
		t.Fatalf("decode ERET = %+v", d)
	}
}

func TestDecodeFPAddSingle(t *testing.T) {
	// cop1 fmt=S(0x10) ft=2 fs=4 fd=6 funct=ADD(0x00)
	w := encodeR(0x11, 0x10, 2, 4, 6, 0x00)
	d := Decode(w)
	if d.Op != OpFPAdd || d.FPFmt != FmtS || d.RS != 4 || d.RD != 2 || d.FD != 6 {
		t.Fatalf("decode ADD.S = %+v", d)
	}
}

func TestDecodeFPCompare(t *testing.T) {
	// c.lt.d: fmt=D(0x11) funct = 0x3C (cond field LT=12 | 0x30)
	w := encodeR(0x11, 0x11, 2, 4, 0, 0x30|12)
	d := Decode(w)
	if d.Op != OpFPCompare || d.Cond != 12 || d.FPFmt != FmtD {
		t.Fatalf("decode C.LT.D = %+v", d)
	}
}

func TestDecodeMFC1(t *testing.T) {
	w := encodeR(0x11, 0x00, 8, 4, 0, 0)
	d := Decode(w)
	if d.Op != OpMFC1 || d.RT != 8 || d.FD != 4 {
		t.Fatalf("decode MFC1 = %+v", d)
	}
}
