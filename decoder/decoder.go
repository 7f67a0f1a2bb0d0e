// Package decoder implements the table-driven MIPS III instruction
// decoder (C6): one 32-bit word in, one tagged Decoded record out,
// with every unrecognized encoding folded into OpReserved rather than
// an error. The translator does not lower a reserved opcode; the
// interpreter fallback runs it and raises a guest reserved-instruction
// exception (spec.md §4.6/§9 Open Question).
package decoder

// Decoded is every field any instruction's IR emission might need;
// most fields are unused for any given Op.
type Decoded struct {
	Op Op
	Raw uint32

	RS, RT, RD uint8
	Shamt      uint8
	Imm16      int16  // sign-extended immediate
	Imm16U     uint16 // zero-extended immediate
	Target     uint32 // 28-bit jump target, already shifted and ready to OR with pc's top bits

	FPFmt FPFmt
	FD    uint8 // destination FP register for arithmetic forms
	Cond  uint8 // c.cond.fmt predicate (funct low nibble)
}

func rs(w uint32) uint8    { return uint8((w >> 21) & 0x1F) }
func rt(w uint32) uint8    { return uint8((w >> 16) & 0x1F) }
func rd(w uint32) uint8    { return uint8((w >> 11) & 0x1F) }
func shamt(w uint32) uint8 { return uint8((w >> 6) & 0x1F) }
func funct(w uint32) uint8 { return uint8(w & 0x3F) }
func imm16(w uint32) int16 { return int16(uint16(w & 0xFFFF)) }

// Decode translates one 32-bit MIPS III instruction word. It never
// fails: an encoding this table doesn't recognize decodes to
// {Op: OpReserved}.
func Decode(word uint32) Decoded {
	opcode := (word >> 26) & 0x3F
	fn, ok := primaryTable[opcode]
	if !ok {
		return Decoded{Op: OpReserved, Raw: word}
	}
	return fn(word)
}

func simple(op Op) func(uint32) Decoded {
	return func(w uint32) Decoded {
		return Decoded{Op: op, Raw: w, RS: rs(w), RT: rt(w), Imm16: imm16(w), Imm16U: uint16(w)}
	}
}

func jumpForm(op Op) func(uint32) Decoded {
	return func(w uint32) Decoded {
		return Decoded{Op: op, Raw: w, Target: (w & 0x3FFFFFF) << 2}
	}
}

var primaryTable map[uint32]func(uint32) Decoded

func init() {
	primaryTable = map[uint32]func(uint32) Decoded{
		0x00: decodeSpecial,
		0x01: decodeRegimm,
		0x02: jumpForm(OpJ),
		0x03: jumpForm(OpJAL),
		0x04: simple(OpBEQ),
		0x05: simple(OpBNE),
		0x06: simple(OpBLEZ),
		0x07: simple(OpBGTZ),
		0x08: simple(OpADDI),
		0x09: simple(OpADDIU),
		0x0A: simple(OpSLTI),
		0x0B: simple(OpSLTIU),
		0x0C: simple(OpANDI),
		0x0D: simple(OpORI),
		0x0E: simple(OpXORI),
		0x0F: simple(OpLUI),
		0x10: decodeCOP0,
		0x11: decodeCOP1,
		0x14: simple(OpBEQL),
		0x15: simple(OpBNEL),
		0x16: simple(OpBLEZL),
		0x17: simple(OpBGTZL),
		0x18: simple(OpDADDI),
		0x19: simple(OpDADDIU),
		0x1A: simple(OpLDL),
		0x1B: simple(OpLDR),
		0x20: simple(OpLB),
		0x21: simple(OpLH),
		0x22: simple(OpLWL),
		0x23: simple(OpLW),
		0x24: simple(OpLBU),
		0x25: simple(OpLHU),
		0x26: simple(OpLWR),
		0x27: simple(OpLWU),
		0x28: simple(OpSB),
		0x29: simple(OpSH),
		0x2A: simple(OpSWL),
		0x2B: simple(OpSW),
		0x2C: simple(OpSDL),
		0x2D: simple(OpSDR),
		0x2E: simple(OpSWR),
		0x2F: simple(OpCACHE),
		0x30: simple(OpLL),
		0x31: simple(OpLWC1),
		0x34: simple(OpLLD),
		0x35: simple(OpLDC1),
		0x37: simple(OpLD),
		0x38: simple(OpSC),
		0x39: simple(OpSWC1),
		0x3C: simple(OpSCD),
		0x3D: simple(OpSDC1),
		0x3F: simple(OpSD),
	}
}

func decodeSpecial(w uint32) Decoded {
	d := Decoded{Raw: w, RS: rs(w), RT: rt(w), RD: rd(w), Shamt: shamt(w)}
	switch funct(w) {
	case 0x00:
		d.Op = OpSLL
	case 0x02:
		d.Op = OpSRL
	case 0x03:
		d.Op = OpSRA
	case 0x04:
		d.Op = OpSLLV
	case 0x06:
		d.Op = OpSRLV
	case 0x07:
		d.Op = OpSRAV
	case 0x08:
		d.Op = OpJR
	case 0x09:
		d.Op = OpJALR
	case 0x0C:
		d.Op = OpSYSCALL
	case 0x0D:
		d.Op = OpBREAK
	case 0x0F:
		d.Op = OpSYNC
	case 0x10:
		d.Op = OpMFHI
	case 0x11:
		d.Op = OpMTHI
	case 0x12:
		d.Op = OpMFLO
	case 0x13:
		d.Op = OpMTLO
	case 0x14:
		d.Op = OpDSLLV
	case 0x16:
		d.Op = OpDSRLV
	case 0x17:
		d.Op = OpDSRAV
	case 0x18:
		d.Op = OpMULT
	case 0x19:
		d.Op = OpMULTU
	case 0x1A:
		d.Op = OpDIV
	case 0x1B:
		d.Op = OpDIVU
	case 0x1C:
		d.Op = OpDMULT
	case 0x1D:
		d.Op = OpDMULTU
	case 0x1E:
		d.Op = OpDDIV
	case 0x1F:
		d.Op = OpDDIVU
	case 0x20:
		d.Op = OpADD
	case 0x21:
		d.Op = OpADDU
	case 0x22:
		d.Op = OpSUB
	case 0x23:
		d.Op = OpSUBU
	case 0x24:
		d.Op = OpAND
	case 0x25:
		d.Op = OpOR
	case 0x26:
		d.Op = OpXOR
	case 0x27:
		d.Op = OpNOR
	case 0x2A:
		d.Op = OpSLT
	case 0x2B:
		d.Op = OpSLTU
	case 0x2C:
		d.Op = OpDADD
	case 0x2D:
		d.Op = OpDADDU
	case 0x2E:
		d.Op = OpDSUB
	case 0x2F:
		d.Op = OpDSUBU
	case 0x30:
		d.Op = OpTGE
	case 0x31:
		d.Op = OpTGEU
	case 0x32:
		d.Op = OpTLT
	case 0x33:
		d.Op = OpTLTU
	case 0x34:
		d.Op = OpTEQ
	case 0x36:
		d.Op = OpTNE
	case 0x38:
		d.Op = OpDSLL
	case 0x3A:
		d.Op = OpDSRL
	case 0x3B:
		d.Op = OpDSRA
	case 0x3C:
		d.Op = OpDSLL32
	case 0x3E:
		d.Op = OpDSRL32
	case 0x3F:
		d.Op = OpDSRA32
	default:
		d.Op = OpReserved
	}
	return d
}

func decodeRegimm(w uint32) Decoded {
	d := Decoded{Raw: w, RS: rs(w), Imm16: imm16(w)}
	switch rt(w) {
	case 0x00:
		d.Op = OpBLTZ
	case 0x01:
		d.Op = OpBGEZ
	case 0x02:
		d.Op = OpBLTZL
	case 0x03:
		d.Op = OpBGEZL
	case 0x10:
		d.Op = OpBLTZAL
	case 0x11:
		d.Op = OpBGEZAL
	case 0x12:
		d.Op = OpBLTZALL
	case 0x13:
		d.Op = OpBGEZALL
	default:
		d.Op = OpReserved
	}
	return d
}

func decodeCOP0(w uint32) Decoded {
	r := rs(w)
	if r == 0x10 {
		switch funct(w) {
		case 0x01:
			return Decoded{Op: OpTLBR, Raw: w}
		case 0x02:
			return Decoded{Op: OpTLBWI, Raw: w}
		case 0x06:
			return Decoded{Op: OpTLBWR, Raw: w}
		case 0x08:
			return Decoded{Op: OpTLBP, Raw: w}
		case 0x18:
			return Decoded{Op: OpERET, Raw: w}
		default:
			return Decoded{Op: OpReserved, Raw: w}
		}
	}
	d := Decoded{Raw: w, RT: rt(w), RD: rd(w)}
	switch r {
	case 0x00:
		d.Op = OpMFC0
	case 0x04:
		d.Op = OpMTC0
	default:
		d.Op = OpReserved
	}
	return d
}

func decodeCOP1(w uint32) Decoded {
	switch rs(w) {
	case 0x00:
		return Decoded{Op: OpMFC1, Raw: w, RT: rt(w), FD: rd(w)}
	case 0x01:
		return Decoded{Op: OpDMFC1, Raw: w, RT: rt(w), FD: rd(w)}
	case 0x02:
		return Decoded{Op: OpCFC1, Raw: w, RT: rt(w), RD: rd(w)}
	case 0x04:
		return Decoded{Op: OpMTC1, Raw: w, RT: rt(w), FD: rd(w)}
	case 0x05:
		return Decoded{Op: OpDMTC1, Raw: w, RT: rt(w), FD: rd(w)}
	case 0x06:
		return Decoded{Op: OpCTC1, Raw: w, RT: rt(w), RD: rd(w)}
	case 0x08:
		switch rt(w) {
		case 0x00:
			return Decoded{Op: OpBC1F, Raw: w, Imm16: imm16(w)}
		case 0x01:
			return Decoded{Op: OpBC1T, Raw: w, Imm16: imm16(w)}
		case 0x02:
			return Decoded{Op: OpBC1FL, Raw: w, Imm16: imm16(w)}
		case 0x03:
			return Decoded{Op: OpBC1TL, Raw: w, Imm16: imm16(w)}
		default:
			return Decoded{Op: OpReserved, Raw: w}
		}
	case 0x10:
		return decodeFPArith(w, FmtS)
	case 0x11:
		return decodeFPArith(w, FmtD)
	case 0x14:
		return decodeFPArith(w, FmtW)
	case 0x15:
		return decodeFPArith(w, FmtL)
	default:
		return Decoded{Op: OpReserved, Raw: w}
	}
}

func decodeFPArith(w uint32, fmt FPFmt) Decoded {
	// The COP1 arithmetic field layout is fmt(25-21) ft(20-16) fs(15-11)
	// fd(10-6) funct(5-0); rd()/shamt() read the right bit positions
	// for fs/fd even though they're named for the integer encoding.
	d := Decoded{Raw: w, FPFmt: fmt, RS: rd(w) /* fs */, RD: rt(w) /* ft */, FD: shamt(w) /* fd */}
	fn := funct(w)
	if fn&0x30 == 0x30 {
		d.Op = OpFPCompare
		d.Cond = fn & 0xF
		return d
	}
	switch fn {
	case 0x00:
		d.Op = OpFPAdd
	case 0x01:
		d.Op = OpFPSub
	case 0x02:
		d.Op = OpFPMul
	case 0x03:
		d.Op = OpFPDiv
	case 0x04:
		d.Op = OpFPSqrt
	case 0x05:
		d.Op = OpFPAbs
	case 0x06:
		d.Op = OpFPMov
	case 0x07:
		d.Op = OpFPNeg
	case 0x08:
		d.Op = OpFPRoundL
	case 0x09:
		d.Op = OpFPTruncL
	case 0x0A:
		d.Op = OpFPCeilL
	case 0x0B:
		d.Op = OpFPFloorL
	case 0x0C:
		d.Op = OpFPRoundW
	case 0x0D:
		d.Op = OpFPTruncW
	case 0x0E:
		d.Op = OpFPCeilW
	case 0x0F:
		d.Op = OpFPFloorW
	case 0x20:
		d.Op = OpFPCvtS
	case 0x21:
		d.Op = OpFPCvtD
	case 0x24:
		d.Op = OpFPCvtW
	case 0x25:
		d.Op = OpFPCvtL
	default:
		d.Op = OpReserved
	}
	return d
}
