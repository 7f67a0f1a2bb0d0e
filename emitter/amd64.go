package emitter

// Minimal amd64 encoding helpers. Register numbers follow the
// System V ABI's general-purpose register indices (0=rax..15=r15);
// registers 8-15 need a REX prefix to address at all.

const (
	regAX = 0
	regCX = 1
	regDX = 2
	regBX = 3
	regSP = 4
	regBP = 5
	regSI = 6
	regDI = 7
)

// rex builds a REX prefix: W sets 64-bit operand size, R/X/B extend
// the reg/index/rm fields past 3 bits.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// movImm64 is REX.W + B8+reg + imm64 ("movabs reg, imm64").
func movImm64(reg int, imm uint64) []byte {
	buf := []byte{rex(true, false, false, reg >= 8), 0xB8 + byte(reg&7)}
	return append(buf, le64(imm)...)
}

// aluRegReg encodes a register-register ALU op (op is the opcode
// byte for the "reg, r/m" form, e.g. 0x01=ADD, 0x09=OR, 0x21=AND,
// 0x29=SUB, 0x31=XOR): dst <- dst OP src.
func aluRegReg(op byte, dst, src int) []byte {
	return []byte{
		rex(true, src >= 8, false, dst >= 8),
		op,
		modrm(0b11, byte(src), byte(dst)),
	}
}

// notReg is REX.W + F7 /2.
func notReg(reg int) []byte {
	return []byte{rex(true, false, false, reg >= 8), 0xF7, modrm(0b11, 2, byte(reg))}
}

// shiftRegCL is REX.W + D3 /r (shl=4, shr=5, sar=7), shifting reg by cl.
func shiftRegCL(ext byte, reg int) []byte {
	return []byte{rex(true, false, false, reg >= 8), 0xD3, modrm(0b11, ext, byte(reg))}
}

// ret is a bare RET.
func ret() []byte { return []byte{0xC3} }

// callPlaceholder emits a near CALL rel32 with a zero displacement.
// This toy backend has no linker pass to patch host-function call
// targets into generated code, so host-call IR kinds (LOAD, STORE,
// TLB_LOOKUP, GET_PTR, SET_PTR, MULTIPLY, DIVIDE, ERET) are recorded
// here only for code-cache accounting (C5); actual execution runs
// through the parallel compiled closure built by Compile, not these
// bytes. See DESIGN.md for why that split is necessary without
// machine-code execution support in this exercise.
func callPlaceholder() []byte {
	return append([]byte{0xE8}, le32(0)...)
}
