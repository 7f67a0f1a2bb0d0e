package decoder

// Op identifies a decoded MIPS III instruction's operation, independent
// of which raw encoding (primary opcode, SPECIAL funct, COP1 funct...)
// produced it.
type Op uint16

const (
	OpReserved Op = iota

	// Arithmetic/logical, register form.
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpDADD
	OpDADDU
	OpDSUB
	OpDSUBU

	// Arithmetic/logical, immediate form.
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpDADDI
	OpDADDIU

	// Shifts.
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpDSLL
	OpDSRL
	OpDSRA
	OpDSLLV
	OpDSRLV
	OpDSRAV
	OpDSLL32
	OpDSRL32
	OpDSRA32

	// Multiply/divide.
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpDMULT
	OpDMULTU
	OpDDIV
	OpDDIVU
	OpMFHI
	OpMFLO
	OpMTHI
	OpMTLO

	// Branches/jumps.
	OpJ
	OpJAL
	OpJR
	OpJALR
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpBEQL
	OpBNEL
	OpBLEZL
	OpBGTZL
	OpBLTZ
	OpBGEZ
	OpBLTZL
	OpBGEZL
	OpBLTZAL
	OpBGEZAL
	OpBLTZALL
	OpBGEZALL

	// Loads/stores.
	OpLB
	OpLBU
	OpLH
	OpLHU
	OpLW
	OpLWU
	OpLD
	OpLWL
	OpLWR
	OpLDL
	OpLDR
	OpSB
	OpSH
	OpSW
	OpSD
	OpSWL
	OpSWR
	OpSDL
	OpSDR
	OpLL
	OpLLD
	OpSC
	OpSCD

	// Traps.
	OpTGE
	OpTGEU
	OpTLT
	OpTLTU
	OpTEQ
	OpTNE

	// System.
	OpSYSCALL
	OpBREAK
	OpSYNC
	OpCACHE

	// CP0.
	OpMFC0
	OpMTC0
	OpTLBR
	OpTLBWI
	OpTLBWR
	OpTLBP
	OpERET

	// CP1 control transfer.
	OpMFC1
	OpDMFC1
	OpCFC1
	OpMTC1
	OpDMTC1
	OpCTC1
	OpBC1F
	OpBC1T
	OpBC1FL
	OpBC1TL
	OpLWC1
	OpLDC1
	OpSWC1
	OpSDC1

	// CP1 arithmetic, parameterized by Decoded.FPFmt.
	OpFPAdd
	OpFPSub
	OpFPMul
	OpFPDiv
	OpFPSqrt
	OpFPAbs
	OpFPMov
	OpFPNeg
	OpFPRoundL
	OpFPTruncL
	OpFPCeilL
	OpFPFloorL
	OpFPRoundW
	OpFPTruncW
	OpFPCeilW
	OpFPFloorW
	OpFPCvtS
	OpFPCvtD
	OpFPCvtW
	OpFPCvtL
	OpFPCompare
)

// FPFmt is the operand format of a CP1 arithmetic instruction.
type FPFmt uint8

const (
	FmtS FPFmt = iota
	FmtD
	FmtW
	FmtL
)
