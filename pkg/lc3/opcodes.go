package lc3

// Opcode is the value of IR[15:12].
type Opcode uint16

const (
	OpBR   Opcode = 0x0
	OpADD  Opcode = 0x1
	OpLD   Opcode = 0x2
	OpST   Opcode = 0x3
	OpJSR  Opcode = 0x4
	OpAND  Opcode = 0x5
	OpLDR  Opcode = 0x6
	OpSTR  Opcode = 0x7
	OpRTI  Opcode = 0x8
	OpNOT  Opcode = 0x9
	OpLDI  Opcode = 0xA
	OpSTI  Opcode = 0xB
	OpJMP  Opcode = 0xC
	OpRES  Opcode = 0xD // reserved, always illegal
	OpLEA  Opcode = 0xE
	OpTRAP Opcode = 0xF
)

// OpcodeOf extracts the opcode field from an instruction word.
func OpcodeOf(instr uint16) Opcode {
	return Opcode(instr >> 12)
}

// Memory-mapped device registers.
const (
	AddrKBSR uint16 = 0xFE00 // keyboard status, bit 15 = key available
	AddrKBDR uint16 = 0xFE02 // keyboard data
	AddrDSR  uint16 = 0xFE04 // display status, bit 15 = ready
	AddrDDR  uint16 = 0xFE06 // display data
	AddrPSR  uint16 = 0xFFFC // processor status
	AddrMCR  uint16 = 0xFFFE // machine control, bit 15 = run
)

// Trap vectors.
const (
	TrapGETC  uint16 = 0x20
	TrapOUT   uint16 = 0x21
	TrapPUTS  uint16 = 0x22
	TrapIN    uint16 = 0x23
	TrapPUTSP uint16 = 0x24
	TrapHALT  uint16 = 0x25
)

// Memory regions.
const (
	MemorySize     = 0x10000
	UserSpaceStart uint16 = 0x3000
	UserSpaceEnd   uint16 = 0xFDFF
	IntVectorTable uint16 = 0x0100
)

const NumRegisters = 8
