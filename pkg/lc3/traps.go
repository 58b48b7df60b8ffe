package lc3

// A minimal OS image for machines that are not loaded with a real one: trap
// service routines for the six standard vectors, hand-assembled into system
// space. The routines follow the textbook polling pattern against the
// device registers; OUT and IN clobber R1, PUTS clobbers R1 and R2 and
// leaves R0 pointing at the string's terminator, and HALT uses only R7,
// which the TRAP instruction has already overwritten.

const (
	osGETC uint16 = 0x0400
	osOUT  uint16 = 0x0410
	osPUTS uint16 = 0x0420
	osIN   uint16 = 0x0440
	osHALT uint16 = 0x0460

	osKBSRPtr uint16 = 0x04F0
	osKBDRPtr uint16 = 0x04F1
	osDSRPtr  uint16 = 0x04F2
	osDDRPtr  uint16 = 0x04F3
	osMCRPtr  uint16 = 0x04F4
)

// InstallTrapHandlers writes the minimal OS image and points the trap
// vector table at it. Loading a real OS image afterwards simply overwrites
// both.
func (m *Machine) InstallTrapHandlers() {
	m.Memory[TrapGETC] = osGETC
	m.Memory[TrapOUT] = osOUT
	m.Memory[TrapPUTS] = osPUTS
	m.Memory[TrapIN] = osIN
	// PUTSP shares the PUTS routine: packed strings come out one byte per
	// word, which is all this minimal image offers.
	m.Memory[TrapPUTSP] = osPUTS
	m.Memory[TrapHALT] = osHALT

	m.Memory[osKBSRPtr] = AddrKBSR
	m.Memory[osKBDRPtr] = AddrKBDR
	m.Memory[osDSRPtr] = AddrDSR
	m.Memory[osDDRPtr] = AddrDDR
	m.Memory[osMCRPtr] = AddrMCR

	// GETC: poll KBSR until bit 15 set, read KBDR into R0.
	m.Memory[0x0400] = 0xA0EF // LDI R0, KBSR
	m.Memory[0x0401] = 0x07FE // BRzp #-2
	m.Memory[0x0402] = 0xA0EE // LDI R0, KBDR
	m.Memory[0x0403] = 0xC1C0 // RET

	// OUT: poll DSR until ready, write R0 to DDR.
	m.Memory[0x0410] = 0xA2E1 // LDI R1, DSR
	m.Memory[0x0411] = 0x07FE // BRzp #-2
	m.Memory[0x0412] = 0xB0E0 // STI R0, DDR
	m.Memory[0x0413] = 0xC1C0 // RET

	// PUTS: emit words at R0 until a zero terminator.
	m.Memory[0x0420] = 0x6200 // LDR R1, R0, #0
	m.Memory[0x0421] = 0x0405 // BRz done
	m.Memory[0x0422] = 0xA4CF // LDI R2, DSR
	m.Memory[0x0423] = 0x07FE // BRzp #-2
	m.Memory[0x0424] = 0xB2CE // STI R1, DDR
	m.Memory[0x0425] = 0x1021 // ADD R0, R0, #1
	m.Memory[0x0426] = 0x0FF9 // BRnzp loop
	m.Memory[0x0427] = 0xC1C0 // RET

	// IN: GETC then echo through DDR.
	m.Memory[0x0440] = 0xA0AF // LDI R0, KBSR
	m.Memory[0x0441] = 0x07FE // BRzp #-2
	m.Memory[0x0442] = 0xA0AE // LDI R0, KBDR
	m.Memory[0x0443] = 0xA2AE // LDI R1, DSR
	m.Memory[0x0444] = 0x07FE // BRzp #-2
	m.Memory[0x0445] = 0xB0AD // STI R0, DDR
	m.Memory[0x0446] = 0xC1C0 // RET

	// HALT: clear the MCR run bit.
	m.Memory[0x0460] = 0x5FE0 // AND R7, R7, #0
	m.Memory[0x0461] = 0xBE92 // STI R7, MCR
	m.Memory[0x0462] = 0x0FFD // BRnzp #-3, unreachable once MCR clears
}
