package lc3

import "fmt"

// memRead performs one MAR/MDR memory read. The ready flag is cleared
// before the access and set when the word is available; memory is
// synchronous, so the handshake completes within the same microstate.
// Reads of the keyboard registers are intercepted: KBSR reports key
// availability in bit 15 and KBDR consumes the oldest buffered key.
func (m *Machine) memRead() {
	m.R = false
	switch m.MAR {
	case AddrKBSR:
		if len(m.KeyBuffer) > 0 {
			m.MDR = 0x8000
		} else {
			m.MDR = 0
		}
	case AddrKBDR:
		if len(m.KeyBuffer) > 0 {
			m.MDR = m.KeyBuffer[0]
			m.KeyBuffer = m.KeyBuffer[1:]
		} else {
			m.MDR = 0
		}
	default:
		m.MDR = m.Memory[m.MAR]
	}
	m.R = true
}

// memWrite performs one MAR/MDR memory write. Writes to the display data
// register emit the low byte to the output sink and leave DSR ready. Writes
// to PSR store the word and also reload the privilege bit and condition
// codes from it. All other addresses, device registers included, store the
// word directly so that programs can clear MCR.
func (m *Machine) memWrite() {
	m.R = false
	switch m.MAR {
	case AddrDDR:
		fmt.Fprintf(m.outputSink(), "%c", rune(m.MDR&0xFF))
		m.Memory[AddrDDR] = m.MDR
		m.Memory[AddrDSR] = 0x8000
	case AddrPSR:
		m.applyPSR(m.MDR)
	default:
		m.Memory[m.MAR] = m.MDR
	}
	m.R = true
}
