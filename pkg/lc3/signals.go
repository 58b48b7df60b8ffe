package lc3

// setCC sets exactly one of N, Z, P from the signed interpretation of v and
// mirrors the flags into the PSR word.
func (m *Machine) setCC(v uint16) {
	m.N = bit(v, 15)
	m.Z = v == 0
	m.P = !m.N && !m.Z
	m.syncPSR()
}

// setACV raises the access-control-violation signal when the current MAR
// lies outside user space while the machine is in user mode. Supervisor
// mode may touch anything.
func (m *Machine) setACV() {
	m.ACV = (m.MAR < UserSpaceStart || m.MAR > UserSpaceEnd) && !m.Supervisor
}

// setBEN recomputes the branch-enable signal from the IR condition bits and
// the current flags: BEN = (N & IR[11]) | (Z & IR[10]) | (P & IR[9]).
func (m *Machine) setBEN() {
	m.BEN = (m.N && bit(m.IR, 11)) || (m.Z && bit(m.IR, 10)) || (m.P && bit(m.IR, 9))
}

// syncPSR rebuilds the memory-mapped PSR word from the privilege bit and
// condition codes.
func (m *Machine) syncPSR() {
	var psr uint16
	if m.Supervisor {
		psr |= 0x8000
	}
	if m.N {
		psr |= 0x4
	}
	if m.Z {
		psr |= 0x2
	}
	if m.P {
		psr |= 0x1
	}
	m.Memory[AddrPSR] = psr
}

// applyPSR loads privilege and condition codes from a PSR word popped off
// the supervisor stack.
func (m *Machine) applyPSR(psr uint16) {
	m.Supervisor = bit(psr, 15)
	m.N = bit(psr, 2)
	m.Z = bit(psr, 1)
	m.P = bit(psr, 0)
	m.Memory[AddrPSR] = psr
}
