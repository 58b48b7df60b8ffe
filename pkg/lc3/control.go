package lc3

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Per-state action routines. Each runs to completion within one microstate;
// the sequencer then computes the next state from the signals they leave
// behind.

func (m *Machine) stFetch1() {
	m.fetchPC = m.PC
	m.MAR = m.PC
	m.PC++
	m.setACV()
	m.decoded = false
}

// stFetch2 is the ACV checkpoint; the violation itself was computed in
// FETCH1 and is acted on by the halt check.
func (m *Machine) stFetch2() {}

func (m *Machine) stFetch3() {
	m.memRead()
}

func (m *Machine) stLoadIR() {
	m.IR = m.MDR
}

func (m *Machine) stDecode() {
	m.setBEN()
	m.decoded = true
}

func (m *Machine) stBR() {
	// Routing only; the PC adjustment happens in BR_TAKEN so the offset is
	// applied exactly once.
}

func (m *Machine) stBRTaken() {
	m.PC += Sext(m.IR, 8)
}

func (m *Machine) stADD() {
	dr := (m.IR >> 9) & 7
	sr1 := (m.IR >> 6) & 7
	if bit(m.IR, 5) {
		m.Reg[dr] = m.Reg[sr1] + Sext(m.IR, 4)
	} else {
		m.Reg[dr] = m.Reg[sr1] + m.Reg[m.IR&7]
	}
	m.setCC(m.Reg[dr])
}

func (m *Machine) stAND() {
	dr := (m.IR >> 9) & 7
	sr1 := (m.IR >> 6) & 7
	if bit(m.IR, 5) {
		m.Reg[dr] = m.Reg[sr1] & Sext(m.IR, 4)
	} else {
		m.Reg[dr] = m.Reg[sr1] & m.Reg[m.IR&7]
	}
	m.setCC(m.Reg[dr])
}

func (m *Machine) stNOT() {
	dr := (m.IR >> 9) & 7
	m.Reg[dr] = ^m.Reg[(m.IR>>6)&7]
	m.setCC(m.Reg[dr])
}

func (m *Machine) stLEA() {
	dr := (m.IR >> 9) & 7
	m.Reg[dr] = m.PC + Sext(m.IR, 8)
	m.setCC(m.Reg[dr])
}

func (m *Machine) stJMP() {
	m.PC = m.Reg[(m.IR>>6)&7]
}

func (m *Machine) stJSR() {
	m.Reg[7] = m.PC
	m.PC += Sext(m.IR, 10)
}

func (m *Machine) stJSRR() {
	// Read BaseR before clobbering R7 so JSRR R7 jumps to the old value.
	target := m.Reg[(m.IR>>6)&7]
	m.Reg[7] = m.PC
	m.PC = target
}

// stLD1 computes the PC-relative effective address shared by LD, LDI, ST
// and STI.
func (m *Machine) stLD1() {
	m.MAR = m.PC + Sext(m.IR, 8)
	m.setACV()
}

// stLDR1 computes the base+offset6 effective address shared by LDR and STR.
func (m *Machine) stLDR1() {
	m.MAR = m.Reg[(m.IR>>6)&7] + Sext(m.IR, 5)
	m.setACV()
}

func (m *Machine) stMemRead() {
	m.memRead()
}

// stLoadDR finishes every load chain: DR <- MDR, set CC.
func (m *Machine) stLoadDR() {
	dr := (m.IR >> 9) & 7
	m.Reg[dr] = m.MDR
	m.setCC(m.Reg[dr])
}

// stIndirect follows one level of indirection: MAR <- mem[MAR].
func (m *Machine) stIndirect() {
	m.memRead()
	m.MAR = m.MDR
	m.setACV()
}

// stStoreSR finishes ST and STR: MDR <- SR, then commit. The write is
// suppressed when the address check already failed.
func (m *Machine) stStoreSR() {
	if m.ACV {
		return
	}
	m.MDR = m.Reg[(m.IR>>9)&7]
	m.memWrite()
}

// stSTI2 resolves the store-indirect pointer and commits in one state.
func (m *Machine) stSTI2() {
	m.memRead()
	m.MAR = m.MDR
	m.setACV()
	if m.ACV {
		return
	}
	m.MDR = m.Reg[(m.IR>>9)&7]
	m.memWrite()
}

func (m *Machine) stTRAP1() {
	m.Reg[7] = m.PC
}

func (m *Machine) stTRAP2() {
	m.MAR = Zext(m.IR, 7)
}

func (m *Machine) stTRAP4() {
	m.PC = m.MDR
}

// stRTI pops PC then PSR off the supervisor stack. The decode dispatch
// guarantees this state is only reached in supervisor mode.
func (m *Machine) stRTI() {
	m.PC = m.Memory[m.Reg[6]]
	m.Reg[6]++
	psr := m.Memory[m.Reg[6]]
	m.Reg[6]++
	m.applyPSR(psr)
}

// stInterrupt pushes PSR then PC onto the R6 stack, enters supervisor mode
// and vectors through the interrupt table.
func (m *Machine) stInterrupt() {
	psr := m.Memory[AddrPSR]
	m.Reg[6]--
	m.Memory[m.Reg[6]] = psr
	m.Reg[6]--
	m.Memory[m.Reg[6]] = m.PC
	m.Supervisor = true
	m.syncPSR()
	m.INT = false
	m.PC = m.Memory[IntVectorTable]
}

// nextState is the sequencer's transition function: pure in the current
// state and the signals (opcode field, BEN, INT, privilege, IR[11]). It is
// total; the only failing transitions are the two unknown-opcode cases.
func (m *Machine) nextState() (State, error) {
	switch m.state {
	case StateFetch1:
		if m.INT && !m.Supervisor {
			return StateInterrupt, nil
		}
		return StateFetch2, nil
	case StateFetch2:
		return StateFetch3, nil
	case StateFetch3:
		return StateLoadIR, nil
	case StateLoadIR:
		return StateDecode, nil
	case StateDecode:
		return m.dispatch()

	case StateBR:
		if m.BEN {
			return StateBRTaken, nil
		}
		return StateFetch1, nil

	case StateLD1:
		return StateLD2, nil
	case StateLD2:
		return StateLD3, nil
	case StateLDR1:
		return StateLDR2, nil
	case StateLDR2:
		return StateLDR3, nil
	case StateLDI1:
		return StateLDI2, nil
	case StateLDI2:
		return StateLDI3, nil
	case StateLDI3:
		return StateLDI4, nil
	case StateST1:
		return StateST2, nil
	case StateSTR1:
		return StateSTR2, nil
	case StateSTI1:
		return StateSTI2, nil
	case StateTRAP1:
		return StateTRAP2, nil
	case StateTRAP2:
		return StateTRAP3, nil
	case StateTRAP3:
		return StateTRAP4, nil

	default:
		return StateFetch1, nil
	}
}

// dispatch branches out of DECODE on IR[15:12]. JSR and JSRR share an
// opcode and split on IR[11]. RTI in user mode and the reserved encoding
// are the machine's two illegal instructions.
func (m *Machine) dispatch() (State, error) {
	switch OpcodeOf(m.IR) {
	case OpBR:
		return StateBR, nil
	case OpADD:
		return StateADD, nil
	case OpLD:
		return StateLD1, nil
	case OpST:
		return StateST1, nil
	case OpJSR:
		if bit(m.IR, 11) {
			return StateJSR, nil
		}
		return StateJSRR, nil
	case OpAND:
		return StateAND, nil
	case OpLDR:
		return StateLDR1, nil
	case OpSTR:
		return StateSTR1, nil
	case OpRTI:
		if !m.Supervisor {
			return m.state, fmt.Errorf("RTI in user mode at 0x%04X: %w", m.fetchPC, ErrUnknownOpcode)
		}
		return StateRTI, nil
	case OpNOT:
		return StateNOT, nil
	case OpLDI:
		return StateLDI1, nil
	case OpSTI:
		return StateSTI1, nil
	case OpJMP:
		return StateJMP, nil
	case OpLEA:
		return StateLEA, nil
	case OpTRAP:
		return StateTRAP1, nil
	default:
		return m.state, fmt.Errorf("opcode 0x%X at 0x%04X: %w", OpcodeOf(m.IR), m.fetchPC, ErrUnknownOpcode)
	}
}

// tick executes one microstate: run the action routine, advance the
// sequencer, then check the halt conditions.
func (m *Machine) tick() error {
	controlStore[m.state].run(m)

	next, err := m.nextState()
	if err != nil {
		return err
	}
	m.state = next

	if m.Memory[AddrMCR]&0x8000 == 0 {
		m.halted = true
		m.logger().WithField("pc", fmt.Sprintf("0x%04X", m.PC)).Info("machine halted")
		return nil
	}
	if m.ACV {
		return fmt.Errorf("MAR 0x%04X in user mode: %w", m.MAR, ErrAccessViolation)
	}
	return nil
}

// Step executes one complete instruction: all microstates from FETCH1 until
// the sequencer returns to FETCH1. When the pipeline observer is enabled
// the completed instruction is issued to it and one pipeline cycle
// advances. Stepping a halted machine is a no-op.
func (m *Machine) Step() error {
	if m.halted {
		return nil
	}
	for ticks := 0; ; ticks++ {
		if ticks >= maxMicroTicks {
			m.halted = true
			return fmt.Errorf("sequencer stuck near %s: %w", StateName(m.state), ErrTimeout)
		}
		if err := m.tick(); err != nil {
			m.halted = true
			m.logger().WithFields(logrus.Fields{
				"pc": fmt.Sprintf("0x%04X", m.fetchPC),
				"ir": fmt.Sprintf("0x%04X", m.IR),
			}).WithError(err).Error("machine fault")
			return err
		}
		if m.halted || m.state == StateFetch1 {
			break
		}
	}
	if m.decoded {
		m.observePipeline()
	}
	return nil
}

// Run executes up to maxCycles instructions, or DefaultMaxCycles when
// maxCycles is non-positive. A normal halt returns nil; expiry of the cap
// returns ErrTimeout with the machine still running and inspectable.
func (m *Machine) Run(maxCycles int) error {
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	for i := 0; i < maxCycles; i++ {
		if m.halted {
			return nil
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	if m.halted {
		return nil
	}
	return fmt.Errorf("%d instructions executed: %w", maxCycles, ErrTimeout)
}

// observePipeline hands the just-completed instruction to the pipeline
// model and advances it one cycle. An instruction refused at issue
// (structural hazard) is retried on the next macro-step.
func (m *Machine) observePipeline() {
	if !m.pipeEnabled || m.pipe == nil {
		return
	}
	m.pendIssue = append(m.pendIssue, pendingIssue{instr: m.IR, pc: m.fetchPC})
	for len(m.pendIssue) > 0 {
		if !m.pipe.Issue(m.pendIssue[0].instr, m.pendIssue[0].pc) {
			break
		}
		m.pendIssue = m.pendIssue[1:]
	}
	m.pipe.Cycle()
}
