package lc3

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/import1bones/simulator-lc3/pkg/pipeline"
)

// DefaultMaxCycles is the instruction cap applied by Run when the caller
// passes a non-positive limit.
const DefaultMaxCycles = 10000

// maxMicroTicks bounds the microstates a single instruction may take. The
// longest legal chain (LDI) is nine states; anything past this is a
// sequencer bug, not a slow instruction.
const maxMicroTicks = 64

// Machine owns the complete architectural state of one LC-3 instance:
// register file, PC/IR/MAR/MDR, condition codes, control signals, and the
// 64K word memory with its device-register region. All mutation happens on
// the goroutine driving Step/Run; external code may inspect or poke state
// between steps only.
type Machine struct {
	Reg [NumRegisters]uint16

	PC  uint16
	IR  uint16
	MAR uint16
	MDR uint16

	Memory [MemorySize]uint16

	N, Z, P bool

	// Control signals. R is the memory-ready handshake, cleared before each
	// access and set by the memory operation itself.
	BEN bool
	INT bool
	R   bool
	ACV bool

	// Supervisor mirrors PSR bit 15.
	Supervisor bool

	KeyBuffer []uint16

	// Output is where display-register writes are sent. If nil, os.Stdout
	// is used.
	Output io.Writer

	Log logrus.FieldLogger

	state   State
	halted  bool
	decoded bool

	pipe        *pipeline.Pipeline
	pipeEnabled bool
	pendIssue   []pendingIssue
	fetchPC     uint16
}

type pendingIssue struct {
	instr uint16
	pc    uint16
}

// New creates a machine in the normative reset state.
func New() *Machine {
	m := &Machine{Log: logrus.StandardLogger()}
	m.Reset()
	return m
}

// Reset restores the normative power-on state: registers cleared, PC at the
// start of user space, Z set, supervisor mode, MCR running, display ready.
// Pipeline configuration, if any, is preserved.
func (m *Machine) Reset() {
	m.Reg = [NumRegisters]uint16{}
	m.Memory = [MemorySize]uint16{}
	m.PC = UserSpaceStart
	m.IR = 0
	m.MAR = 0
	m.MDR = 0
	m.N, m.Z, m.P = false, true, false
	m.BEN, m.INT, m.R, m.ACV = false, false, false, false
	m.Supervisor = true
	m.KeyBuffer = nil
	m.state = StateFetch1
	m.halted = false
	m.decoded = false
	m.pendIssue = nil

	m.Memory[AddrMCR] = 0x8000
	m.Memory[AddrDSR] = 0x8000
	m.Memory[AddrPSR] = 0x8002

	m.logger().WithField("pc", fmt.Sprintf("0x%04X", m.PC)).Debug("machine reset")
}

// LoadProgram copies words into memory starting at origin and points PC
// there. The machine is otherwise untouched.
func (m *Machine) LoadProgram(words []uint16, origin uint16) error {
	if int(origin)+len(words) > MemorySize {
		return fmt.Errorf("load at 0x%04X, %d words: %w", origin, len(words), ErrProgramTooLarge)
	}
	copy(m.Memory[origin:], words)
	m.PC = origin
	m.logger().WithFields(logrus.Fields{
		"origin": fmt.Sprintf("0x%04X", origin),
		"words":  len(words),
	}).Debug("program loaded")
	return nil
}

// Register returns general-purpose register i. Out-of-range indices read as
// register 0.
func (m *Machine) Register(i int) uint16 {
	if i < 0 || i >= NumRegisters {
		return m.Reg[0]
	}
	return m.Reg[i]
}

// SetRegister writes general-purpose register i. Out-of-range indices are
// ignored.
func (m *Machine) SetRegister(i int, v uint16) {
	if i >= 0 && i < NumRegisters {
		m.Reg[i] = v
	}
}

// MemoryWord returns the raw word at addr without device side effects.
func (m *Machine) MemoryWord(addr uint16) uint16 {
	return m.Memory[addr]
}

// SetMemoryWord writes the raw word at addr without device side effects.
func (m *Machine) SetMemoryWord(addr uint16, v uint16) {
	m.Memory[addr] = v
}

// ConditionCodes returns the N, Z, P flags.
func (m *Machine) ConditionCodes() (n, z, p bool) {
	return m.N, m.Z, m.P
}

// SetPC repoints the program counter. Valid only between steps.
func (m *Machine) SetPC(pc uint16) {
	m.PC = pc
}

// IsHalted reports whether the machine has stopped, normally or fatally.
func (m *Machine) IsHalted() bool {
	return m.halted
}

// PushKey appends a key to the keyboard buffer, making KBSR report a key
// available, and raises a pending interrupt. The interrupt is taken at the
// next fetch if the machine is in user mode.
func (m *Machine) PushKey(val uint16) {
	m.KeyBuffer = append(m.KeyBuffer, val)
	m.INT = true
}

// TriggerInterrupt raises the pending-interrupt signal directly.
func (m *Machine) TriggerInterrupt() {
	m.INT = true
}

// EnablePipeline attaches or detaches the pipeline observer. The first call
// with enable=true creates a default 5-stage pipeline unless one was
// configured already.
func (m *Machine) EnablePipeline(enable bool) {
	if enable && m.pipe == nil {
		m.pipe = pipeline.New(pipeline.DefaultConfig())
	}
	m.pipeEnabled = enable
}

// ConfigurePipeline replaces the pipeline with one built from cfg.
func (m *Machine) ConfigurePipeline(cfg pipeline.Config) error {
	p, err := pipeline.NewValidated(cfg)
	if err != nil {
		return err
	}
	m.pipe = p
	m.pipeEnabled = true
	m.pendIssue = nil
	return nil
}

// ResetPipeline empties the pipeline and zeroes its metrics, preserving the
// configuration.
func (m *Machine) ResetPipeline() {
	if m.pipe != nil {
		m.pipe.Reset()
	}
	m.pendIssue = nil
}

// PipelineMetrics returns the current pipeline counters and derived ratios.
// The zero snapshot is returned when no pipeline is attached.
func (m *Machine) PipelineMetrics() pipeline.Snapshot {
	if m.pipe == nil {
		return pipeline.Snapshot{}
	}
	return m.pipe.Metrics()
}

// Pipeline exposes the attached pipeline model, or nil.
func (m *Machine) Pipeline() *pipeline.Pipeline {
	return m.pipe
}

func (m *Machine) logger() logrus.FieldLogger {
	if m.Log != nil {
		return m.Log
	}
	return logrus.StandardLogger()
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}
