package lc3

// State is a microsequencer state number. The control store holds 64 states;
// the numbering is fixed by the decode dispatch and must not be reassigned.
type State uint8

const NumStates = 64

const (
	StateBR        State = 0 // routes on BEN
	StateADD       State = 1
	StateLD1       State = 2 // MAR <- PC + SEXT(offset9)
	StateST1       State = 3
	StateAND       State = 5
	StateLDR1      State = 6 // MAR <- BaseR + SEXT(offset6)
	StateSTR1      State = 7
	StateRTI       State = 8
	StateNOT       State = 9
	StateLDI1      State = 10
	StateSTI1      State = 11
	StateJMP       State = 12
	StateSTI2      State = 13
	StateLEA       State = 14
	StateTRAP1     State = 15 // R7 <- PC
	StateST2       State = 16
	StateFetch1    State = 18 // MAR <- PC; PC <- PC+1
	StateJSRR      State = 20
	StateJSR       State = 21
	StateBRTaken   State = 22 // PC <- PC + SEXT(offset9)
	StateLoadIR    State = 30 // IR <- MDR
	StateDecode    State = 32 // SET_BEN; dispatch on IR[15:12]
	StateFetch2    State = 33 // ACV checkpoint
	StateLD2       State = 34
	StateFetch3    State = 35 // MDR <- mem[MAR]
	StateLD3       State = 36
	StateLDR2      State = 37
	StateLDR3      State = 38
	StateSTR2      State = 39
	StateLDI2      State = 40 // MAR <- mem[MAR]
	StateLDI3      State = 41
	StateLDI4      State = 42
	StateTRAP2     State = 43 // MAR <- ZEXT(trapvect8)
	StateTRAP3     State = 44
	StateTRAP4     State = 45 // PC <- MDR
	StateInterrupt State = 46
)

// Microinstruction is one entry of the control store: a symbolic name for
// tracing plus the action routine executed when the sequencer reaches the
// state. The store is immutable after package init.
type Microinstruction struct {
	Name string
	run  func(*Machine)
}

var controlStore [NumStates]Microinstruction

func define(s State, name string, run func(*Machine)) {
	controlStore[s] = Microinstruction{Name: name, run: run}
}

func init() {
	for i := range controlStore {
		// Unused states are no-ops that leave all state untouched.
		controlStore[i] = Microinstruction{Name: "NOP", run: func(*Machine) {}}
	}

	define(StateFetch1, "FETCH1", (*Machine).stFetch1)
	define(StateFetch2, "FETCH2", (*Machine).stFetch2)
	define(StateFetch3, "FETCH3", (*Machine).stFetch3)
	define(StateLoadIR, "LOAD_IR", (*Machine).stLoadIR)
	define(StateDecode, "DECODE", (*Machine).stDecode)

	define(StateBR, "BR", (*Machine).stBR)
	define(StateBRTaken, "BR_TAKEN", (*Machine).stBRTaken)
	define(StateADD, "ADD", (*Machine).stADD)
	define(StateAND, "AND", (*Machine).stAND)
	define(StateNOT, "NOT", (*Machine).stNOT)
	define(StateLEA, "LEA", (*Machine).stLEA)
	define(StateJMP, "JMP", (*Machine).stJMP)
	define(StateJSR, "JSR", (*Machine).stJSR)
	define(StateJSRR, "JSRR", (*Machine).stJSRR)

	define(StateLD1, "LD1", (*Machine).stLD1)
	define(StateLD2, "LD2", (*Machine).stMemRead)
	define(StateLD3, "LD3", (*Machine).stLoadDR)
	define(StateLDR1, "LDR1", (*Machine).stLDR1)
	define(StateLDR2, "LDR2", (*Machine).stMemRead)
	define(StateLDR3, "LDR3", (*Machine).stLoadDR)
	define(StateLDI1, "LDI1", (*Machine).stLD1)
	define(StateLDI2, "LDI2", (*Machine).stIndirect)
	define(StateLDI3, "LDI3", (*Machine).stMemRead)
	define(StateLDI4, "LDI4", (*Machine).stLoadDR)

	define(StateST1, "ST1", (*Machine).stLD1)
	define(StateST2, "ST2", (*Machine).stStoreSR)
	define(StateSTR1, "STR1", (*Machine).stLDR1)
	define(StateSTR2, "STR2", (*Machine).stStoreSR)
	define(StateSTI1, "STI1", (*Machine).stLD1)
	define(StateSTI2, "STI2", (*Machine).stSTI2)

	define(StateTRAP1, "TRAP1", (*Machine).stTRAP1)
	define(StateTRAP2, "TRAP2", (*Machine).stTRAP2)
	define(StateTRAP3, "TRAP3", (*Machine).stMemRead)
	define(StateTRAP4, "TRAP4", (*Machine).stTRAP4)

	define(StateRTI, "RTI", (*Machine).stRTI)
	define(StateInterrupt, "INTERRUPT", (*Machine).stInterrupt)
}

// StateName returns the symbolic name of a state, for logging and traces.
func StateName(s State) string {
	if int(s) < NumStates {
		return controlStore[s].Name
	}
	return "INVALID"
}
