package lc3

import "errors"

// Fatal machine conditions. Run and Step wrap these with context; callers
// match with errors.Is. A normal halt (MCR bit 15 cleared) is not an error.
var (
	// ErrUnknownOpcode is raised for the reserved 0xD encoding and for RTI
	// executed in user mode.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrAccessViolation is raised when user-mode code touches memory
	// outside user space.
	ErrAccessViolation = errors.New("access violation")

	// ErrTimeout is raised when the cycle cap expires before a halt. The
	// machine is left running and inspectable.
	ErrTimeout = errors.New("cycle limit exceeded")

	// ErrProgramTooLarge is raised when a loaded image would run past the
	// end of memory.
	ErrProgramTooLarge = errors.New("program too large for memory")
)
