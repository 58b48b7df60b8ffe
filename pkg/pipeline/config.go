// Package pipeline models the flow of LC-3 instructions through a
// configurable in-order pipeline. It does not execute instructions; it
// observes an issued instruction stream and accounts cycles, hazards and
// stalls to produce CPI/IPC metrics.
package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies the kind of work a pipeline slot performs.
type Stage uint8

const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback
	StageCustom

	numStageKinds
)

var stageNames = [numStageKinds]string{
	"FETCH", "DECODE", "EXECUTE", "MEMORY", "WRITEBACK", "CUSTOM",
}

func (s Stage) String() string {
	if s < numStageKinds {
		return stageNames[s]
	}
	return "UNKNOWN"
}

// MaxDepth is the deepest supported pipeline.
const MaxDepth = 8

// ErrInvalidConfig is returned for configurations the model cannot run.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Config describes a pipeline shape and its timing parameters.
type Config struct {
	Name   string
	Stages []Stage
	Depth  int

	ForwardingEnabled       bool
	BranchPredictionEnabled bool

	// OutOfOrderExecution is plumbed for configuration compatibility but
	// rejected by Validate; the model is strictly in-order.
	OutOfOrderExecution bool

	ClockFrequencyMHz uint32
	MemoryLatency     uint32
	BranchPenalty     uint32
}

// DefaultConfig returns the classic 5-stage in-order pipeline with
// forwarding enabled.
func DefaultConfig() Config {
	return Config{
		Name: "Default 5-Stage Pipeline",
		Stages: []Stage{
			StageFetch, StageDecode, StageExecute, StageMemory, StageWriteback,
		},
		Depth:             5,
		ForwardingEnabled: true,
		ClockFrequencyMHz: 100,
		MemoryLatency:     1,
		BranchPenalty:     2,
	}
}

// Validate reports whether the configuration can be simulated.
func (c Config) Validate() error {
	if c.Depth < 1 || c.Depth > MaxDepth {
		return fmt.Errorf("depth %d out of range [1, %d]: %w", c.Depth, MaxDepth, ErrInvalidConfig)
	}
	if len(c.Stages) < c.Depth {
		return fmt.Errorf("%d stages for depth %d: %w", len(c.Stages), c.Depth, ErrInvalidConfig)
	}
	for i := 0; i < c.Depth; i++ {
		if c.Stages[i] >= numStageKinds {
			return fmt.Errorf("stage %d has unknown kind %d: %w", i, c.Stages[i], ErrInvalidConfig)
		}
	}
	if c.OutOfOrderExecution {
		return fmt.Errorf("out-of-order execution not implemented: %w", ErrInvalidConfig)
	}
	return nil
}
