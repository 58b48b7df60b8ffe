package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"github.com/import1bones/simulator-lc3/pkg/lc3"
	"github.com/import1bones/simulator-lc3/pkg/loader"
	"github.com/import1bones/simulator-lc3/pkg/pipeline"
)

func main() {
	objPath := flag.String("obj", "", "object image to load (big-endian words, origin first)")
	maxCycles := flag.Int("max-cycles", 0, "instruction cap, 0 for the default")
	pipelineMode := flag.Bool("pipeline", false, "attach the pipeline model and report metrics")
	depth := flag.Int("depth", 5, "pipeline depth in stages (1-8)")
	forwarding := flag.Bool("forwarding", true, "enable forwarding in the pipeline model")
	branchPred := flag.Bool("branch-prediction", false, "enable branch prediction in the pipeline model")
	withOS := flag.Bool("os", true, "install the minimal trap handlers before loading")
	verbose := flag.Bool("verbose", false, "debug logging")
	profiling := flag.Bool("profile", false, "write a CPU profile to the working directory")
	flag.Parse()

	if *objPath == "" {
		fmt.Fprintln(os.Stderr, "usage: lc3 -obj program.obj [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if *profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	m := lc3.New()
	m.Log = log
	if *withOS {
		m.InstallTrapHandlers()
	}

	prog, err := loader.ReadFile(*objPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load object image")
	}
	if err := m.LoadProgram(prog.Words, prog.Origin); err != nil {
		log.WithError(err).Fatal("failed to place program in memory")
	}

	if *pipelineMode {
		cfg := pipelineConfig(*depth, *forwarding, *branchPred)
		if err := m.ConfigurePipeline(cfg); err != nil {
			log.WithError(err).Fatal("bad pipeline configuration")
		}
	}

	runErr := m.Run(*maxCycles)
	printState(m)

	if *pipelineMode {
		m.Pipeline().Drain()
		printMetrics(m.PipelineMetrics())
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, lc3.ErrTimeout):
		log.WithError(runErr).Warn("run did not halt")
		os.Exit(3)
	default:
		log.WithError(runErr).Error("machine fault")
		os.Exit(1)
	}
}

// pipelineConfig builds a configuration of the requested depth from the
// canonical stage order, padding with CUSTOM stages past writeback.
func pipelineConfig(depth int, forwarding, branchPred bool) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ForwardingEnabled = forwarding
	cfg.BranchPredictionEnabled = branchPred
	cfg.Depth = depth
	for len(cfg.Stages) < depth {
		cfg.Stages = append(cfg.Stages, pipeline.StageCustom)
	}
	cfg.Name = fmt.Sprintf("%d-Stage Pipeline", depth)
	return cfg
}

func printState(m *lc3.Machine) {
	fmt.Println("=== LC-3 Machine State ===")
	fmt.Printf("PC: 0x%04X  IR: 0x%04X\n", m.PC, m.IR)
	for i := 0; i < lc3.NumRegisters; i++ {
		fmt.Printf("  R%d: 0x%04X (%d)\n", i, m.Register(i), int16(m.Register(i)))
	}
	n, z, p := m.ConditionCodes()
	fmt.Printf("Condition codes: N=%v Z=%v P=%v\n", n, z, p)
	fmt.Printf("PSR: 0x%04X  halted: %v\n", m.MemoryWord(lc3.AddrPSR), m.IsHalted())
}

func printMetrics(s pipeline.Snapshot) {
	fmt.Println("=== Pipeline Metrics ===")
	fmt.Printf("Cycles: %d  Instructions: %d  Stalls: %d\n",
		s.TotalCycles, s.TotalInstructions, s.StallCycles)
	fmt.Printf("CPI: %.3f  IPC: %.3f  Efficiency: %.1f%%\n",
		s.CPI, s.IPC, s.Efficiency*100)
	fmt.Printf("Hazards: data=%d control=%d structural=%d\n",
		s.DataHazards, s.ControlHazards, s.StructuralHazards)
	fmt.Printf("Memory: reads=%d writes=%d stall cycles=%d\n",
		s.MemoryReads, s.MemoryWrites, s.MemoryStallCycles)
}
