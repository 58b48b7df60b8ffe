package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/import1bones/simulator-lc3/pkg/pipeline"
)

// Instruction words used throughout the suite.
const (
	addR1R0   uint16 = 0x1220 // ADD R1, R0, #0
	addR1Imm  uint16 = 0x1261 // ADD R1, R1, #1
	addR2R1   uint16 = 0x1441 // ADD R2, R1, R1 (reads R1)
	addR3Imm  uint16 = 0x16E1 // ADD R3, R3, #1
	ldR1      uint16 = 0x2205 // LD R1, #5
	stR1      uint16 = 0x3205 // ST R1, #5
	brnzpBack uint16 = 0x0FFE // BRnzp #-2
)

// independentAdd returns an ADD-immediate on a register cycling 1..7 so
// consecutive instructions share no operands.
func independentAdd(i int) uint16 {
	r := uint16(1 + i%7)
	return 0x1020 | r<<9 | r<<6 | 1
}

var _ = Describe("Config", func() {
	It("accepts the default configuration", func() {
		Expect(pipeline.DefaultConfig().Validate()).To(Succeed())
	})

	It("rejects depth beyond the slot array", func() {
		cfg := pipeline.DefaultConfig()
		cfg.Depth = 9
		Expect(cfg.Validate()).To(MatchError(pipeline.ErrInvalidConfig))
	})

	It("rejects a stage list shorter than the depth", func() {
		cfg := pipeline.DefaultConfig()
		cfg.Stages = cfg.Stages[:3]
		Expect(cfg.Validate()).To(MatchError(pipeline.ErrInvalidConfig))
	})

	It("rejects out-of-order execution", func() {
		cfg := pipeline.DefaultConfig()
		cfg.OutOfOrderExecution = true
		Expect(cfg.Validate()).To(MatchError(pipeline.ErrInvalidConfig))
	})

	It("rejects zero depth", func() {
		cfg := pipeline.DefaultConfig()
		cfg.Depth = 0
		Expect(cfg.Validate()).To(MatchError(pipeline.ErrInvalidConfig))
	})
})

var _ = Describe("Decode", func() {
	It("extracts ADD register fields", func() {
		p := pipeline.Decode(0x1441, 0x3000) // ADD R2, R1, R1
		Expect(p.Opcode).To(Equal(uint16(0x1)))
		Expect(p.DestReg).To(Equal(uint16(2)))
		Expect(p.SrcReg1).To(Equal(uint16(1)))
		Expect(p.SrcReg2).To(Equal(uint16(1)))
	})

	It("extracts ADD immediate fields", func() {
		p := pipeline.Decode(0x1261, 0x3000) // ADD R1, R1, #1
		Expect(p.DestReg).To(Equal(uint16(1)))
		Expect(p.SrcReg1).To(Equal(uint16(1)))
		Expect(p.SrcReg2).To(Equal(uint16(0)))
		Expect(p.Immediate).To(Equal(uint16(1)))
	})

	It("marks loads and stores as memory instructions", func() {
		ld := pipeline.Decode(ldR1, 0x3000)
		Expect(ld.NeedsMemory).To(BeTrue())
		Expect(ld.IsLoad).To(BeTrue())
		Expect(ld.IsStore).To(BeFalse())

		st := pipeline.Decode(stR1, 0x3000)
		Expect(st.NeedsMemory).To(BeTrue())
		Expect(st.IsStore).To(BeTrue())

		ldr := pipeline.Decode(0x6241, 0x3000) // LDR R1, R1, #1
		Expect(ldr.NeedsMemory).To(BeTrue())
		Expect(ldr.IsLoad).To(BeTrue())
		Expect(ldr.SrcReg1).To(Equal(uint16(1)))
	})

	It("does not flag LEA as a memory instruction", func() {
		p := pipeline.Decode(0xE00F, 0x3000)
		Expect(p.NeedsMemory).To(BeFalse())
		Expect(p.DestReg).To(Equal(uint16(0)))
		Expect(p.Immediate).To(Equal(uint16(0xF)))
	})

	It("marks branches", func() {
		Expect(pipeline.Decode(brnzpBack, 0x3000).IsBranch).To(BeTrue())
		Expect(pipeline.Decode(0xC1C0, 0x3000).IsBranch).To(BeTrue()) // JMP R7
		jsr := pipeline.Decode(0x4802, 0x3000)
		Expect(jsr.IsBranch).To(BeTrue())
	})

	It("round-trips register fields for well-formed encodings", func() {
		for dr := uint16(0); dr < 8; dr++ {
			for sr1 := uint16(0); sr1 < 8; sr1++ {
				instr := 0x1000 | dr<<9 | sr1<<6 | 0x20 | 0x11
				p := pipeline.Decode(instr, 0x3000)
				Expect(p.DestReg).To(Equal(dr))
				Expect(p.SrcReg1).To(Equal(sr1))
				Expect(p.Immediate).To(Equal(uint16(0x11)))
			}
		}
	})
})

var _ = Describe("Pipeline", func() {
	var pipe *pipeline.Pipeline

	newPipe := func(forwarding bool) *pipeline.Pipeline {
		cfg := pipeline.DefaultConfig()
		cfg.ForwardingEnabled = forwarding
		return pipeline.New(cfg)
	}

	Describe("issue", func() {
		BeforeEach(func() {
			pipe = newPipe(true)
		})

		It("places a packet in the first stage", func() {
			Expect(pipe.Issue(addR1R0, 0x3000)).To(BeTrue())
			Expect(pipe.InFlight()).To(Equal(1))
			Expect(pipe.PacketAt(0)).NotTo(BeNil())
		})

		It("refuses a second issue into an occupied slot as a structural hazard", func() {
			Expect(pipe.Issue(addR1R0, 0x3000)).To(BeTrue())
			Expect(pipe.Issue(addR1Imm, 0x3001)).To(BeFalse())
			m := pipe.Metrics()
			Expect(m.StructuralHazards).To(Equal(uint64(1)))
			Expect(m.StallCycles).To(Equal(uint64(1)))
		})
	})

	Describe("RAW hazards without forwarding", func() {
		BeforeEach(func() {
			pipe = newPipe(false)
		})

		It("stalls the dependent instruction and counts the hazard", func() {
			Expect(pipe.Issue(addR1R0, 0x3000)).To(BeTrue())
			pipe.Cycle()
			Expect(pipe.Issue(addR2R1, 0x3001)).To(BeTrue())
			pipe.Drain()

			m := pipe.Metrics()
			Expect(m.TotalInstructions).To(Equal(uint64(2)))
			Expect(m.DataHazards).To(BeNumerically(">=", 1))
			Expect(m.StallCycles).To(BeNumerically(">=", 1))
			Expect(m.CPI).To(BeNumerically(">", 1.0))
		})
	})

	Describe("RAW hazards with forwarding", func() {
		BeforeEach(func() {
			pipe = newPipe(true)
		})

		It("counts the hazard but adds no stall", func() {
			Expect(pipe.Issue(addR1R0, 0x3000)).To(BeTrue())
			pipe.Cycle()
			Expect(pipe.Issue(addR2R1, 0x3001)).To(BeTrue())
			pipe.Drain()

			m := pipe.Metrics()
			Expect(m.TotalInstructions).To(Equal(uint64(2)))
			Expect(m.DataHazards).To(BeNumerically(">=", 1))
			Expect(m.StallCycles).To(BeZero())
		})

		It("matches the stall count of an independent pair", func() {
			Expect(pipe.Issue(addR1R0, 0x3000)).To(BeTrue())
			pipe.Cycle()
			Expect(pipe.Issue(addR3Imm, 0x3001)).To(BeTrue())
			pipe.Drain()
			baseline := pipe.Metrics().StallCycles

			dep := newPipe(true)
			Expect(dep.Issue(addR1R0, 0x3000)).To(BeTrue())
			dep.Cycle()
			Expect(dep.Issue(addR2R1, 0x3001)).To(BeTrue())
			dep.Drain()

			Expect(dep.Metrics().StallCycles).To(Equal(baseline))
		})
	})

	Describe("control hazards", func() {
		It("charges the branch penalty without prediction", func() {
			cfg := pipeline.DefaultConfig()
			cfg.BranchPenalty = 2
			pipe = pipeline.New(cfg)

			Expect(pipe.Issue(brnzpBack, 0x3000)).To(BeTrue())
			pipe.Drain()

			m := pipe.Metrics()
			Expect(m.ControlHazards).To(Equal(uint64(1)))
			Expect(m.StallCycles).To(Equal(uint64(2)))
		})

		It("waives the penalty with branch prediction", func() {
			cfg := pipeline.DefaultConfig()
			cfg.BranchPredictionEnabled = true
			pipe = pipeline.New(cfg)

			Expect(pipe.Issue(brnzpBack, 0x3000)).To(BeTrue())
			pipe.Drain()

			m := pipe.Metrics()
			Expect(m.ControlHazards).To(Equal(uint64(1)))
			Expect(m.StallCycles).To(BeZero())
		})
	})

	Describe("memory stage", func() {
		BeforeEach(func() {
			cfg := pipeline.DefaultConfig()
			cfg.MemoryLatency = 3
			pipe = pipeline.New(cfg)
		})

		It("accounts loads", func() {
			Expect(pipe.Issue(ldR1, 0x3000)).To(BeTrue())
			pipe.Drain()
			m := pipe.Metrics()
			Expect(m.MemoryReads).To(Equal(uint64(1)))
			Expect(m.MemoryWrites).To(BeZero())
			Expect(m.MemoryStallCycles).To(Equal(uint64(3)))
		})

		It("accounts stores", func() {
			Expect(pipe.Issue(stR1, 0x3000)).To(BeTrue())
			pipe.Drain()
			m := pipe.Metrics()
			Expect(m.MemoryWrites).To(Equal(uint64(1)))
			Expect(m.MemoryReads).To(BeZero())
		})
	})

	Describe("throughput", func() {
		It("sustains one instruction per cycle on independent work", func() {
			pipe = newPipe(true)
			for i := 0; i < 100; i++ {
				Expect(pipe.Issue(independentAdd(i), uint16(0x3000+i))).To(BeTrue())
				pipe.Cycle()
			}
			pipe.Drain()

			m := pipe.Metrics()
			Expect(m.TotalInstructions).To(Equal(uint64(100)))
			Expect(m.TotalCycles).To(Equal(uint64(100 + 5 - 1)))
			Expect(m.IPC).To(BeNumerically("~", 1.0, 0.05))
			Expect(m.Efficiency).To(BeNumerically("~", m.IPC, 1e-9))
		})
	})

	Describe("completion timing", func() {
		It("completes a lone instruction in exactly depth cycles", func() {
			pipe = newPipe(true)
			Expect(pipe.Issue(addR1R0, 0x3000)).To(BeTrue())
			pkt := pipe.PacketAt(0)
			pipe.Drain()
			Expect(pkt.CompletionCycle).To(Equal(pkt.IssueCycle + 5))
			Expect(pkt.StallCycles).To(BeZero())
		})
	})

	Describe("metrics", func() {
		It("counters are monotonic across cycles", func() {
			pipe = newPipe(false)
			prev := pipe.Metrics()
			for i := 0; i < 50; i++ {
				if i%2 == 0 {
					pipe.Issue(addR1R0, uint16(0x3000+i))
				} else {
					pipe.Issue(addR2R1, uint16(0x3000+i))
				}
				pipe.Cycle()
				cur := pipe.Metrics()
				Expect(cur.TotalCycles).To(BeNumerically(">=", prev.TotalCycles))
				Expect(cur.TotalInstructions).To(BeNumerically(">=", prev.TotalInstructions))
				Expect(cur.StallCycles).To(BeNumerically(">=", prev.StallCycles))
				Expect(cur.DataHazards).To(BeNumerically(">=", prev.DataHazards))
				Expect(cur.StructuralHazards).To(BeNumerically(">=", prev.StructuralHazards))
				prev = cur
			}
		})

		It("CPI is at least 1.0 once instructions retire", func() {
			pipe = newPipe(true)
			for i := 0; i < 20; i++ {
				pipe.Issue(independentAdd(i), uint16(0x3000+i))
				pipe.Cycle()
			}
			pipe.Drain()
			m := pipe.Metrics()
			Expect(m.TotalInstructions).To(BeNumerically(">", 0))
			Expect(m.CPI).To(BeNumerically(">=", 1.0))
		})

		It("is well defined on an idle pipeline", func() {
			pipe = newPipe(true)
			m := pipe.Metrics()
			Expect(m.CPI).To(BeZero())
			Expect(m.IPC).To(BeZero())
		})
	})

	Describe("reset", func() {
		It("empties the slots and zeroes metrics but keeps the configuration", func() {
			cfg := pipeline.DefaultConfig()
			cfg.Name = "keep me"
			pipe = pipeline.New(cfg)
			pipe.Issue(addR1R0, 0x3000)
			pipe.Cycle()
			pipe.Reset()

			Expect(pipe.InFlight()).To(BeZero())
			Expect(pipe.Metrics().TotalCycles).To(BeZero())
			Expect(pipe.CurrentCycle()).To(BeZero())
			Expect(pipe.Config().Name).To(Equal("keep me"))
		})
	})

	Describe("shallow pipelines", func() {
		It("runs a 3-stage configuration", func() {
			cfg := pipeline.Config{
				Name:              "3-stage",
				Stages:            []pipeline.Stage{pipeline.StageFetch, pipeline.StageExecute, pipeline.StageWriteback},
				Depth:             3,
				ForwardingEnabled: true,
				MemoryLatency:     1,
				BranchPenalty:     1,
			}
			Expect(cfg.Validate()).To(Succeed())
			pipe = pipeline.New(cfg)
			for i := 0; i < 10; i++ {
				Expect(pipe.Issue(independentAdd(i), uint16(0x3000+i))).To(BeTrue())
				pipe.Cycle()
			}
			pipe.Drain()
			m := pipe.Metrics()
			Expect(m.TotalInstructions).To(Equal(uint64(10)))
			Expect(m.TotalCycles).To(Equal(uint64(10 + 3 - 1)))
		})
	})
})
