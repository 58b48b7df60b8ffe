package pipeline

// Pipeline advances instruction packets through an ordered list of stage
// slots, one packet per slot. Stages are walked deepest-first each cycle so
// a packet vacating a slot frees it for the packet behind within the same
// cycle.
type Pipeline struct {
	cfg     Config
	slots   [MaxDepth]*Packet
	cycle   uint64
	metrics Metrics
}

// New builds a pipeline from cfg. The configuration is assumed valid; use
// NewValidated for caller-supplied configurations.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// NewValidated builds a pipeline from cfg after validating it.
func NewValidated(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Issue decodes an instruction into a packet and places it in the first
// stage slot. It reports false when the slot is occupied; that is a
// structural hazard and the caller retries on its next tick.
func (p *Pipeline) Issue(instr, pc uint16) bool {
	if p.slots[0] != nil {
		p.metrics.StructuralHazards++
		p.metrics.StallCycles++
		return false
	}
	pkt := Decode(instr, pc)
	pkt.IssueCycle = p.cycle
	p.slots[0] = pkt
	return true
}

// Cycle advances the pipeline by one clock. Called exactly once per
// simulator macro-step.
func (p *Pipeline) Cycle() {
	p.cycle++
	p.metrics.TotalCycles++

	for i := p.cfg.Depth - 1; i >= 0; i-- {
		pkt := p.slots[i]
		if pkt == nil {
			continue
		}

		switch stage := p.cfg.Stages[i]; stage {
		case StageFetch:
			pkt.StageDone[StageFetch] = true

		case StageDecode:
			p.scanHazards(pkt, i)
			if !pkt.Stalled {
				pkt.StageDone[StageDecode] = true
			}

		case StageExecute:
			if !pkt.StageDone[StageExecute] {
				if pkt.IsBranch {
					p.metrics.ControlHazards++
					if !p.cfg.BranchPredictionEnabled {
						p.metrics.StallCycles += uint64(p.cfg.BranchPenalty)
					}
				}
				pkt.StageDone[StageExecute] = true
			}

		case StageMemory:
			if !pkt.StageDone[StageMemory] {
				if pkt.NeedsMemory {
					p.metrics.MemoryStallCycles += uint64(p.cfg.MemoryLatency)
					if pkt.IsLoad {
						p.metrics.MemoryReads++
					} else if pkt.IsStore {
						p.metrics.MemoryWrites++
					}
				}
				pkt.StageDone[StageMemory] = true
			}

		case StageWriteback:
			pkt.CompletionCycle = p.cycle
			pkt.StageDone[StageWriteback] = true
			p.metrics.TotalInstructions++
			p.slots[i] = nil
			continue

		case StageCustom:
			pkt.StageDone[StageCustom] = true
		}

		if !pkt.Stalled && i < p.cfg.Depth-1 && p.slots[i+1] == nil {
			p.slots[i+1] = pkt
			pkt.CurrentStage = i + 1
			p.slots[i] = nil
		}
	}
}

// scanHazards recomputes the hazard set of the packet in decode against
// every packet deeper in the pipeline. The stall decision is re-evaluated
// each cycle, so a packet stalls only while a conflicting producer is still
// in flight. With forwarding, RAW hazards are counted but resolve without
// stalling.
func (p *Pipeline) scanHazards(pkt *Packet, slot int) {
	pkt.Stalled = false
	pkt.Hazards = pkt.Hazards[:0]

	for j := slot + 1; j < p.cfg.Depth; j++ {
		prior := p.slots[j]
		if prior == nil {
			continue
		}
		hz := dataHazard(pkt, prior)
		if hz == HazardNone {
			continue
		}
		if len(pkt.Hazards) < maxPacketHazards {
			pkt.Hazards = append(pkt.Hazards, hz)
		}
		if hz == HazardRAW {
			p.metrics.DataHazards++
			if !p.cfg.ForwardingEnabled {
				pkt.Stalled = true
				pkt.StallCycles++
				p.metrics.StallCycles++
			}
		}
	}
}

// InFlight returns the number of occupied stage slots.
func (p *Pipeline) InFlight() int {
	n := 0
	for i := 0; i < p.cfg.Depth; i++ {
		if p.slots[i] != nil {
			n++
		}
	}
	return n
}

// PacketAt returns the packet occupying stage slot i, or nil.
func (p *Pipeline) PacketAt(i int) *Packet {
	if i < 0 || i >= p.cfg.Depth {
		return nil
	}
	return p.slots[i]
}

// Drain cycles the pipeline until every slot is empty. The bound covers the
// worst case of a full pipeline stalling at each stage.
func (p *Pipeline) Drain() {
	limit := p.cfg.Depth * MaxDepth * 4
	for i := 0; p.InFlight() > 0 && i < limit; i++ {
		p.Cycle()
	}
}

// Metrics returns a snapshot of the counters with CPI, IPC and efficiency
// computed.
func (p *Pipeline) Metrics() Snapshot {
	return p.metrics.snapshot()
}

// CurrentCycle returns the pipeline clock.
func (p *Pipeline) CurrentCycle() uint64 {
	return p.cycle
}

// Reset empties every slot and zeroes the metrics. Configuration is
// preserved.
func (p *Pipeline) Reset() {
	p.slots = [MaxDepth]*Packet{}
	p.cycle = 0
	p.metrics = Metrics{}
}
