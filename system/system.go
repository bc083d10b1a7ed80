// Package system wires the I-Cache, D-Cache, bus arbiter, and memory
// slave into one cycle-accurate unit, replaying the two-phase
// Eval/Commit split that every component in this module already follows
// internally.
package system

import (
	"github.com/sarchlab/rv32cache/arbiter"
	"github.com/sarchlab/rv32cache/bus"
	"github.com/sarchlab/rv32cache/cpuif"
	"github.com/sarchlab/rv32cache/dcache"
	"github.com/sarchlab/rv32cache/icache"
	"github.com/sarchlab/rv32cache/internal/rvlog"
	"github.com/sarchlab/rv32cache/memslave"
)

// staleARWarnThreshold is how many consecutive cycles a master may hold
// AR.valid without seeing ready before the harness logs a warning ahead
// of the hard TimeoutError (spec.md §7's protocol-violation case).
const staleARWarnThreshold = 100

// Stats aggregates both caches' statistics.
type Stats struct {
	Cycles uint64
	ICache icache.Statistics
	DCache dcache.Statistics
}

// System wires one I-Cache, one D-Cache, the fixed-priority arbiter
// between them, and a shared memory slave into a single cycle-stepped
// unit.
type System struct {
	cfg Config

	ICache *icache.Cache
	DCache *dcache.Cache
	Bus    *arbiter.Arbiter
	Slave  *memslave.Model

	log *rvlog.Logger

	cycles       uint64
	iStaleCycles uint64
	dStaleCycles uint64
}

// New creates a System from the given configuration, with an empty
// backing memory of cfg.MemoryWords words.
func New(cfg Config) *System {
	return &System{
		cfg:    cfg,
		ICache: icache.New(),
		DCache: dcache.New(cfg.MMIOBase),
		Bus:    arbiter.New(),
		Slave:  memslave.New(cfg.MemoryWords),
		log:    rvlog.New(rvlog.DefaultConfig()),
	}
}

// SetLogger overrides the system's logger (the default logs Info and
// above to stderr via internal/rvlog).
func (s *System) SetLogger(l *rvlog.Logger) { s.log = l }

// NewWithImage creates a System whose backing memory is preloaded with
// the given byte image, zero-extended to at least cfg.MemoryWords words.
func NewWithImage(cfg Config, image []byte) *System {
	s := New(cfg)
	s.Slave = memslave.NewFromImage(image, cfg.MemoryWords)
	return s
}

// Stats returns a snapshot of cumulative statistics.
func (s *System) Stats() Stats {
	return Stats{Cycles: s.cycles, ICache: s.ICache.Stats(), DCache: s.DCache.Stats()}
}

// Cycles returns the number of cycles simulated so far.
func (s *System) Cycles() uint64 { return s.cycles }

// Reset clears both caches and resets the bus arbiter to idle. The
// backing memory and cycle counter are left untouched.
func (s *System) Reset() {
	s.ICache.Reset()
	s.DCache.Reset()
	s.Bus = arbiter.New()
}

// Tick advances the whole system by one cycle: both caches evaluate
// against the current request, the slave exposes its previously
// latched outputs, the arbiter routes between them, and every component
// then commits to its next state. iReq and dReq must be held stable by
// the caller across cycles where the matching response reports Stall.
func (s *System) Tick(iReq cpuif.FetchRequest, dReq cpuif.DataRequest) (cpuif.FetchResponse, cpuif.DataResponse) {
	s.cycles++

	iStateBefore := s.ICache.State()
	dStateBefore := s.DCache.State()

	iResp, iAR, iRReady := s.ICache.Eval(iReq)
	dResp, dAR, dRReady, dAW, dW, dBReady := s.DCache.Eval(dReq)

	slaveARReady, slaveR, slaveAWReady, slaveWReady, slaveB := s.Slave.Outputs()

	readOut := s.Bus.EvalRead(arbiter.ReadInputs{
		M0AR:         iAR,
		M1AR:         dAR,
		SlaveARReady: slaveARReady,
		SlaveR:       slaveR,
		M0RReady:     iRReady,
		M1RReady:     dRReady,
	})
	writeOut := s.Bus.EvalWrite(dAW, dW, slaveAWReady, slaveWReady, slaveB, dBReady)

	if s.DCache.State() == dcache.StateReadMMIOWait {
		data, stall := s.DCache.EvalMMIOData(readOut.ToM1R)
		dResp = cpuif.DataResponse{Data: data, Stall: stall}
	}

	s.trackStaleAR(iAR, bus.Handshake(iAR.Valid, readOut.M0ARReady), dAR, bus.Handshake(dAR.Valid, readOut.M1ARReady))

	s.Bus.CommitRead()
	s.ICache.Commit(readOut.M0ARReady, readOut.ToM0R)
	s.DCache.Commit(readOut.M1ARReady, readOut.ToM1R, writeOut.M1AWReady, writeOut.M1WReady, writeOut.ToM1B)
	s.Slave.Commit(readOut.ToSlaveAR, readOut.ToSlaveRReady, writeOut.ToSlaveAW, writeOut.ToSlaveW, writeOut.ToSlaveBReady)

	if s.ICache.State() != iStateBefore {
		s.log.Debugf("icache %s -> %s", iStateBefore, s.ICache.State())
	}
	if s.DCache.State() != dStateBefore {
		s.log.Debugf("dcache %s -> %s", dStateBefore, s.DCache.State())
	}

	return iResp, dResp
}

// trackStaleAR counts consecutive cycles either master has asserted
// AR.valid without the arbiter granting it, logging once the heuristic
// threshold is crossed. This never fires against memslave.Model (always
// ready), but guards against a future slave model that isn't.
func (s *System) trackStaleAR(iAR bus.ARChannel, iGranted bool, dAR bus.ARChannel, dGranted bool) {
	if iAR.Valid && !iGranted {
		s.iStaleCycles++
		if s.iStaleCycles == staleARWarnThreshold {
			s.log.Warnf("icache AR held valid for %d cycles without grant (addr=0x%08x)", s.iStaleCycles, iAR.Addr)
		}
	} else {
		s.iStaleCycles = 0
	}

	if dAR.Valid && !dGranted {
		s.dStaleCycles++
		if s.dStaleCycles == staleARWarnThreshold {
			s.log.Warnf("dcache AR held valid for %d cycles without grant (addr=0x%08x)", s.dStaleCycles, dAR.Addr)
		}
	} else {
		s.dStaleCycles = 0
	}
}

// FetchWord drives a single I-Cache fetch to completion, ticking the
// whole system until the response is no longer stalled or the
// configured cycle budget is exhausted.
func (s *System) FetchWord(addr uint32) (uint32, error) {
	req := cpuif.FetchRequest{Req: true, Addr: addr}
	for start := s.cycles; ; {
		resp, _ := s.Tick(req, cpuif.DataRequest{})
		if !resp.Stall {
			return resp.Data, nil
		}
		if s.cycles-start >= s.cfg.TimeoutCycles {
			return 0, &TimeoutError{Cycles: s.cfg.TimeoutCycles, Addr: addr}
		}
	}
}

// LoadWord drives a single D-Cache load to completion.
func (s *System) LoadWord(addr uint32) (uint32, error) {
	req := cpuif.DataRequest{Req: true, Addr: addr, Func3: cpuif.Func3Word}
	for start := s.cycles; ; {
		_, resp := s.Tick(cpuif.FetchRequest{}, req)
		if !resp.Stall {
			return resp.Data, nil
		}
		if s.cycles-start >= s.cfg.TimeoutCycles {
			return 0, &TimeoutError{Cycles: s.cfg.TimeoutCycles, Addr: addr}
		}
	}
}

// StoreWord drives a single D-Cache store of the given width
// (cpuif.Func3Byte/Func3Half/Func3Word) at addr to completion.
func (s *System) StoreWord(addr uint32, data uint32, func3 uint8) error {
	req := cpuif.DataRequest{Req: true, Addr: addr, We: true, WData: data, Func3: func3}
	for start := s.cycles; ; {
		_, resp := s.Tick(cpuif.FetchRequest{}, req)
		if !resp.Stall {
			return nil
		}
		if s.cycles-start >= s.cfg.TimeoutCycles {
			return &TimeoutError{Cycles: s.cfg.TimeoutCycles, Addr: addr}
		}
	}
}
