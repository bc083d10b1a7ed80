// Package arbiter multiplexes the I-Cache (m0) and D-Cache (m1) onto one
// shared memory slave, with fixed priority for the D-Cache and an
// R-channel lock that keeps a read response flowing only to the master
// that issued the matching request. The D-Cache's write channels are
// wired straight through; the I-Cache's write side is tied off since it
// never drives one.
package arbiter

import "github.com/sarchlab/rv32cache/bus"

// ReadState tracks which master, if any, currently owns the downstream R
// channel.
type ReadState int

const (
	ReadIdle ReadState = iota
	ReadM1   // D-Cache owns the R channel
	ReadM0   // I-Cache owns the R channel
)

func (s ReadState) String() string {
	switch s {
	case ReadIdle:
		return "Idle"
	case ReadM1:
		return "ReadM1"
	case ReadM0:
		return "ReadM0"
	default:
		return "Unknown"
	}
}

// Arbiter is the fixed-priority bus multiplexer.
type Arbiter struct {
	state ReadState

	// Latched across the Eval/Commit split of a single cycle.
	in ReadInputs
}

// New creates an idle arbiter.
func New() *Arbiter { return &Arbiter{} }

// State returns the current read-channel owner, for diagnostics.
func (a *Arbiter) State() ReadState { return a.state }

// ReadInputs bundles the per-cycle read-side signals the arbiter needs
// from both masters and the slave.
type ReadInputs struct {
	M0AR         bus.ARChannel
	M1AR         bus.ARChannel
	SlaveARReady bool
	SlaveR       bus.RChannel
	M0RReady     bool
	M1RReady     bool
}

// ReadOutputs bundles the per-cycle read-side signals the arbiter drives
// back to both masters and the slave.
type ReadOutputs struct {
	ToSlaveAR     bus.ARChannel
	ToSlaveRReady bool
	M0ARReady     bool
	M1ARReady     bool
	ToM0R         bus.RChannel
	ToM1R         bus.RChannel
}

// EvalRead computes this cycle's read-side arbitration purely from the
// current state and in; it does not advance the FSM, and only latches in
// for CommitRead. Priority goes to m1
// (D-Cache) whenever both masters present AR in the same cycle that the
// arbiter is idle. CommitRead must be called afterward with this same
// cycle's inputs to advance the FSM.
func (a *Arbiter) EvalRead(in ReadInputs) ReadOutputs {
	a.in = in

	var out ReadOutputs

	switch a.state {
	case ReadIdle:
		switch {
		case in.M1AR.Valid:
			out.ToSlaveAR = in.M1AR
			out.M1ARReady = in.SlaveARReady
		case in.M0AR.Valid:
			out.ToSlaveAR = in.M0AR
			out.M0ARReady = in.SlaveARReady
		}

	case ReadM1:
		out.ToM1R = in.SlaveR
		out.ToSlaveRReady = in.M1RReady

	case ReadM0:
		out.ToM0R = in.SlaveR
		out.ToSlaveRReady = in.M0RReady
	}

	return out
}

// CommitRead advances the read-arbitration FSM using the inputs from the
// immediately preceding EvalRead call.
func (a *Arbiter) CommitRead() {
	in := a.in

	switch a.state {
	case ReadIdle:
		switch {
		case in.M1AR.Valid:
			if bus.Handshake(in.M1AR.Valid, in.SlaveARReady) {
				a.state = ReadM1
			}
		case in.M0AR.Valid:
			if bus.Handshake(in.M0AR.Valid, in.SlaveARReady) {
				a.state = ReadM0
			}
		}

	case ReadM1:
		if bus.Handshake(in.SlaveR.Valid, in.M1RReady) {
			a.state = ReadIdle
		}

	case ReadM0:
		if bus.Handshake(in.SlaveR.Valid, in.M0RReady) {
			a.state = ReadIdle
		}
	}
}

// WriteOutputs bundles the write-side signals the arbiter drives. Since
// only m1 (D-Cache) ever issues a write, this is pure pass-through; m0's
// write side is tied off by construction (the caller never wires m0's
// AW/W into this arbiter, and no write-side ready or B response is ever
// driven back to m0).
type WriteOutputs struct {
	ToSlaveAW     bus.AWChannel
	ToSlaveW      bus.WChannel
	M1AWReady     bool
	M1WReady      bool
	ToM1B         bus.BChannel
	ToSlaveBReady bool
}

// EvalWrite passes m1's write channels straight through to the slave and
// the slave's B response straight back to m1.
func (a *Arbiter) EvalWrite(m1AW bus.AWChannel, m1W bus.WChannel, slaveAWReady, slaveWReady bool, slaveB bus.BChannel, m1BReady bool) WriteOutputs {
	return WriteOutputs{
		ToSlaveAW:     m1AW,
		ToSlaveW:      m1W,
		M1AWReady:     slaveAWReady,
		M1WReady:      slaveWReady,
		ToM1B:         slaveB,
		ToSlaveBReady: m1BReady,
	}
}
