// Package memslave models the memory slave on the downstream side of the
// bus: a word-addressed backing store with one cycle of read latency and
// byte-strobe-masked writes, always reporting OKAY. It never backpressures
// AR, AW, or W — every cache controller in this module issues at most one
// outstanding transaction, so the slave never needs to.
package memslave

import (
	"encoding/binary"

	"github.com/sarchlab/rv32cache/bus"
)

// Model is a single-ported memory slave. Its AR/AW/W ready lines are
// always asserted; R and B latencies are modeled with one cycle of
// registered delay, mirroring the teacher's two-phase
// current-state/next-state cycle separation.
type Model struct {
	words []byte // byte-addressed backing store, little-endian words

	// Read pipeline: set when an AR handshake occurs this cycle, visible
	// on R the following cycle.
	rValid bool
	rData  uint32

	// Write collection: AW and W may arrive on different cycles. Once
	// both are latched, the write commits and B.Valid rises the
	// following cycle.
	awReceived bool
	awAddr     uint32
	wReceived  bool
	wData      uint32
	wStrobe    uint8
	bValid     bool
}

// New creates a zero-initialized memory slave backed by the given number
// of 32-bit words.
func New(words int) *Model {
	return &Model{words: make([]byte, words*4)}
}

// NewFromImage creates a memory slave preloaded with the given
// byte image at address 0, zero-extended to at least minWords words.
func NewFromImage(image []byte, minWords int) *Model {
	size := minWords * 4
	if len(image) > size {
		size = len(image)
		// round up to a whole number of words
		if size%4 != 0 {
			size += 4 - size%4
		}
	}
	m := &Model{words: make([]byte, size)}
	copy(m.words, image)
	return m
}

// WriteWord preloads a single word directly into the backing store,
// bypassing the bus protocol. Used by tests; the CLI preloads its image
// through NewFromImage instead.
func (m *Model) WriteWord(addr uint32, data uint32) {
	binary.LittleEndian.PutUint32(m.words[addr:addr+4], data)
}

// ReadWord reads a single word directly from the backing store,
// bypassing the bus protocol. Used by tests to assert on committed state.
func (m *Model) ReadWord(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(m.words[addr : addr+4])
}

// Outputs returns this cycle's combinational slave-side signals, derived
// purely from state latched at the end of the previous cycle.
func (m *Model) Outputs() (arReady bool, r bus.RChannel, awReady, wReady bool, b bus.BChannel) {
	r = bus.RChannel{Valid: m.rValid, Data: m.rData, Resp: bus.RespOKAY}
	b = bus.BChannel{Valid: m.bValid, Resp: bus.RespOKAY}
	return true, r, true, true, b
}

// Commit applies this cycle's bus inputs (as routed by the arbiter) and
// latches the next-cycle state.
func (m *Model) Commit(ar bus.ARChannel, rReady bool, aw bus.AWChannel, w bus.WChannel, bReady bool) {
	// Read path.
	switch {
	case m.rValid && !bus.Handshake(m.rValid, rReady):
		// Held valid must stay stable until consumed.
	case bus.Handshake(ar.Valid, true):
		m.rValid = true
		m.rData = binary.LittleEndian.Uint32(m.words[ar.Addr : ar.Addr+4])
	default:
		m.rValid = false
	}

	// Write path: collect AW and W independently, commit once both are
	// in hand, and hold B.Valid until it is consumed.
	awReceived, awAddr := m.awReceived, m.awAddr
	if !awReceived && bus.Handshake(aw.Valid, true) {
		awReceived, awAddr = true, aw.Addr
	}
	wReceived, wData, wStrobe := m.wReceived, m.wData, m.wStrobe
	if !wReceived && bus.Handshake(w.Valid, true) {
		wReceived, wData, wStrobe = true, w.Data, w.Strobe
	}

	bValid := m.bValid && !bus.Handshake(m.bValid, bReady)
	if awReceived && wReceived {
		// spec.md §4.2: WDATA/WSTRB commit to the word at AWADDR>>2, not
		// to the byte AWADDR itself.
		bus.ApplyStrobe(m.words, int(awAddr&^0x3), wData, wStrobe)
		awReceived, wReceived = false, false
		bValid = true
	}

	m.awReceived, m.awAddr = awReceived, awAddr
	m.wReceived, m.wData, m.wStrobe = wReceived, wData, wStrobe
	m.bValid = bValid
}
