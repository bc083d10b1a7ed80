// Package dcache implements the direct-mapped, write-through,
// no-write-allocate data cache: an 8-state machine covering refill,
// MMIO bypass, and the write sequence.
package dcache

import (
	"encoding/binary"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rv32cache/bus"
	"github.com/sarchlab/rv32cache/cpuif"
)

// State is the controller's current phase, a tagged variant rather than a
// set of boolean flags.
type State int

const (
	StateIdleCompare State = iota
	StateRefillRequest
	StateRefillWait
	StateUpdateTag
	StateReadMMIO
	StateReadMMIOWait
	StateWriteBus
	StateWaitBValid
)

func (s State) String() string {
	switch s {
	case StateIdleCompare:
		return "IdleCompare"
	case StateRefillRequest:
		return "RefillRequest"
	case StateRefillWait:
		return "RefillWait"
	case StateUpdateTag:
		return "UpdateTag"
	case StateReadMMIO:
		return "ReadMMIO"
	case StateReadMMIOWait:
		return "ReadMMIOWait"
	case StateWriteBus:
		return "WriteBus"
	case StateWaitBValid:
		return "WaitBValid"
	default:
		return "Unknown"
	}
}

const (
	numSets      = 256
	lineBytes    = 16
	wordsPerLine = 4
)

// Statistics counts cache events for diagnostics.
type Statistics struct {
	Hits    uint64
	Misses  uint64
	Refills uint64
	Writes  uint64
	MMIO    uint64
}

// Cache is the D-Cache controller.
type Cache struct {
	directory *akitacache.DirectoryImpl
	data      [][]byte // numSets entries, lineBytes each (associativity 1)
	mmioBase  uint32

	state     State
	missBase  uint32
	refillCnt int
	victim    *akitacache.Block

	mmioAddr uint32

	waddr, wdata uint32
	wstrb        uint8
	awDone       bool
	wDone        bool

	// writeRetire covers the one cycle between a B handshake and the
	// CPU actually seeing cpu_stall fall: per spec.md §4.4, stall is
	// released "in the following cycle's IdleCompare," but the CPU is
	// contractually still holding cpu_we/cpu_addr stable from the write
	// that just completed. Without this flag IdleCompare would read
	// that stale cpu_we and immediately restart the same write forever.
	writeRetire bool

	stats Statistics

	req cpuif.DataRequest
}

// New creates an empty D-Cache with the given MMIO boundary (addresses at
// or above mmioBase bypass the cache array entirely).
func New(mmioBase uint32) *Cache {
	data := make([][]byte, numSets)
	for i := range data {
		data[i] = make([]byte, lineBytes)
	}
	return &Cache{
		directory: akitacache.NewDirectory(numSets, 1, lineBytes, akitacache.NewLRUVictimFinder()),
		data:      data,
		mmioBase:  mmioBase,
	}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Statistics { return c.stats }

// State returns the controller's current FSM state, for diagnostics.
func (c *Cache) State() State { return c.state }

func (c *Cache) blockIndex(b *akitacache.Block) int { return b.SetID }

func (c *Cache) lookup(blockAddr uint32) *akitacache.Block {
	return c.directory.Lookup(0, uint64(blockAddr))
}

func (c *Cache) isMMIO(addr uint32) bool { return addr >= c.mmioBase }

// Eval computes this cycle's CPU-facing response and bus requests purely
// from current state and req. Commit must follow with this cycle's bus
// responses to advance the FSM.
func (c *Cache) Eval(req cpuif.DataRequest) (resp cpuif.DataResponse, ar bus.ARChannel, rReady bool, aw bus.AWChannel, w bus.WChannel, bReady bool) {
	c.req = req

	switch c.state {
	case StateIdleCompare:
		if c.writeRetire {
			return cpuif.DataResponse{Stall: false}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
		}
		if !req.Req {
			return cpuif.DataResponse{Stall: false}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
		}
		blockAddr := req.Addr &^ 0xF
		mmio := c.isMMIO(req.Addr)
		var block *akitacache.Block
		if !mmio {
			block = c.lookup(blockAddr)
		}
		hit := block != nil && block.IsValid

		switch {
		case req.We:
			return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
		case mmio:
			return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
		case hit:
			wordOffset := (req.Addr >> 2) & 0x3
			line := c.data[c.blockIndex(block)]
			word := binary.LittleEndian.Uint32(line[wordOffset*4:])
			return cpuif.DataResponse{Data: word, Stall: false}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
		default:
			return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
		}

	case StateRefillRequest:
		addr := c.missBase + uint32(c.refillCnt)*4
		return cpuif.DataResponse{Stall: true}, bus.ARChannel{Valid: true, Addr: addr}, false, bus.AWChannel{}, bus.WChannel{}, false

	case StateRefillWait:
		return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, true, bus.AWChannel{}, bus.WChannel{}, false

	case StateUpdateTag:
		return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false

	case StateReadMMIO:
		return cpuif.DataResponse{Stall: true}, bus.ARChannel{Valid: true, Addr: c.mmioAddr}, false, bus.AWChannel{}, bus.WChannel{}, false

	case StateReadMMIOWait:
		resp := cpuif.DataResponse{Stall: true}
		return resp, bus.ARChannel{}, true, bus.AWChannel{}, bus.WChannel{}, false

	case StateWriteBus:
		aw := bus.AWChannel{Valid: !c.awDone, Addr: c.waddr}
		w := bus.WChannel{Valid: !c.wDone, Data: c.wdata, Strobe: c.wstrb}
		return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, false, aw, w, false

	case StateWaitBValid:
		return cpuif.DataResponse{Stall: true}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, true
	}

	return cpuif.DataResponse{}, bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false
}

// EvalMMIOData returns the CPU-facing data while in StateReadMMIOWait,
// selected combinationally from the R channel rather than the data array.
// The system harness calls this after consulting the slave's R output for
// the current cycle, since Eval alone cannot see it.
func (c *Cache) EvalMMIOData(r bus.RChannel) (data uint32, stall bool) {
	if c.state != StateReadMMIOWait {
		return 0, true
	}
	if r.Valid {
		return r.Data, false
	}
	return 0, true
}

// Commit advances the FSM using this cycle's bus responses, which must
// match the request driven by the immediately preceding Eval call.
func (c *Cache) Commit(arReadyIn bool, r bus.RChannel, awReadyIn, wReadyIn bool, b bus.BChannel) {
	switch c.state {
	case StateIdleCompare:
		if c.writeRetire {
			c.writeRetire = false
			return
		}
		if !c.req.Req {
			return
		}
		blockAddr := c.req.Addr &^ 0xF
		mmio := c.isMMIO(c.req.Addr)
		var block *akitacache.Block
		if !mmio {
			block = c.lookup(blockAddr)
		}
		hit := block != nil && block.IsValid

		switch {
		case c.req.We:
			c.stats.Writes++
			byteOffset := c.req.Addr & 0x3
			c.waddr = c.req.Addr
			c.wdata = c.req.WData
			c.wstrb = cpuif.Strobe(c.req.Func3, byteOffset)
			if hit && !mmio {
				lineOffset := int(c.req.Addr&0xF) &^ 0x3
				line := c.data[c.blockIndex(block)]
				bus.ApplyStrobe(line, lineOffset, c.wdata, c.wstrb)
			}
			c.awDone, c.wDone = false, false
			c.state = StateWriteBus

		case mmio:
			c.stats.MMIO++
			c.mmioAddr = c.req.Addr
			c.state = StateReadMMIO

		case hit:
			c.stats.Hits++

		default:
			c.stats.Misses++
			c.missBase = blockAddr
			c.refillCnt = 0
			c.victim = c.directory.FindVictim(uint64(blockAddr))
			c.state = StateRefillRequest
		}

	case StateRefillRequest:
		if bus.Handshake(true, arReadyIn) {
			c.state = StateRefillWait
		}

	case StateRefillWait:
		if bus.Handshake(r.Valid, true) {
			line := c.data[c.blockIndex(c.victim)]
			binary.LittleEndian.PutUint32(line[c.refillCnt*4:], r.Data)
			if c.refillCnt == wordsPerLine-1 {
				c.state = StateUpdateTag
			} else {
				c.refillCnt++
				c.state = StateRefillRequest
			}
		}

	case StateUpdateTag:
		c.victim.Tag = uint64(c.missBase)
		c.victim.IsValid = true
		c.stats.Refills++
		c.state = StateIdleCompare

	case StateReadMMIO:
		if bus.Handshake(true, arReadyIn) {
			c.state = StateReadMMIOWait
		}

	case StateReadMMIOWait:
		if bus.Handshake(r.Valid, true) {
			c.state = StateIdleCompare
		}

	case StateWriteBus:
		awHandshake := !c.awDone && bus.Handshake(true, awReadyIn)
		wHandshake := !c.wDone && bus.Handshake(true, wReadyIn)
		if awHandshake {
			c.awDone = true
		}
		if wHandshake {
			c.wDone = true
		}
		if c.awDone && c.wDone {
			c.state = StateWaitBValid
		}

	case StateWaitBValid:
		if bus.Handshake(b.Valid, true) {
			c.state = StateIdleCompare
			c.writeRetire = true
		}
	}
}

// Reset invalidates the whole cache without clearing statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.state = StateIdleCompare
	c.refillCnt = 0
	c.victim = nil
	c.awDone, c.wDone = false, false
	c.writeRetire = false
}
