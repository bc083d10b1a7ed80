// Package icache implements the direct-mapped, read-only instruction
// cache: a 4-state refill sequencer sitting between the CPU's fetch port
// and the shared bus.
package icache

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
	default:
		return "Unknown"
	}
}

const (
	numSets      = 256
	lineBytes    = 16
	wordsPerLine = 4
)

// Statistics counts cache events for diagnostics; spec.md §9(d) notes the
// source hardware defines but never wires up equivalent counters.
type Statistics struct {
	Hits    uint64
	Misses  uint64
	Refills uint64
}

// Cache is the I-Cache controller.
type Cache struct {
	directory *akitacache.DirectoryImpl
	data      [][]byte // numSets entries, lineBytes each (associativity 1)

	state     State
	missBase  uint32
	refillCnt int
	victim    *akitacache.Block

	stats Statistics

	// Latched across the Eval/Commit split of a single cycle.
	req cpuif.FetchRequest
}

// New creates an empty I-Cache. All sets start invalid.
func New() *Cache {
	data := make([][]byte, numSets)
	for i := range data {
		data[i] = make([]byte, lineBytes)
	}
	return &Cache{
		directory: akitacache.NewDirectory(numSets, 1, lineBytes, akitacache.NewLRUVictimFinder()),
		data:      data,
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

// Eval computes this cycle's CPU-facing response and bus request purely
// from the current state and req; it does not advance the FSM, and only
// latches req for Commit. Commit must be called afterward with this
// cycle's bus responses to advance the FSM.
func (c *Cache) Eval(req cpuif.FetchRequest) (resp cpuif.FetchResponse, ar bus.ARChannel, rReady bool) {
	c.req = req

	switch c.state {
	case StateIdleCompare:
		if !req.Req {
			return cpuif.FetchResponse{Stall: false}, bus.ARChannel{}, false
		}
		blockAddr := req.Addr &^ 0xF
		if block := c.lookup(blockAddr); block != nil && block.IsValid {
			wordOffset := (req.Addr >> 2) & 0x3
			line := c.data[c.blockIndex(block)]
			word := binary.LittleEndian.Uint32(line[wordOffset*4:])
			return cpuif.FetchResponse{Data: word, Stall: false}, bus.ARChannel{}, false
		}
		return cpuif.FetchResponse{Stall: true}, bus.ARChannel{}, false

	case StateRefillRequest:
		addr := c.missBase + uint32(c.refillCnt)*4
		return cpuif.FetchResponse{Stall: true}, bus.ARChannel{Valid: true, Addr: addr}, false

	case StateRefillWait:
		return cpuif.FetchResponse{Stall: true}, bus.ARChannel{}, true

	case StateUpdateTag:
		return cpuif.FetchResponse{Stall: true}, bus.ARChannel{}, false
	}

	return cpuif.FetchResponse{}, bus.ARChannel{}, false
}

// Commit advances the FSM using this cycle's bus responses, which must
// match the request driven by the immediately preceding Eval call.
func (c *Cache) Commit(arReadyIn bool, r bus.RChannel) {
	switch c.state {
	case StateIdleCompare:
		if !c.req.Req {
			return
		}
		blockAddr := c.req.Addr &^ 0xF
		if block := c.lookup(blockAddr); block != nil && block.IsValid {
			c.stats.Hits++
			return
		}
		c.stats.Misses++
		c.missBase = blockAddr
		c.refillCnt = 0
		c.victim = c.directory.FindVictim(uint64(blockAddr))
		c.state = StateRefillRequest

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
	}
}

// Reset invalidates the whole cache without clearing statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.state = StateIdleCompare
	c.refillCnt = 0
	c.victim = nil
}
