package dcache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32cache/bus"
	"github.com/sarchlab/rv32cache/cpuif"
	"github.com/sarchlab/rv32cache/dcache"
	"github.com/sarchlab/rv32cache/memslave"
)

func TestDCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "D-Cache Suite")
}

// tick drives one cycle of the cache directly against a memory slave, with
// no arbiter in between (a single master owns the bus outright).
func tick(c *dcache.Cache, m *memslave.Model, req cpuif.DataRequest) (resp cpuif.DataResponse, arAddr uint32, arFired bool, wBeat *bus.WChannel) {
	resp, ar, rReady, aw, w, bReady := c.Eval(req)
	arReady, r, awReady, wReady, b := m.Outputs()

	if c.State() == dcache.StateReadMMIOWait {
		data, stall := c.EvalMMIOData(r)
		resp = cpuif.DataResponse{Data: data, Stall: stall}
	}

	c.Commit(arReady, r, awReady, wReady, b)
	m.Commit(ar, rReady, aw, w, bReady)

	if w.Valid {
		wc := w
		wBeat = &wc
	}
	return resp, ar.Addr, ar.Valid && arReady, wBeat
}

func drive(c *dcache.Cache, m *memslave.Model, req cpuif.DataRequest) cpuif.DataResponse {
	for i := 0; i < 64; i++ {
		resp, _, _, _ := tick(c, m, req)
		if !resp.Stall {
			return resp
		}
	}
	panic("did not converge")
}

var _ = Describe("Cache", func() {
	var (
		c *dcache.Cache
		m *memslave.Model
	)

	BeforeEach(func() {
		c = dcache.New(0x20000000)
		m = memslave.New(4096)
	})

	It("performs a write-through word store and makes it visible to a later load", func() {
		resp := drive(c, m, cpuif.DataRequest{Req: true, We: true, Addr: 0x200, WData: 0xDEADBEEF, Func3: cpuif.Func3Word})
		Expect(resp.Stall).To(BeFalse())
		Expect(m.ReadWord(0x200)).To(Equal(uint32(0xDEADBEEF)))
		Expect(c.Stats().Writes).To(Equal(uint64(1)))

		// Read-your-writes through a cold cache (miss, full refill).
		resp = drive(c, m, cpuif.DataRequest{Req: true, Addr: 0x200})
		Expect(resp.Stall).To(BeFalse())
		Expect(resp.Data).To(Equal(uint32(0xDEADBEEF)))
	})

	It("drives a single W beat with the tabulated strobe for each store shape", func() {
		cases := []struct {
			addr   uint32
			func3  uint8
			strobe uint8
		}{
			{0x300, cpuif.Func3Byte, 0b0001},
			{0x301, cpuif.Func3Byte, 0b0010},
			{0x302, cpuif.Func3Byte, 0b0100},
			{0x303, cpuif.Func3Byte, 0b1000},
			{0x310, cpuif.Func3Half, 0b0011},
			{0x312, cpuif.Func3Half, 0b1100},
			{0x320, cpuif.Func3Word, 0b1111},
		}
		for _, tc := range cases {
			c := dcache.New(0x20000000)
			m := memslave.New(4096)
			var beats []bus.WChannel
			req := cpuif.DataRequest{Req: true, We: true, Addr: tc.addr, WData: 0x12345678, Func3: tc.func3}
			for i := 0; i < 64; i++ {
				resp, _, _, w := tick(c, m, req)
				if w != nil {
					beats = append(beats, *w)
				}
				if !resp.Stall {
					break
				}
			}
			Expect(beats).To(HaveLen(1))
			Expect(beats[0].Strobe).To(Equal(tc.strobe))
			Expect(beats[0].Data).To(Equal(uint32(0x12345678)))
		}
	})

	It("does not allocate a line on a write miss", func() {
		drive(c, m, cpuif.DataRequest{Req: true, We: true, Addr: 0x400, WData: 0x1, Func3: cpuif.Func3Word})
		Expect(c.Stats().Refills).To(Equal(uint64(0)))

		// A subsequent load still misses and performs a full refill.
		m.WriteWord(0x400, 0x1)
		drive(c, m, cpuif.DataRequest{Req: true, Addr: 0x400})
		Expect(c.Stats().Refills).To(Equal(uint64(1)))
	})

	It("updates the cache array in place on a write hit", func() {
		drive(c, m, cpuif.DataRequest{Req: true, Addr: 0x500}) // miss, refill, valid=1
		resp := drive(c, m, cpuif.DataRequest{Req: true, We: true, Addr: 0x500, WData: 0x99, Func3: cpuif.Func3Word})
		Expect(resp.Stall).To(BeFalse())

		resp = drive(c, m, cpuif.DataRequest{Req: true, Addr: 0x500})
		Expect(resp.Stall).To(BeFalse()) // should be a hit, no refill
		Expect(resp.Data).To(Equal(uint32(0x99)))
	})

	It("bypasses the cache array entirely for an MMIO read", func() {
		// The slave backs only 4096 words, so the MMIO boundary is placed
		// inside its range.
		c = dcache.New(0x2000)
		m.WriteWord(0x2004, 0xCAFEBABE)
		var arCount int
		req := cpuif.DataRequest{Req: true, Addr: 0x2004}
		var resp cpuif.DataResponse
		for i := 0; i < 64; i++ {
			var fired bool
			var addr uint32
			resp, addr, fired, _ = tick(c, m, req)
			if fired {
				arCount++
				Expect(addr).To(Equal(uint32(0x2004)))
			}
			if !resp.Stall {
				break
			}
		}
		Expect(arCount).To(Equal(1))
		Expect(resp.Data).To(Equal(uint32(0xCAFEBABE)))
		Expect(c.Stats().Hits).To(Equal(uint64(0)))
		Expect(c.Stats().Misses).To(Equal(uint64(0)))
	})

	It("leaves tag/valid storage untouched by an MMIO write", func() {
		// MMIO boundary inside the 4096-word slave, as above.
		c = dcache.New(0x2000)
		before := c.Stats()
		drive(c, m, cpuif.DataRequest{Req: true, We: true, Addr: 0x2008, WData: 0x1, Func3: cpuif.Func3Word})
		Expect(c.Stats().Misses).To(Equal(before.Misses))
		Expect(c.Stats().Refills).To(Equal(before.Refills))
	})
})
