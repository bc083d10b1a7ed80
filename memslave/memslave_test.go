package memslave_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32cache/bus"
	"github.com/sarchlab/rv32cache/memslave"
)

func TestMemslave(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memory Slave Suite")
}

var _ = Describe("Model", func() {
	var m *memslave.Model

	BeforeEach(func() {
		m = memslave.New(64)
	})

	Describe("reads", func() {
		It("reports R.Valid one cycle after the AR handshake", func() {
			m.WriteWord(0x10, 0xCAFEBABE)

			arReady, r, _, _, _ := m.Outputs()
			Expect(arReady).To(BeTrue())
			Expect(r.Valid).To(BeFalse())

			m.Commit(bus.ARChannel{Valid: true, Addr: 0x10}, true, bus.AWChannel{}, bus.WChannel{}, false)

			_, r, _, _, _ = m.Outputs()
			Expect(r.Valid).To(BeTrue())
			Expect(r.Data).To(Equal(uint32(0xCAFEBABE)))
			Expect(r.Resp).To(Equal(bus.RespOKAY))
		})

		It("holds R.Valid and the data stable until R.Ready is asserted", func() {
			m.WriteWord(0x20, 0x11223344)
			m.Commit(bus.ARChannel{Valid: true, Addr: 0x20}, true, bus.AWChannel{}, bus.WChannel{}, false)

			// Not consumed yet.
			m.Commit(bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false)
			_, r, _, _, _ := m.Outputs()
			Expect(r.Valid).To(BeTrue())
			Expect(r.Data).To(Equal(uint32(0x11223344)))

			// Consumed now.
			m.Commit(bus.ARChannel{}, true, bus.AWChannel{}, bus.WChannel{}, false)
			_, r, _, _, _ = m.Outputs()
			Expect(r.Valid).To(BeFalse())
		})
	})

	Describe("writes", func() {
		It("commits the write and raises B.Valid once AW and W both arrive", func() {
			m.Commit(
				bus.ARChannel{},
				false,
				bus.AWChannel{Valid: true, Addr: 0x30},
				bus.WChannel{Valid: true, Data: 0xDEADBEEF, Strobe: 0b1111},
				false,
			)

			_, _, _, _, b := m.Outputs()
			Expect(b.Valid).To(BeTrue())
			Expect(m.ReadWord(0x30)).To(Equal(uint32(0xDEADBEEF)))
		})

		It("accepts AW and W on different cycles", func() {
			m.Commit(bus.ARChannel{}, false, bus.AWChannel{Valid: true, Addr: 0x40}, bus.WChannel{}, false)
			_, _, _, _, b := m.Outputs()
			Expect(b.Valid).To(BeFalse())

			m.Commit(bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{Valid: true, Data: 0x1, Strobe: 0b1111}, false)
			_, _, _, _, b = m.Outputs()
			Expect(b.Valid).To(BeTrue())
			Expect(m.ReadWord(0x40)).To(Equal(uint32(0x1)))
		})

		It("masks bytes outside the strobe", func() {
			m.WriteWord(0x50, 0xFFFFFFFF)
			m.Commit(
				bus.ARChannel{}, false,
				bus.AWChannel{Valid: true, Addr: 0x50},
				bus.WChannel{Valid: true, Data: 0x000000AB, Strobe: 0b0001},
				false,
			)
			Expect(m.ReadWord(0x50)).To(Equal(uint32(0xFFFFFFAB)))
		})

		It("commits to the word at AWADDR>>2 even when AWADDR isn't word-aligned", func() {
			// A non-word-aligned AWADDR still addresses the containing
			// word; the strobe, not AWADDR, selects which bytes change.
			m.WriteWord(0x300, 0)
			m.Commit(
				bus.ARChannel{}, false,
				bus.AWChannel{Valid: true, Addr: 0x301},
				bus.WChannel{Valid: true, Data: 0xDEADBEEF, Strobe: 0b1111},
				false,
			)
			Expect(m.ReadWord(0x300)).To(Equal(uint32(0xDEADBEEF)))
		})

		It("holds B.Valid until B.Ready is asserted", func() {
			m.Commit(
				bus.ARChannel{}, false,
				bus.AWChannel{Valid: true, Addr: 0x60},
				bus.WChannel{Valid: true, Data: 0x1, Strobe: 0b1111},
				false,
			)
			m.Commit(bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, false)
			_, _, _, _, b := m.Outputs()
			Expect(b.Valid).To(BeTrue())

			m.Commit(bus.ARChannel{}, false, bus.AWChannel{}, bus.WChannel{}, true)
			_, _, _, _, b = m.Outputs()
			Expect(b.Valid).To(BeFalse())
		})
	})
})
