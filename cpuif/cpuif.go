// Package cpuif defines the request/response contract the CPU pipeline
// presents to each cache controller. The pipeline itself is an external
// collaborator (out of scope for this module); only the shape of the
// signals it drives and observes lives here.
package cpuif

// Func3 width codes recognized on the D-Cache's store path.
const (
	Func3Byte uint8 = 0b000
	Func3Half uint8 = 0b001
	Func3Word uint8 = 0b010
)

// MMIOBase is the default address at and above which a request is
// uncacheable MMIO. It is overridable via system.Config; see
// SPEC_FULL.md §2.3.
const MMIOBase uint32 = 0x20000000

// FetchRequest is what the pipeline drives into the I-Cache each cycle.
// While Stall is asserted in the matching FetchResponse, the pipeline
// must hold Req and Addr stable.
type FetchRequest struct {
	Req  bool
	Addr uint32
}

// FetchResponse is what the I-Cache drives back to the pipeline.
type FetchResponse struct {
	Data  uint32
	Stall bool
}

// DataRequest is what the pipeline drives into the D-Cache each cycle.
// Func3 values outside {Func3Byte, Func3Half, Func3Word} are undefined;
// the producing pipeline must not issue them.
type DataRequest struct {
	Req   bool
	Addr  uint32
	We    bool
	WData uint32
	Func3 uint8
}

// DataResponse is what the D-Cache drives back to the pipeline.
type DataResponse struct {
	Data  uint32
	Stall bool
}

// Strobe computes the byte-enable mask for a store of the given width at
// the given byte offset within a word (addr & 0x3). Misaligned half/word
// stores and unrecognized func3 codes are not defined and return 0; the
// producing pipeline must not issue them.
func Strobe(func3 uint8, byteOffset uint32) uint8 {
	switch func3 {
	case Func3Byte:
		return 1 << (byteOffset & 0x3)
	case Func3Half:
		switch byteOffset {
		case 0:
			return 0b0011
		case 2:
			return 0b1100
		}
	case Func3Word:
		if byteOffset == 0 {
			return 0b1111
		}
	}
	return 0
}
