package system

import "fmt"

// TimeoutError reports that a requested access did not complete within
// the configured cycle budget. Nothing in the AXI-like protocol models
// here ever raises SLVERR/DECERR, so a stuck handshake is the only
// failure mode System needs to surface.
type TimeoutError struct {
	Cycles uint64
	Addr   uint32
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("access to 0x%08x did not complete within %d cycles", e.Addr, e.Cycles)
}
