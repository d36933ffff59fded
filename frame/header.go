// Package frame holds the wire-level data model shared by every layer
// of the transport: CAN headers, UDS messages and ISO-TP flow-control
// frames. It owns no behavior beyond construction, derivation and
// stringification — the state machines that move these types live in
// isotp, codec and adapter.
package frame

import "fmt"

// Header is a CAN arbitration identifier. Values under 0x800 are
// 11-bit SAE-standard IDs; larger values are 29-bit extended IDs.
// Zero means "unset/any".
type Header uint32

// StandardIDLimit is the first value that requires a 29-bit extended header.
const StandardIDLimit Header = 0x800

// IsExtended reports whether h needs a 29-bit (8 hex char) encoding.
func (h Header) IsExtended() bool { return h >= StandardIDLimit }

// HeaderChars returns how many hex characters the wire encoding of h uses.
func (h Header) HeaderChars() int {
	if h.IsExtended() {
		return 8
	}
	return 3
}

// IsZero reports whether h is the "unset/any" sentinel.
func (h Header) IsZero() bool { return h == 0 }

// String renders h as upper-case hex, zero-padded to its header width.
func (h Header) String() string {
	return fmt.Sprintf("%0*X", h.HeaderChars(), uint32(h))
}
