// Package isotp implements ISO 15765-2 segmentation: a stateless
// encoder/decoder pair for adapters that do their own framing
// round-trip, and a full bidirectional transceiver state machine
// (transceiver.go) for adapters that hand the transport raw 8-byte
// CAN frames. Grounded on the teacher's uds.sendFirstFrame /
// sendConsecutiveFrames / receiveMultiFrame, generalized from
// "always talk to the one tester/ECU pair over a live connection"
// into pure functions and an explicit Action type.
package isotp

import (
	"fmt"

	"obdcore/frame"
)

// Encode segments payload into the flat byte-concatenation of the
// frames a conforming ISO-TP sender would emit, in order, with no
// frame-boundary markers — the inverse of Decode.
func Encode(payload []byte) ([]byte, error) {
	n := len(payload)
	if n == 0 {
		return nil, fmt.Errorf("isotp: encode: %w", errMessageTooSmall)
	}
	if n > frame.MaximumPayload {
		return nil, fmt.Errorf("isotp: encode: %w", errMessageTooBig)
	}

	if n < 7 {
		out := make([]byte, 0, n+1)
		out = append(out, byte(n))
		out = append(out, payload...)
		return out, nil
	}

	out := make([]byte, 0, n+2+((n-frame.FirstFramePayload+frame.ConsecutiveFramePayload-1)/frame.ConsecutiveFramePayload))
	out = append(out, byte(0x10|(n>>8)), byte(n&0xFF))
	out = append(out, payload[:frame.FirstFramePayload]...)

	remaining := payload[frame.FirstFramePayload:]
	seq := byte(1)
	for len(remaining) > 0 {
		out = append(out, 0x20|seq)
		take := frame.ConsecutiveFramePayload
		if take > len(remaining) {
			take = len(remaining)
		}
		out = append(out, remaining[:take]...)
		remaining = remaining[take:]
		seq = nextSequence(seq)
	}
	return out, nil
}

// nextSequence advances the 4-bit sequence number carried in the low
// nibble of a consecutive-frame PCI, wrapping 0x0F back to 0x00 (so
// PCIs run 0x2F -> 0x20).
func nextSequence(seq byte) byte {
	if seq == 0x0F {
		return 0x00
	}
	return seq + 1
}

// Decode reassembles the flat frame-concatenation produced by Encode
// (or an equivalent conforming sender) back into the original
// payload. A sub-9-byte buffer whose first byte is 0x30 is treated as
// a passed-through flow-control echo rather than a single frame —
// see the Open Question in SPEC_FULL.md about conflating the two.
func Decode(concatenated []byte) ([]byte, error) {
	if len(concatenated) == 0 {
		return nil, fmt.Errorf("isotp: decode: %w: empty input", errDecoder)
	}

	if len(concatenated) < 9 {
		pci := concatenated[0]
		if pci == 0x30 {
			return concatenated, nil
		}
		if pci >= 8 {
			return nil, fmt.Errorf("isotp: decode: %w: pci 0x%02X too large for single frame", errDecoder, pci)
		}
		if int(pci)+1 > len(concatenated) {
			return nil, fmt.Errorf("isotp: decode: %w: single frame declares %d bytes but only %d available", errDecoder, pci, len(concatenated)-1)
		}
		return concatenated[1 : pci+1], nil
	}

	if frame.PCIType(concatenated[0]) != frame.FrameTypeFirst {
		return nil, fmt.Errorf("isotp: decode: %w: expected first frame, got PCI 0x%02X", errDecoder, concatenated[0])
	}
	length := (int(concatenated[0]&0x0F) << 8) | int(concatenated[1])

	out := make([]byte, 0, length)
	out = append(out, concatenated[2:8]...)
	remaining := length - frame.FirstFramePayload

	pos := 8
	expectedSeq := byte(1)
	for remaining > 0 {
		if pos >= len(concatenated) {
			return nil, fmt.Errorf("isotp: decode: %w: input truncated with %d bytes still expected", errDecoder, remaining)
		}
		pci := concatenated[pos]
		if pci != 0x20|expectedSeq {
			return nil, fmt.Errorf("isotp: decode: %w: expected consecutive frame PCI 0x%02X, got 0x%02X", errDecoder, 0x20|expectedSeq, pci)
		}
		pos++

		take := frame.ConsecutiveFramePayload
		if take > remaining {
			take = remaining
		}
		if pos+take > len(concatenated) {
			take = len(concatenated) - pos
		}
		out = append(out, concatenated[pos:pos+take]...)
		pos += take
		remaining -= frame.ConsecutiveFramePayload
		expectedSeq = nextSequence(expectedSeq)
	}

	if len(out) != length {
		return nil, fmt.Errorf("isotp: decode: %w: assembled %d bytes, first frame announced %d", errDecoder, len(out), length)
	}
	return out, nil
}
