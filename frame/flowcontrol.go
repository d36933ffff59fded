package frame

import "fmt"

// FlowControlStatus is the first nibble-pair of an ISO-TP flow
// control frame.
type FlowControlStatus byte

const (
	FlowStatusClearToSend FlowControlStatus = 0x30
	FlowStatusWait        FlowControlStatus = 0x31
	FlowStatusOverflow    FlowControlStatus = 0x32
)

func (s FlowControlStatus) Valid() bool {
	switch s {
	case FlowStatusClearToSend, FlowStatusWait, FlowStatusOverflow:
		return true
	default:
		return false
	}
}

// FlowControlFrame is the 3-byte ISO-TP flow control PDU
// [status, blockSize, separationTime].
type FlowControlFrame struct {
	Status         FlowControlStatus
	BlockSize      byte
	SeparationTime byte
}

// NewFlowControlFrame builds a clear-to-send frame with the
// transceiver's configured defaults.
func NewFlowControlFrame(blockSize, separationTime byte) FlowControlFrame {
	return FlowControlFrame{
		Status:         FlowStatusClearToSend,
		BlockSize:      blockSize,
		SeparationTime: separationTime,
	}
}

// Bytes serializes the frame to its exact 3-byte wire form.
func (f FlowControlFrame) Bytes() []byte {
	return []byte{byte(f.Status), f.BlockSize, f.SeparationTime}
}

// ParseFlowControlFrame reads a flow control frame from the leading
// bytes of b (only the first 3 are consulted; the rest — up to the
// 8-byte CAN frame length — are ignored padding).
func ParseFlowControlFrame(b []byte) (FlowControlFrame, error) {
	if len(b) < 3 {
		return FlowControlFrame{}, fmt.Errorf("flow control frame too short: %d bytes", len(b))
	}
	status := FlowControlStatus(b[0])
	if !status.Valid() {
		return FlowControlFrame{}, fmt.Errorf("unknown flow control status 0x%02X", b[0])
	}
	return FlowControlFrame{Status: status, BlockSize: b[1], SeparationTime: b[2]}, nil
}
