package frame

// FrameType is the high nibble of an ISO-TP PCI byte.
type FrameType byte

const (
	FrameTypeSingle      FrameType = 0x0
	FrameTypeFirst       FrameType = 0x1
	FrameTypeConsecutive FrameType = 0x2
	FrameTypeFlowControl FrameType = 0x3
)

// PCIType extracts the frame type from a raw PCI byte.
func PCIType(pci byte) FrameType { return FrameType(pci >> 4) }

// ISO-TP sizing constants (ISO 15765-2).
const (
	// FrameLength is the fixed size of a CAN data frame in bytes.
	FrameLength = 8
	// MaximumPayload is the largest payload the 3-nibble ISO-TP
	// length field can describe.
	MaximumPayload = 4095
	// FirstFramePayload is how many payload bytes a first frame carries.
	FirstFramePayload = 6
	// ConsecutiveFramePayload is how many payload bytes a consecutive
	// frame carries at most.
	ConsecutiveFramePayload = 7
	// MaximumFrames bounds a payload of MaximumPayload bytes: one
	// first frame (6 bytes) plus 585 consecutive frames, the last as
	// small as 1 byte.
	MaximumFrames = 586
)
