package isotp

// ActionKind discriminates the variants of Action. Per the design
// note in SPEC_FULL.md ("transceiver as tagged Action"), callers
// switch on Kind rather than inspecting mutable transceiver state.
type ActionKind int

const (
	// ActionWaitForMore means nothing to do: the caller need not write
	// or deliver anything as a result of the call that produced this.
	ActionWaitForMore ActionKind = iota
	// ActionProcess carries a complete, reassembled inbound payload.
	ActionProcess
	// ActionWriteFrames carries frames the caller must transmit,
	// pacing consecutive writes by SeparationTimeMs.
	ActionWriteFrames
)

// Action is the sum type every transceiver operation returns. Exactly
// one field set is meaningful, selected by Kind.
type Action struct {
	Kind ActionKind

	// Payload is set when Kind == ActionProcess.
	Payload []byte

	// Frames, SeparationTimeMs and IsLastBatch are set when
	// Kind == ActionWriteFrames. Frames are already-PCI-encoded
	// 8-byte-or-shorter CAN frame payloads (not yet addressed to a
	// CAN header — that's the caller's job). IsLastBatch is true iff
	// the transceiver will not emit any further frames for this
	// logical send without additional input.
	Frames           [][]byte
	SeparationTimeMs byte
	IsLastBatch      bool
}

func waitForMore() Action { return Action{Kind: ActionWaitForMore} }

func process(payload []byte) Action {
	return Action{Kind: ActionProcess, Payload: payload}
}

func writeFrames(frames [][]byte, sep byte, isLast bool) Action {
	return Action{Kind: ActionWriteFrames, Frames: frames, SeparationTimeMs: sep, IsLastBatch: isLast}
}
