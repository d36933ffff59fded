package isotp

import (
	"fmt"

	"obdcore/frame"
)

// Behavior selects how the transceiver reacts to a peer's protocol
// violation.
type Behavior int

const (
	// BehaviorDefensive resets and attempts to reinterpret the
	// offending frame as the start of a new message, swallowing it
	// silently if that also fails. Recommended for production use
	// against real, occasionally noisy ECUs.
	BehaviorDefensive Behavior = iota
	// BehaviorStrict raises ProtocolViolationError and leaves all
	// internal state untouched. Useful for conformance testing.
	BehaviorStrict
)

// Config configures a Transceiver's local flow-control defaults and
// violation-recovery policy.
type Config struct {
	Behavior Behavior
	// BlockSize is how many consecutive frames this transceiver will
	// accept before it re-requests flow control from the peer while
	// receiving. Zero means "no limit, send all CFs without pause".
	BlockSize byte
	// SeparationTime is advertised to the peer in our flow control
	// frames. Zero means "no minimum separation time required".
	SeparationTime byte
}

// DefaultConfig matches the teacher's own flow-control frame
// construction: block size 0 (accept everything), separation time 0.
func DefaultConfig() Config {
	return Config{Behavior: BehaviorDefensive, BlockSize: 0, SeparationTime: 0}
}

// State names the three-way idle/sending/receiving state of a Transceiver.
type State int

const (
	StateIdle State = iota
	StateSending
	StateReceiving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateReceiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// ProtocolViolationError is returned in BehaviorStrict mode whenever
// the peer (or caller) violates the ISO-TP state machine.
type ProtocolViolationError struct{ Reason string }

func (e *ProtocolViolationError) Error() string { return "isotp: protocol violation: " + e.Reason }

// Transceiver is a full-duplex ISO-TP segmentation state machine for
// one logical endpoint. It is not safe for concurrent use: a caller
// must not invoke Write and DidRead concurrently on the same
// instance (SPEC_FULL.md §5).
type Transceiver struct {
	cfg Config
	st  State

	outPending []byte
	outSeq     byte

	inBuf         []byte
	inRemaining   int
	inFCCounter   byte
	inExpectedSeq byte
}

// New constructs an idle Transceiver with the given configuration.
func New(cfg Config) *Transceiver {
	return &Transceiver{cfg: cfg, st: StateIdle}
}

// State reports the transceiver's current state.
func (t *Transceiver) State() State { return t.st }

// Reset returns the transceiver to idle and clears both directions'
// buffers, per the Lifecycles section of the data model.
func (t *Transceiver) Reset() {
	t.st = StateIdle
	t.outPending = nil
	t.outSeq = 0
	t.inBuf = nil
	t.inRemaining = 0
	t.inFCCounter = 0
	t.inExpectedSeq = 0
}

// Write begins sending payload. Payloads of 7 bytes or fewer complete
// in a single Action; larger payloads put the transceiver in
// StateSending awaiting a flow control frame via DidRead.
func (t *Transceiver) Write(payload []byte) (Action, error) {
	n := len(payload)
	if n > frame.MaximumPayload {
		return Action{}, fmt.Errorf("isotp: write: %w: %d bytes", errMessageTooBig, n)
	}

	if n <= 7 {
		sf := make([]byte, 0, n+1)
		sf = append(sf, byte(n))
		sf = append(sf, payload...)
		return writeFrames([][]byte{sf}, 0, true), nil
	}

	ff := make([]byte, frame.FrameLength)
	ff[0] = 0x10 | byte(n>>8)
	ff[1] = byte(n & 0xFF)
	copy(ff[2:], payload[:frame.FirstFramePayload])

	t.outPending = append([]byte(nil), payload[frame.FirstFramePayload:]...)
	t.outSeq = 1
	t.st = StateSending

	return writeFrames([][]byte{ff}, 0, false), nil
}

// DidRead ingests one 8-byte frame received from the bus.
func (t *Transceiver) DidRead(b []byte) (Action, error) {
	if len(b) != frame.FrameLength {
		return Action{}, fmt.Errorf("isotp: didRead: expected %d byte frame, got %d", frame.FrameLength, len(b))
	}

	if t.st == StateSending {
		return t.continueSend(b)
	}
	return t.receive(b)
}

// continueSend handles an inbound frame while StateSending: it must
// be a flow control frame driving the next batch of consecutive
// frames (or pausing/aborting the send).
func (t *Transceiver) continueSend(b []byte) (Action, error) {
	fc, err := frame.ParseFlowControlFrame(b)
	if err != nil {
		return t.handleViolation(b, "expected flow control frame while sending: "+err.Error())
	}

	switch fc.Status {
	case frame.FlowStatusWait:
		// Pause: await another FC without resetting sequence state.
		return waitForMore(), nil
	case frame.FlowStatusOverflow:
		// The peer cannot accept more data; this isn't a framing bug
		// we can recover from, so it aborts in either Behavior mode.
		t.Reset()
		return Action{}, &ProtocolViolationError{Reason: "peer reported flow control overflow"}
	case frame.FlowStatusClearToSend:
		return t.sendNextBatch(fc), nil
	default:
		return t.handleViolation(b, fmt.Sprintf("unhandled flow control status 0x%02X", byte(fc.Status)))
	}
}

func (t *Transceiver) sendNextBatch(fc frame.FlowControlFrame) Action {
	limit := -1 // unlimited
	if fc.BlockSize != 0 {
		limit = int(fc.BlockSize)
	}

	var frames [][]byte
	for len(t.outPending) > 0 && (limit < 0 || len(frames) < limit) {
		take := frame.ConsecutiveFramePayload
		if take > len(t.outPending) {
			take = len(t.outPending)
		}
		cf := make([]byte, 0, take+1)
		cf = append(cf, 0x20|(t.outSeq&0x0F))
		cf = append(cf, t.outPending[:take]...)
		frames = append(frames, cf)

		t.outPending = t.outPending[take:]
		t.outSeq = nextSequence(t.outSeq)
	}

	isLast := len(t.outPending) == 0
	if isLast {
		t.Reset()
	}
	return writeFrames(frames, fc.SeparationTime, isLast)
}

// receive handles an inbound frame while StateIdle or StateReceiving:
// single frames and first frames (idle only), and consecutive frames
// (receiving only).
func (t *Transceiver) receive(b []byte) (Action, error) {
	switch frame.PCIType(b[0]) {
	case frame.FrameTypeSingle:
		if t.st != StateIdle {
			return t.handleViolation(b, "single frame received while not idle")
		}
		dl := b[0] & 0x0F
		if dl < 1 || dl > 7 {
			return t.handleViolation(b, fmt.Sprintf("single frame declares invalid length %d", dl))
		}
		return process(append([]byte(nil), b[1:1+dl]...)), nil

	case frame.FrameTypeFirst:
		if t.st != StateIdle {
			return t.handleViolation(b, "first frame received while not idle")
		}
		pci := (int(b[0]&0x0F) << 8) | int(b[1])
		if pci <= 7 {
			return t.handleViolation(b, fmt.Sprintf("first frame declares length %d, too small to require segmentation", pci))
		}
		t.beginReceiving(b, pci)
		fc := frame.NewFlowControlFrame(t.cfg.BlockSize, t.cfg.SeparationTime)
		return writeFrames([][]byte{fc.Bytes()}, 0, false), nil

	case frame.FrameTypeConsecutive:
		if t.st != StateReceiving {
			return t.handleViolation(b, "consecutive frame received while not receiving")
		}
		sn := b[0] & 0x0F
		if sn != t.inExpectedSeq {
			return t.handleViolation(b, fmt.Sprintf("expected sequence number %d, got %d", t.inExpectedSeq, sn))
		}
		return t.acceptConsecutive(b), nil

	default: // FrameTypeFlowControl or any undefined PCI type
		return t.handleViolation(b, fmt.Sprintf("unexpected frame type 0x%X while %s", frame.PCIType(b[0]), t.st))
	}
}

func (t *Transceiver) beginReceiving(b []byte, length int) {
	t.inBuf = append([]byte(nil), b[2:8]...)
	t.inRemaining = length - frame.FirstFramePayload
	t.inFCCounter = t.cfg.BlockSize
	t.inExpectedSeq = 1
	t.st = StateReceiving
}

func (t *Transceiver) acceptConsecutive(b []byte) Action {
	take := frame.ConsecutiveFramePayload
	if take > t.inRemaining {
		take = t.inRemaining
	}
	t.inBuf = append(t.inBuf, b[1:1+take]...)
	if t.inRemaining > frame.ConsecutiveFramePayload {
		t.inRemaining -= frame.ConsecutiveFramePayload
	} else {
		t.inRemaining = 0
	}
	t.inExpectedSeq = nextSequence(t.inExpectedSeq)

	if t.inRemaining <= 0 {
		payload := t.inBuf
		t.Reset()
		return process(payload)
	}
	if t.cfg.BlockSize == 0 {
		return waitForMore()
	}
	t.inFCCounter--
	if t.inFCCounter == 0 {
		t.inFCCounter = t.cfg.BlockSize
		fc := frame.NewFlowControlFrame(t.cfg.BlockSize, t.cfg.SeparationTime)
		return writeFrames([][]byte{fc.Bytes()}, 0, false)
	}
	return waitForMore()
}

// handleViolation applies the configured Behavior to a detected
// protocol violation. Callers must invoke this before mutating any
// internal state for the current frame, so BehaviorStrict's "leave
// state untouched" guarantee holds trivially.
func (t *Transceiver) handleViolation(b []byte, reason string) (Action, error) {
	if t.cfg.Behavior == BehaviorStrict {
		return Action{}, &ProtocolViolationError{Reason: reason}
	}

	t.Reset()
	if action, err := t.attemptFreshStart(b); err == nil {
		return action, nil
	}
	t.Reset()
	return waitForMore(), nil
}

// attemptFreshStart is the defensive retry: reinterpret b as the
// first frame of a brand new message (single or first frame only —
// a consecutive or flow control frame can never legally start one).
func (t *Transceiver) attemptFreshStart(b []byte) (Action, error) {
	switch frame.PCIType(b[0]) {
	case frame.FrameTypeSingle:
		dl := b[0] & 0x0F
		if dl < 1 || dl > 7 {
			return Action{}, fmt.Errorf("isotp: invalid single frame length %d", dl)
		}
		return process(append([]byte(nil), b[1:1+dl]...)), nil
	case frame.FrameTypeFirst:
		pci := (int(b[0]&0x0F) << 8) | int(b[1])
		if pci <= 7 {
			return Action{}, fmt.Errorf("isotp: invalid first frame length %d", pci)
		}
		t.beginReceiving(b, pci)
		fc := frame.NewFlowControlFrame(t.cfg.BlockSize, t.cfg.SeparationTime)
		return writeFrames([][]byte{fc.Bytes()}, 0, false), nil
	default:
		return Action{}, fmt.Errorf("isotp: frame type 0x%X cannot start a message", frame.PCIType(b[0]))
	}
}
