package isotp

import (
	"bytes"
	"testing"

	"obdcore/frame"
)

// Scenario 1: single frame receive.
func TestScenarioSingleFrameReceive(t *testing.T) {
	tr := New(DefaultConfig())
	action, err := tr.DidRead([]byte{0x02, 0x09, 0x02, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionProcess || !bytes.Equal(action.Payload, []byte{0x09, 0x02}) {
		t.Fatalf("got %+v", action)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state = %s, want idle", tr.State())
	}
}

// Scenarios 2+3: first frame then consecutive frame reassembly, with
// a non-default local block size/separation time driving the FC reply.
func TestScenarioFirstThenConsecutiveFrame(t *testing.T) {
	tr := New(Config{Behavior: BehaviorDefensive, BlockSize: 0x40, SeparationTime: 1})

	action, err := tr.DidRead([]byte{0x10, 0x08, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionWriteFrames || action.IsLastBatch {
		t.Fatalf("got %+v", action)
	}
	wantFC := []byte{0x30, 0x40, 0x01}
	if len(action.Frames) != 1 || !bytes.Equal(action.Frames[0], wantFC) {
		t.Fatalf("FC frame = % X, want % X", action.Frames, wantFC)
	}
	if tr.State() != StateReceiving {
		t.Fatalf("state = %s, want receiving", tr.State())
	}

	action, err = tr.DidRead([]byte{0x21, 0x77, 0x88, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if action.Kind != ActionProcess || !bytes.Equal(action.Payload, want) {
		t.Fatalf("got %+v, want process(% X)", action, want)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state = %s, want idle", tr.State())
	}
}

// Scenario 4: short payload send.
func TestScenarioWriteSingleFrame(t *testing.T) {
	tr := New(DefaultConfig())
	action, err := tr.Write([]byte{0x09, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]byte{{0x02, 0x09, 0x02}}
	if action.Kind != ActionWriteFrames || !action.IsLastBatch || !bytes.Equal(action.Frames[0], want[0]) {
		t.Fatalf("got %+v", action)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state = %s, want idle", tr.State())
	}
}

// Scenario 5: 8-byte send requiring a first frame + one consecutive
// frame, driven by a clear-to-send flow control reply.
func TestScenarioWriteMultiFrame(t *testing.T) {
	tr := New(DefaultConfig())
	payload := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	action, err := tr.Write(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFF := []byte{0x10, 0x08, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	if action.Kind != ActionWriteFrames || action.IsLastBatch || !bytes.Equal(action.Frames[0], wantFF) {
		t.Fatalf("got %+v", action)
	}
	if tr.State() != StateSending {
		t.Fatalf("state = %s, want sending", tr.State())
	}

	action, err = tr.DidRead([]byte{0x30, 0x00, 0x01, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantCF := []byte{0x21, 0x77, 0x88}
	if action.Kind != ActionWriteFrames || !action.IsLastBatch || action.SeparationTimeMs != 1 || !bytes.Equal(action.Frames[0], wantCF) {
		t.Fatalf("got %+v", action)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state = %s, want idle", tr.State())
	}
}

// Scenario 6: the stateless codec smoke test, also exercised in codec_test.go.
func TestScenarioStatelessSmokeTest(t *testing.T) {
	encoded, err := Encode([]byte{0x01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(encoded, []byte{0x01, 0x01}) {
		t.Fatalf("Encode = % X", encoded)
	}
	decoded, err := Decode([]byte{0x02, 0x09, 0x02})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, []byte{0x09, 0x02}) {
		t.Fatalf("Decode = % X", decoded)
	}
}

// Full transceiver-to-transceiver round trip for a range of payload
// sizes, including the max-length boundary.
func TestTransceiverRoundTrip(t *testing.T) {
	sizes := []int{1, 6, 7, 8, 100, 4095}
	for _, n := range sizes {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		if got := roundTrip(t, payload); !bytes.Equal(got, payload) {
			t.Fatalf("size %d: round trip mismatch", n)
		}
	}
}

// roundTrip drives sender A's Write output into receiver B, feeding
// B's flow-control frames back into A, until B emits ActionProcess.
// It asserts both ends are back in StateIdle when B emits ActionProcess.
func roundTrip(t *testing.T, payload []byte) []byte {
	t.Helper()
	a := New(DefaultConfig())
	b := New(DefaultConfig())

	action, err := a.Write(payload)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}

	for {
		for _, f := range action.Frames {
			framed := pad(f)
			resp, err := b.DidRead(framed)
			if err != nil {
				t.Fatalf("b.DidRead error: %v", err)
			}
			if resp.Kind == ActionProcess {
				if a.State() != StateIdle || b.State() != StateIdle {
					t.Fatalf("non-idle after process: a=%s b=%s", a.State(), b.State())
				}
				return resp.Payload
			}
			if resp.Kind == ActionWriteFrames {
				for _, fcFrame := range resp.Frames {
					next, err := a.DidRead(pad(fcFrame))
					if err != nil {
						t.Fatalf("a.DidRead(fc) error: %v", err)
					}
					action = next
				}
			}
		}
		if action.IsLastBatch && action.Kind != ActionWriteFrames {
			t.Fatalf("loop exhausted without reassembly; last action %+v", action)
		}
	}
}

func pad(f []byte) []byte {
	out := make([]byte, frame.FrameLength)
	copy(out, f)
	for i := len(f); i < frame.FrameLength; i++ {
		out[i] = 0xAA
	}
	return out
}

func TestDefensiveRecoveryFromOutOfOrderConsecutiveFrame(t *testing.T) {
	tr := New(Config{Behavior: BehaviorDefensive})

	if _, err := tr.DidRead(pad([]byte{0x10, 0x14, 1, 2, 3, 4, 5, 6})); err != nil {
		t.Fatalf("unexpected error starting first frame: %v", err)
	}
	if _, err := tr.DidRead(pad([]byte{0x21, 7, 8, 9, 10, 11, 12, 13})); err != nil {
		t.Fatalf("unexpected error on first CF: %v", err)
	}

	// Out-of-order: expected sequence 2, but sequence 7 arrives.
	action, err := tr.DidRead(pad([]byte{0x27, 14, 15, 16, 17, 18, 19, 20}))
	if err != nil {
		t.Fatalf("defensive mode must not surface an error, got %v", err)
	}
	if action.Kind != ActionWaitForMore {
		t.Fatalf("got %+v, want waitForMore", action)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state = %s, want idle after defensive reset", tr.State())
	}

	// A subsequent valid single frame must process normally.
	action, err = tr.DidRead(pad([]byte{0x02, 0xAA, 0xBB}))
	if err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if action.Kind != ActionProcess || !bytes.Equal(action.Payload, []byte{0xAA, 0xBB}) {
		t.Fatalf("got %+v", action)
	}
}

func TestStrictViolationLeavesStateUntouched(t *testing.T) {
	tr := New(Config{Behavior: BehaviorStrict})

	// A consecutive frame while idle is always illegal.
	_, err := tr.DidRead(pad([]byte{0x21, 1, 2, 3, 4, 5, 6, 7}))
	var pv *ProtocolViolationError
	if err == nil {
		t.Fatal("expected a protocol violation error")
	}
	if !isProtocolViolation(err, &pv) {
		t.Fatalf("got %T: %v, want *ProtocolViolationError", err, err)
	}
	if tr.State() != StateIdle {
		t.Fatalf("state mutated by a rejected frame: %s", tr.State())
	}
}

func isProtocolViolation(err error, target **ProtocolViolationError) bool {
	if pv, ok := err.(*ProtocolViolationError); ok {
		*target = pv
		return true
	}
	return false
}

func TestOverflowAbortsRegardlessOfBehavior(t *testing.T) {
	for _, behavior := range []Behavior{BehaviorDefensive, BehaviorStrict} {
		tr := New(Config{Behavior: behavior})
		if _, err := tr.Write(make([]byte, 20)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := tr.DidRead(pad([]byte{0x32, 0x00, 0x00}))
		if err == nil {
			t.Fatalf("behavior %v: expected overflow to abort with an error", behavior)
		}
		if tr.State() != StateIdle {
			t.Fatalf("behavior %v: state = %s, want idle after overflow abort", behavior, tr.State())
		}
	}
}

func TestWriteRejectsOversizedPayload(t *testing.T) {
	tr := New(DefaultConfig())
	if _, err := tr.Write(make([]byte, frame.MaximumPayload+1)); err == nil {
		t.Fatal("expected messageTooBig error")
	}
}

func TestWaitStatusPausesWithoutResettingSequence(t *testing.T) {
	tr := New(DefaultConfig())
	if _, err := tr.Write(make([]byte, 20)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	action, err := tr.DidRead(pad([]byte{0x31, 0x00, 0x00}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionWaitForMore {
		t.Fatalf("got %+v, want waitForMore on wait status", action)
	}
	if tr.State() != StateSending {
		t.Fatalf("state = %s, want sending (still awaiting FC)", tr.State())
	}

	// A subsequent clear-to-send must still work from where it left off.
	action, err = tr.DidRead(pad([]byte{0x30, 0x00, 0x00}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Kind != ActionWriteFrames || !action.IsLastBatch {
		t.Fatalf("got %+v", action)
	}
}
