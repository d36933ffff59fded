package adapter

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obdcore/busproto"
	"obdcore/errs"
	"obdcore/frame"
	"obdcore/streamqueue"
)

// scriptedStream answers each write with a canned, terminator-delimited
// response looked up by the written command text, falling back to a
// plain "OK" for anything unscripted.
type scriptedStream struct {
	mu        sync.Mutex
	responses map[string]string
	writes    []string
	pending   bytes.Buffer
}

func newScriptedStream(responses map[string]string) *scriptedStream {
	return &scriptedStream{responses: responses}
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	cmd := strings.TrimSuffix(string(p), "\r")
	resp, ok := s.responses[cmd]
	if !ok {
		resp = "OK"
	}
	s.mu.Lock()
	s.writes = append(s.writes, cmd)
	s.pending.WriteString(resp + ">")
	s.mu.Unlock()
	return len(p), nil
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	for {
		s.mu.Lock()
		if s.pending.Len() > 0 {
			n, _ := s.pending.Read(p[:1])
			s.mu.Unlock()
			return n, nil
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func (s *scriptedStream) writeCount(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w == cmd {
			n++
		}
	}
	return n
}

func canInitScript() map[string]string {
	return map[string]string{
		"ATZ":      "ELM327 v1.5",
		"ATS0":     "OK",
		"ATE0":     "OK",
		"ATL0":     "OK",
		"ATH1":     "OK",
		"ATI":      "ELM327 v1.5",
		"AT@1":     "OBDII to RS232 Interpreter",
		"STIX":     "STN1155",
		"AT#1":     "?",
		"ATSP6":    "OK",
		"0100":     "7E8 06 41 00 BE 1F A8 13",
		"ATDPN":    "A6",
		"ATAT0":    "OK",
		"ATSTFF":   "OK",
		"ATCAF1":   "OK",
		"STCSEGT1": "OK",
		"STCSEGR1": "OK",
	}
}

func TestConnectNegotiatesProtocolAndTransitionsToConnected(t *testing.T) {
	stream := newScriptedStream(canInitScript())
	a := New(stream)
	defer a.Shutdown()

	err := a.Connect(context.Background(), busproto.CAN11B500K)
	require.NoError(t, err)

	assert.Equal(t, StateConnected, a.State())
	assert.Equal(t, ICSTN11xx, a.Info().IC)
	assert.Equal(t, frame.MaximumPayload, a.MTU())
}

func TestConnectFailsTransitionsToUnsupportedProtocol(t *testing.T) {
	script := canInitScript()
	script["ATSP6"] = "?"
	stream := newScriptedStream(script)
	a := New(stream)
	defer a.Shutdown()

	err := a.Connect(context.Background(), busproto.CAN11B500K)
	require.Error(t, err)
	assert.Equal(t, StateUnsupportedProtocol, a.State())
}

func TestConnectFailsOnDeadAdapterTransitionsToGone(t *testing.T) {
	script := canInitScript()
	script["ATZ"] = "?"
	stream := newScriptedStream(script)
	a := New(stream)
	defer a.Shutdown()

	err := a.Connect(context.Background(), busproto.CAN11B500K)
	require.Error(t, err)
	assert.Equal(t, StateGone, a.State())
}

func TestSearchPicksFirstMatchingCandidate(t *testing.T) {
	script := canInitScript()
	script["ATTP3"] = "OK"
	script["0100"] = "" // candidate 1's probe never answers
	script["ATTP6"] = "OK"
	script["010C"] = "7E8 06 41 0C 00 00 00 00"
	stream := newScriptedStream(script)
	a := New(stream)
	defer a.Shutdown()

	candidates := []Candidate{
		{Protocol: busproto.ISO9141_2, Test: TestMessage{Bytes: []byte{0x01, 0x00}}},
		{Protocol: busproto.CAN11B500K, Test: TestMessage{Bytes: []byte{0x01, 0x0C}}},
	}

	err := a.Search(context.Background(), candidates, false)
	require.NoError(t, err)
	assert.Equal(t, StateConnected, a.State())
}

func TestSendUDSCachesHeaderAndReplyAcrossCalls(t *testing.T) {
	script := canInitScript()
	script["ATSH7E0"] = "OK"
	script["ATCRA7E8"] = "OK"
	script["22F190"] = "7E8 62 F1 90 01"
	stream := newScriptedStream(script)
	a := New(stream)
	defer a.Shutdown()

	require.NoError(t, a.Connect(context.Background(), busproto.CAN11B500K))

	req := frame.New(0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})

	resp, err := a.SendUDS(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0xF1, 0x90, 0x01}, resp.Bytes)
	assert.Equal(t, 1, stream.writeCount("ATSH7E0"))
	assert.Equal(t, 1, stream.writeCount("ATCRA7E8"))

	_, err = a.SendUDS(context.Background(), req)
	require.NoError(t, err)
	// same header/reply pair: no repeated ATSH/ATCRA on the second call.
	assert.Equal(t, 1, stream.writeCount("ATSH7E0"))
	assert.Equal(t, 1, stream.writeCount("ATCRA7E8"))
	assert.Equal(t, 2, stream.writeCount("22F190"))
}

func TestSendUDSReturnsTerminalErrorForNonPendingNegativeResponse(t *testing.T) {
	script := canInitScript()
	script["ATSH7E0"] = "OK"
	script["ATCRA7E8"] = "OK"
	script["22F190"] = "7E8 7F 22 31"
	stream := newScriptedStream(script)
	a := New(stream)
	defer a.Shutdown()

	require.NoError(t, a.Connect(context.Background(), busproto.CAN11B500K))

	req := frame.New(0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	_, err := a.SendUDS(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUDSNegativeResponse))
}

func TestSendUDSReturnsPendingAsOrdinaryMessage(t *testing.T) {
	script := canInitScript()
	script["ATSH7E0"] = "OK"
	script["ATCRA7E8"] = "OK"
	script["22F190"] = "7E8 7F 22 78"
	stream := newScriptedStream(script)
	a := New(stream)
	defer a.Shutdown()

	require.NoError(t, a.Connect(context.Background(), busproto.CAN11B500K))

	req := frame.New(0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	resp, err := a.SendUDS(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, IsPendingResponse(resp))
}

func TestFilterRepliesDropsPendingFramesWithRawPCIOffset(t *testing.T) {
	// broadcast request with no expected replier, so both ECUs' frames
	// are addressed.
	req := frame.New(0x7DF, 0, []byte{0x22, 0xF1, 0x90})

	// one ECU answers "pending" with a leading raw ISO-TP PCI byte, the
	// other has the real response; only the pending frame is dropped.
	frames := []frame.Message{
		frame.New(0x7E8, 0, []byte{0x03, 0x7F, 0x22, 0x78}),
		frame.New(0x7E9, 0, []byte{0x04, 0x62, 0xF1, 0x90, 0x01}),
	}

	survivors := filterReplies(frames, req, 1)
	require.Len(t, survivors, 1)
	assert.Equal(t, frame.Header(0x7E9), survivors[0].ID)
}

func TestFilterRepliesKeepsOnlyAddressedReplyWhenSet(t *testing.T) {
	req := frame.New(0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	frames := []frame.Message{
		frame.New(0x7E9, 0, []byte{0x62, 0xF1, 0x90}),
		frame.New(0x7E8, 0, []byte{0x62, 0xF1, 0x90, 0x01}),
	}

	survivors := filterReplies(frames, req, 0)
	require.Len(t, survivors, 1)
	assert.Equal(t, frame.Header(0x7E8), survivors[0].ID)
}

func TestClassifyResponseDistinguishesPendingFromTerminal(t *testing.T) {
	req := frame.New(0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})

	pending, err := classifyResponse(req, []byte{0x7F, 0x22, 0x78})
	require.NoError(t, err)
	assert.True(t, IsPendingResponse(pending))

	_, err = classifyResponse(req, []byte{0x7F, 0x22, 0x31})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUDSNegativeResponse))

	positive, err := classifyResponse(req, []byte{0x62, 0xF1, 0x90, 0x01})
	require.NoError(t, err)
	assert.False(t, IsPendingResponse(positive))
}

func TestHeaderHexPadsToProtocolWidth(t *testing.T) {
	assert.Equal(t, "7E0", headerHex(0x7E0, busproto.CAN11B500K))
	assert.Equal(t, "18DAF110", headerHex(0x18DAF110, busproto.CAN29B500K))
}

func TestSubscribeNotifiesFutureTransitionsOnly(t *testing.T) {
	stream := newScriptedStream(canInitScript())
	a := New(stream)
	defer a.Shutdown()

	var seen []State
	var mu sync.Mutex
	a.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, a.Connect(context.Background(), busproto.CAN11B500K))

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, StateCreated)
	assert.Contains(t, seen, StateConnected)
}

func TestTranslateQueueErrorClassifiesBySentinelNotMessageText(t *testing.T) {
	assert.True(t, errs.Is(translateQueueError(streamqueue.ErrTimeout), errs.KindTimeout))
	assert.True(t, errs.Is(translateQueueError(streamqueue.ErrShutDown), errs.KindShutdown))

	// A real disconnect whose underlying I/O error text happens to contain
	// "timeout" (e.g. a deadline-based read reporting "i/o timeout") must
	// not be misclassified as KindTimeout just because of that substring.
	disconnect := pkgerrors.Wrap(streamqueue.ErrCommunication, "read tcp 127.0.0.1:35000: i/o timeout")
	assert.True(t, errs.Is(translateQueueError(disconnect), errs.KindBusError))
	assert.False(t, errs.Is(translateQueueError(disconnect), errs.KindTimeout))
}
