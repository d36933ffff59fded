// Package adapter drives an ELM327/STN-class serial adapter through
// its capability-negotiation state machine and routes UDS messages
// through the bus-protocol codec and ISO-TP segmentation the
// negotiated protocol requires.
package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"obdcore/atcommand"
	"obdcore/busproto"
	"obdcore/codec"
	"obdcore/errs"
	"obdcore/frame"
	"obdcore/isotp"
	"obdcore/logx"
	"obdcore/streamqueue"
)

// State is one point in the adapter's lifecycle.
type State int

const (
	StateCreated State = iota
	StateSearching
	StateNotFound
	StateConfiguring
	StateUnsupportedProtocol
	StateConnected
	StateGone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSearching:
		return "searching"
	case StateNotFound:
		return "notFound"
	case StateConfiguring:
		return "configuring"
	case StateUnsupportedProtocol:
		return "unsupportedProtocol"
	case StateConnected:
		return "connected"
	case StateGone:
		return "gone"
	default:
		return "unknown"
	}
}

// ICKind identifies the vendor/chip family discovered during init.
type ICKind int

const (
	ICUnknown ICKind = iota
	ICGeneric
	ICSTN11xx
	ICSTN22xx
	ICUniCarScan
)

func (ic ICKind) isSTN() bool { return ic == ICSTN11xx || ic == ICSTN22xx }

// Info is what the init sequence learns about the attached IC.
type Info struct {
	Vendor       string
	Version      string
	IC           ICKind
	SerialNumber string
}

// TestMessage is one candidate probe sent during a protocol search.
type TestMessage struct {
	Header frame.Header
	Bytes  []byte
}

// Candidate pairs a bus protocol with the test message used to probe it.
type Candidate struct {
	Protocol busproto.Protocol
	Test     TestMessage
}

// Observer is notified once per state transition.
type Observer func(State)

const (
	shortTimeout  = 500 * time.Millisecond
	resetTimeout  = 3 * time.Second
	commandTimeout = 2 * time.Second
)

// Adapter owns a stream queue and the string-command provider that
// rides on top of it, and exposes the protocol-independent UDS
// request/response surface above them.
type Adapter struct {
	mu        sync.Mutex
	queue     *streamqueue.Queue
	logger    logx.Logger
	state     State
	observers []Observer

	info     Info
	protocol busproto.Protocol
	encoder  codec.Encoder
	decoder  codec.Decoder

	hasTxAutoSegmentation bool
	hasRxAutoSegmentation bool
	txSegmenter           *isotp.Transceiver
	rxSegmenter           *isotp.Transceiver

	lastHeader string
	lastReply  string

	detected []frame.Message
}

// Option configures an Adapter at construction time.
type Option func(*Adapter)

// WithLogger injects a logger used by both the adapter and its queue.
func WithLogger(l logx.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New constructs an Adapter in StateCreated, owning a fresh stream
// queue over stream.
func New(stream streamqueue.Stream, opts ...Option) *Adapter {
	a := &Adapter{state: StateCreated, logger: logx.Nop{}}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = streamqueue.New(stream, streamqueue.WithLogger(a.logger))
	return a
}

// State returns the adapter's current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Info returns what was learned about the IC during init. Zero value
// before the adapter leaves StateSearching.
func (a *Adapter) Info() Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info
}

// MTU returns the maximum UDS payload this adapter can carry in one
// request, per the installed encoder's frame bound and transceiver
// segmentation ceiling.
func (a *Adapter) MTU() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasTxAutoSegmentation || a.txSegmenter != nil {
		return frame.MaximumPayload // hardware or software segmentation covers up to the ISO-TP ceiling
	}
	if a.encoder != nil {
		return a.encoder.MaximumFrameLength()
	}
	return 0
}

// Subscribe registers an observer notified once per state transition,
// starting from the next one (not replayed for past transitions).
func (a *Adapter) Subscribe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Shutdown releases the underlying stream queue.
func (a *Adapter) Shutdown() {
	a.queue.Shutdown()
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	a.state = s
	observers := append([]Observer(nil), a.observers...)
	a.mu.Unlock()

	a.logger.Log(logx.LevelInfo, "adapter: state -> %s", s)
	for _, o := range observers {
		o(s)
	}
}

// Connect negotiates a specific, already-known bus protocol without
// searching candidates.
func (a *Adapter) Connect(ctx context.Context, protocol busproto.Protocol) error {
	a.setState(StateSearching)
	if err := a.init(ctx); err != nil {
		a.setState(StateGone)
		return err
	}
	a.setState(StateConfiguring)

	if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.SetProtocol, Protocol: protocol}, commandTimeout); err != nil {
		a.setState(StateUnsupportedProtocol)
		return err
	}
	if _, err := a.sendECULines(ctx, atcommand.Command{Kind: atcommand.ConnectProbe}, commandTimeout); err != nil {
		a.setState(StateUnsupportedProtocol)
		return err
	}
	negotiated, err := a.describeProtocol(ctx)
	if err != nil {
		a.setState(StateUnsupportedProtocol)
		return err
	}

	if err := a.finalizeProtocol(ctx, negotiated); err != nil {
		a.setState(StateUnsupportedProtocol)
		return err
	}
	a.setState(StateConnected)
	return nil
}

// Search tries each candidate protocol/test-message pair in order,
// stopping at the first success unless testAll collects every match.
func (a *Adapter) Search(ctx context.Context, candidates []Candidate, testAll bool) error {
	a.setState(StateSearching)
	if err := a.init(ctx); err != nil {
		a.setState(StateGone)
		return err
	}
	a.setState(StateConfiguring)

	var matched *Candidate
	var allDetected []frame.Message

	for i := range candidates {
		c := candidates[i]
		header := c.Test.Header
		if header == 0 {
			header = frame.Header(mustParseHeaderHex(c.Protocol.BroadcastHeader()))
		}

		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.TryProtocol, Protocol: c.Protocol}, commandTimeout); err != nil {
			continue
		}
		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.SetHeader, Header: headerHex(header, c.Protocol)}, commandTimeout); err != nil {
			continue
		}
		msgs, err := a.sendData(ctx, c.Test.Bytes, -1, commandTimeout, c.Protocol.NumberOfHeaderCharacters())
		if err != nil {
			continue
		}

		allDetected = append(allDetected, msgs...)
		if matched == nil {
			found := c
			matched = &found
			if !testAll {
				break
			}
		}
	}

	if matched == nil {
		a.setState(StateNotFound)
		return errs.New(errs.KindUnsuitableAdapter, "no candidate protocol produced a response")
	}

	a.detected = allDetected
	if err := a.finalizeProtocol(ctx, matched.Protocol); err != nil {
		a.setState(StateUnsupportedProtocol)
		return err
	}
	a.setState(StateConnected)
	return nil
}

func headerHex(h frame.Header, p busproto.Protocol) string {
	chars := p.NumberOfHeaderCharacters()
	return padHex(uint32(h), chars)
}

func padHex(v uint32, chars int) string {
	s := toHex(v)
	for len(s) < chars {
		s = "0" + s
	}
	return s
}

func toHex(v uint32) string {
	const digits = "0123456789ABCDEF"
	if v == 0 {
		return "0"
	}
	var buf []byte
	for v > 0 {
		buf = append([]byte{digits[v%16]}, buf...)
		v /= 16
	}
	return string(buf)
}

func mustParseHeaderHex(hex string) uint32 {
	var v uint32
	for _, r := range hex {
		v <<= 4
		switch {
		case r >= '0' && r <= '9':
			v |= uint32(r - '0')
		case r >= 'A' && r <= 'F':
			v |= uint32(r-'A') + 10
		case r >= 'a' && r <= 'f':
			v |= uint32(r-'a') + 10
		}
	}
	return v
}

// init runs the adapter identification sequence: a best-effort
// wakeup, a required reset, baseline configuration, and IC
// fingerprinting.
func (a *Adapter) init(ctx context.Context) error {
	_, _ = a.queue.Send(ctx, "\r", shortTimeout) // best-effort dummy wakeup

	if err := a.sendText(ctx, atcommand.Command{Kind: atcommand.Reset}, resetTimeout); err != nil {
		return errs.Wrap(errs.KindDisconnected, err, "adapter did not respond to reset")
	}

	for _, cmd := range []atcommand.Command{
		{Kind: atcommand.Spaces, On: false},
		{Kind: atcommand.Echo, On: false},
		{Kind: atcommand.Linefeed, On: false},
		{Kind: atcommand.Headers, On: true},
	} {
		if err := a.sendOK(ctx, cmd, commandTimeout); err != nil {
			return err
		}
	}

	info := Info{IC: ICGeneric}
	if text, err := a.sendText(ctx, atcommand.Command{Kind: atcommand.Identify}, commandTimeout); err == nil {
		info.Vendor = text
	}
	if text, err := a.queue.Send(ctx, "AT@1\r", commandTimeout); err == nil {
		if v, perr := atcommand.ParseText(text); perr == nil {
			info.Version = v
		}
	}
	if text, err := a.queue.Send(ctx, "STIX\r", commandTimeout); err == nil {
		if v, perr := atcommand.ParseText(text); perr == nil {
			info.SerialNumber = v
			if strings.Contains(strings.ToUpper(v), "STN2") {
				info.IC = ICSTN22xx
			} else {
				info.IC = ICSTN11xx
			}
		}
	}
	if text, err := a.sendText(ctx, atcommand.Command{Kind: atcommand.UniCarScanIdentify}, commandTimeout); err == nil {
		if strings.Contains(text, "WGSoft.de") {
			info.IC = ICUniCarScan
		}
	}

	a.mu.Lock()
	a.info = info
	a.mu.Unlock()
	return nil
}

func (a *Adapter) describeProtocol(ctx context.Context) (busproto.Protocol, error) {
	text, err := a.queue.Send(ctx, "ATDPN\r", commandTimeout)
	if err != nil {
		return busproto.Unknown, errs.Wrap(errs.KindUnsuitableAdapter, err, "ATDPN failed")
	}
	p, perr := atcommand.ParseBusProtocol(text)
	if perr != nil {
		return busproto.Unknown, errs.Wrap(errs.KindUnsuitableAdapter, perr, "malformed ATDPN response")
	}
	return p, nil
}

// finalizeProtocol applies CAN-specific timing/segmentation setup and
// installs the encoder/decoder pair for the negotiated protocol.
func (a *Adapter) finalizeProtocol(ctx context.Context, protocol busproto.Protocol) error {
	a.mu.Lock()
	a.protocol = protocol
	ic := a.info.IC
	a.mu.Unlock()

	if protocol.IsCAN() {
		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.AdaptiveTiming, On: false}, commandTimeout); err != nil {
			return err
		}
		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.SetTimeout, TimeoutHex: "FF"}, commandTimeout); err != nil {
			return err
		}
		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.CANAutoFormat, On: true}, commandTimeout); err != nil {
			return err
		}

		txSeg, rxSeg := false, false
		if ic.isSTN() {
			if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.STNSegmentTx, On: true}, commandTimeout); err == nil {
				txSeg = true
			}
			if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.STNSegmentRx, On: true}, commandTimeout); err == nil {
				rxSeg = true
			}
		}
		// Non-STN CAN adapters are assumed to lack hardware ISO-TP
		// segmentation; the driver performs it in software via isotp.Transceiver.

		a.mu.Lock()
		a.hasTxAutoSegmentation = txSeg
		a.hasRxAutoSegmentation = rxSeg
		a.mu.Unlock()
	}

	a.installCodecs(protocol)
	return nil
}

func (a *Adapter) installCodecs(protocol busproto.Protocol) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case protocol == busproto.J1850PWM || protocol == busproto.J1850VPWM:
		a.encoder = codec.NewNullEncoder(7)
		a.decoder = codec.J1850Decoder{}
	case protocol == busproto.ISO9141_2:
		a.encoder = codec.NewNullEncoder(7)
		a.decoder = codec.ISO9141Decoder{}
	case protocol == busproto.KWP2000_5Baud || protocol == busproto.KWP2000_Fast:
		a.encoder = codec.NewNullEncoder(7)
		a.decoder = codec.KWP2000Decoder{}
	case protocol.IsCAN():
		maxAutoSeg := frame.MaximumPayload
		if a.hasTxAutoSegmentation {
			a.encoder = codec.NewNullEncoder(maxAutoSeg)
		} else {
			a.encoder = codec.NewNullEncoder(7)
			a.txSegmenter = isotp.New(isotp.DefaultConfig())
		}
		if a.hasRxAutoSegmentation {
			a.decoder = codec.NullDecoder{}
		} else {
			a.decoder = nil // reassembly handled live by rxSegmenter, see SendUDS
			a.rxSegmenter = isotp.New(isotp.DefaultConfig())
		}
	default:
		a.encoder = codec.NewNullEncoder(7)
		a.decoder = codec.NullDecoder{}
	}
}

// SendUDS encodes, transmits and reassembles one UDS request/response
// exchange through the negotiated bus protocol, filtering transient
// "response pending" negative responses.
func (a *Adapter) SendUDS(ctx context.Context, msg frame.Message) (frame.Message, error) {
	a.mu.Lock()
	header := headerHex(msg.ID, a.protocol)
	reply := ""
	if msg.Reply != 0 {
		reply = headerHex(msg.Reply, a.protocol)
	}
	needsHeader := header != a.lastHeader
	needsReply := reply != "" && reply != a.lastReply
	txSeg, rxSeg := a.txSegmenter, a.rxSegmenter
	decoder := a.decoder
	headerChars := a.protocol.NumberOfHeaderCharacters()
	a.mu.Unlock()

	if needsHeader {
		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.SetHeader, Header: header}, commandTimeout); err != nil {
			return frame.Message{}, err
		}
	}
	if needsReply {
		if err := a.sendOK(ctx, atcommand.Command{Kind: atcommand.CANReceiveAddress, Header: reply}, commandTimeout); err != nil {
			return frame.Message{}, err
		}
	}
	a.mu.Lock()
	a.lastHeader, a.lastReply = header, reply
	a.mu.Unlock()

	a.mu.Lock()
	hasRxAutoSegmentation := a.hasRxAutoSegmentation
	a.mu.Unlock()

	rawFrames, err := a.transmit(ctx, msg.Bytes, txSeg, headerChars)
	if err != nil {
		return frame.Message{}, err
	}

	pciOffset := 0
	if !hasRxAutoSegmentation {
		pciOffset = 1
	}
	survivors := filterReplies(rawFrames, msg, pciOffset)

	payload, err := a.receive(ctx, survivors, rxSeg, decoder, headerChars)
	if err != nil {
		return frame.Message{}, err
	}

	return classifyResponse(msg, payload)
}

// filterReplies keeps only frames addressed to msg.Reply (accepting
// everything if msg.Reply is unset) and drops transient "response
// pending" negative responses that coexist with a real answer from
// another ECU on the same broadcast. If every surviving frame is
// pending, they are left alone: that is the actual response, for
// classifyResponse to recognize and the caller to retry against.
func filterReplies(rawFrames []frame.Message, msg frame.Message, pciOffset int) []frame.Message {
	sid := msg.ServiceID()
	addressed := make([]frame.Message, 0, len(rawFrames))
	for _, f := range rawFrames {
		if msg.Reply != 0 && f.ID != msg.Reply {
			continue
		}
		addressed = append(addressed, f)
	}

	hasRealAnswer := false
	for _, f := range addressed {
		if !isPendingFrame(f.Bytes, sid, pciOffset) {
			hasRealAnswer = true
			break
		}
	}
	if !hasRealAnswer {
		return addressed
	}

	survivors := make([]frame.Message, 0, len(addressed))
	for _, f := range addressed {
		if !isPendingFrame(f.Bytes, sid, pciOffset) {
			survivors = append(survivors, f)
		}
	}
	return survivors
}

func isPendingFrame(b []byte, sid byte, pciOffset int) bool {
	if len(b) < pciOffset+3 {
		return false
	}
	return b[pciOffset] == 0x7F && b[pciOffset+1] == sid && b[pciOffset+2] == byte(frame.NRCResponsePending)
}

// transmit issues one or more Data commands, using the ISO-TP
// transceiver to drive manual segmentation when the adapter cannot do
// it in hardware, and returns every raw ECU response line gathered
// along the way (the final line carries the real response).
func (a *Adapter) transmit(ctx context.Context, payload []byte, seg *isotp.Transceiver, headerChars int) ([]frame.Message, error) {
	if seg == nil {
		return a.sendData(ctx, payload, -1, commandTimeout, headerChars)
	}

	action, err := seg.Write(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoder, err, "isotp segmentation failed")
	}

	var lastResponse []frame.Message
	for {
		for _, f := range action.Frames {
			resp, err := a.sendAnnouncedFrame(ctx, f, headerChars)
			if err != nil {
				return nil, err
			}
			lastResponse = resp
		}
		if action.IsLastBatch {
			return lastResponse, nil
		}

		// Await flow control from the peer encoded in the response line.
		fcFrame, err := extractFrameBytes(lastResponse)
		if err != nil {
			return nil, err
		}
		action, err = seg.DidRead(fcFrame)
		if err != nil {
			return nil, errs.Wrap(errs.KindProtocolViolation, err, "flow control exchange failed")
		}
	}
}

func (a *Adapter) sendAnnouncedFrame(ctx context.Context, f []byte, headerChars int) ([]frame.Message, error) {
	a.mu.Lock()
	ic := a.info.IC
	header, reply := a.lastHeader, a.lastReply
	a.mu.Unlock()

	if len(f) > 8 && ic.isSTN() {
		if err := a.sendText(ctx, atcommand.Command{
			Kind: atcommand.STNTxAnnounce, AnnounceHeader: header, AnnounceReply: reply, AnnounceLength: len(f),
		}, commandTimeout); err != nil {
			return nil, err
		}
	}
	return a.sendData(ctx, f, -1, commandTimeout, headerChars)
}

func extractFrameBytes(msgs []frame.Message) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, errs.New(errs.KindNoResponse, "no flow control frame received")
	}
	b := msgs[len(msgs)-1].Bytes
	padded := make([]byte, frame.FrameLength)
	copy(padded, b)
	return padded, nil
}

// receive reassembles the final response payload from raw ECU lines,
// running them through the live transceiver when the adapter cannot
// reassemble multi-frame CAN responses itself, or the installed
// decoder otherwise.
func (a *Adapter) receive(ctx context.Context, rawFrames []frame.Message, seg *isotp.Transceiver, decoder codec.Decoder, headerChars int) ([]byte, error) {
	if seg == nil {
		if decoder == nil {
			return nil, errs.New(errs.KindUnsuitableAdapter, "no decoder installed")
		}
		var concat []byte
		for _, m := range rawFrames {
			concat = append(concat, m.Bytes...)
		}
		payload, err := decoder.Decode(concat)
		if err != nil {
			return nil, errs.Wrap(errs.KindDecoder, err, "decode failed")
		}
		return payload, nil
	}

	for {
		if len(rawFrames) == 0 {
			return nil, errs.New(errs.KindNoResponse, "no response frames to feed to transceiver")
		}
		padded := make([]byte, frame.FrameLength)
		copy(padded, rawFrames[len(rawFrames)-1].Bytes)

		action, err := seg.DidRead(padded)
		if err != nil {
			return nil, errs.Wrap(errs.KindProtocolViolation, err, "receive segmentation failed")
		}
		switch action.Kind {
		case isotp.ActionProcess:
			return action.Payload, nil
		case isotp.ActionWriteFrames:
			for _, f := range action.Frames {
				resp, err := a.sendData(ctx, f, -1, commandTimeout, headerChars)
				if err != nil {
					return nil, err
				}
				rawFrames = resp
			}
		default:
			return nil, errs.New(errs.KindProtocolViolation, "unexpected wait with no further input")
		}
	}
}

// classifyResponse builds the assembled response Message. A pending
// (0x78) negative response is returned as an ordinary Message so the
// pipeline's retry loop can recognize and resend past it; every other
// negative response becomes a terminal error.
func classifyResponse(req frame.Message, payload []byte) (frame.Message, error) {
	if len(payload) >= 3 && payload[0] == 0x7F {
		nrc := frame.NegativeResponseCode(payload[2])
		if !nrc.IsResponsePending() {
			return frame.Message{}, errs.NegativeResponse(payload[2])
		}
	}
	return req.Clone(payload), nil
}

// IsPendingResponse reports whether msg is a transient "response
// pending" negative response that a caller should wait out and retry.
func IsPendingResponse(msg frame.Message) bool {
	return len(msg.Bytes) >= 3 && msg.Bytes[0] == 0x7F && frame.NegativeResponseCode(msg.Bytes[2]).IsResponsePending()
}

func (a *Adapter) sendText(ctx context.Context, cmd atcommand.Command, timeout time.Duration) (string, error) {
	wire, err := atcommand.Wire(cmd)
	if err != nil {
		return "", errs.Wrap(errs.KindMalformedService, err, "no wire mapping for command")
	}
	resp, err := a.queue.Send(ctx, wire+"\r", timeout)
	if err != nil {
		return "", translateQueueError(err)
	}
	text, perr := atcommand.ParseText(resp)
	if perr != nil {
		return "", translateParseError(perr)
	}
	return text, nil
}

func (a *Adapter) sendOK(ctx context.Context, cmd atcommand.Command, timeout time.Duration) error {
	wire, err := atcommand.Wire(cmd)
	if err != nil {
		return errs.Wrap(errs.KindMalformedService, err, "no wire mapping for command")
	}
	resp, err := a.queue.Send(ctx, wire+"\r", timeout)
	if err != nil {
		return translateQueueError(err)
	}
	if perr := atcommand.ParseOK(resp); perr != nil {
		return translateParseError(perr)
	}
	return nil
}

func (a *Adapter) sendECULines(ctx context.Context, cmd atcommand.Command, timeout time.Duration) ([]string, error) {
	wire, err := atcommand.Wire(cmd)
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformedService, err, "no wire mapping for command")
	}
	resp, err := a.queue.Send(ctx, wire+"\r", timeout)
	if err != nil {
		return nil, translateQueueError(err)
	}
	lines, perr := atcommand.ParseECULines(resp)
	if perr != nil {
		return nil, translateParseError(perr)
	}
	return lines, nil
}

func (a *Adapter) sendData(ctx context.Context, payload []byte, expectedCount int, timeout time.Duration, headerChars int) ([]frame.Message, error) {
	wire, err := atcommand.Wire(atcommand.Command{Kind: atcommand.Data, Payload: payload, ExpectedCount: expectedCount})
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformedService, err, "no wire mapping for data command")
	}
	resp, err := a.queue.Send(ctx, wire+"\r", timeout)
	if err != nil {
		return nil, translateQueueError(err)
	}
	msgs, perr := atcommand.ParseMessages(resp, headerChars)
	if perr != nil {
		return nil, translateParseError(perr)
	}
	return msgs, nil
}

func translateQueueError(err error) error {
	switch {
	case errors.Is(err, streamqueue.ErrTimeout):
		return errs.Wrap(errs.KindTimeout, err, "")
	case errors.Is(err, streamqueue.ErrShutDown):
		return errs.Wrap(errs.KindShutdown, err, "")
	default:
		return errs.Wrap(errs.KindBusError, err, "")
	}
}

func translateParseError(err error) error {
	switch {
	case strings.Contains(err.Error(), "no response"):
		return errs.Wrap(errs.KindNoResponse, err, "")
	case strings.Contains(err.Error(), "unrecognized command"):
		return errs.Wrap(errs.KindUnrecognizedCommand, err, "")
	case strings.Contains(err.Error(), "bus error"):
		return errs.Wrap(errs.KindBusError, err, "")
	default:
		return errs.Wrap(errs.KindInvalidFormat, err, "")
	}
}
