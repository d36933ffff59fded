// Package atcommand maps abstract adapter commands to their ELM327/STN
// wire strings and back again. It is a pure mapping table plus a set
// of response normalizers — it owns no I/O and no adapter state.
package atcommand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"obdcore/busproto"
	"obdcore/frame"
)

// Kind discriminates the recognized adapter commands.
type Kind int

const (
	Reset Kind = iota
	Echo
	Linefeed
	Headers
	Spaces
	AdaptiveTiming
	SetHeader
	CANReceiveAddress
	SetProtocol
	TryProtocol
	DescribeProtocolNumeric
	CANAutoFormat
	SetTimeout
	ReadVoltage
	ConnectProbe
	Data
	STNTxAnnounce
	STNSegmentTx
	STNSegmentRx
	Identify
	STIdentify
	UniCarScanIdentify
)

// Command is one concrete invocation of a Kind, carrying whatever
// arguments that kind needs. Unused fields are ignored.
type Command struct {
	Kind Kind

	On bool // Echo, Linefeed, Headers, Spaces, AdaptiveTiming, CANAutoFormat, STNSegmentTx/Rx

	Header   string // SetHeader, CANReceiveAddress ("hhh" or "hhhhhhhh")
	Protocol busproto.Protocol
	TimeoutHex string // SetTimeout: two hex chars

	Payload       []byte
	ExpectedCount int // Data: -1 means "not specified"

	AnnounceHeader string // STNTxAnnounce
	AnnounceReply  string
	AnnounceLength int
}

// Wire renders cmd as the literal ASCII string to write to the
// stream, without the trailing carriage return (the caller appends it;
// the stream queue writes text exactly as given).
func Wire(cmd Command) (string, error) {
	onOff := func(on bool) string {
		if on {
			return "1"
		}
		return "0"
	}

	switch cmd.Kind {
	case Reset:
		return "ATZ", nil
	case Echo:
		return "ATE" + onOff(cmd.On), nil
	case Linefeed:
		return "ATL" + onOff(cmd.On), nil
	case Headers:
		return "ATH" + onOff(cmd.On), nil
	case Spaces:
		return "ATS" + onOff(cmd.On), nil
	case AdaptiveTiming:
		return "ATAT" + onOff(cmd.On), nil
	case SetHeader:
		if err := validateHeaderHex(cmd.Header); err != nil {
			return "", err
		}
		return "ATSH" + cmd.Header, nil
	case CANReceiveAddress:
		if err := validateHeaderHex(cmd.Header); err != nil {
			return "", err
		}
		return "ATCRA" + cmd.Header, nil
	case SetProtocol:
		return wireProtocolCommand("ATSP", cmd.Protocol)
	case TryProtocol:
		return wireProtocolCommand("ATTP", cmd.Protocol)
	case DescribeProtocolNumeric:
		return "ATDPN", nil
	case CANAutoFormat:
		return "ATCAF" + onOff(cmd.On), nil
	case SetTimeout:
		if len(cmd.TimeoutHex) != 2 {
			return "", errors.Errorf("atcommand: set timeout wants 2 hex chars, got %q", cmd.TimeoutHex)
		}
		return "ATST" + strings.ToUpper(cmd.TimeoutHex), nil
	case ReadVoltage:
		return "ATRV", nil
	case ConnectProbe:
		return "0100", nil
	case Data:
		hexPayload := strings.ToUpper(fmt.Sprintf("%X", cmd.Payload))
		if cmd.ExpectedCount >= 0 {
			return fmt.Sprintf("%s%X", hexPayload, cmd.ExpectedCount), nil
		}
		return hexPayload, nil
	case STNTxAnnounce:
		return fmt.Sprintf("STPX%s,%s,%X", cmd.AnnounceHeader, cmd.AnnounceReply, cmd.AnnounceLength), nil
	case STNSegmentTx:
		return "STCSEGT" + onOff(cmd.On), nil
	case STNSegmentRx:
		return "STCSEGR" + onOff(cmd.On), nil
	case Identify:
		return "ATI", nil
	case STIdentify:
		return "STI", nil
	case UniCarScanIdentify:
		return "AT#1", nil
	default:
		return "", errors.Errorf("atcommand: unrecognized command kind %d", cmd.Kind)
	}
}

func wireProtocolCommand(prefix string, p busproto.Protocol) (string, error) {
	tag := p.WireTag()
	if tag == 0 {
		return "", errors.Errorf("atcommand: protocol %s has no wire tag", p)
	}
	return fmt.Sprintf("%s%c", prefix, tag), nil
}

func validateHeaderHex(h string) error {
	if len(h) != 3 && len(h) != 8 {
		return errors.Errorf("atcommand: header %q must be 3 or 8 hex characters", h)
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return errors.Wrapf(err, "atcommand: header %q is not valid hex", h)
	}
	return nil
}

// Sentinel response-normalization errors, shared across every parser.
var (
	ErrNoResponse           = errors.New("atcommand: no response")
	ErrUnrecognizedCommand  = errors.New("atcommand: unrecognized command")
	ErrBusError             = errors.New("atcommand: bus error")
)

// normalize applies the common failure checks every parser must run
// before interpreting a response's content: empty, "?", ERROR/UNABLE.
func normalize(resp string) error {
	trimmed := strings.TrimSpace(resp)
	if trimmed == "" {
		return ErrNoResponse
	}
	if strings.Contains(trimmed, "?") {
		return ErrUnrecognizedCommand
	}
	for _, line := range splitLines(trimmed) {
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "ERROR") || strings.Contains(upper, "UNABLE") {
			return errors.Wrap(ErrBusError, line)
		}
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "\n")
	raw := strings.Split(s, "\n")
	var lines []string
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// ParseOK normalizes an ok/fail response: any surviving content after
// normalize counts as success (ELM327 replies "OK" but accepts
// anything not flagged as an error).
func ParseOK(resp string) error {
	return normalize(resp)
}

// ParseText normalizes and returns a free-form text response (e.g.
// ATI/STI identification strings), trimmed of surrounding whitespace.
func ParseText(resp string) (string, error) {
	if err := normalize(resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// ParseBusProtocol interprets an ATDPN response: an optional leading
// "A" (automatic) followed by the single protocol digit.
func ParseBusProtocol(resp string) (busproto.Protocol, error) {
	text, err := ParseText(resp)
	if err != nil {
		return busproto.Unknown, err
	}
	text = strings.TrimPrefix(text, "A")
	if len(text) != 1 {
		return busproto.Unknown, errors.Errorf("atcommand: malformed ATDPN response %q", resp)
	}
	p := busproto.FromWireTag(text[0])
	if !p.IsValid() {
		return busproto.Unknown, errors.Errorf("atcommand: unrecognized protocol digit %q", text)
	}
	return p, nil
}

// ParseVoltage interprets an ATRV response: a decimal number with an
// optional trailing "V".
func ParseVoltage(resp string) (float64, error) {
	text, err := ParseText(resp)
	if err != nil {
		return 0, err
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "V")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "atcommand: malformed voltage response %q", resp)
	}
	return v, nil
}

// ParseECULines normalizes a connect-probe response and drops any
// line that isn't a hex ECU reply line (e.g. "SEARCHING...", "BUS
// INIT: OK"), returning the remaining trimmed lines verbatim.
func ParseECULines(resp string) ([]string, error) {
	if err := normalize(resp); err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range splitLines(resp) {
		if isHexLine(line) {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, errors.Wrap(ErrNoResponse, "no ECU lines in response")
	}
	return lines, nil
}

func isHexLine(line string) bool {
	compact := strings.ReplaceAll(line, " ", "")
	if compact == "" {
		return false
	}
	for _, r := range compact {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// ParseMessages interprets a data-command response: one Message per
// surviving line, whose first headerChars hex characters form the
// header and whose remaining hex characters decode to the payload.
func ParseMessages(resp string, headerChars int) ([]frame.Message, error) {
	lines, err := ParseECULines(resp)
	if err != nil {
		return nil, err
	}

	messages := make([]frame.Message, 0, len(lines))
	for _, line := range lines {
		compact := strings.ReplaceAll(line, " ", "")
		if len(compact) < headerChars {
			return nil, errors.Errorf("atcommand: line %q shorter than header width %d", line, headerChars)
		}
		headerHex := compact[:headerChars]
		payloadHex := compact[headerChars:]

		id, err := strconv.ParseUint(headerHex, 16, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "atcommand: malformed header %q", headerHex)
		}
		payload, err := decodeHex(payloadHex)
		if err != nil {
			return nil, errors.Wrapf(err, "atcommand: malformed payload %q", payloadHex)
		}
		messages = append(messages, frame.New(frame.Header(id), 0, payload))
	}
	return messages, nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errors.Errorf("odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}
