package isotp

import "errors"

// Sentinel causes wrapped into isotp's returned errors. Callers that
// need the transport's closed error taxonomy should translate these
// at the boundary (see errs.Wrap in adapter) rather than
// matching on isotp's internal sentinels directly.
var (
	errMessageTooSmall = errors.New("message too small")
	errMessageTooBig   = errors.New("message too big")
	errDecoder         = errors.New("decoder error")
	errEncoder         = errors.New("encoder error")
)

// ErrMessageTooSmall reports whether err is (or wraps) the empty-payload case.
func ErrMessageTooSmall(err error) bool { return errors.Is(err, errMessageTooSmall) }

// ErrMessageTooBig reports whether err is (or wraps) the over-length case.
func ErrMessageTooBig(err error) bool { return errors.Is(err, errMessageTooBig) }

// ErrDecoder reports whether err is (or wraps) a framing violation found by Decode.
func ErrDecoder(err error) bool { return errors.Is(err, errDecoder) }

// ErrEncoder reports whether err is (or wraps) errEncoder. Neither Encode
// nor Transceiver.Write returns it; their encode-side failures match
// ErrMessageTooSmall or ErrMessageTooBig.
func ErrEncoder(err error) bool { return errors.Is(err, errEncoder) }
