// Package errs defines the closed set of error kinds propagated out of
// the transport and framing core. Every kind wraps an optional cause
// with github.com/pkg/errors.WithMessage so callers can recover the
// underlying I/O or parse error with errors.Unwrap or errors.Is while
// still matching on the sentinel kind with errors.Is or errs.Is.
// *Error has no Cause method, so github.com/pkg/errors.Cause stops at it.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error categories from the transport's
// error taxonomy. Kind values are comparable and intended for use
// with errors.Is.
type Kind int

const (
	KindBusError Kind = iota
	KindEncoder
	KindDecoder
	KindDisconnected
	KindInvalidCharacters
	KindInvalidFormat
	KindMalformedService
	KindNoResponse
	KindTimeout
	KindUDSNegativeResponse
	KindUnexpectedResult
	KindUnsuitableAdapter
	KindUnrecognizedCommand
	KindProtocolViolation
	KindMessageTooSmall
	KindMessageTooBig
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindBusError:
		return "bus_error"
	case KindEncoder:
		return "encoder_error"
	case KindDecoder:
		return "decoder_error"
	case KindDisconnected:
		return "disconnected"
	case KindInvalidCharacters:
		return "invalid_characters"
	case KindInvalidFormat:
		return "invalid_format"
	case KindMalformedService:
		return "malformed_service"
	case KindNoResponse:
		return "no_response"
	case KindTimeout:
		return "timeout"
	case KindUDSNegativeResponse:
		return "uds_negative_response"
	case KindUnexpectedResult:
		return "unexpected_result"
	case KindUnsuitableAdapter:
		return "unsuitable_adapter"
	case KindUnrecognizedCommand:
		return "unrecognized_command"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindMessageTooSmall:
		return "message_too_small"
	case KindMessageTooBig:
		return "message_too_big"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is the concrete type carried by every error this module
// returns. Text is a short human description; NRC is populated only
// for KindUDSNegativeResponse.
type Error struct {
	Kind  Kind
	Text  string
	NRC   byte
	cause error
}

func (e *Error) Error() string {
	if e.Kind == KindUDSNegativeResponse {
		return fmt.Sprintf("%s: nrc 0x%02X", e.Kind, e.NRC)
	}
	if e.Text == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}

// Unwrap lets errors.Is/errors.As see through to whatever underlying
// error (I/O, parse) triggered this one.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so
// sentinel comparisons (errors.Is(err, errs.New(errs.KindTimeout, "")))
// work across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error with no underlying cause.
func New(kind Kind, text string) *Error {
	return &Error{Kind: kind, Text: text}
}

// Wrap builds an *Error around cause, preserving it for Unwrap.
func Wrap(kind Kind, cause error, text string) *Error {
	if cause == nil {
		return New(kind, text)
	}
	return &Error{Kind: kind, Text: text, cause: errors.WithMessage(cause, text)}
}

// NegativeResponse builds the UDS negative-response error for a given NRC.
func NegativeResponse(nrc byte) *Error {
	return &Error{Kind: KindUDSNegativeResponse, NRC: nrc}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			if e.Kind == kind {
				return true
			}
			err = e.cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return false
}
