// Package codec holds the non-ISO-TP bus-protocol codecs: decoders
// for the legacy point-to-point protocols an ELM-class adapter can
// also speak, and the pass-through Null encoder/decoder used when the
// adapter itself (or the ISO-TP transceiver) already produced or
// expects a framed payload.
package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

// Decoder turns bytes collected from the bus into a UDS payload.
type Decoder interface {
	Decode(bytes []byte) ([]byte, error)
}

// Encoder turns a UDS payload into bytes ready for the wire, bounded
// by the maximum frame length it advertises.
type Encoder interface {
	Encode(payload []byte) ([]byte, error)
	MaximumFrameLength() int
}

var (
	errDecode = errors.New("codec: decode error")
	errEncode = errors.New("codec: encode error")
)

// IsDecodeError reports whether err originated from one of this
// package's decoders.
func IsDecodeError(err error) bool { return errors.Cause(err) == errDecode || errors.Is(err, errDecode) }

// NullDecoder passes bytes through unchanged. Used for CAN links where
// the adapter (or the ISO-TP transceiver sitting above this codec)
// has already produced a clean UDS payload.
type NullDecoder struct{}

func (NullDecoder) Decode(bytes []byte) ([]byte, error) { return bytes, nil }

// NullEncoder passes bytes through unchanged, only advertising the
// maximum payload the underlying link can carry in one frame.
type NullEncoder struct {
	MaxLength int
}

func NewNullEncoder(maxLength int) NullEncoder { return NullEncoder{MaxLength: maxLength} }

func (e NullEncoder) Encode(payload []byte) ([]byte, error) {
	if len(payload) > e.MaxLength {
		return nil, errors.Wrapf(errEncode, "payload of %d bytes exceeds frame bound %d", len(payload), e.MaxLength)
	}
	return payload, nil
}

func (e NullEncoder) MaximumFrameLength() int { return e.MaxLength }

// J1850Decoder strips no framing of its own: SAE J1850 responses
// arrive from the adapter already as one line of raw payload bytes,
// so decoding is identity over a non-empty buffer.
type J1850Decoder struct{}

func (J1850Decoder) Decode(bytes []byte) ([]byte, error) {
	if len(bytes) == 0 {
		return nil, errors.Wrap(errDecode, "j1850: empty response")
	}
	return bytes, nil
}

// KWP2000Decoder behaves like J1850Decoder: the adapter has already
// stripped the KWP2000 link-layer header by the time bytes reach here.
type KWP2000Decoder struct{}

func (KWP2000Decoder) Decode(bytes []byte) ([]byte, error) {
	if len(bytes) == 0 {
		return nil, errors.Wrap(errDecode, "kwp2000: empty response")
	}
	return bytes, nil
}

// ISO9141Decoder reassembles an ISO 9141-2 response delivered as a
// sequence of 8-byte chunks, each carrying a 1-indexed sequence number
// in byte[2].
type ISO9141Decoder struct{}

const iso9141ChunkLength = 8

func (ISO9141Decoder) Decode(bytes []byte) ([]byte, error) {
	if len(bytes) == 0 || len(bytes)%iso9141ChunkLength != 0 {
		return nil, errors.Wrapf(errDecode, "iso9141: input length %d is not a multiple of %d", len(bytes), iso9141ChunkLength)
	}

	var out []byte
	for i := 0; i*iso9141ChunkLength < len(bytes); i++ {
		chunk := bytes[i*iso9141ChunkLength : (i+1)*iso9141ChunkLength]
		want := byte(i + 1)
		if chunk[2] != want {
			return nil, errors.Wrap(errDecode, fmt.Sprintf("iso9141: chunk %d has sequence byte 0x%02X, want 0x%02X", i+1, chunk[2], want))
		}
		if i == 0 {
			out = append(out, chunk[0:2]...)
		}
		out = append(out, chunk[3:7]...)
	}
	return out, nil
}
