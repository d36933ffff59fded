// Package socketcan feeds the ISO-TP transceiver's frames straight
// onto a native Linux CAN interface via github.com/brutella/can,
// bypassing the ELM327 ASCII command layer entirely for hosts with a
// real CAN controller.
package socketcan

import (
	"context"
	"fmt"

	"github.com/brutella/can"

	"obdcore/errs"
	"obdcore/frame"
)

// canEFFFlag mirrors the Linux SocketCAN kernel header's CAN_EFF_FLAG:
// bit 31 of can_id marks a 29-bit extended frame. brutella/can passes
// can_id through unmodified, so frame.Header.IsExtended's >=0x800
// check and this flag agree on the same frames.
const canEFFFlag uint32 = 0x80000000

// FrameSink is the narrow surface the isotp-driving code needs: send
// one 8-byte CAN frame addressed to id, receive one via a callback.
// Named as an interface so callers can depend on it instead of *Bus.
type FrameSink interface {
	Send(id frame.Header, data [8]byte) error
	Subscribe(handler func(id frame.Header, data []byte))
}

// Bus wraps a github.com/brutella/can bus bound to one network
// interface (e.g. "can0", "vcan0").
type Bus struct {
	inner     *can.Bus
	ifaceName string
	extended  bool
	handlers  []func(id frame.Header, data []byte)
}

// Open binds to the named SocketCAN interface. extended controls
// whether outgoing frames are tagged 29-bit; it has no effect on
// frames received from the bus, which carry their own length flag.
func Open(ifaceName string, extended bool) (*Bus, error) {
	inner, err := can.NewBusForInterfaceWithName(ifaceName)
	if err != nil {
		return nil, errs.Wrap(errs.KindDisconnected, err, fmt.Sprintf("open socketcan interface %s", ifaceName))
	}

	b := &Bus{inner: inner, ifaceName: ifaceName, extended: extended}
	inner.SubscribeFunc(b.dispatch)
	return b, nil
}

// Send transmits one 8-byte CAN frame with the given arbitration ID.
func (b *Bus) Send(id frame.Header, data [8]byte) error {
	f := can.Frame{
		ID:     uint32(id),
		Length: uint8(frame.FrameLength),
		Data:   data,
	}
	if b.extended || id.IsExtended() {
		f.ID |= canEFFFlag
	}
	if err := b.inner.Publish(f); err != nil {
		return errs.Wrap(errs.KindBusError, err, "publish can frame")
	}
	return nil
}

// Subscribe registers handler to be called for every frame the bus
// receives. Multiple subscribers may be registered; each sees every
// frame.
func (b *Bus) Subscribe(handler func(id frame.Header, data []byte)) {
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) dispatch(f can.Frame) {
	id := frame.Header(f.ID &^ canEFFFlag)
	n := int(f.Length)
	if n > len(f.Data) {
		n = len(f.Data)
	}
	data := make([]byte, n)
	copy(data, f.Data[:n])
	for _, h := range b.handlers {
		h(id, data)
	}
}

// Run blocks dispatching received frames to subscribers until ctx is
// canceled or the underlying bus connection fails.
func (b *Bus) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.inner.ConnectAndPublish()
	}()

	select {
	case <-ctx.Done():
		_ = b.inner.Disconnect()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return errs.Wrap(errs.KindDisconnected, err, fmt.Sprintf("socketcan %s connection lost", b.ifaceName))
		}
		return nil
	}
}

// Close disconnects from the interface.
func (b *Bus) Close() error {
	return b.inner.Disconnect()
}
