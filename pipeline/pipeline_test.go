package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obdcore/errs"
	"obdcore/frame"
)

type fakeSender struct {
	mu        sync.Mutex
	responses []frame.Message
	errs      []error
	calls     int
	inFlight  int32
	maxInFlight int32
	mtu       int
}

func (f *fakeSender) SendUDS(ctx context.Context, msg frame.Message) (frame.Message, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.maxInFlight)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxInFlight, old, n) {
			break
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return frame.Message{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func (f *fakeSender) MTU() int { return f.mtu }

func pendingMsg(to, reply frame.Header) frame.Message {
	return frame.New(to, reply, []byte{0x7F, 0x22, 0x78})
}

func positiveMsg(to, reply frame.Header) frame.Message {
	return frame.New(to, reply, []byte{0x62, 0xF1, 0x90, 0x01})
}

func TestSendReturnsPositiveResponseDirectly(t *testing.T) {
	sender := &fakeSender{responses: []frame.Message{positiveMsg(0x7E0, 0x7E8)}, mtu: 4095}
	p := New(sender)

	resp, err := p.Send(context.Background(), 0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0xF1, 0x90, 0x01}, resp.Bytes)
	assert.Equal(t, 4095, p.MTU())
}

func TestSendRetriesPastPendingResponses(t *testing.T) {
	sender := &fakeSender{
		responses: []frame.Message{
			pendingMsg(0x7E0, 0x7E8),
			pendingMsg(0x7E0, 0x7E8),
			positiveMsg(0x7E0, 0x7E8),
		},
	}
	p := New(sender, WithPendingPollInterval(time.Millisecond))

	resp, err := p.Send(context.Background(), 0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x62, 0xF1, 0x90, 0x01}, resp.Bytes)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, 3, sender.calls)
}

func TestSendPropagatesAdapterErrorsUnchanged(t *testing.T) {
	sender := &fakeSender{errs: []error{errs.New(errs.KindTimeout, "no response")}}
	p := New(sender)

	_, err := p.Send(context.Background(), 0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindTimeout))
}

func TestSendSerializesConcurrentCallers(t *testing.T) {
	sender := &fakeSender{responses: []frame.Message{positiveMsg(0x7E0, 0x7E8)}}
	p := New(sender)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Send(context.Background(), 0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&sender.maxInFlight))
}

func TestSendReturnsContextErrorWhilePendingAndCanceled(t *testing.T) {
	sender := &fakeSender{responses: []frame.Message{pendingMsg(0x7E0, 0x7E8)}}
	p := New(sender, WithPendingPollInterval(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := p.Send(ctx, 0x7E0, 0x7E8, []byte{0x22, 0xF1, 0x90})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
