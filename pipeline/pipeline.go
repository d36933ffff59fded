// Package pipeline serializes UDS request/response exchanges over one
// adapter and retries past transient "response pending" negative
// responses, so callers never have to reason about either concern
// themselves.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"obdcore/adapter"
	"obdcore/frame"
	"obdcore/logx"
)

// UDSSender is the adapter surface the pipeline drives. Satisfied by
// *adapter.Adapter; named as an interface so the pipeline can be
// exercised against a fake in tests without a real stream.
type UDSSender interface {
	SendUDS(ctx context.Context, msg frame.Message) (frame.Message, error)
	MTU() int
}

// Pipeline exposes a single Send operation above an UDSSender,
// serializing every call so at most one sendUDS exchange is ever in
// flight, matching the queue's own single-in-flight discipline one
// layer down.
type Pipeline struct {
	mu                  sync.Mutex
	sender              UDSSender
	logger              logx.Logger
	pendingPollInterval time.Duration
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithLogger injects a logger used to tag each exchange with a
// correlation id.
func WithLogger(l logx.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithPendingPollInterval overrides how long the pipeline waits
// between retries while an ECU reports "response pending". Defaults to
// 100ms, well under the UDS P2* extension an ECU grants itself by
// sending 0x78.
func WithPendingPollInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.pendingPollInterval = d }
}

// New constructs a Pipeline over sender.
func New(sender UDSSender, opts ...Option) *Pipeline {
	p := &Pipeline{sender: sender, logger: logx.Nop{}, pendingPollInterval: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MTU mirrors the underlying adapter's maximum single-request payload.
func (p *Pipeline) MTU() int {
	return p.sender.MTU()
}

// Send submits one UDS request addressed to and expecting a reply from
// the given headers, retrying automatically while the ECU reports
// "response pending". Adapter errors other than a pending NRC are
// returned unchanged.
func (p *Pipeline) Send(ctx context.Context, to, reply frame.Header, service []byte) (frame.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	correlation := uuid.New().String()
	req := frame.New(to, reply, service)
	p.logger.Log(logx.LevelDebug, "pipeline[%s]: send %s", correlation, req)

	for {
		resp, err := p.sender.SendUDS(ctx, req)
		if err != nil {
			p.logger.Log(logx.LevelWarn, "pipeline[%s]: %v", correlation, err)
			return frame.Message{}, err
		}
		if !adapter.IsPendingResponse(resp) {
			p.logger.Log(logx.LevelDebug, "pipeline[%s]: recv %s", correlation, resp)
			return resp, nil
		}

		p.logger.Log(logx.LevelInfo, "pipeline[%s]: response pending, retrying", correlation)
		select {
		case <-time.After(p.pendingPollInterval):
		case <-ctx.Done():
			return frame.Message{}, ctx.Err()
		}
	}
}
