// Package streamqueue implements a single-in-flight request/response
// queue over a full-duplex byte stream, with terminator-based response
// framing and per-command timeouts. It is deliberately ignorant of
// command semantics: it moves bytes and finds frame boundaries, no more.
package streamqueue

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"obdcore/logx"
)

// Stream is the opaque duplex byte stream the queue drives. Serial
// ports, sockets, and plain files all satisfy it.
type Stream interface {
	io.Reader
	io.Writer
}

// DefaultTerminator is the ELM327-family prompt marking the end of a response.
const DefaultTerminator = ">"

// ErrCommunication reports that the underlying stream failed or
// reached end-of-stream while a command was in flight.
var ErrCommunication = errors.New("streamqueue: communication failure")

// ErrTimeout reports that a command's timeout elapsed before the
// terminator was seen.
var ErrTimeout = errors.New("streamqueue: timeout")

// ErrShutDown reports that the queue was shut down with a command
// still active, or that Send was called after shutdown.
var ErrShutDown = errors.New("streamqueue: shut down")

type request struct {
	text    string
	timeout time.Duration
	reply   chan result
}

type result struct {
	text string
	err  error
}

// Queue owns a dedicated worker goroutine that is the sole writer of
// the underlying stream, and a separate reader goroutine (readLoop)
// that is its sole reader, for as long as the queue is running. Reads
// and writes are therefore not confined to one goroutine.
type Queue struct {
	stream      Stream
	terminator  []byte
	logger      logx.Logger
	unsolicited func([]byte)

	requests chan *request
	shutdown chan chan struct{}
	done     chan struct{}
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithTerminator overrides the default ">" response terminator.
func WithTerminator(terminator string) Option {
	return func(q *Queue) { q.terminator = []byte(terminator) }
}

// WithLogger injects a logger; the zero value logs nothing.
func WithLogger(l logx.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithUnsolicitedCallback registers a callback invoked with bytes
// received while no command is in flight. Called synchronously from
// the worker goroutine; it must not block.
func WithUnsolicitedCallback(f func([]byte)) Option {
	return func(q *Queue) { q.unsolicited = f }
}

// New constructs a Queue and starts its worker goroutine. The queue
// takes ownership of stream; callers must call Shutdown to release it.
func New(stream Stream, opts ...Option) *Queue {
	q := &Queue{
		stream:     stream,
		terminator: []byte(DefaultTerminator),
		logger:     logx.Nop{},
		requests:   make(chan *request),
		shutdown:   make(chan chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.run()
	return q
}

// Send transmits text and waits for a terminator-delimited response,
// or for timeout to elapse. At most one Send may be outstanding at a
// time; a second concurrent call simply queues behind the first since
// the request channel is unbuffered and the worker is single-threaded.
func (q *Queue) Send(ctx context.Context, text string, timeout time.Duration) (string, error) {
	req := &request{text: text, timeout: timeout, reply: make(chan result, 1)}

	select {
	case q.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		return "", ErrShutDown
	}

	select {
	case res := <-req.reply:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		return "", ErrShutDown
	}
}

// Shutdown stops the worker and releases the underlying stream. Any
// command in flight resolves with ErrShutDown. Safe to call once.
func (q *Queue) Shutdown() {
	done := make(chan struct{})
	q.shutdown <- done
	<-done
}

// run is the queue's I/O worker. It is the only goroutine that writes
// q.stream; reads happen on the readLoop goroutine it starts, which
// hands the bytes over a channel.
func (q *Queue) run() {
	defer close(q.done)

	bytesCh := make(chan byte, 256)
	readErrCh := make(chan error, 1)
	stopReader := make(chan struct{})
	go q.readLoop(bytesCh, readErrCh, stopReader)

	var buf bytes.Buffer

	for {
		select {
		case done := <-q.shutdown:
			close(stopReader)
			close(done)
			return

		case req := <-q.requests:
			buf.Reset()
			res, shuttingDown := q.execute(req, bytesCh, readErrCh, &buf)
			req.reply <- res
			if shuttingDown {
				close(stopReader)
				return
			}

		case b := <-bytesCh:
			q.reportUnsolicited(append([]byte{b}, q.drain(bytesCh)...))

		case err := <-readErrCh:
			q.logger.Log(logx.LevelWarn, "streamqueue: unsolicited stream error: %v", err)
		}
	}
}

// drain non-blockingly collects any bytes already queued behind b, so
// an unsolicited burst is reported as one chunk instead of one
// callback per byte.
func (q *Queue) drain(bytesCh <-chan byte) []byte {
	var extra []byte
	for {
		select {
		case b := <-bytesCh:
			extra = append(extra, b)
		default:
			return extra
		}
	}
}

func (q *Queue) reportUnsolicited(chunk []byte) {
	if q.unsolicited != nil {
		q.unsolicited(chunk)
	}
}

// execute drives one command to completion: write, then accumulate
// bytes until the terminator is found, the timeout fires, or the
// stream fails.
func (q *Queue) execute(req *request, bytesCh <-chan byte, readErrCh <-chan error, buf *bytes.Buffer) (result, bool) {
	if _, err := q.stream.Write([]byte(req.text)); err != nil {
		return result{err: errors.Wrap(ErrCommunication, err.Error())}, false
	}

	timer := time.NewTimer(req.timeout)
	defer timer.Stop()

	for {
		select {
		case b := <-bytesCh:
			buf.WriteByte(b)
			if idx := bytes.LastIndex(buf.Bytes(), q.terminator); idx >= 0 {
				response := append([]byte(nil), buf.Bytes()[:idx]...)
				return result{text: string(response)}, false
			}

		case err := <-readErrCh:
			return result{err: errors.Wrap(ErrCommunication, err.Error())}, false

		case <-timer.C:
			return result{err: ErrTimeout}, false

		case done := <-q.shutdown:
			close(done)
			return result{err: ErrShutDown}, true
		}
	}
}

// readLoop is the only goroutine that ever calls q.stream.Read. It
// feeds bytes one at a time to the worker, mirroring the teacher's
// dedicated-reader discipline without needing a pause/resume protocol
// since writes here are issued by the same worker that drains reads.
func (q *Queue) readLoop(bytesCh chan<- byte, errCh chan<- error, stop <-chan struct{}) {
	b := make([]byte, 1)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := q.stream.Read(b)
		if n > 0 {
			select {
			case bytesCh <- b[0]:
			case <-stop:
				return
			}
		}
		if err != nil {
			select {
			case errCh <- err:
			case <-stop:
			}
			return
		}
	}
}
