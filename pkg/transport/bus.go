package transport

import (
	"context"
	"sync"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/registry"
)

// Channel sends a message on behalf of a fixed sender and waits for the
// single reply. Endpoint and HTTPClient implement it.
type Channel interface {
	Send(ctx context.Context, msg Message) (Response, error)
}

// request is one unit of work for the bus owner. A session-closed request
// purges sender.SessionID and ignores msg.
type request struct {
	sender        Sender
	msg           Message
	sessionClosed bool
	reply         chan Response
}

// Bus is the in-process frame channel. Every request and session-closed
// notification is applied by the goroutine running Run, one at a time, so
// the registry has a single owner.
type Bus struct {
	dispatcher *Dispatcher
	logger     logging.Sink

	requests chan request
	sessions chan chan []registry.SessionID

	done      chan struct{}
	closeOnce sync.Once
}

// NewBus creates a bus delivering to d. Run must be started before sends
// can complete.
func NewBus(d *Dispatcher, logger logging.Sink) *Bus {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Bus{
		dispatcher: d,
		logger:     logger,
		requests:   make(chan request),
		sessions:   make(chan chan []registry.SessionID),
		done:       make(chan struct{}),
	}
}

// Run serves requests until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.Close()
			return ctx.Err()
		case <-b.done:
			return nil
		case req := <-b.requests:
			// reply is buffered, the owner never blocks on a caller
			req.reply <- b.serve(req)
		case out := <-b.sessions:
			out <- b.dispatcher.Registry().Sessions()
		}
	}
}

func (b *Bus) serve(req request) Response {
	if req.sessionClosed {
		b.dispatcher.SessionClosed(req.sender.SessionID)
		return Response{Type: TypeSessionClosed, Success: true}
	}
	return b.dispatcher.Handle(req.sender, req.msg)
}

// Close stops the bus. Pending and later sends fail with ErrClosed.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}

// Endpoint returns the channel as seen from the frame identified by sender.
func (b *Bus) Endpoint(sender Sender) *Endpoint {
	return &Endpoint{bus: b, sender: sender}
}

// NotifySessionClosed purges session and returns once the purge is done.
// It shares the request queue with frame messages, so a query sent after it
// returns never sees the closed session's frames.
func (b *Bus) NotifySessionClosed(ctx context.Context, session registry.SessionID) error {
	req := request{
		sender:        Sender{SessionID: session},
		msg:           Message{Type: TypeSessionClosed},
		sessionClosed: true,
		reply:         make(chan Response, 1),
	}
	_, err := b.roundTrip(ctx, req)
	return err
}

// Sessions returns the sessions that currently have frames.
func (b *Bus) Sessions(ctx context.Context) ([]registry.SessionID, error) {
	out := make(chan []registry.SessionID, 1)
	select {
	case b.sessions <- out:
	case <-b.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-out, nil
}

// Endpoint is a Channel bound to one sender.
type Endpoint struct {
	bus    *Bus
	sender Sender
}

// Sender returns the identity attached to this endpoint's requests.
func (e *Endpoint) Sender() Sender {
	return e.sender
}

// Send delivers msg and waits for the reply.
func (e *Endpoint) Send(ctx context.Context, msg Message) (Response, error) {
	return e.bus.roundTrip(ctx, request{sender: e.sender, msg: msg, reply: make(chan Response, 1)})
}

func (b *Bus) roundTrip(ctx context.Context, req request) (Response, error) {
	select {
	case b.requests <- req:
	case <-b.done:
		return Response{}, failure(req.msg.Type, ErrClosed)
	case <-ctx.Done():
		return Response{}, failure(req.msg.Type, ctx.Err())
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, failure(req.msg.Type, ctx.Err())
	}
}
