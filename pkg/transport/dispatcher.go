package transport

import (
	"errors"
	"fmt"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/registry"
)

// ErrUnknownType is reported for messages whose type is not handled.
var ErrUnknownType = errors.New("unknown message type")

// Dispatcher answers frame channel messages from a Registry. It is the
// registry-side listener; transports deliver requests to it.
type Dispatcher struct {
	registry *registry.Registry
	logger   logging.Sink
}

// NewDispatcher creates a dispatcher backed by reg. A nil logger discards output.
func NewDispatcher(reg *registry.Registry, logger logging.Sink) *Dispatcher {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Dispatcher{registry: reg, logger: logger}
}

// Registry returns the registry the dispatcher writes to.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Handle processes one request from sender and returns its reply. Invalid
// requests are answered with Success false and never touch registry state.
func (d *Dispatcher) Handle(sender Sender, msg Message) Response {
	resp := Response{Type: msg.Type}

	if !sender.Valid() {
		d.logger.Warnf("Rejected %s: %v", msg.Type, registry.ErrInvalidSender)
		resp.Error = registry.ErrInvalidSender.Error()
		return resp
	}

	switch msg.Type {
	case TypeRegisterFrameURL:
		if err := d.registry.Register(sender.SessionID, sender.URL, msg.FrameDepth); err != nil {
			d.logger.Warnf("Rejected frame %s in session %s: %v", sender.URL, sender.SessionID, err)
			resp.Error = err.Error()
			return resp
		}
		resp.Success = true

	case TypeGetIframeTree:
		resp.Tree = d.registry.BuildTree(sender.SessionID)
		resp.Success = true

	default:
		d.logger.Warnf("Rejected message from %s: %v %q", sender.URL, ErrUnknownType, msg.Type)
		resp.Error = fmt.Sprintf("%v: %q", ErrUnknownType, msg.Type)
	}

	return resp
}

// SessionClosed purges all state of session.
func (d *Dispatcher) SessionClosed(session registry.SessionID) {
	if d.registry.CloseSession(session) {
		d.logger.Infof("Session %s closed, frames purged", session)
	}
}
