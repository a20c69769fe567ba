package transport

import (
	"encoding/json"
	"fmt"

	"github.com/entrhq/frametree/pkg/registry"
)

// MessageType identifies a request sent over the frame channel.
type MessageType string

const (
	TypeRegisterFrameURL MessageType = "REGISTER_FRAME_URL" // TypeRegisterFrameURL registers the sending frame at the given depth.
	TypeGetIframeTree    MessageType = "GET_IFRAME_TREE"    // TypeGetIframeTree asks for the tree of the sender's session.

	// TypeSessionClosed labels the session-closed notification on the bus;
	// frames never send it.
	TypeSessionClosed MessageType = "SESSION_CLOSED"
)

// Known reports whether t is a request type the registry answers.
func (t MessageType) Known() bool {
	return t == TypeRegisterFrameURL || t == TypeGetIframeTree
}

// Sender is the identity the transport attaches to every request. It is
// never taken from the message payload.
type Sender struct {
	SessionID registry.SessionID
	URL       string
}

// Valid reports whether the sender resolves to a session and a frame url.
func (s Sender) Valid() bool {
	return s.SessionID != "" && s.URL != ""
}

// Message is a request from a frame or presenter.
type Message struct {
	Type MessageType `json:"type"`

	// FrameDepth is only used by REGISTER_FRAME_URL.
	FrameDepth int `json:"frameDepth"`
}

// UnmarshalJSON rejects a frameDepth that is not an integer with
// registry.ErrInvalidDepth instead of a generic decode error.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       MessageType     `json:"type"`
		FrameDepth json.RawMessage `json:"frameDepth"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Type = raw.Type
	m.FrameDepth = 0
	if raw.Type != TypeRegisterFrameURL {
		return nil
	}
	if len(raw.FrameDepth) == 0 || string(raw.FrameDepth) == "null" {
		return fmt.Errorf("%w: frameDepth is required", registry.ErrInvalidDepth)
	}
	if err := json.Unmarshal(raw.FrameDepth, &m.FrameDepth); err != nil {
		return fmt.Errorf("%w: %s is not an integer", registry.ErrInvalidDepth, raw.FrameDepth)
	}
	return nil
}

// Response is the single reply to a Message.
//
// On the wire a successful GET_IFRAME_TREE reply is {"tree": ...} with an
// explicit null when no frames were detected; every other reply is
// {"success": bool}.
type Response struct {
	Type    MessageType   `json:"-"`
	Success bool          `json:"-"`
	Tree    registry.Tree `json:"-"`
	Error   string        `json:"-"`
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Type == TypeGetIframeTree && r.Success {
		return json.Marshal(struct {
			Tree registry.Tree `json:"tree"`
		}{r.Tree})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}{r.Success, r.Error})
}

// UnmarshalJSON implements json.Unmarshaler. Type is not on the wire and
// must be set by the caller.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success *bool         `json:"success"`
		Tree    registry.Tree `json:"tree"`
		Error   string        `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Tree = raw.Tree
	r.Error = raw.Error
	r.Success = raw.Success == nil || *raw.Success
	return nil
}
