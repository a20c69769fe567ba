package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/registry"
)

const (
	// HeaderSession carries the sender's session id (the extension's tab id).
	HeaderSession = "X-Frametree-Session"
	// HeaderURL carries the sender frame's url.
	HeaderURL = "X-Frametree-URL"

	maxMessageBody = 64 * 1024
)

// Server exposes a Bus over HTTP for a browser extension background page.
//
//	POST   /frames          message body, sender in headers
//	GET    /sessions        live session ids
//	DELETE /sessions/{id}   session closed
type Server struct {
	bus    *Bus
	logger logging.Sink
	mux    *http.ServeMux
}

// NewServer creates an HTTP binding for bus.
func NewServer(bus *Bus, logger logging.Sink) *Server {
	if logger == nil {
		logger = logging.Nop{}
	}
	s := &Server{bus: bus, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("/frames", s.HandleFrames)
	s.mux.HandleFunc("/sessions", s.HandleSessions)
	s.mux.HandleFunc("/sessions/", s.HandleSession)
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Infof("Listening for frame messages on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// HandleFrames answers one frame channel message.
func (s *Server) HandleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sender := Sender{
		SessionID: registry.SessionID(r.Header.Get(HeaderSession)),
		URL:       r.Header.Get(HeaderURL),
	}

	var msg Message
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBody)
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		if errors.Is(err, registry.ErrInvalidDepth) {
			writeJSON(w, http.StatusOK, Response{Type: TypeRegisterFrameURL, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	if !msg.Type.Known() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("%v: %q", ErrUnknownType, msg.Type)})
		return
	}

	resp, err := s.bus.Endpoint(sender).Send(r.Context(), msg)
	if err != nil {
		s.logger.Errorf("Frame message from %s failed: %v", sender.URL, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleSessions lists the sessions that have frames.
func (s *Server) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ids, err := s.bus.Sessions(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

// HandleSession receives the session-closed notification.
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": registry.ErrInvalidSession.Error()})
		return
	}

	if err := s.bus.NotifySessionClosed(r.Context(), registry.SessionID(id)); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HTTPClient is a Channel that talks to a Server on behalf of one sender.
type HTTPClient struct {
	baseURL string
	sender  Sender
	client  *http.Client
}

// NewHTTPClient creates a client for the server at baseURL. A nil client
// uses a 10 second timeout.
func NewHTTPClient(baseURL string, sender Sender, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  sender,
		client:  client,
	}
}

// Send posts msg to /frames and decodes the reply.
func (c *HTTPClient) Send(ctx context.Context, msg Message) (Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/frames", bytes.NewReader(body))
	if err != nil {
		return Response{}, failure(msg.Type, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSession, string(c.sender.SessionID))
	req.Header.Set(HeaderURL, c.sender.URL)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return Response{}, failure(msg.Type, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxMessageBody*16))
	if err != nil {
		return Response{}, failure(msg.Type, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return Response{}, failure(msg.Type, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data))))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, failure(msg.Type, fmt.Errorf("invalid reply: %w", err))
	}
	resp.Type = msg.Type
	return resp, nil
}

// CloseSession sends the session-closed notification for session.
func (c *HTTPClient) CloseSession(ctx context.Context, session registry.SessionID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/sessions/"+url.PathEscape(string(session)), nil)
	if err != nil {
		return failure(TypeSessionClosed, err)
	}
	httpResp, err := c.client.Do(req)
	if err != nil {
		return failure(TypeSessionClosed, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusNoContent {
		return failure(TypeSessionClosed, fmt.Errorf("unexpected status %d", httpResp.StatusCode))
	}
	return nil
}
