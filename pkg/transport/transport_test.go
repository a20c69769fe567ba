package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/frametree/pkg/registry"
)

func startBus(t *testing.T) (*Bus, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	bus := NewBus(NewDispatcher(reg, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return bus, reg
}

func TestDispatcher_RegisterAndTree(t *testing.T) {
	reg := registry.New()
	d := NewDispatcher(reg, nil)
	top := Sender{SessionID: "tab-1", URL: "https://a.example/"}

	resp := d.Handle(top, Message{Type: TypeRegisterFrameURL, FrameDepth: 0})
	assert.True(t, resp.Success)

	resp = d.Handle(top, Message{Type: TypeGetIframeTree})
	require.True(t, resp.Success)
	require.Len(t, resp.Tree, 1)
	assert.Equal(t, "https://a.example/", resp.Tree[0].URL)
}

func TestDispatcher_InvalidSender(t *testing.T) {
	tests := []struct {
		name   string
		sender Sender
		msg    Message
	}{
		{name: "register without session", sender: Sender{URL: "https://a.example/"}, msg: Message{Type: TypeRegisterFrameURL}},
		{name: "register without url", sender: Sender{SessionID: "tab-1"}, msg: Message{Type: TypeRegisterFrameURL}},
		{name: "tree without session", sender: Sender{URL: "https://a.example/"}, msg: Message{Type: TypeGetIframeTree}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			require.NoError(t, reg.Register("tab-1", "https://a.example/", 0))
			before := reg.Snapshot()

			resp := NewDispatcher(reg, nil).Handle(tt.sender, tt.msg)
			assert.False(t, resp.Success)
			assert.Equal(t, registry.ErrInvalidSender.Error(), resp.Error)
			assert.Equal(t, before, reg.Snapshot())
		})
	}
}

func TestDispatcher_InvalidDepthAndUnknownType(t *testing.T) {
	reg := registry.New()
	d := NewDispatcher(reg, nil)
	sender := Sender{SessionID: "tab-1", URL: "https://a.example/"}

	resp := d.Handle(sender, Message{Type: TypeRegisterFrameURL, FrameDepth: -3})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid frame depth")

	resp = d.Handle(sender, Message{Type: "PING"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, ErrUnknownType.Error())

	assert.Empty(t, reg.Sessions())
}

func TestDispatcher_SessionClosed(t *testing.T) {
	reg := registry.New()
	d := NewDispatcher(reg, nil)
	d.Handle(Sender{SessionID: "tab-1", URL: "A"}, Message{Type: TypeRegisterFrameURL})
	d.Handle(Sender{SessionID: "tab-2", URL: "B"}, Message{Type: TypeRegisterFrameURL})

	d.SessionClosed("tab-1")

	assert.Nil(t, reg.BuildTree("tab-1"))
	assert.NotNil(t, reg.BuildTree("tab-2"))
}

func TestMessage_UnmarshalDepth(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"REGISTER_FRAME_URL","frameDepth":2}`), &msg))
	assert.Equal(t, Message{Type: TypeRegisterFrameURL, FrameDepth: 2}, msg)

	err := json.Unmarshal([]byte(`{"type":"REGISTER_FRAME_URL","frameDepth":"two"}`), &msg)
	assert.ErrorIs(t, err, registry.ErrInvalidDepth)

	err = json.Unmarshal([]byte(`{"type":"REGISTER_FRAME_URL","frameDepth":1.5}`), &msg)
	assert.ErrorIs(t, err, registry.ErrInvalidDepth)

	err = json.Unmarshal([]byte(`{"type":"REGISTER_FRAME_URL"}`), &msg)
	assert.ErrorIs(t, err, registry.ErrInvalidDepth)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"GET_IFRAME_TREE"}`), &msg))
	assert.Equal(t, TypeGetIframeTree, msg.Type)
}

func TestResponse_WireShape(t *testing.T) {
	data, err := json.Marshal(Response{Type: TypeGetIframeTree, Success: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tree":null}`, string(data))

	data, err = json.Marshal(Response{Type: TypeGetIframeTree, Success: true, Tree: registry.Tree{
		{URL: "A", Children: []*registry.Node{}},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tree":[{"url":"A","depth":0,"children":[]}]}`, string(data))

	data, err = json.Marshal(Response{Type: TypeRegisterFrameURL, Success: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(data))

	data, err = json.Marshal(Response{Type: TypeGetIframeTree, Error: "invalid sender"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"invalid sender"}`, string(data))
}

func TestBus_RoundTrip(t *testing.T) {
	bus, reg := startBus(t)
	ctx := context.Background()

	top := bus.Endpoint(Sender{SessionID: "tab-1", URL: "A"})
	child := bus.Endpoint(Sender{SessionID: "tab-1", URL: "B"})

	require.NoError(t, RegisterFrame(ctx, top, 0))
	require.NoError(t, RegisterFrame(ctx, child, 1))

	tree, err := GetTree(ctx, top)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "B", tree[0].Children[0].URL)
	assert.Equal(t, 2, reg.Len("tab-1"))

	ids, err := bus.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []registry.SessionID{"tab-1"}, ids)
}

func TestBus_NoFramesIsNotAnError(t *testing.T) {
	bus, _ := startBus(t)

	tree, err := GetTree(context.Background(), bus.Endpoint(Sender{SessionID: "tab-9", URL: "A"}))
	assert.NoError(t, err)
	assert.Nil(t, tree)
}

func TestBus_RejectedRegistration(t *testing.T) {
	bus, _ := startBus(t)

	err := RegisterFrame(context.Background(), bus.Endpoint(Sender{URL: "A"}), 0)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, errors.Is(err, ErrTransportFailure))
}

func TestBus_SessionClosed(t *testing.T) {
	bus, _ := startBus(t)
	ctx := context.Background()
	ep := bus.Endpoint(Sender{SessionID: "tab-1", URL: "A"})
	other := bus.Endpoint(Sender{SessionID: "tab-2", URL: "B"})

	require.NoError(t, RegisterFrame(ctx, ep, 0))
	require.NoError(t, RegisterFrame(ctx, other, 0))
	require.NoError(t, bus.NotifySessionClosed(ctx, "tab-1"))

	tree, err := GetTree(ctx, ep)
	require.NoError(t, err)
	assert.Nil(t, tree)

	tree, err = GetTree(ctx, other)
	require.NoError(t, err)
	assert.Len(t, tree, 1)
}

func TestBus_CloseIsOrderedBeforeLaterQueries(t *testing.T) {
	bus, _ := startBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// background traffic on other sessions competes for the owner loop
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := bus.Endpoint(Sender{SessionID: registry.SessionID(fmt.Sprintf("busy-%d", i)), URL: "https://busy.example/"})
			for ctx.Err() == nil {
				_ = RegisterFrame(ctx, ep, 0)
				_, _ = GetTree(ctx, ep)
			}
		}(i)
	}

	ep := bus.Endpoint(Sender{SessionID: "tab-1", URL: "https://top.example/"})
	for i := 0; i < 500; i++ {
		require.NoError(t, RegisterFrame(ctx, ep, 0))
		require.NoError(t, bus.NotifySessionClosed(ctx, "tab-1"))

		tree, err := GetTree(ctx, ep)
		require.NoError(t, err)
		require.Nil(t, tree, "iteration %d", i)
	}

	cancel()
	wg.Wait()
}

func TestBus_NotifyAfterCloseFails(t *testing.T) {
	bus := NewBus(NewDispatcher(registry.New(), nil), nil)
	bus.Close()

	err := bus.NotifySessionClosed(context.Background(), "tab-1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrTransportFailure)
}

func TestHTTP_DeleteThenGetSeesNoFrames(t *testing.T) {
	bus, _ := startBus(t)
	srv := httptest.NewServer(NewServer(bus, nil).Handler())
	defer srv.Close()

	ctx := context.Background()
	client := NewHTTPClient(srv.URL, Sender{SessionID: "7", URL: "https://top.example/"}, srv.Client())
	for i := 0; i < 50; i++ {
		require.NoError(t, RegisterFrame(ctx, client, 0))
		require.NoError(t, client.CloseSession(ctx, "7"))

		tree, err := GetTree(ctx, client)
		require.NoError(t, err)
		require.Nil(t, tree, "iteration %d", i)
	}
}

func TestBus_ClosedChannelIsTransportFailure(t *testing.T) {
	bus := NewBus(NewDispatcher(registry.New(), nil), nil)
	bus.Close()

	_, err := GetTree(context.Background(), bus.Endpoint(Sender{SessionID: "tab-1", URL: "A"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, ErrClosed)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, TypeGetIframeTree, terr.Type)
}

func TestBus_NoResponderTimesOut(t *testing.T) {
	bus := NewBus(NewDispatcher(registry.New(), nil), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := RegisterFrame(ctx, bus.Endpoint(Sender{SessionID: "tab-1", URL: "A"}), 0)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTP_RoundTrip(t *testing.T) {
	bus, reg := startBus(t)
	srv := httptest.NewServer(NewServer(bus, nil).Handler())
	defer srv.Close()
	ctx := context.Background()

	top := NewHTTPClient(srv.URL, Sender{SessionID: "42", URL: "https://a.example/"}, srv.Client())
	frame := NewHTTPClient(srv.URL, Sender{SessionID: "42", URL: "https://b.example/embed"}, srv.Client())

	require.NoError(t, RegisterFrame(ctx, top, 0))
	require.NoError(t, RegisterFrame(ctx, frame, 1))

	tree, err := GetTree(ctx, frame)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "https://a.example/", tree[0].URL)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "https://b.example/embed", tree[0].Children[0].URL)
	assert.NotNil(t, tree[0].Children[0].Children, "rooted leaf keeps an empty children list")
	assert.Empty(t, tree[0].Children[0].Children)

	require.NoError(t, top.CloseSession(ctx, "42"))
	assert.Equal(t, 0, reg.Len("42"))
}

func TestHTTP_MissingSenderHeaders(t *testing.T) {
	bus, reg := startBus(t)
	srv := httptest.NewServer(NewServer(bus, nil).Handler())
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Sender{}, srv.Client())
	err := RegisterFrame(context.Background(), client, 0)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, reg.Sessions())
}

func TestHTTP_BadRequests(t *testing.T) {
	bus, _ := startBus(t)
	handler := NewServer(bus, nil).Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "wrong method", method: http.MethodGet, path: "/frames", wantStatus: http.StatusMethodNotAllowed},
		{name: "invalid json", method: http.MethodPost, path: "/frames", body: "{", wantStatus: http.StatusBadRequest},
		{name: "unknown type", method: http.MethodPost, path: "/frames", body: `{"type":"PING"}`, wantStatus: http.StatusBadRequest},
		{name: "non-numeric depth", method: http.MethodPost, path: "/frames", body: `{"type":"REGISTER_FRAME_URL","frameDepth":"x"}`, wantStatus: http.StatusOK, wantBody: `"success":false`},
		{name: "close without id", method: http.MethodDelete, path: "/sessions/", wantStatus: http.StatusBadRequest},
		{name: "sessions wrong method", method: http.MethodPost, path: "/sessions", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set(HeaderSession, "1")
			req.Header.Set(HeaderURL, "https://a.example/")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHTTP_ListSessions(t *testing.T) {
	bus, _ := startBus(t)
	handler := NewServer(bus, nil).Handler()
	require.NoError(t, RegisterFrame(context.Background(), bus.Endpoint(Sender{SessionID: "7", URL: "A"}), 0))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":["7"],"count":1}`, rec.Body.String())
}

func TestHTTPClient_NoServerIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewHTTPClient(srv.URL, Sender{SessionID: "1", URL: "A"}, nil)
	_, err := GetTree(context.Background(), client)
	assert.ErrorIs(t, err, ErrTransportFailure)
}
