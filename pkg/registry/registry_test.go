package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/giongto35/voice-relay/pkg/config"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/giongto35/voice-relay/pkg/player"
	"github.com/giongto35/voice-relay/pkg/session"
	"github.com/gorilla/websocket"
)

type nopBridge struct {
	mu       sync.Mutex
	handlers map[bridge.Member]bridge.SendHandler
	events   chan bridge.Event
	once     sync.Once
}

func newNopBridge(string) bridge.Bridge {
	return &nopBridge{handlers: map[bridge.Member]bridge.SendHandler{}, events: make(chan bridge.Event)}
}

func (b *nopBridge) Events() (<-chan bridge.Event, func()) {
	return b.events, func() { b.once.Do(func() { close(b.events) }) }
}
func (b *nopBridge) SetSendHandler(m bridge.Member, h bridge.SendHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[m] = h
}
func (b *nopBridge) RemoveSendHandler(m bridge.Member) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, m)
}
func (b *nopBridge) CloseConnection(bridge.Member) {}
func (b *nopBridge) Shutdown()                     {}

func newTestRegistry(t *testing.T, password string) (*Registry, *httptest.Server) {
	var conf config.RelayConfig
	conf.Relay.Password = password
	conf.Session.ResumeTimeout = time.Minute
	conf.Session.UpdateInterval = time.Hour

	r := New(conf, newNopBridge, player.Silence{}, logger.Nop())
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		_ = r.Shutdown(context.Background())
		srv.Close()
	})
	return r, srv
}

func connect(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err == nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func userHeader(userId string, kv ...string) http.Header {
	h := http.Header{}
	h.Set(HeaderUserId, userId)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %v", what)
}

func TestHandshake(t *testing.T) {
	_, srv := newTestRegistry(t, "secret")

	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{name: "wrong password", header: userHeader("1", HeaderAuthorization, "nope"), status: http.StatusUnauthorized},
		{name: "no user", header: http.Header{HeaderAuthorization: {"secret"}}, status: http.StatusBadRequest},
		{name: "ok", header: userHeader("1", HeaderAuthorization, "secret"), status: http.StatusSwitchingProtocols},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, _ := connect(t, srv, tt.header)
			if resp == nil {
				t.Fatalf("no response")
			}
			if resp.StatusCode != tt.status {
				t.Errorf("expected %v, got %v", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestDisconnectWithoutResumeKeyDestroys(t *testing.T) {
	r, srv := newTestRegistry(t, "")
	conn, _, err := connect(t, srv, userHeader("1"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "session", func() bool { return r.Len() == 1 })
	ctx, _ := r.Session("1")

	_ = conn.Close()
	waitFor(t, "destroy", func() bool { return r.Len() == 0 })
	if ctx.State() != session.ShutDown {
		t.Errorf("wrong state %v", ctx.State())
	}
}

func TestResume(t *testing.T) {
	r, srv := newTestRegistry(t, "")
	conn, resp, err := connect(t, srv, userHeader("1"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if resp.Header.Get(HeaderResumed) != "false" {
		t.Errorf("new session is marked as resumed")
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"configureResuming","key":"k","timeout":30}`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"play","guildId":"g1","track":"silence:1m"}`))

	var ctx *session.Context
	waitFor(t, "resume key", func() bool {
		ctx, _ = r.Session("1")
		return ctx != nil && ctx.ResumeKey() == "k" && len(ctx.PlayingPlayers()) == 1
	})
	if ctx.ResumeTimeout() != 30*time.Second {
		t.Errorf("wrong resume timeout %v", ctx.ResumeTimeout())
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4000, "bye"))
	waitFor(t, "pause", ctx.IsPaused)
	ctx.Send(map[string]string{"op": "x"})

	conn2, resp, err := connect(t, srv, userHeader("1", HeaderResumeKey, "k"))
	if err != nil {
		t.Fatalf("resume connect: %v", err)
	}
	if resp.Header.Get(HeaderResumed) != "true" {
		t.Errorf("session wasn't resumed")
	}

	_ = conn2.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn2.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"op":"x"}` {
		t.Errorf("expected the buffered message first, got %s", msg)
	}
	_, msg, err = conn2.ReadMessage()
	if err != nil || !strings.Contains(string(msg), `"op":"playerUpdate"`) {
		t.Errorf("expected player update, got %s %v", msg, err)
	}

	if cur, _ := r.Session("1"); cur != ctx || ctx.IsPaused() {
		t.Errorf("resumed session is wrong")
	}
	if stats := r.Stats(); stats.Players != 1 || stats.PlayingPlayers != 1 {
		t.Errorf("wrong stats %+v", stats)
	}
}

func TestResumeTimeoutExpires(t *testing.T) {
	r, srv := newTestRegistry(t, "")
	conn, _, err := connect(t, srv, userHeader("1"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"configureResuming","key":"k","timeout":1}`))
	var ctx *session.Context
	waitFor(t, "resume key", func() bool {
		ctx, _ = r.Session("1")
		return ctx != nil && ctx.ResumeKey() == "k"
	})
	_ = conn.Close()
	waitFor(t, "pause", ctx.IsPaused)
	waitFor(t, "expiry", func() bool { return r.Len() == 0 && ctx.State() == session.ShutDown })

	_, resp, err := connect(t, srv, userHeader("1", HeaderResumeKey, "k"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if resp.Header.Get(HeaderResumed) != "false" {
		t.Errorf("expired session was resumed")
	}
}

func TestBadMessages(t *testing.T) {
	r, _ := newTestRegistry(t, "")
	ctx := session.New("1", nil, player.Silence{}, newNopBridge("1"), session.WithLogger(logger.Nop()))
	defer ctx.Shutdown()

	tests := []struct {
		msg string
		err bool
	}{
		{msg: `{"op":"nope"}`, err: true},
		{msg: `{}`, err: true},
		{msg: `{"op":"play","track":"silence:1s"}`, err: true},
		{msg: `{"op":"play","guildId":"g1","track":"wat"}`, err: true},
		{msg: `{"op":"pause","guildId":"g1","pause":true}`},
		{msg: `{"op":"stop","guildId":"g2"}`},
		{msg: `{"op":"destroy","guildId":"g1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := r.handle(ctx, []byte(tt.msg))
			if (err != nil) != tt.err {
				t.Errorf("unexpected result: %v", err)
			}
		})
	}
}
