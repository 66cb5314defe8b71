package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/giongto35/voice-relay/pkg/config"
	"github.com/giongto35/voice-relay/pkg/logger"
)

func newTestBridge(t *testing.T) *Pion {
	api, err := NewApiFactory(config.Bridge{}, logger.Nop())
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	p := NewPion("100", api, logger.Nop())
	t.Cleanup(p.Shutdown)
	return p
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return nil
}

func TestCloseConnectionPublishesLocalClose(t *testing.T) {
	p := newTestBridge(t)
	events, release := p.Events()
	defer release()

	l1, err := p.Open("g1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l2, _ := p.Open("g1")
	if l1 != l2 {
		t.Fatalf("the same guild should have the same link")
	}
	if _, err := l1.Offer(); err != nil {
		t.Fatalf("offer: %v", err)
	}

	p.CloseConnection(Member{UserId: "100", GuildId: "g1"})

	for {
		e := nextEvent(t, events)
		closed, ok := e.(ConnectionClosed)
		if !ok {
			continue
		}
		if closed.ByRemote || closed.Code != CodeDisconnected || closed.Member.GuildId != "g1" {
			t.Errorf("wrong close event %+v", closed)
		}
		break
	}
	if p.Links() != 0 {
		t.Errorf("link wasn't removed")
	}
	// no-op for unknown links
	p.CloseConnection(Member{UserId: "100", GuildId: "nope"})
}

func TestShutdownClosesEvents(t *testing.T) {
	p := newTestBridge(t)
	events, release := p.Events()

	if _, err := p.Open("g1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	p.Shutdown()
	p.Shutdown()

	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case _, ok := <-events:
			done = !ok
		case <-timeout:
			t.Fatal("event stream wasn't closed")
		}
	}
	release()
	release()

	if _, err := p.Open("g2"); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("expected %v, got %v", ErrBridgeClosed, err)
	}
}

func TestSendHandler(t *testing.T) {
	p := newTestBridge(t)
	m := Member{UserId: "100", GuildId: "g1"}

	calls := make(chan struct{}, 1)
	p.SetSendHandler(m, SendHandlerFunc(func() ([]byte, time.Duration, bool) {
		select {
		case calls <- struct{}{}:
		default:
		}
		return []byte{0xf8, 0xff, 0xfe}, frameTime, true
	}))

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("send handler wasn't polled")
	}

	p.RemoveSendHandler(m)
	link, err := p.links.Find("g1")
	if err != nil {
		t.Fatalf("link is missing: %v", err)
	}
	if link.getHandler() != nil {
		t.Errorf("handler wasn't removed")
	}
}

func TestHubSlowSubscriber(t *testing.T) {
	h := newHub(logger.Nop())
	ch, release := h.subscribe()
	defer release()

	for i := 0; i < eventBufferSize+10; i++ {
		h.publish(ConnectionReady{Member: Member{GuildId: "g"}})
	}
	if len(ch) != eventBufferSize {
		t.Errorf("expected %v buffered events, got %v", eventBufferSize, len(ch))
	}
	h.close()
	if late, _ := h.subscribe(); late != nil {
		if _, ok := <-late; ok {
			t.Errorf("subscription after close should be closed")
		}
	}
}

func TestHubCloseEventWaitsForSubscriber(t *testing.T) {
	h := newHub(logger.Nop())
	ch, release := h.subscribe()
	defer release()

	for i := 0; i < eventBufferSize; i++ {
		h.publish(ConnectionReady{Member: Member{GuildId: "g"}})
	}
	published := make(chan struct{})
	go func() {
		h.publish(ConnectionClosed{Member: Member{GuildId: "g"}, Code: CodeDisconnected})
		close(published)
	}()

	var closed bool
	for i := 0; i < eventBufferSize+1; i++ {
		select {
		case e := <-ch:
			_, closed = e.(ConnectionClosed)
		case <-time.After(3 * time.Second):
			t.Fatalf("no event %v", i)
		}
	}
	if !closed {
		t.Errorf("close event was lost")
	}
	<-published
}
