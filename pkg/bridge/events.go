package bridge

import (
	"sync"
	"time"

	"github.com/giongto35/voice-relay/pkg/logger"
)

const (
	eventBufferSize = 64
	// closeEventWait is how long a close event waits for a slow subscriber.
	closeEventWait = time.Second
)

// hub fans out events to all subscribers.
// Slow subscribers lose events instead of blocking the publisher,
// except for close events which wait up to closeEventWait.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
	log    *logger.Logger
}

func newHub(log *logger.Logger) *hub { return &hub{subs: make(map[int]chan Event), log: log} }

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, eventBufferSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
			continue
		default:
		}
		if _, ok := e.(ConnectionClosed); ok && sendWithin(ch, e, closeEventWait) {
			continue
		}
		h.log.Warn().Str(logger.GuildField, e.Guild()).Msgf("Event %T was dropped", e)
	}
}

func sendWithin(ch chan Event, e Event, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- e:
		return true
	case <-timer.C:
		return false
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
