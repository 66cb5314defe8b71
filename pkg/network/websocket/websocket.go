package websocket

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/giongto35/voice-relay/pkg/com"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second

	DefaultQueueSize = 4096
)

var (
	ErrClosed        = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue is full")
)

var DefaultUpgrader = Upgrader{Upgrader: websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}}

type Upgrader struct {
	websocket.Upgrader
}

// WS is a single client socket.
// All writes go through one writer goroutine in the order
// they were queued, so SendText never blocks on network I/O.
type WS struct {
	id   com.Uid
	conn *websocket.Conn
	log  *logger.Logger

	mu       sync.Mutex
	out      *queue.Queue
	maxQueue int
	notify   chan struct{}

	OnMessage MessageHandler

	pingPong bool
	closed   atomic.Bool
	once     sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	closeCode   int
	closeReason string
}

type MessageHandler func(message []byte, err error)

type frame struct {
	data       []byte
	onComplete func()
	onError    func(error)
}

// NewServer upgrades an HTTP request into a new server-side socket.
// The header is added to the upgrade response.
func (u *Upgrader) NewServer(w http.ResponseWriter, r *http.Request, header http.Header, maxQueue int, log *logger.Logger) (*WS, error) {
	conn, err := u.Upgrade(w, r, header)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, maxQueue, log), nil
}

// NewClient dials a remote socket.
func NewClient(address url.URL, header http.Header, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), header)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, DefaultQueueSize, log), nil
}

// newSocket makes a socket, maxQueue limits the outbound
// queue, 0 means no limit.
func newSocket(conn *websocket.Conn, pingPong bool, maxQueue int, log *logger.Logger) *WS {
	id := com.NewUid()
	return &WS{
		id:        id,
		conn:      conn,
		out:       queue.New(),
		maxQueue:  maxQueue,
		notify:    make(chan struct{}, 1),
		pingPong:  pingPong,
		done:      make(chan struct{}),
		log:       log.Extend(log.With().Str(logger.ClientField, id.Short())),
		OnMessage: func([]byte, error) {},
	}
}

// Listen starts the socket pumps.
func (ws *WS) Listen() {
	ws.wg.Add(2)
	go ws.writer()
	go ws.reader()
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.wg.Done()
		ws.shutdown()
		ws.log.Debug().Msg("[ws] close reader")
	}()
	ws.conn.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.SetPongHandler(func(string) error { return ws.conn.SetReadDeadline(time.Now().Add(pongTime)) })
	}
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				ws.closeCode, ws.closeReason = ce.Code, ce.Text
			} else {
				ws.closeCode = websocket.CloseAbnormalClosure
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.log.Warn().Err(err).Msg("[ws] read")
			}
			return
		}
		ws.OnMessage(message, nil)
	}
}

// writer pumps messages from the outbound queue to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	var tick <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		ws.wg.Done()
		ws.shutdown()
		ws.drain()
		ws.log.Debug().Msg("[ws] close writer")
	}()
	for {
		select {
		case <-ws.notify:
			for f, ok := ws.pop(); ok; f, ok = ws.pop() {
				if err := ws.write(websocket.TextMessage, f.data); err != nil {
					if f.onError != nil {
						f.onError(err)
					}
					return
				}
				if f.onComplete != nil {
					f.onComplete()
				}
			}
		case <-tick:
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				ws.log.Warn().Err(err).Msg("[ws] ping")
				return
			}
		case <-ws.done:
			return
		}
	}
}

func (ws *WS) write(t int, data []byte) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteMessage(t, data)
}

func (ws *WS) pop() (f frame, ok bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.out.Length() == 0 {
		return f, false
	}
	return ws.out.Remove().(frame), true
}

// drain fails everything that is left in the queue.
func (ws *WS) drain() {
	for f, ok := ws.pop(); ok; f, ok = ws.pop() {
		if f.onError != nil {
			f.onError(ErrClosed)
		}
	}
}

// IsOpen tells whether the socket still accepts writes.
func (ws *WS) IsOpen() bool { return !ws.closed.Load() }

// SendText queues a text frame. The callbacks are called
// from the writer goroutine once the frame is written or has failed.
func (ws *WS) SendText(payload []byte, onComplete func(), onError func(error)) {
	ws.mu.Lock()
	var err error
	switch {
	case !ws.IsOpen():
		err = ErrClosed
	case ws.maxQueue > 0 && ws.out.Length() >= ws.maxQueue:
		err = ErrSendQueueFull
	default:
		ws.out.Add(frame{data: payload, onComplete: onComplete, onError: onError})
	}
	ws.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	select {
	case ws.notify <- struct{}{}:
	default:
	}
}

// Close sends the close frame with the code and the reason
// and closes the connection.
func (ws *WS) Close(code int, reason string) {
	if !ws.IsOpen() {
		return
	}
	ws.log.Debug().Int("code", code).Str("reason", reason).Msg("[ws] close")
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	ws.shutdown()
}

func (ws *WS) shutdown() {
	ws.once.Do(func() {
		ws.mu.Lock()
		ws.closed.Store(true)
		ws.mu.Unlock()
		close(ws.done)
		_ = ws.conn.Close()
	})
}

// Done is closed when the socket is closed for any reason.
func (ws *WS) Done() <-chan struct{} { return ws.done }

// Wait blocks until both socket pumps exit.
func (ws *WS) Wait() { <-ws.done; ws.wg.Wait() }

// CloseStatus returns the close code and the reason sent by the remote side.
// Valid only after the socket is closed.
func (ws *WS) CloseStatus() (int, string) { ws.Wait(); return ws.closeCode, ws.closeReason }

func (ws *WS) Id() com.Uid    { return ws.id }
func (ws *WS) String() string { return ws.id.String() }
