// Package session keeps the state of one connected client.
//
// A client (a bot) drives independent audio players, one per guild,
// over a single socket. When the socket goes away the session
// can be paused for a while: everything sent in the meantime is
// buffered and replayed in order once the client resumes with a new socket.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/giongto35/voice-relay/pkg/com"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/giongto35/voice-relay/pkg/player"
)

const (
	DefaultResumeTimeout  = 60 * time.Second
	DefaultUpdateInterval = 5 * time.Second
)

// State is a session lifecycle state.
type State int32

const (
	Active State = iota
	Paused
	ShutDown
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case ShutDown:
		return "shutdown"
	default:
		return "unknown"
	}
}

var (
	ErrShutdown  = errors.New("session is shut down")
	ErrNotPaused = errors.New("session is not paused")
)

// Transport is an outbound client connection.
// SendText must not block on network I/O.
type Transport interface {
	IsOpen() bool
	SendText(payload []byte, onComplete func(), onError func(error))
}

// Context is the session of one client connection.
type Context struct {
	userId  string
	players *com.Map[string, player.Player]
	audio   player.AudioManager
	bridge  bridge.Bridge
	factory player.Factory
	log     *logger.Logger

	// mu guards everything below, sends hold it while
	// handing frames to the transport to keep the order.
	mu            sync.Mutex
	state         State
	transport     Transport
	pending       *queue.Queue
	maxPending    int
	resumeKey     string
	resumeTimeout time.Duration
	timeout       *time.Timer
	timeoutGen    uint64
	expired       bool

	onResumeExpired func(*Context)

	// set by Start under mu
	started bool
	release func()

	closing    atomic.Bool
	dispatcher *dispatcher
	eventsDone chan struct{}
	shutdown   sync.Once
}

type Option func(c *Context)

func WithResumeTimeout(d time.Duration) Option { return func(c *Context) { c.resumeTimeout = d } }
func WithMaxPending(n int) Option              { return func(c *Context) { c.maxPending = n } }
func WithLogger(log *logger.Logger) Option     { return func(c *Context) { c.log = log } }
func WithPlayerFactory(f player.Factory) Option {
	return func(c *Context) { c.factory = f }
}
func WithUpdateInterval(d time.Duration) Option {
	return func(c *Context) { c.dispatcher.interval = d }
}

// WithOnResumeExpired sets the func called once the session
// wasn't resumed in time. It's expected to destroy the session.
func WithOnResumeExpired(fn func(*Context)) Option {
	return func(c *Context) { c.onResumeExpired = fn }
}

// New makes a new session. Background work begins only with Start.
func New(userId string, t Transport, audio player.AudioManager, b bridge.Bridge, opts ...Option) *Context {
	c := &Context{
		userId:        userId,
		players:       com.NewMap[string, player.Player](),
		audio:         audio,
		bridge:        b,
		factory:       player.NewTrack,
		log:           logger.Default(),
		transport:     t,
		pending:       queue.New(),
		resumeTimeout: DefaultResumeTimeout,
		eventsDone:    make(chan struct{}),
		release:       func() {},
	}
	c.dispatcher = newDispatcher(DefaultUpdateInterval, c.players.Values)
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Extend(c.log.With().Str(logger.UserField, userId))
	c.dispatcher.log = c.log
	if c.resumeTimeout <= 0 {
		c.resumeTimeout = DefaultResumeTimeout
	}
	sessionsActive.Inc()
	return c
}

// Start launches the player update loop and the voice event listener.
// It does nothing once shutdown has begun.
func (c *Context) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ShutDown || c.started {
		return
	}
	c.started = true
	events, release := c.bridge.Events()
	c.release = release
	go c.listen(events)
	c.dispatcher.start()
	c.log.Debug().Msg("Session started")
}

// GetOrCreatePlayer returns the player of the guild,
// concurrent calls for the same guild get the same player.
// No players are handed out once shutdown has begun.
func (c *Context) GetOrCreatePlayer(guildId string) (player.Player, error) {
	if c.closing.Load() {
		return nil, ErrShutdown
	}
	p, isNew, err := c.players.GetOrCreate(guildId, func() (player.Player, error) {
		if c.closing.Load() {
			return nil, ErrShutdown
		}
		return c.factory(c, guildId, c.audio)
	})
	if err != nil {
		return nil, err
	}
	if isNew {
		c.log.Debug().Str(logger.GuildField, guildId).Msg("New player")
	}
	return p, nil
}

// Player returns an existing player of the guild.
func (c *Context) Player(guildId string) (player.Player, bool) {
	if c.closing.Load() {
		return nil, false
	}
	p, err := c.players.Find(guildId)
	return p, err == nil
}

func (c *Context) Players() []player.Player { return c.players.Values() }

// PlayingPlayers returns the players that are playing right now.
func (c *Context) PlayingPlayers() []player.Player {
	var playing []player.Player
	for _, p := range c.players.Values() {
		if p.IsPlaying() {
			playing = append(playing, p)
		}
	}
	return playing
}

func (c *Context) UserId() string        { return c.userId }
func (c *Context) Bridge() bridge.Bridge { return c.bridge }

// Transport returns the currently attached transport.
func (c *Context) Transport() Transport { c.mu.Lock(); defer c.mu.Unlock(); return c.transport }

func (c *Context) State() State { c.mu.Lock(); defer c.mu.Unlock(); return c.state }

func (c *Context) IsPaused() bool { return c.State() == Paused }

func (c *Context) ResumeKey() string { c.mu.Lock(); defer c.mu.Unlock(); return c.resumeKey }

func (c *Context) ResumeTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeTimeout
}

// SetResumeKey makes the session resumable, an empty key turns it off.
func (c *Context) SetResumeKey(key string) { c.mu.Lock(); c.resumeKey = key; c.mu.Unlock() }

func (c *Context) SetResumeTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.resumeTimeout = d
	c.mu.Unlock()
}

// Pending returns the number of buffered messages.
func (c *Context) Pending() int { c.mu.Lock(); defer c.mu.Unlock(); return c.pending.Length() }

// Shutdown stops all the session activities and frees its voice resources.
// The session can't be used after that.
func (c *Context) Shutdown() {
	c.shutdown.Do(func() {
		c.closing.Store(true)

		c.mu.Lock()
		wasPaused := c.state == Paused
		c.state = ShutDown
		c.stopTimeoutLocked()
		dropped := c.pending.Length()
		c.pending = queue.New()
		started, release := c.started, c.release
		c.mu.Unlock()
		if wasPaused {
			sessionsPaused.Dec()
		}
		pendingEvents.Sub(float64(dropped))

		c.dispatcher.stop()
		release()
		if started {
			<-c.eventsDone
		}

		for guildId, p := range c.players.Drain() {
			c.teardown(guildId, p)
		}
		c.safe("bridge shutdown", c.bridge.Shutdown)

		sessionsActive.Dec()
		c.log.Debug().Msg("Session has been shut down")
	})
}

// teardown frees one guild, failures don't stop the rest.
func (c *Context) teardown(guildId string, p player.Player) {
	member := bridge.Member{UserId: c.userId, GuildId: guildId}
	c.safe("remove send handler", func() { c.bridge.RemoveSendHandler(member) })
	c.safe("close connection", func() { c.bridge.CloseConnection(member) })
	c.safe("player stop", p.Stop)
}

func (c *Context) safe(what string, fn func()) {
	defer func() {
		if err := recover(); err != nil {
			c.log.Error().Msgf("%v failure: %v", what, err)
		}
	}()
	fn()
}

func (c *Context) String() string { return c.userId }
