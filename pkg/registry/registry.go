// Package registry routes client sockets to their sessions.
package registry

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/giongto35/voice-relay/pkg/com"
	"github.com/giongto35/voice-relay/pkg/config"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/giongto35/voice-relay/pkg/network/websocket"
	"github.com/giongto35/voice-relay/pkg/player"
	"github.com/giongto35/voice-relay/pkg/session"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderUserId        = "User-Id"
	HeaderResumeKey     = "Resume-Key"
	HeaderResumed       = "Session-Resumed"
)

// BridgeFactory makes the audio bridge of a new session.
type BridgeFactory func(userId string) bridge.Bridge

// Registry keeps all the sessions of the node by their user id.
type Registry struct {
	conf      config.RelayConfig
	sessions  *com.Map[string, *session.Context]
	newBridge BridgeFactory
	audio     player.AudioManager
	upgrader  *websocket.Upgrader
	log       *logger.Logger

	started time.Time
	quit    chan struct{}
}

func New(conf config.RelayConfig, newBridge BridgeFactory, audio player.AudioManager, log *logger.Logger) *Registry {
	return &Registry{
		conf:      conf,
		sessions:  com.NewMap[string, *session.Context](),
		newBridge: newBridge,
		audio:     audio,
		upgrader:  &websocket.DefaultUpgrader,
		log:       log.Extend(log.With().Str(logger.ModuleField, "registry")),
		started:   time.Now(),
		quit:      make(chan struct{}),
	}
}

// Session returns the session of the user.
func (r *Registry) Session(userId string) (*session.Context, bool) {
	s, err := r.sessions.Find(userId)
	return s, err == nil
}

// Len returns the number of sessions, paused ones included.
func (r *Registry) Len() int { return r.sessions.Len() }

// ServeHTTP handles new client sockets. It blocks
// until the socket is closed.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	password := r.conf.Relay.Password
	if password != "" &&
		subtle.ConstantTimeCompare([]byte(req.Header.Get(HeaderAuthorization)), []byte(password)) != 1 {
		connections.WithLabelValues("unauthorized").Inc()
		r.log.Warn().Str("addr", req.RemoteAddr).Msg("Authentication failed")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	userId := req.Header.Get(HeaderUserId)
	if userId == "" {
		connections.WithLabelValues("rejected").Inc()
		http.Error(w, "missing "+HeaderUserId, http.StatusBadRequest)
		return
	}

	resumable := r.findResumable(req.Header.Get(HeaderResumeKey))
	header := http.Header{}
	header.Set(HeaderResumed, "false")
	if resumable != nil {
		header.Set(HeaderResumed, "true")
	}

	ws, err := r.upgrader.NewServer(w, req, header, r.conf.Session.SendQueue, r.log)
	if err != nil {
		r.log.Error().Err(err).Msg("Socket upgrade failed")
		if resumable != nil {
			// give the timeout back
			resumable.Pause()
		}
		return
	}

	ctx := r.attach(userId, ws, resumable)
	ws.OnMessage = r.handler(ctx)
	ws.Listen()
	ws.Wait()
	r.detach(ctx, ws)
}

// findResumable returns a paused session with the key
// which timeout was stopped, so it can be resumed.
func (r *Registry) findResumable(key string) *session.Context {
	if key == "" {
		return nil
	}
	ctx, err := r.sessions.FindBy(func(s *session.Context) bool { return s.IsPaused() && s.ResumeKey() == key })
	if err != nil {
		return nil
	}
	if !ctx.StopResumeTimeout() {
		// the timeout has fired already
		return nil
	}
	return ctx
}

// attach resumes the session or makes a new one for the socket.
func (r *Registry) attach(userId string, ws *websocket.WS, resumable *session.Context) *session.Context {
	if resumable != nil {
		err := resumable.Resume(ws)
		if err == nil {
			connections.WithLabelValues("resumed").Inc()
			r.log.Info().Str(logger.UserField, resumable.UserId()).Msg("Session resumed")
			return resumable
		}
		r.log.Warn().Err(err).Msg("Resume failed, a new session will be used")
	}

	ctx := session.New(userId, ws, r.audio, r.newBridge(userId),
		session.WithLogger(r.log),
		session.WithResumeTimeout(r.conf.Session.ResumeTimeout),
		session.WithUpdateInterval(r.conf.Session.UpdateInterval),
		session.WithMaxPending(r.conf.Session.MaxPending),
		session.WithOnResumeExpired(r.expire),
	)
	if old, ok := r.Session(userId); ok {
		r.log.Info().Str(logger.UserField, userId).Msg("Replacing the previous session of the user")
		r.destroy(old)
	}
	r.sessions.Put(userId, ctx)
	ctx.Start()
	connections.WithLabelValues("new").Inc()
	r.log.Info().Str(logger.UserField, userId).Msg("New session")
	return ctx
}

// detach handles a closed socket. Sessions with a resume
// key are paused, the rest are destroyed.
func (r *Registry) detach(ctx *session.Context, ws *websocket.WS) {
	if ctx.Transport() != session.Transport(ws) {
		// already resumed with another socket
		return
	}
	code, reason := ws.CloseStatus()
	l := r.log.Info().Str(logger.UserField, ctx.UserId()).Int("code", code).Str("reason", reason)
	if ctx.ResumeKey() != "" && ctx.Pause() {
		l.Msgf("Connection closed, the session can be resumed within %v", ctx.ResumeTimeout())
		return
	}
	l.Msg("Connection closed")
	r.destroy(ctx)
}

func (r *Registry) expire(ctx *session.Context) {
	r.log.Info().Str(logger.UserField, ctx.UserId()).Msg("Session wasn't resumed in time")
	r.destroy(ctx)
}

// destroy removes the session and shuts it down.
// It's safe to call more than once.
func (r *Registry) destroy(ctx *session.Context) {
	if cur, ok := r.Session(ctx.UserId()); ok && cur == ctx {
		r.sessions.Remove(ctx.UserId())
	}
	ctx.Shutdown()
}

// Run starts sending stats to the clients.
func (r *Registry) Run() { go r.statsLoop() }

// Shutdown closes all the sessions.
func (r *Registry) Shutdown(context.Context) error {
	select {
	case <-r.quit:
		return nil
	default:
		close(r.quit)
	}
	for _, ctx := range r.sessions.Drain() {
		if ws, ok := ctx.Transport().(*websocket.WS); ok {
			ws.Close(1001, "Shutdown")
		}
		ctx.Shutdown()
	}
	return nil
}

func (r *Registry) String() string { return "registry" }
