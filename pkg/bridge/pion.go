package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/giongto35/voice-relay/pkg/com"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pkg/errors"
)

// frameTime is the opus frame size used by the voice links.
const frameTime = 20 * time.Millisecond

var ErrBridgeClosed = errors.New("bridge is closed")

// Pion is a Bridge with WebRTC voice links.
type Pion struct {
	userId string
	api    *ApiFactory
	links  *com.Map[string, *Link]
	events *hub
	log    *logger.Logger

	closed atomic.Bool
	once   sync.Once
}

// Link is a voice link of one guild.
type Link struct {
	member  Member
	conn    *webrtc.PeerConnection
	track   *webrtc.TrackLocalStaticSample
	log     *logger.Logger
	onClose func(l *Link, code int, reason string, byRemote bool)

	mu      sync.Mutex
	handler SendHandler

	closing atomic.Bool
	done    chan struct{}
}

func NewPion(userId string, api *ApiFactory, log *logger.Logger) *Pion {
	l := log.Extend(log.With().Str(logger.UserField, userId).Str(logger.ModuleField, "bridge"))
	return &Pion{
		userId: userId,
		api:    api,
		links:  com.NewMap[string, *Link](),
		events: newHub(l),
		log:    l,
	}
}

func (p *Pion) Events() (<-chan Event, func()) { return p.events.subscribe() }

// Open returns the voice link of the guild, a new one is made when there is none.
func (p *Pion) Open(guildId string) (*Link, error) {
	if p.closed.Load() {
		return nil, ErrBridgeClosed
	}
	link, isNew, err := p.links.GetOrCreate(guildId, func() (*Link, error) {
		return p.newLink(Member{UserId: p.userId, GuildId: guildId})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "voice link [%v]", guildId)
	}
	if isNew {
		go link.sendLoop()
		p.log.Debug().Str(logger.GuildField, guildId).Msg("Voice link opened")
	}
	return link, nil
}

func (p *Pion) newLink(member Member) (*Link, error) {
	conn, err := p.api.NewPeer()
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "relay-"+member.GuildId,
	)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sender, err := conn.AddTrack(track)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Read incoming RTCP packets
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()

	link := &Link{
		member:  member,
		conn:    conn,
		track:   track,
		log:     p.log.Extend(p.log.With().Str(logger.GuildField, member.GuildId)),
		onClose: p.handleClose,
		done:    make(chan struct{}),
	}
	conn.OnConnectionStateChange(link.handleState(func() { p.events.publish(ConnectionReady{Member: member}) }))
	return link, nil
}

func (p *Pion) handleClose(l *Link, code int, reason string, byRemote bool) {
	if cur, err := p.links.Find(l.member.GuildId); err == nil && cur == l {
		p.links.Remove(l.member.GuildId)
	}
	p.events.publish(ConnectionClosed{Member: l.member, Code: code, Reason: reason, ByRemote: byRemote})
}

func (p *Pion) SetSendHandler(member Member, handler SendHandler) {
	link, err := p.Open(member.GuildId)
	if err != nil {
		p.log.Error().Err(err).Msg("Couldn't set send handler")
		return
	}
	link.setHandler(handler)
}

func (p *Pion) RemoveSendHandler(member Member) {
	if link, err := p.links.Find(member.GuildId); err == nil {
		link.setHandler(nil)
	}
}

func (p *Pion) CloseConnection(member Member) {
	link, ok := p.links.Pop(member.GuildId)
	if !ok {
		return
	}
	link.close(CodeDisconnected, "Disconnected.", false)
}

// Shutdown closes all the voice links and the event stream.
func (p *Pion) Shutdown() {
	p.once.Do(func() {
		p.closed.Store(true)
		for _, link := range p.links.Drain() {
			link.close(CodeNormal, "Shutdown.", false)
		}
		p.events.close()
		p.log.Debug().Msg("Bridge has been shut down")
	})
}

// Links returns the number of open voice links.
func (p *Pion) Links() int { return p.links.Len() }

// Offer makes the local session description.
func (l *Link) Offer() (*webrtc.SessionDescription, error) {
	offer, err := l.conn.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = l.conn.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return l.conn.LocalDescription(), nil
}

// Answer applies the remote session description.
func (l *Link) Answer(answer webrtc.SessionDescription) error {
	return l.conn.SetRemoteDescription(answer)
}

func (l *Link) Member() Member { return l.member }

func (l *Link) setHandler(h SendHandler) { l.mu.Lock(); l.handler = h; l.mu.Unlock() }

func (l *Link) getHandler() SendHandler { l.mu.Lock(); defer l.mu.Unlock(); return l.handler }

func (l *Link) sendLoop() {
	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sendFrame()
		}
	}
}

func (l *Link) sendFrame() {
	defer func() {
		if err := recover(); err != nil {
			l.log.Error().Msgf("Send handler failure: %v", err)
		}
	}()
	h := l.getHandler()
	if h == nil {
		return
	}
	data, duration, ok := h.Provide()
	if !ok {
		return
	}
	if duration == 0 {
		duration = frameTime
	}
	if err := l.track.WriteSample(media.Sample{Data: data, Duration: duration}); err != nil {
		l.log.Debug().Err(err).Msg("Audio write")
	}
}

func (l *Link) handleState(onConnect func()) func(webrtc.PeerConnectionState) {
	return func(state webrtc.PeerConnectionState) {
		l.log.Debug().Str("state", state.String()).Msg("Voice link")
		switch state {
		case webrtc.PeerConnectionStateConnected:
			onConnect()
		case webrtc.PeerConnectionStateFailed:
			l.close(CodeFailed, "Connection failed.", true)
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			l.close(CodeNormal, "Connection closed.", true)
		}
	}
}

// close tears the link down once, only the first
// reason is reported.
func (l *Link) close(code int, reason string, byRemote bool) {
	if !l.closing.CompareAndSwap(false, true) {
		return
	}
	close(l.done)
	l.setHandler(nil)
	if err := l.conn.Close(); err != nil {
		l.log.Debug().Err(err).Msg("Voice link close")
	}
	l.onClose(l, code, reason, byRemote)
}
