package player

import (
	"sync"
	"time"

	"github.com/giongto35/voice-relay/pkg/api"
	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/pkg/errors"
)

var ErrNoAudioManager = errors.New("no audio manager")

// State is the player state the client sees.
type State struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
}

type playerUpdate struct {
	Op      api.Op `json:"op"`
	GuildId string `json:"guildId"`
	State   State  `json:"state"`
}

// Track is the default player, it streams one track at a time
// into the voice link of its guild and keeps the playback position.
type Track struct {
	owner   Owner
	guildId string
	audio   AudioManager

	mu       sync.Mutex
	track    string
	playing  bool
	paused   bool
	started  time.Time
	position time.Duration

	now func() time.Time
}

// NewTrack is the default player Factory.
func NewTrack(owner Owner, guildId string, audio AudioManager) (Player, error) {
	return &Track{owner: owner, guildId: guildId, audio: audio, now: time.Now}, nil
}

func (t *Track) GuildId() string { return t.guildId }

func (t *Track) member() bridge.Member {
	return bridge.Member{UserId: t.owner.UserId(), GuildId: t.guildId}
}

// Play starts the track from the given position.
func (t *Track) Play(identifier string, from time.Duration) error {
	if t.audio == nil {
		return ErrNoAudioManager
	}
	source, err := t.audio.Load(identifier)
	if err != nil {
		return errors.Wrapf(err, "couldn't load %v", identifier)
	}
	t.mu.Lock()
	t.track, t.playing, t.paused = identifier, true, false
	t.position, t.started = from, t.now()
	t.mu.Unlock()

	t.owner.Bridge().SetSendHandler(t.member(), source)
	return nil
}

// Pause freezes or continues the playback.
func (t *Track) Pause(pause bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing || t.paused == pause {
		return
	}
	if pause {
		t.position += t.now().Sub(t.started)
	} else {
		t.started = t.now()
	}
	t.paused = pause
}

func (t *Track) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing && !t.paused
}

// Position returns the current playback position.
func (t *Track) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked()
}

func (t *Track) positionLocked() time.Duration {
	if t.playing && !t.paused {
		return t.position + t.now().Sub(t.started)
	}
	return t.position
}

func (t *Track) SendPlayerUpdate() {
	t.mu.Lock()
	state := State{
		Time:      t.now().UnixMilli(),
		Position:  t.positionLocked().Milliseconds(),
		Connected: t.playing,
	}
	t.mu.Unlock()
	t.owner.Send(playerUpdate{Op: api.OpPlayerUpdate, GuildId: t.guildId, State: state})
}

func (t *Track) Stop() {
	t.mu.Lock()
	wasPlaying := t.playing
	t.track, t.playing, t.paused, t.position = "", false, false, 0
	t.mu.Unlock()
	if wasPlaying {
		t.owner.Bridge().RemoveSendHandler(t.member())
	}
}
