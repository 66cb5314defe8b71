// Package player has the per-guild audio players of a session.
package player

import (
	"github.com/giongto35/voice-relay/pkg/bridge"
)

// Player is an audio player of one guild.
type Player interface {
	GuildId() string
	IsPlaying() bool
	// SendPlayerUpdate pushes the current player state to the client.
	SendPlayerUpdate()
	Stop()
}

// Owner is the session a player belongs to.
type Owner interface {
	UserId() string
	Send(msg any)
	Bridge() bridge.Bridge
}

// AudioManager resolves track identifiers into audio streams.
// Decoding is done elsewhere, streams provide ready opus frames.
type AudioManager interface {
	Load(identifier string) (bridge.SendHandler, error)
}

// Factory makes a new player for the guild of the owner.
type Factory func(owner Owner, guildId string, audio AudioManager) (Player, error)
