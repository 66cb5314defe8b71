// Package bridge turns the audio of the players into outbound
// real-time media, one voice link per guild of a client.
package bridge

import "time"

// Voice link close codes.
const (
	CodeNormal       = 1000
	CodeDisconnected = 4014
	CodeFailed       = 4006
)

// Member identifies one voice link: a bot user in a guild.
type Member struct {
	UserId  string
	GuildId string
}

func (m Member) String() string { return m.UserId + "/" + m.GuildId }

// Event is a voice link lifecycle event.
type Event interface{ Guild() string }

// ConnectionClosed is published when a voice link goes away.
type ConnectionClosed struct {
	Member   Member
	Reason   string
	Code     int
	ByRemote bool
}

// ConnectionReady is published when a voice link is up.
type ConnectionReady struct {
	Member Member
}

func (e ConnectionClosed) Guild() string { return e.Member.GuildId }
func (e ConnectionReady) Guild() string  { return e.Member.GuildId }

// SendHandler provides encoded audio frames for a voice link.
// Provide returns false when there is nothing to send at the moment.
type SendHandler interface {
	Provide() (frame []byte, duration time.Duration, ok bool)
}

// SendHandlerFunc is a function adapter for SendHandler.
type SendHandlerFunc func() ([]byte, time.Duration, bool)

func (f SendHandlerFunc) Provide() ([]byte, time.Duration, bool) { return f() }

// Bridge is the per-session audio send subsystem.
type Bridge interface {
	// Events subscribes to the lifecycle events of all voice links.
	// The returned func releases the subscription, it's safe to call it more than once.
	Events() (<-chan Event, func())
	SetSendHandler(member Member, handler SendHandler)
	RemoveSendHandler(member Member)
	CloseConnection(member Member)
	Shutdown()
}
