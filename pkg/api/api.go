// Package api defines the client protocol of the relay node.
//
// Each message in both directions is a JSON object with the required
// "op" field, the rest of the fields depend on the op value.
// Inbound messages are decoded in two passes: first into In to
// read the op, then into the concrete request type with Unwrap.
//
// Example:
//
//	{"op":"event","type":"WebSocketClosedEvent","guildId":"1","reason":"Disconnected.","code":4014,"byRemote":false}
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

type Op string

const (
	OpConfigureResuming Op = "configureResuming"
	OpDestroy           Op = "destroy"
	OpEvent             Op = "event"
	OpPause             Op = "pause"
	OpPlay              Op = "play"
	OpPlayerUpdate      Op = "playerUpdate"
	OpStats             Op = "stats"
	OpStop              Op = "stop"
)

// Event types.
const (
	WebSocketClosedEvent = "WebSocketClosedEvent"
)

var (
	ErrMalformed = errors.New("malformed")
	ErrUnknownOp = errors.New("unknown op")
)

// In is the common part of all inbound messages.
type In struct {
	Op      Op     `json:"op"`
	GuildId string `json:"guildId,omitempty"`
}

type (
	ConfigureResumingRequest struct {
		Key string `json:"key"`
		// Timeout is in seconds.
		Timeout int `json:"timeout"`
	}
	PlayRequest struct {
		In
		Track     string `json:"track"`
		StartTime int64  `json:"startTime,omitempty"`
	}
	PauseRequest struct {
		In
		Pause bool `json:"pause"`
	}
)

type WebSocketClosed struct {
	Op       Op     `json:"op"`
	Type     string `json:"type"`
	GuildId  string `json:"guildId"`
	Reason   string `json:"reason"`
	Code     int    `json:"code"`
	ByRemote bool   `json:"byRemote"`
}

func NewWebSocketClosed(guildId string, reason string, code int, byRemote bool) WebSocketClosed {
	return WebSocketClosed{
		Op:       OpEvent,
		Type:     WebSocketClosedEvent,
		GuildId:  guildId,
		Reason:   reason,
		Code:     code,
		ByRemote: byRemote,
	}
}

type Stats struct {
	Op             Op     `json:"op"`
	Players        int    `json:"players"`
	PlayingPlayers int    `json:"playingPlayers"`
	Uptime         int64  `json:"uptime"`
	Memory         Memory `json:"memory"`
	Goroutines     int    `json:"goroutines"`
}

type Memory struct {
	Free       uint64 `json:"free"`
	Used       uint64 `json:"used"`
	Allocated  uint64 `json:"allocated"`
	Reservable uint64 `json:"reservable"`
}

// Parse reads the common part of an inbound message.
func Parse(data []byte) (In, error) {
	var in In
	if err := json.Unmarshal(data, &in); err != nil {
		return in, ErrMalformed
	}
	if in.Op == "" {
		return in, ErrMalformed
	}
	return in, nil
}

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
