package session

import (
	"github.com/giongto35/voice-relay/pkg/api"
	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/giongto35/voice-relay/pkg/logger"
)

// listen forwards voice link events to the client
// until the subscription is released.
func (c *Context) listen(events <-chan bridge.Event) {
	defer close(c.eventsDone)
	for e := range events {
		c.handleEvent(e)
	}
}

func (c *Context) handleEvent(e bridge.Event) {
	defer func() {
		if err := recover(); err != nil {
			c.log.Error().Msgf("Voice event failure: %v", err)
		}
	}()
	switch ev := e.(type) {
	case bridge.ConnectionClosed:
		c.log.Info().
			Str(logger.GuildField, ev.Member.GuildId).
			Int("code", ev.Code).
			Bool("remote", ev.ByRemote).
			Msgf("Voice link closed: %v", ev.Reason)
		c.Send(api.NewWebSocketClosed(ev.Member.GuildId, ev.Reason, ev.Code, ev.ByRemote))
	default:
		c.log.Debug().Msgf("Skipped voice event %T", e)
	}
}
