package session

import (
	"github.com/goccy/go-json"
)

// Send encodes the message into JSON and sends it to the client.
func (c *Context) Send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msgf("Couldn't encode %T", msg)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends the frame to the client without waiting for the
// network. While the session is paused the frame is buffered.
// A closed transport silently drops the frame, errors are
// only logged.
func (c *Context) SendRaw(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case ShutDown:
		c.log.Debug().Msg("Message after shutdown was dropped")
		return
	case Paused:
		c.bufferLocked(frame)
		return
	}
	c.sendLocked(frame)
}

func (c *Context) bufferLocked(frame []byte) {
	if c.maxPending > 0 && c.pending.Length() >= c.maxPending {
		c.pending.Remove()
		pendingEvents.Dec()
		droppedEvents.Inc()
		c.log.Warn().Int("max", c.maxPending).Msg("Pending buffer is full, the oldest message was dropped")
	}
	c.pending.Add(frame)
	pendingEvents.Inc()
}

func (c *Context) sendLocked(frame []byte) {
	t := c.transport
	if t == nil || !t.IsOpen() {
		droppedEvents.Inc()
		c.log.Debug().Msg("Transport is closed, message was dropped")
		return
	}
	t.SendText(frame, nil, func(err error) {
		c.log.Warn().Err(err).Msg("Send failure")
	})
}
