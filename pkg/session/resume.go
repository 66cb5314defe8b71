package session

import (
	"time"
)

// Pause marks the client as gone but resumable. Everything sent from
// now on is buffered until Resume. The session is destroyed through
// the expiry callback unless resumed within the resume timeout.
// Pausing a paused session restarts its timeout.
// It returns false if the session can't be paused.
func (c *Context) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ShutDown || c.expired {
		return false
	}
	if c.resumeKey == "" {
		c.log.Debug().Msg("Session without resume key can't be paused")
		return false
	}
	if c.state != Paused {
		c.state = Paused
		sessionsPaused.Inc()
	}
	c.stopTimeoutLocked()
	gen := c.timeoutGen
	c.timeout = time.AfterFunc(c.resumeTimeout, func() { c.expire(gen) })
	c.log.Info().Dur("timeout", c.resumeTimeout).Msg("Session paused")
	return true
}

// StopResumeTimeout cancels the armed resume timeout.
// It returns true only if there was a timer and it was stopped before firing.
// A timer that has already fired is left to finish the expiry.
func (c *Context) StopResumeTimeout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout == nil {
		return false
	}
	if !c.timeout.Stop() {
		return false
	}
	c.timeout = nil
	c.timeoutGen++
	return true
}

// stopTimeoutLocked drops the armed timer, a fired one
// becomes a no-op because of the generation change.
func (c *Context) stopTimeoutLocked() {
	if c.timeout != nil {
		c.timeout.Stop()
		c.timeout = nil
	}
	c.timeoutGen++
}

// expire runs when a resume timeout fires.
// Only the latest armed timer of a still paused session counts.
func (c *Context) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.timeoutGen || c.state != Paused || c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.timeout = nil
	c.mu.Unlock()

	resumeExpired.Inc()
	c.log.Info().Msg("Session wasn't resumed in time")

	defer func() {
		if err := recover(); err != nil {
			c.log.Error().Msgf("Resume expiry failure: %v", err)
		}
	}()
	if c.onResumeExpired != nil {
		c.onResumeExpired(c)
		return
	}
	c.Shutdown()
}

// Resume attaches a new transport to the paused session.
// First all buffered messages are sent in order, then every
// playing player sends its fresh state.
func (c *Context) Resume(t Transport) error {
	c.mu.Lock()
	if c.state == ShutDown || c.expired {
		c.mu.Unlock()
		return ErrShutdown
	}
	if c.state != Paused {
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.stopTimeoutLocked()
	c.transport = t

	n := c.pending.Length()
	for c.pending.Length() > 0 {
		c.sendLocked(c.pending.Remove().([]byte))
	}
	pendingEvents.Sub(float64(n))
	c.state = Active
	c.mu.Unlock()

	sessionsPaused.Dec()
	resumes.Inc()
	c.log.Info().Int("replayed", n).Msg("Session resumed")

	for _, p := range c.players.Values() {
		c.dispatcher.update(p)
	}
	return nil
}
