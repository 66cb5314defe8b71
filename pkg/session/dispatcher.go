package session

import (
	"sync"
	"time"

	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/giongto35/voice-relay/pkg/player"
)

// dispatcher makes all playing players send their state
// at a fixed rate. Ticks are scheduled from the previous
// deadline, not from the end of the previous tick, so the
// processing time doesn't shift the schedule.
type dispatcher struct {
	interval time.Duration
	players  func() []player.Player
	log      *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
	started   bool
	mu        sync.Mutex

	now func() time.Time
}

func newDispatcher(interval time.Duration, players func() []player.Player) *dispatcher {
	return &dispatcher{
		interval: interval,
		players:  players,
		log:      logger.Default(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

func (d *dispatcher) start() {
	d.startOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		select {
		case <-d.quit:
			return
		default:
		}
		if d.interval <= 0 {
			d.interval = DefaultUpdateInterval
		}
		d.started = true
		go d.run()
	})
}

func (d *dispatcher) run() {
	defer close(d.done)
	next := d.now()
	for {
		now := d.now()
		next = d.nextDeadline(next, now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-d.quit:
			timer.Stop()
			return
		case <-timer.C:
		}
		d.tick()
	}
}

// nextDeadline returns the first scheduled tick after the previous
// one that is still in the future, ticks missed by a slow
// loop are skipped.
func (d *dispatcher) nextDeadline(prev, now time.Time) time.Time {
	next := prev.Add(d.interval)
	if late := now.Sub(next); late > 0 {
		next = next.Add((late/d.interval + 1) * d.interval)
	}
	return next
}

func (d *dispatcher) tick() {
	dispatcherTicks.Inc()
	for _, p := range d.players() {
		d.update(p)
	}
}

func (d *dispatcher) update(p player.Player) {
	defer func() {
		if err := recover(); err != nil {
			playerUpdateFailures.Inc()
			d.log.Error().Str(logger.GuildField, p.GuildId()).Msgf("Player update failure: %v", err)
		}
	}()
	if p.IsPlaying() {
		p.SendPlayerUpdate()
	}
}

// stop ends the loop and waits until it quits.
// A sleeping loop wakes up right away, a running
// tick is finished first.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		close(d.quit)
		started := d.started
		d.mu.Unlock()
		if started {
			<-d.done
		}
	})
}

// stopped is closed when the loop is over.
func (d *dispatcher) stopped() <-chan struct{} { return d.done }
