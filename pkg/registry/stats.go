package registry

import (
	"runtime"
	"time"

	"github.com/giongto35/voice-relay/pkg/api"
	"github.com/giongto35/voice-relay/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_connections_total",
	Help: "Total number of client connections by the outcome",
}, []string{"result"})

func (r *Registry) statsLoop() {
	interval := r.conf.Relay.StatsInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			stats := r.Stats()
			r.sessions.ForEach(func(ctx *session.Context) {
				if !ctx.IsPaused() {
					ctx.Send(stats)
				}
			})
		}
	}
}

// Stats collects the node stats.
func (r *Registry) Stats() api.Stats {
	stats := api.Stats{Op: api.OpStats, Uptime: time.Since(r.started).Milliseconds()}
	r.sessions.ForEach(func(ctx *session.Context) {
		players := ctx.Players()
		stats.Players += len(players)
		for _, p := range players {
			if p.IsPlaying() {
				stats.PlayingPlayers++
			}
		}
	})

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.Memory = api.Memory{
		Free:       mem.HeapIdle - mem.HeapReleased,
		Used:       mem.HeapAlloc,
		Allocated:  mem.HeapSys,
		Reservable: mem.Sys,
	}
	stats.Goroutines = runtime.NumGoroutine()
	return stats
}
