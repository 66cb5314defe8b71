package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions",
		Help: "Number of live client sessions",
	})
	sessionsPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_paused",
		Help: "Number of sessions waiting for a resume",
	})
	pendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_session_pending_messages",
		Help: "Number of messages buffered for paused sessions",
	})
	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_session_dropped_messages_total",
		Help: "Total number of messages dropped because of a closed socket or a full buffer",
	})
	resumes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_session_resumes_total",
		Help: "Total number of resumed sessions",
	})
	resumeExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_session_resume_expired_total",
		Help: "Total number of sessions not resumed in time",
	})
	dispatcherTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dispatcher_ticks_total",
		Help: "Total number of player update ticks",
	})
	playerUpdateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_player_update_failures_total",
		Help: "Total number of failed player updates",
	})
)
