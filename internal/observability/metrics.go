package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "community_sessions_active",
			Help: "Number of live terminal sessions.",
		},
	)
	sessionsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_sessions_rejected_total",
			Help: "Total number of connections refused by admission control.",
		},
		[]string{"scope"},
	)
	sessionsTerminatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_sessions_terminated_total",
			Help: "Total number of session terminations.",
		},
		[]string{"cause"},
	)
	busPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_bus_published_total",
			Help: "Total number of messages published on the in-process bus.",
		},
		[]string{"kind"},
	)
	busSubscriberPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "community_bus_subscriber_panics_total",
			Help: "Total number of subscriber callbacks that panicked during fan-out.",
		},
	)
	chatsPostedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "community_chats_posted_total",
			Help: "Total number of messages posted into channels.",
		},
	)
	voiceQueuesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "community_voice_queues_active",
			Help: "Number of open voice-request queues.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sessionsActive,
		sessionsRejectedTotal,
		sessionsTerminatedTotal,
		busPublishedTotal,
		busSubscriberPanicsTotal,
		chatsPostedTotal,
		voiceQueuesActive,
	)
}

func IncSessionsActive()  { sessionsActive.Inc() }
func DecSessionsActive()  { sessionsActive.Dec() }
func IncChatsPosted()     { chatsPostedTotal.Inc() }
func IncSubscriberPanic() { busSubscriberPanicsTotal.Inc() }

func IncSessionRejected(scope string) {
	sessionsRejectedTotal.WithLabelValues(scope).Inc()
}

func IncSessionTerminated(cause string) {
	sessionsTerminatedTotal.WithLabelValues(cause).Inc()
}

func IncBusPublished(kind string) {
	busPublishedTotal.WithLabelValues(kind).Inc()
}

func IncVoiceQueues() { voiceQueuesActive.Inc() }
func DecVoiceQueues() { voiceQueuesActive.Dec() }
