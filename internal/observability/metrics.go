package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mandatoja_messages_dispatched_total", Help: "Scheduled message dispatch outcomes"},
		[]string{"result"},
	)
	ChunksSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mandatoja_chunks_sent_total", Help: "Individual message chunks delivered"},
	)
	DispatchTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "mandatoja_dispatch_tick_seconds", Help: "Duration of one dispatch pass"},
	)
	SessionActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "mandatoja_session_actions_total", Help: "Session lifecycle action outcomes"},
		[]string{"action", "result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(MessagesDispatched, ChunksSent, DispatchTickDuration, SessionActions)
}
