package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the collectors for one registry. Tests build their own
// registry so counters start at zero.
type Recorder struct {
	RoomsActive prometheus.Gauge
	Subscribers prometheus.Gauge
	Operations  *prometheus.CounterVec
	Rounds      *prometheus.CounterVec
	Teardowns   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		RoomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "imposter",
			Name:      "rooms_active",
			Help:      "Rooms currently held in the registry.",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "imposter",
			Name:      "subscribers",
			Help:      "Open room subscriptions across all rooms.",
		}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imposter",
			Name:      "operations_total",
			Help:      "Room operations by name and result.",
		}, []string{"op", "result"}),
		Rounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imposter",
			Name:      "rounds_total",
			Help:      "Resolved rounds by outcome.",
		}, []string{"outcome"}),
		Teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imposter",
			Name:      "room_teardowns_total",
			Help:      "Rooms removed from the registry by reason.",
		}, []string{"reason"}),
		gatherer: reg,
	}
}

// Op counts one operation. A nil error is recorded as "ok".
func (r *Recorder) Op(op string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Operations.WithLabelValues(op, result).Inc()
}

func (r *Recorder) Round(outcome string) {
	if r == nil {
		return
	}
	r.Rounds.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RoomOpened() {
	if r == nil {
		return
	}
	r.RoomsActive.Inc()
}

func (r *Recorder) RoomClosed(reason string) {
	if r == nil {
		return
	}
	r.RoomsActive.Dec()
	r.Teardowns.WithLabelValues(reason).Inc()
}

func (r *Recorder) Subscribed(delta int) {
	if r == nil {
		return
	}
	r.Subscribers.Add(float64(delta))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
