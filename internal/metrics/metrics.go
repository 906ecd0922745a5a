package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// チェックアウト周りのカウンタ。nil でも呼べる。
type Metrics struct {
	Reservations       *prometheus.CounterVec
	ReserveRetries     prometheus.Counter
	Payments           *prometheus.CounterVec
	CheckoutsCompleted prometheus.Counter
	SweptReservations  prometheus.Counter
	ExpiredSessions    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "inventory",
			Name:      "reservations_total",
			Help:      "Reserve calls by result.",
		}, []string{"result"}),
		ReserveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "inventory",
			Name:      "reserve_retries_total",
			Help:      "Conditional reserve updates retried after losing a race.",
		}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "payments_total",
			Help:      "Payment authorizations by resulting status.",
		}, []string{"status"}),
		CheckoutsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "completed_total",
			Help:      "Checkouts turned into orders.",
		}),
		SweptReservations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "sweeper",
			Name:      "released_reservations_total",
			Help:      "Held reservations released by the expiry sweeper.",
		}),
		ExpiredSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "sweeper",
			Name:      "expired_sessions_total",
			Help:      "Checkout sessions marked expired by the sweeper.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Reservations, m.ReserveRetries, m.Payments, m.CheckoutsCompleted, m.SweptReservations, m.ExpiredSessions)
	}
	return m
}

func (m *Metrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReserveRetry() {
	if m == nil {
		return
	}
	m.ReserveRetries.Inc()
}

func (m *Metrics) ObservePayment(status string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCheckoutCompleted() {
	if m == nil {
		return
	}
	m.CheckoutsCompleted.Inc()
}

func (m *Metrics) ObserveSweep(releasedReservations int, expiredSessions int64) {
	if m == nil {
		return
	}
	m.SweptReservations.Add(float64(releasedReservations))
	m.ExpiredSessions.Add(float64(expiredSessions))
}

// /metrics 用
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
