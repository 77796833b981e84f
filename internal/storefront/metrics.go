package storefront

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the storefront's business counters. A nil *Metrics records
// nothing.
type Metrics struct {
	Sessions  prometheus.Gauge
	Checkouts prometheus.Counter
	Revenue   prometheus.Counter
	Trades    *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_sessions",
			Help: "Live storefront sessions",
		}),
		Checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Completed checkouts",
		}),
		Revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_revenue_total",
			Help: "Sum of checkout totals",
		}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_lemon_trades_total",
			Help: "Lemon inventory trades by side",
		}, []string{"side"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_rejected_operations_total",
			Help: "Session operations refused by a business rule",
		}, []string{"op", "reason"}),
	}

	reg.MustRegister(m.Sessions, m.Checkouts, m.Revenue, m.Trades, m.Rejected)
	return m
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

func (m *Metrics) checkout(r Receipt) {
	if m == nil {
		return
	}
	m.Checkouts.Inc()
	m.Revenue.Add(r.Total)
}

func (m *Metrics) trade(side string) {
	if m == nil {
		return
	}
	m.Trades.WithLabelValues(side).Inc()
}

func (m *Metrics) rejected(op, reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(op, reason).Inc()
}
