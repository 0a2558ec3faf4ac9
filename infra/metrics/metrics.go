// Package metrics holds the prometheus collectors of the matching service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "limitbook"

type Metrics struct {
	Orders         *prometheus.CounterVec // pair, kind
	Fills          *prometheus.CounterVec // pair
	FilledQuantity *prometheus.CounterVec // pair
	Rejects        *prometheus.CounterVec // pair, reason
	Cancels        *prometheus.CounterVec // pair
	RestingOrders  *prometheus.GaugeVec   // pair, side
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders accepted, by pair and kind (limit, market).",
		}, []string{"pair", "kind"}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Executions against resting orders.",
		}, []string{"pair"}),
		FilledQuantity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filled_quantity_total",
			Help:      "Quantity executed, in lots.",
		}, []string{"pair"}),
		Rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejects_total",
			Help:      "Commands rejected, by reason.",
		}, []string{"pair", "reason"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancels_total",
			Help:      "Resting orders canceled.",
		}, []string{"pair"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders resting in the book.",
		}, []string{"pair", "side"}),
	}

	if reg != nil {
		reg.MustRegister(m.Orders, m.Fills, m.FilledQuantity, m.Rejects, m.Cancels, m.RestingOrders)
	}
	return m
}

func (m *Metrics) ObserveOrder(pair, kind string) {
	m.Orders.WithLabelValues(pair, kind).Inc()
}

func (m *Metrics) ObserveFills(pair string, fills int, quantity int64) {
	if fills == 0 {
		return
	}
	m.Fills.WithLabelValues(pair).Add(float64(fills))
	m.FilledQuantity.WithLabelValues(pair).Add(float64(quantity))
}

func (m *Metrics) ObserveReject(pair, reason string) {
	m.Rejects.WithLabelValues(pair, reason).Inc()
}

func (m *Metrics) ObserveCancel(pair string) {
	m.Cancels.WithLabelValues(pair).Inc()
}

// SetResting records how many orders rest on one side of a book.
func (m *Metrics) SetResting(pair, side string, n int) {
	m.RestingOrders.WithLabelValues(pair, side).Set(float64(n))
}
