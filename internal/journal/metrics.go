package journal

import (
	"trade-journal/internal/importer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks file imports.
type Metrics struct {
	trades *prometheus.CounterVec
	errors *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trade_journal",
			Subsystem: "import",
			Name:      "trades_total",
			Help:      "Trades created by file imports",
		}, []string{"format"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trade_journal",
			Subsystem: "import",
			Name:      "row_errors_total",
			Help:      "Rows rejected by file imports",
		}, []string{"format"}),
	}
}

func (m *Metrics) imported(format importer.Format, trades, errors int) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(string(format)).Add(float64(trades))
	m.errors.WithLabelValues(string(format)).Add(float64(errors))
}
