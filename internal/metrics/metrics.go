package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_ticks_total", Help: "Count of price ticks ingested"},
		[]string{"source", "symbol"},
	)
	NewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_news_total", Help: "Count of news items ingested"},
		[]string{"symbol"},
	)
	HoldingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cortextrade_holdings_total", Help: "Count of portfolio holdings ingested"},
	)
	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_votes_total", Help: "Votes cast per agent and action"},
		[]string{"agent", "action"},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_decisions_total", Help: "Final decisions per action"},
		[]string{"action"},
	)
	ArbitrageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_arbitrage_triggers_total", Help: "Arbitrage overrides fired"},
		[]string{"symbol"},
	)
	ExternalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_external_failures_total", Help: "Failed calls to external capabilities"},
		[]string{"kind"},
	)
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cortextrade_queries_total", Help: "Answered queries by status"},
		[]string{"status"},
	)
	PortfolioHealth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "cortextrade_phs", Help: "Portfolio health score of the last decision cycle"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal, NewsTotal, HoldingsTotal,
		VotesTotal, DecisionsTotal, ArbitrageTotal,
		ExternalFailures, QueriesTotal, PortfolioHealth,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
