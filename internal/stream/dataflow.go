package stream

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/internal/metrics"
	"github.com/dyike/CortexTrade/models"
)

// Dataflow feeds producer output into an Enricher as facts arrive.
type Dataflow struct {
	enricher *Enricher
	ticks    chan models.Tick
	news     chan models.NewsItem
	holdings chan models.Holding
	log      zerolog.Logger
}

func NewDataflow(enricher *Enricher, buffer int, log zerolog.Logger) *Dataflow {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dataflow{
		enricher: enricher,
		ticks:    make(chan models.Tick, buffer),
		news:     make(chan models.NewsItem, buffer),
		holdings: make(chan models.Holding, buffer),
		log:      log.With().Str("component", "dataflow").Logger(),
	}
}

func (d *Dataflow) Ticks() chan<- models.Tick       { return d.ticks }
func (d *Dataflow) News() chan<- models.NewsItem    { return d.news }
func (d *Dataflow) Holdings() chan<- models.Holding { return d.holdings }
func (d *Dataflow) Enricher() *Enricher             { return d.enricher }

// Run blocks until ctx is done.
func (d *Dataflow) Run(ctx context.Context) error {
	d.log.Info().Msg("dataflow started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("dataflow stopped")
			return ctx.Err()
		case t := <-d.ticks:
			d.enricher.ApplyTick(t)
			metrics.TicksTotal.WithLabelValues(t.Source, t.Symbol).Inc()
		case n := <-d.news:
			d.enricher.ApplyNews(n)
			metrics.NewsTotal.WithLabelValues(n.Symbol).Inc()
		case h := <-d.holdings:
			if !h.Valid() {
				d.log.Warn().Str("symbol", h.Symbol).Msg("dropping invalid holding")
				continue
			}
			d.enricher.ApplyHolding(h)
			metrics.HoldingsTotal.Inc()
		}
	}
}
