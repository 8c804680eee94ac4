package feeds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/models"
)

// QuoteFunc fetches a single Yahoo Finance quote.
type QuoteFunc func(symbol string) (*finance.Quote, error)

// Yahoo polls regular market prices through Yahoo Finance.
type Yahoo struct {
	get      QuoteFunc
	symbols  []string
	interval time.Duration
	log      zerolog.Logger
}

func NewYahoo(symbols []string, interval time.Duration, log zerolog.Logger) *Yahoo {
	return &Yahoo{
		get:      quote.Get,
		symbols:  symbols,
		interval: interval,
		log:      log.With().Str("feed", consts.SourceYahoo).Logger(),
	}
}

func (y *Yahoo) Name() string { return consts.SourceYahoo }

func (y *Yahoo) RunTicks(ctx context.Context, out chan<- models.Tick) error {
	return poll(ctx, y.interval, y.log, func(ctx context.Context) error {
		for _, symbol := range y.symbols {
			tick, err := y.Fetch(symbol)
			if err != nil {
				y.log.Warn().Err(err).Str("symbol", symbol).Msg("fetch failed")
				continue
			}
			if err := send(ctx, out, tick); err != nil {
				return err
			}
		}
		return nil
	})
}

func (y *Yahoo) Fetch(symbol string) (models.Tick, error) {
	q, err := y.get(symbol)
	if err != nil {
		return models.Tick{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	if q == nil {
		return models.Tick{}, fmt.Errorf("no quote for %s", symbol)
	}
	return models.Tick{
		Symbol:    symbol,
		Price:     q.RegularMarketPrice,
		Timestamp: strconv.Itoa(q.RegularMarketTime),
		Source:    consts.SourceYahoo,
	}, nil
}
