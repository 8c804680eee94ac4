package feeds

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/internal/chain"
	"github.com/dyike/CortexTrade/models"
)

// RoundReader is satisfied by *chain.Oracle.
type RoundReader interface {
	Latest(ctx context.Context) (chain.RoundData, error)
}

// Chainlink polls an on-chain aggregator and emits its answer as a tick.
type Chainlink struct {
	oracle   RoundReader
	symbol   string
	interval time.Duration
	log      zerolog.Logger
}

func NewChainlink(oracle RoundReader, symbol string, interval time.Duration, log zerolog.Logger) *Chainlink {
	return &Chainlink{
		oracle:   oracle,
		symbol:   symbol,
		interval: interval,
		log:      log.With().Str("feed", consts.SourceChainlink).Logger(),
	}
}

func (c *Chainlink) Name() string { return consts.SourceChainlink }

func (c *Chainlink) RunTicks(ctx context.Context, out chan<- models.Tick) error {
	return poll(ctx, c.interval, c.log, func(ctx context.Context) error {
		round, err := c.oracle.Latest(ctx)
		if err != nil {
			return err
		}
		return send(ctx, out, models.Tick{
			Symbol:    c.symbol,
			Price:     round.Price,
			Timestamp: strconv.FormatInt(round.UpdatedAt.Unix(), 10),
			Source:    consts.SourceChainlink,
		})
	})
}
