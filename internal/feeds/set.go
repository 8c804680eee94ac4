package feeds

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/models"
)

// Set is the group of producers started for one process.
type Set struct {
	Ticks []TickProducer
	News  []NewsProducer
}

// Build selects producers from cfg. A nil oracle skips the Chainlink poller.
func Build(cfg config.Config, oracle RoundReader, log zerolog.Logger) (Set, error) {
	var set Set

	if len(cfg.StockSymbols) > 0 {
		switch cfg.StockProvider {
		case "alphavantage":
			if cfg.AlphaVantageAPIKey == "" {
				log.Warn().Msg("alpha vantage key missing, stock feed disabled")
				break
			}
			set.Ticks = append(set.Ticks, NewAlphaVantage("", cfg.AlphaVantageAPIKey, cfg.StockSymbols, cfg.StockPollInterval, log))
		case "yahoo":
			set.Ticks = append(set.Ticks, NewYahoo(cfg.StockSymbols, cfg.StockPollInterval, log))
		case "longport":
			lp, err := NewLongport(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken, cfg.StockSymbols, cfg.StockPollInterval, log)
			if err != nil {
				return Set{}, err
			}
			set.Ticks = append(set.Ticks, lp)
		default:
			return Set{}, fmt.Errorf("unsupported stock provider %q", cfg.StockProvider)
		}
	}

	if len(cfg.CryptoSymbols) > 0 {
		set.Ticks = append(set.Ticks,
			NewBinance("", cfg.CryptoSymbols, log),
			NewCoinGecko("", cfg.CryptoSymbols, cfg.CoinGeckoIDs, cfg.CryptoPollInterval, log),
		)
	}
	if oracle != nil {
		set.Ticks = append(set.Ticks, NewChainlink(oracle, cfg.OracleSymbol, cfg.OraclePollInterval, log))
	}

	if cfg.NewsAPIKey != "" {
		symbols := append(append([]string{}, cfg.StockSymbols...), cfg.CryptoSymbols...)
		set.News = append(set.News, NewNewsAPI("", cfg.NewsAPIKey, symbols, cfg.NewsPollInterval, log))
	}
	return set, nil
}

// Run starts every producer and blocks until all of them return.
// A producer that fails is logged; the others keep running.
func (s Set) Run(ctx context.Context, ticks chan<- models.Tick, news chan<- models.NewsItem, log zerolog.Logger) {
	var wg sync.WaitGroup
	for _, p := range s.Ticks {
		wg.Add(1)
		go func(p TickProducer) {
			defer wg.Done()
			if err := p.RunTicks(ctx, ticks); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("feed", p.Name()).Msg("feed stopped")
			}
		}(p)
	}
	for _, p := range s.News {
		wg.Add(1)
		go func(p NewsProducer) {
			defer wg.Done()
			if err := p.RunNews(ctx, news); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("feed", p.Name()).Msg("feed stopped")
			}
		}(p)
	}
	wg.Wait()
}

// Names lists the producers in start order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.Ticks)+len(s.News))
	for _, p := range s.Ticks {
		names = append(names, p.Name())
	}
	for _, p := range s.News {
		names = append(names, p.Name())
	}
	return names
}
