package feeds

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/models"
)

const coinGeckoURL = "https://api.coingecko.com"

// CoinGecko polls USD spot prices for the configured crypto pairs.
type CoinGecko struct {
	client   *resty.Client
	limiter  *rate.Limiter
	symbols  []string
	ids      map[string]string
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewCoinGecko(baseURL string, symbols []string, ids map[string]string, interval time.Duration, log zerolog.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoURL
	}
	return &CoinGecko{
		client:   newRESTClient(baseURL, 30*time.Second),
		limiter:  perMinute(30),
		symbols:  symbols,
		ids:      ids,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("feed", consts.SourceCoinGecko).Logger(),
	}
}

func (c *CoinGecko) Name() string { return consts.SourceCoinGecko }

// CoinID maps a pair like BTCUSDT to its CoinGecko id.
func (c *CoinGecko) CoinID(symbol string) string {
	if id, ok := c.ids[strings.ToUpper(symbol)]; ok {
		return id
	}
	lower := strings.ToLower(symbol)
	if i := strings.Index(lower, "usdt"); i > 0 {
		return lower[:i]
	}
	return lower
}

func (c *CoinGecko) RunTicks(ctx context.Context, out chan<- models.Tick) error {
	return poll(ctx, c.interval, c.log, func(ctx context.Context) error {
		ticks, err := c.Fetch(ctx)
		if err != nil {
			return err
		}
		for _, t := range ticks {
			if err := send(ctx, out, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *CoinGecko) Fetch(ctx context.Context) ([]models.Tick, error) {
	if len(c.symbols) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(c.symbols))
	for _, s := range c.symbols {
		ids = append(ids, c.CoinID(s))
	}

	var body map[string]map[string]float64
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ids":           strings.Join(ids, ","),
				"vs_currencies": "usd",
			}).
			SetResult(&body).
			Get("/api/v3/simple/price")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch coingecko prices: %w", err)
	}

	stamp := strconv.FormatInt(c.now().Unix(), 10)
	ticks := make([]models.Tick, 0, len(c.symbols))
	for i, symbol := range c.symbols {
		price, ok := body[ids[i]]["usd"]
		if !ok {
			c.log.Debug().Str("symbol", symbol).Str("id", ids[i]).Msg("no price returned")
			continue
		}
		ticks = append(ticks, models.Tick{
			Symbol:    symbol,
			Price:     price,
			Timestamp: stamp,
			Source:    consts.SourceCoinGecko,
		})
	}
	return ticks, nil
}
