package feeds

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/models"
)

const alphaVantageURL = "https://www.alphavantage.co"

// AlphaVantage polls the latest one minute close of each stock.
type AlphaVantage struct {
	client   *resty.Client
	limiter  *rate.Limiter
	apiKey   string
	symbols  []string
	interval time.Duration
	log      zerolog.Logger
}

func NewAlphaVantage(baseURL, apiKey string, symbols []string, interval time.Duration, log zerolog.Logger) *AlphaVantage {
	if baseURL == "" {
		baseURL = alphaVantageURL
	}
	return &AlphaVantage{
		client:   newRESTClient(baseURL, 30*time.Second),
		limiter:  perMinute(5),
		apiKey:   apiKey,
		symbols:  symbols,
		interval: interval,
		log:      log.With().Str("feed", consts.SourceAlphaVantage).Logger(),
	}
}

func (a *AlphaVantage) Name() string { return consts.SourceAlphaVantage }

func (a *AlphaVantage) RunTicks(ctx context.Context, out chan<- models.Tick) error {
	return poll(ctx, a.interval, a.log, func(ctx context.Context) error {
		for _, symbol := range a.symbols {
			tick, err := a.Fetch(ctx, symbol)
			if err != nil {
				a.log.Warn().Err(err).Str("symbol", symbol).Msg("fetch failed")
				continue
			}
			if err := send(ctx, out, tick); err != nil {
				return err
			}
		}
		return nil
	})
}

type intradayResponse struct {
	Series map[string]map[string]string `json:"Time Series (1min)"`
	Note   string                       `json:"Note"`
	Error  string                       `json:"Error Message"`
}

func (a *AlphaVantage) Fetch(ctx context.Context, symbol string) (models.Tick, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return models.Tick{}, err
	}
	var body intradayResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "TIME_SERIES_INTRADAY",
			"symbol":   symbol,
			"interval": "1min",
			"apikey":   a.apiKey,
		}).
		SetResult(&body).
		Get("/query")
	if err != nil {
		return models.Tick{}, fmt.Errorf("fetch intraday %s: %w", symbol, err)
	}
	if resp.IsError() {
		return models.Tick{}, fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
	}
	if len(body.Series) == 0 {
		msg := body.Error
		if msg == "" {
			msg = body.Note
		}
		return models.Tick{}, fmt.Errorf("no intraday series for %s: %s", symbol, msg)
	}

	keys := make([]string, 0, len(body.Series))
	for k := range body.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	latest := keys[len(keys)-1]

	price, err := strconv.ParseFloat(body.Series[latest]["4. close"], 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("parse close for %s: %w", symbol, err)
	}
	return models.Tick{
		Symbol:    symbol,
		Price:     price,
		Timestamp: latest,
		Source:    consts.SourceAlphaVantage,
	}, nil
}
