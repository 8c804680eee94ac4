package feeds

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/models"
)

// Longport polls last-done prices over the Longport quote API.
type Longport struct {
	quotes   *quote.QuoteContext
	symbols  []string
	interval time.Duration
	log      zerolog.Logger
}

func NewLongport(appKey, appSecret, accessToken string, symbols []string, interval time.Duration, log zerolog.Logger) (*Longport, error) {
	conf, err := lpconfig.New(lpconfig.WithConfigKey(appKey, appSecret, accessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to create longport config: %w", err)
	}
	qctx, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote context: %w", err)
	}
	return &Longport{
		quotes:   qctx,
		symbols:  longportSymbols(symbols),
		interval: interval,
		log:      log.With().Str("feed", consts.SourceLongport).Logger(),
	}, nil
}

// longportSymbols appends the US market suffix when none is given.
func longportSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !strings.Contains(s, ".") {
			s += ".US"
		}
		out = append(out, s)
	}
	return out
}

func (l *Longport) Name() string { return consts.SourceLongport }

func (l *Longport) RunTicks(ctx context.Context, out chan<- models.Tick) error {
	defer l.quotes.Close()
	return poll(ctx, l.interval, l.log, func(ctx context.Context) error {
		quotes, err := l.quotes.Quote(ctx, l.symbols)
		if err != nil {
			return fmt.Errorf("longport quote: %w", err)
		}
		for _, q := range quotes {
			if q == nil || q.LastDone == nil {
				continue
			}
			price, _ := q.LastDone.Float64()
			tick := models.Tick{
				Symbol:    strings.TrimSuffix(q.Symbol, ".US"),
				Price:     price,
				Timestamp: strconv.FormatInt(q.Timestamp, 10),
				Source:    consts.SourceLongport,
			}
			if err := send(ctx, out, tick); err != nil {
				return err
			}
		}
		return nil
	})
}
