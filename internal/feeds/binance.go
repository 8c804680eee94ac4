package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/models"
)

const binanceStreamURL = "wss://stream.binance.com:9443/stream"

const (
	binanceReadTimeout = 30 * time.Second
	binancePingEvery   = 15 * time.Second
	binanceMaxBackoff  = 30 * time.Second
)

// Binance consumes the combined 24h ticker stream for crypto pairs.
type Binance struct {
	baseURL string
	symbols []string
	log     zerolog.Logger
}

func NewBinance(baseURL string, symbols []string, log zerolog.Logger) *Binance {
	if baseURL == "" {
		baseURL = binanceStreamURL
	}
	return &Binance{
		baseURL: baseURL,
		symbols: symbols,
		log:     log.With().Str("feed", consts.SourceBinance).Logger(),
	}
}

func (b *Binance) Name() string { return consts.SourceBinance }

// StreamURL builds the combined stream url, e.g. ...?streams=btcusdt@ticker/ethusdt@ticker.
func (b *Binance) StreamURL() string {
	streams := make([]string, len(b.symbols))
	for i, s := range b.symbols {
		streams[i] = strings.ToLower(s) + "@ticker"
	}
	return fmt.Sprintf("%s?streams=%s", b.baseURL, strings.Join(streams, "/"))
}

func (b *Binance) RunTicks(ctx context.Context, out chan<- models.Tick) error {
	if len(b.symbols) == 0 {
		return errors.New("binance feed requires at least one symbol")
	}
	url := b.StreamURL()
	backoff := time.Second
	for {
		err := b.consume(ctx, url, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn().Err(err).Dur("backoff", backoff).Msg("stream disconnected, reconnecting")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(float64(backoff) * 1.8)
		if backoff > binanceMaxBackoff {
			backoff = binanceMaxBackoff
		}
	}
}

type tickerEnvelope struct {
	Stream string      `json:"stream"`
	Data   tickerEvent `json:"data"`
}

type tickerEvent struct {
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	EventTime int64  `json:"E"`
}

func (b *Binance) consume(ctx context.Context, url string, out chan<- models.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	b.log.Info().Strs("symbols", b.symbols).Msg("connected")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(binanceReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(binanceReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(binancePingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-ctx.Done():
				// unblocks ReadMessage
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, err := ParseTicker(msg)
		if err != nil {
			b.log.Debug().Err(err).Msg("skip message")
			continue
		}
		if err := send(ctx, out, tick); err != nil {
			return err
		}
	}
}

// ParseTicker decodes one combined-stream ticker event.
func ParseTicker(msg []byte) (models.Tick, error) {
	var env tickerEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return models.Tick{}, fmt.Errorf("decode ticker: %w", err)
	}
	symbol := env.Data.Symbol
	if symbol == "" {
		symbol, _, _ = strings.Cut(env.Stream, "@")
	}
	if symbol == "" {
		return models.Tick{}, errors.New("ticker without symbol")
	}
	price, err := strconv.ParseFloat(env.Data.LastPrice, 64)
	if err != nil {
		return models.Tick{}, fmt.Errorf("invalid price %q: %w", env.Data.LastPrice, err)
	}
	return models.Tick{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		Timestamp: strconv.FormatInt(env.Data.EventTime, 10),
		Source:    consts.SourceBinance,
	}, nil
}
