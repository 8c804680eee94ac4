package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrade/models"
)

func TestHoldingWithoutFeedsHasAbsentFields(t *testing.T) {
	e := NewEnricher()
	e.ApplyHolding(models.Holding{Symbol: "aapl", Quantity: 3, PurchasePrice: 150})

	rows := e.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Nil(t, rows[0].CurrentPrice)
	assert.Nil(t, rows[0].Sentiment)
	assert.Nil(t, rows[0].Headline)
}

func TestLatestTickByTimestamp(t *testing.T) {
	e := NewEnricher()
	e.ApplyHolding(models.Holding{Symbol: "BTCUSDT", Quantity: 1, PurchasePrice: 50000})

	assert.True(t, e.ApplyTick(models.Tick{Symbol: "BTCUSDT", Price: 51000, Timestamp: "2024-05-01T10:00:05Z"}))
	// older timestamp arriving later does not win
	assert.False(t, e.ApplyTick(models.Tick{Symbol: "BTCUSDT", Price: 49000, Timestamp: "2024-05-01T10:00:00Z"}))

	row, ok := e.Row("BTCUSDT")
	require.True(t, ok)
	require.NotNil(t, row.CurrentPrice)
	assert.Equal(t, 51000.0, *row.CurrentPrice)
	assert.Equal(t, "2024-05-01T10:00:05Z", row.TickTimestamp)
}

func TestEqualTimestampLastArrivalWins(t *testing.T) {
	e := NewEnricher()
	e.ApplyHolding(models.Holding{Symbol: "ETHUSDT", Quantity: 2, PurchasePrice: 3000})

	e.ApplyTick(models.Tick{Symbol: "ETHUSDT", Price: 3100, Timestamp: "1714557600"})
	e.ApplyTick(models.Tick{Symbol: "ETHUSDT", Price: 3200, Timestamp: "1714557600"})

	row, _ := e.Row("ETHUSDT")
	require.NotNil(t, row.CurrentPrice)
	assert.Equal(t, 3200.0, *row.CurrentPrice)
}

func TestNewsMeanAndLatestHeadline(t *testing.T) {
	e := NewEnricher()
	e.ApplyHolding(models.Holding{Symbol: "TSLA", Quantity: 1, PurchasePrice: 200})

	e.ApplyNews(models.NewsItem{Symbol: "TSLA", Sentiment: 0.2, Headline: "old", Timestamp: "2024-05-01T09:00:00Z"})
	e.ApplyNews(models.NewsItem{Symbol: "TSLA", Sentiment: 0.8, Headline: "new", Timestamp: "2024-05-01T10:00:00Z"})
	e.ApplyNews(models.NewsItem{Symbol: "TSLA", Sentiment: 0.5, Headline: "late but older", Timestamp: "2024-05-01T08:00:00Z"})

	row, _ := e.Row("TSLA")
	require.NotNil(t, row.Sentiment)
	assert.InDelta(t, 0.5, *row.Sentiment, 1e-9)
	require.NotNil(t, row.Headline)
	assert.Equal(t, "new", *row.Headline)
	assert.Equal(t, "2024-05-01T10:00:00Z", row.NewsTimestamp)

	summaries := e.News()
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Count)
}

func TestFactsBeforeHoldingAreJoined(t *testing.T) {
	e := NewEnricher()
	e.ApplyTick(models.Tick{Symbol: "AAPL", Price: 190, Timestamp: "2024-05-01T10:00:00Z"})
	e.ApplyNews(models.NewsItem{Symbol: "AAPL", Sentiment: 0.6, Headline: "h"})
	assert.Empty(t, e.Snapshot())

	e.ApplyHolding(models.Holding{Symbol: "AAPL", Quantity: 1, PurchasePrice: 180})
	row, ok := e.Row("AAPL")
	require.True(t, ok)
	require.NotNil(t, row.CurrentPrice)
	assert.Equal(t, 190.0, *row.CurrentPrice)
	require.NotNil(t, row.Sentiment)
	assert.Equal(t, 0.6, *row.Sentiment)
}

func TestTickOnlyTouchesItsSymbol(t *testing.T) {
	e := NewEnricher()
	e.ApplyHolding(models.Holding{Symbol: "AAPL", Quantity: 1, PurchasePrice: 180})
	e.ApplyHolding(models.Holding{Symbol: "TSLA", Quantity: 1, PurchasePrice: 200})

	e.ApplyTick(models.Tick{Symbol: "AAPL", Price: 190, Timestamp: "2024-05-01T10:00:00Z"})

	rows := e.Snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.NotNil(t, rows[0].CurrentPrice)
	assert.Equal(t, "TSLA", rows[1].Symbol)
	assert.Nil(t, rows[1].CurrentPrice)
}

func TestReplayIsIdempotent(t *testing.T) {
	holdings := []models.Holding{
		{Symbol: "AAPL", Quantity: 1, PurchasePrice: 180},
		{Symbol: "BTCUSDT", Quantity: 2, PurchasePrice: 50000},
	}
	ticks := []models.Tick{
		{Symbol: "AAPL", Price: 185, Timestamp: "2024-05-01T10:00:00Z", Source: "yahoo"},
		{Symbol: "BTCUSDT", Price: 51000, Timestamp: "1714557600000", Source: "binance"},
		{Symbol: "AAPL", Price: 186, Timestamp: "2024-05-01T10:01:00Z", Source: "yahoo"},
	}
	news := []models.NewsItem{
		{Symbol: "AAPL", Sentiment: 0.25, Headline: "a", Timestamp: "2024-05-01T10:00:00Z"},
		{Symbol: "AAPL", Sentiment: 0.75, Headline: "b", Timestamp: "2024-05-01T10:02:00Z"},
	}
	apply := func(e *Enricher) {
		for _, h := range holdings {
			e.ApplyHolding(h)
		}
		for _, tk := range ticks {
			e.ApplyTick(tk)
		}
		for _, n := range news {
			e.ApplyNews(n)
		}
	}

	first := NewEnricher()
	apply(first)
	second := NewEnricher()
	apply(second)
	assert.Equal(t, first.Snapshot(), second.Snapshot())

	// reapplying the same facts leaves the view unchanged
	before := first.Snapshot()
	apply(first)
	assert.Equal(t, before, first.Snapshot())
}

func TestLatestTickFromSource(t *testing.T) {
	e := NewEnricher()
	e.ApplyTick(models.Tick{Symbol: "BTCUSDT", Price: 50000, Timestamp: "2024-05-01T10:00:00Z", Source: "coingecko"})
	e.ApplyTick(models.Tick{Symbol: "BTCUSDT", Price: 50500, Timestamp: "2024-05-01T10:00:01Z", Source: "binance"})

	tk, ok := e.LatestTickFrom("CoinGecko", "btcusdt")
	require.True(t, ok)
	assert.Equal(t, 50000.0, tk.Price)

	_, ok = e.LatestTickFrom("chainlink", "BTCUSDT")
	assert.False(t, ok)

	latest, ok := e.LatestTick("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 50500.0, latest.Price)
}

func TestDataflowRun(t *testing.T) {
	e := NewEnricher()
	d := NewDataflow(e, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Holdings() <- models.Holding{Symbol: "AAPL", Quantity: 1, PurchasePrice: 100}
	d.Holdings() <- models.Holding{Symbol: "BAD", Quantity: -1, PurchasePrice: 100}
	d.Ticks() <- models.Tick{Symbol: "AAPL", Price: 101, Timestamp: "2024-05-01T10:00:00Z"}

	assert.Eventually(t, func() bool {
		row, ok := e.Row("AAPL")
		return ok && row.CurrentPrice != nil
	}, time.Second, 10*time.Millisecond)
	_, ok := e.Row("BAD")
	assert.False(t, ok)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTailJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.jsonl")
	out := make(chan models.Holding, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = TailJSONL(ctx, path, out, zerolog.Nop()) }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(`{"symbol":"AAPL","quantity":2,"price":150}` + "\n" + "not json\n" + `{"symbol":"TSLA","quantity":1,"purchase_price":200}` + "\n")
	require.NoError(t, err)

	var got []models.Holding
	for len(got) < 2 {
		select {
		case h := <-out:
			got = append(got, h)
		case <-time.After(5 * time.Second):
			t.Fatalf("tail produced %d holdings", len(got))
		}
	}
	assert.Equal(t, models.Holding{Symbol: "AAPL", Quantity: 2, PurchasePrice: 150}, got[0])
	assert.Equal(t, models.Holding{Symbol: "TSLA", Quantity: 1, PurchasePrice: 200}, got[1])
}

func TestReplayFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	portfolio := write("portfolio.jsonl", `{"symbol":"BTCUSDT","quantity":2,"price":50000}
{"symbol":"BAD","quantity":1,"purchase_price":-1}
{"symbol":"AAPL","quantity":-5,"price":100}
not json
`)
	ticks := write("ticks.jsonl", `{"symbol":"BTCUSDT","price":51000,"timestamp":"1700000000","source":"coingecko"}
{"symbol":"BTCUSDT","price":49000,"timestamp":"1690000000","source":"coingecko"}
`)

	e := NewEnricher()
	n, err := Replay(e, portfolio, ticks, filepath.Join(dir, "missing.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := e.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "BTCUSDT", rows[0].Symbol)
	assert.Equal(t, 50000.0, rows[0].PurchasePrice)
	require.NotNil(t, rows[0].CurrentPrice)
	assert.Equal(t, 51000.0, *rows[0].CurrentPrice)
	assert.Nil(t, rows[0].Sentiment)
}

func TestAppendJSONLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ticks.jsonl")
	require.NoError(t, AppendJSONL(path, models.Tick{Symbol: "ETHUSDT", Price: 3000, Timestamp: "1", Source: "binance"}))
	require.NoError(t, AppendJSONL(path, models.Tick{Symbol: "ETHUSDT", Price: 3010, Timestamp: "2", Source: "binance"}))

	ticks, err := ReadJSONL[models.Tick](path)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, 3010.0, ticks[1].Price)
}
