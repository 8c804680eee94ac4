package stream

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dyike/CortexTrade/models"
)

type sourceKey struct {
	source string
	symbol string
}

type latestTick struct {
	tick models.Tick
	at   time.Time
}

// newsAggregate is the running mean of sentiment plus the newest headline.
type newsAggregate struct {
	sum      float64
	count    int
	latest   models.NewsItem
	latestAt time.Time
}

func (n *newsAggregate) mean() float64 {
	return n.sum / float64(n.count)
}

// NewsSummary is the reduced news view of a single symbol.
type NewsSummary struct {
	Symbol    string  `json:"symbol"`
	Sentiment float64 `json:"sentiment"`
	Count     int     `json:"count"`
	Headline  string  `json:"headline"`
	Timestamp string  `json:"timestamp"`
}

// Enricher maintains the latest-value views of ticks and news and the
// enriched portfolio rows derived from them. Every fact re-enriches only
// the row of its own symbol.
type Enricher struct {
	mu sync.RWMutex

	holdings map[string]models.Holding
	order    []string

	ticks       map[string]latestTick
	sourceTicks map[sourceKey]latestTick
	news        map[string]*newsAggregate

	rows map[string]models.EnrichedAsset

	now func() time.Time
}

func NewEnricher() *Enricher {
	return &Enricher{
		holdings:    make(map[string]models.Holding),
		ticks:       make(map[string]latestTick),
		sourceTicks: make(map[sourceKey]latestTick),
		news:        make(map[string]*newsAggregate),
		rows:        make(map[string]models.EnrichedAsset),
		now:         time.Now,
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ApplyHolding adds a holding or supersedes the previous one for its symbol.
func (e *Enricher) ApplyHolding(h models.Holding) {
	h.Symbol = normalizeSymbol(h.Symbol)
	if h.Symbol == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.holdings[h.Symbol]; !ok {
		e.order = append(e.order, h.Symbol)
	}
	e.holdings[h.Symbol] = h
	e.enrichLocked(h.Symbol)
}

// ApplyTick reduces a tick into the latest view. It reports whether the
// tick became the latest one for its symbol.
func (e *Enricher) ApplyTick(t models.Tick) bool {
	t.Symbol = normalizeSymbol(t.Symbol)
	if t.Symbol == "" {
		return false
	}
	if t.ReceivedAt.IsZero() {
		t.ReceivedAt = e.now()
	}
	at := t.Time()

	e.mu.Lock()
	defer e.mu.Unlock()

	if t.Source != "" {
		key := sourceKey{source: strings.ToLower(t.Source), symbol: t.Symbol}
		if cur, ok := e.sourceTicks[key]; !ok || !at.Before(cur.at) {
			e.sourceTicks[key] = latestTick{tick: t, at: at}
		}
	}

	cur, ok := e.ticks[t.Symbol]
	if ok && at.Before(cur.at) {
		return false
	}
	e.ticks[t.Symbol] = latestTick{tick: t, at: at}
	e.enrichLocked(t.Symbol)
	return true
}

// ApplyNews folds a news item into the running mean for its symbol.
func (e *Enricher) ApplyNews(n models.NewsItem) {
	n.Symbol = normalizeSymbol(n.Symbol)
	if n.Symbol == "" {
		return
	}
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = e.now()
	}
	at := n.Time()

	e.mu.Lock()
	defer e.mu.Unlock()

	agg, ok := e.news[n.Symbol]
	if !ok {
		agg = &newsAggregate{}
		e.news[n.Symbol] = agg
	}
	agg.sum += n.Sentiment
	agg.count++
	if agg.count == 1 || !at.Before(agg.latestAt) {
		agg.latest = n
		agg.latestAt = at
	}
	e.enrichLocked(n.Symbol)
}

// enrichLocked rebuilds the row of one held symbol. Rows are replaced, never
// mutated, so snapshots may share their pointer fields.
func (e *Enricher) enrichLocked(symbol string) {
	h, ok := e.holdings[symbol]
	if !ok {
		return
	}
	row := models.EnrichedAsset{
		Symbol:        h.Symbol,
		Quantity:      h.Quantity,
		PurchasePrice: h.PurchasePrice,
	}
	if lt, ok := e.ticks[symbol]; ok {
		price := lt.tick.Price
		row.CurrentPrice = &price
		row.TickTimestamp = lt.tick.Timestamp
		row.TickTime = lt.at
	}
	if agg, ok := e.news[symbol]; ok {
		sentiment := agg.mean()
		headline := agg.latest.Headline
		row.Sentiment = &sentiment
		row.Headline = &headline
		row.NewsTimestamp = agg.latest.Timestamp
	}
	e.rows[symbol] = row
}

// Snapshot returns every enriched row in holding arrival order.
func (e *Enricher) Snapshot() []models.EnrichedAsset {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.EnrichedAsset, 0, len(e.order))
	for _, symbol := range e.order {
		out = append(out, e.rows[symbol])
	}
	return out
}

func (e *Enricher) Row(symbol string) (models.EnrichedAsset, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	row, ok := e.rows[normalizeSymbol(symbol)]
	return row, ok
}

func (e *Enricher) Holdings() []models.Holding {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Holding, 0, len(e.order))
	for _, symbol := range e.order {
		out = append(out, e.holdings[symbol])
	}
	return out
}

func (e *Enricher) LatestTick(symbol string) (models.Tick, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	lt, ok := e.ticks[normalizeSymbol(symbol)]
	return lt.tick, ok
}

// LatestTickFrom returns the newest tick of symbol emitted by one source.
func (e *Enricher) LatestTickFrom(source, symbol string) (models.Tick, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	lt, ok := e.sourceTicks[sourceKey{source: strings.ToLower(source), symbol: normalizeSymbol(symbol)}]
	return lt.tick, ok
}

// Ticks lists the latest tick of every symbol seen, sorted by symbol.
func (e *Enricher) Ticks() []models.Tick {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Tick, 0, len(e.ticks))
	for _, lt := range e.ticks {
		out = append(out, lt.tick)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (e *Enricher) News() []NewsSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]NewsSummary, 0, len(e.news))
	for symbol, agg := range e.news {
		out = append(out, NewsSummary{
			Symbol:    symbol,
			Sentiment: agg.mean(),
			Count:     agg.count,
			Headline:  agg.latest.Headline,
			Timestamp: agg.latest.Timestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
