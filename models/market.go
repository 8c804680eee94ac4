package models

import (
	"encoding/json"
	"time"
)

// Tick is one (symbol, price) observation from a price feed.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
	// Source identifies the feed that produced the tick, e.g. "coingecko".
	Source string `json:"source,omitempty"`
	// ReceivedAt is stamped on ingestion and orders ticks whose timestamp can't be parsed.
	ReceivedAt time.Time `json:"-"`
}

// Time returns the source clock when it parses, otherwise the arrival time.
func (t Tick) Time() time.Time {
	if ts, ok := ParseTimestamp(t.Timestamp); ok {
		return ts
	}
	return t.ReceivedAt
}

type NewsItem struct {
	Symbol     string    `json:"symbol"`
	Sentiment  float64   `json:"sentiment"`
	Headline   string    `json:"headline"`
	Timestamp  string    `json:"timestamp"`
	ReceivedAt time.Time `json:"-"`
}

func (n NewsItem) Time() time.Time {
	if ts, ok := ParseTimestamp(n.Timestamp); ok {
		return ts
	}
	return n.ReceivedAt
}

// Holding is a portfolio position basis. Quantity and PurchasePrice are never
// negative once validated.
type Holding struct {
	Symbol        string  `json:"symbol"`
	Quantity      int     `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
}

// Valid reports whether the holding can enter the portfolio view.
func (h Holding) Valid() bool {
	return h.Symbol != "" && h.Quantity >= 0 && h.PurchasePrice >= 0
}

// UnmarshalJSON accepts the uploader's "price" column as an alias of purchase_price.
func (h *Holding) UnmarshalJSON(data []byte) error {
	var raw struct {
		Symbol        string   `json:"symbol"`
		Quantity      int      `json:"quantity"`
		PurchasePrice *float64 `json:"purchase_price"`
		Price         *float64 `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Symbol = raw.Symbol
	h.Quantity = raw.Quantity
	h.PurchasePrice = 0
	switch {
	case raw.PurchasePrice != nil:
		h.PurchasePrice = *raw.PurchasePrice
	case raw.Price != nil:
		h.PurchasePrice = *raw.Price
	}
	return nil
}
