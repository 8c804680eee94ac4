package models

import "time"

// EnrichedAsset is a holding joined with the latest known price and news.
// Nil pointers mean no matching fact has arrived yet.
type EnrichedAsset struct {
	Symbol        string   `json:"symbol"`
	Quantity      int      `json:"quantity"`
	PurchasePrice float64  `json:"purchase_price"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	Sentiment     *float64 `json:"sentiment,omitempty"`
	Headline      *string  `json:"headline,omitempty"`
	TickTimestamp string   `json:"tick_timestamp,omitempty"`
	NewsTimestamp string   `json:"news_timestamp,omitempty"`
	// TickTime is the resolved clock of the tick behind CurrentPrice.
	TickTime time.Time `json:"-"`
}

func (a EnrichedAsset) HasPrice() bool     { return a.CurrentPrice != nil }
func (a EnrichedAsset) HasSentiment() bool { return a.Sentiment != nil }

type PriorityRecord struct {
	Priority float64       `json:"priority"`
	Data     EnrichedAsset `json:"data"`
}
