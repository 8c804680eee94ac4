package priority

import (
	"math"
	"time"

	"github.com/dyike/CortexTrade/models"
)

const (
	DefaultSentiment = 0.5
	DeviationWeight  = 10.0
	FreshnessBonus   = 1.0
	DefaultWindow    = 300 * time.Second
)

// Scorer weights enriched rows for retrieval ranking.
type Scorer struct {
	Window time.Duration
	Now    func() time.Time
}

func NewScorer(window time.Duration) *Scorer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scorer{Window: window, Now: time.Now}
}

// Score is sentiment (0.5 when unknown) plus ten times the relative deviation
// from the purchase basis plus a bonus for a tick younger than the window.
// Rows without a basis or a current price skip the deviation term.
func (s *Scorer) Score(a models.EnrichedAsset) float64 {
	p := DefaultSentiment
	if a.Sentiment != nil {
		p = *a.Sentiment
	}
	if a.CurrentPrice != nil && a.PurchasePrice > 0 {
		p += DeviationWeight * math.Abs(*a.CurrentPrice-a.PurchasePrice) / a.PurchasePrice
	}
	if s.fresh(a) {
		p += FreshnessBonus
	}
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	return p
}

func (s *Scorer) fresh(a models.EnrichedAsset) bool {
	if a.CurrentPrice == nil || a.TickTime.IsZero() {
		return false
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().Sub(a.TickTime) < s.Window
}

func (s *Scorer) Record(a models.EnrichedAsset) models.PriorityRecord {
	return models.PriorityRecord{Priority: s.Score(a), Data: a}
}

func (s *Scorer) Records(assets []models.EnrichedAsset) []models.PriorityRecord {
	out := make([]models.PriorityRecord, 0, len(assets))
	for _, a := range assets {
		out = append(out, s.Record(a))
	}
	return out
}
