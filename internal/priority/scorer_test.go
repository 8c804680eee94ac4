package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/CortexTrade/models"
)

func ptr(v float64) *float64 { return &v }

func TestScore(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := &Scorer{Window: 300 * time.Second, Now: func() time.Time { return now }}

	cases := []struct {
		name  string
		asset models.EnrichedAsset
		want  float64
	}{
		{
			name:  "nothing known",
			asset: models.EnrichedAsset{Symbol: "AAPL", PurchasePrice: 100},
			want:  0.5,
		},
		{
			name: "deviation and freshness",
			asset: models.EnrichedAsset{
				PurchasePrice: 100, CurrentPrice: ptr(110), Sentiment: ptr(0.8),
				TickTime: now.Add(-10 * time.Second),
			},
			want: 0.8 + 1.0 + 1.0,
		},
		{
			name: "downside counts the same",
			asset: models.EnrichedAsset{
				PurchasePrice: 100, CurrentPrice: ptr(95), Sentiment: ptr(0.2),
				TickTime: now.Add(-time.Hour),
			},
			want: 0.2 + 0.5,
		},
		{
			name: "zero purchase price skips deviation",
			asset: models.EnrichedAsset{
				PurchasePrice: 0, CurrentPrice: ptr(42),
				TickTime: now.Add(-time.Minute),
			},
			want: 0.5 + 1.0,
		},
		{
			name: "exactly at window is stale",
			asset: models.EnrichedAsset{
				PurchasePrice: 0, CurrentPrice: ptr(42), Sentiment: ptr(0.3),
				TickTime: now.Add(-300 * time.Second),
			},
			want: 0.3,
		},
		{
			name:  "negative sentiment clamps to zero",
			asset: models.EnrichedAsset{Sentiment: ptr(-0.4)},
			want:  0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, s.Score(tc.asset), 1e-9)
		})
	}
}

func TestScoreMonotonicInDeviation(t *testing.T) {
	s := NewScorer(0)
	small := models.EnrichedAsset{PurchasePrice: 100, CurrentPrice: ptr(101)}
	large := models.EnrichedAsset{PurchasePrice: 100, CurrentPrice: ptr(120)}
	assert.Greater(t, s.Score(large), s.Score(small))
}

func TestRecords(t *testing.T) {
	s := NewScorer(time.Minute)
	recs := s.Records([]models.EnrichedAsset{{Symbol: "A"}, {Symbol: "B", Sentiment: ptr(0.9)}})
	assert.Len(t, recs, 2)
	assert.Equal(t, "B", recs[1].Data.Symbol)
	assert.InDelta(t, 0.9, recs[1].Priority, 1e-9)
}
