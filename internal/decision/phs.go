package decision

import (
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexTrade/models"
)

const (
	valueWeight     = 0.7
	sentimentWeight = 0.3
)

// PortfolioHealth blends the portfolio value ratio with the mean known
// sentiment. Without a purchase basis it is the sentiment mean alone; with
// no known sentiment the mean is 0. The result is unrounded.
func PortfolioHealth(assets []models.EnrichedAsset) float64 {
	var current, basis, sentimentSum float64
	var sentimentCount int
	for _, a := range assets {
		q := float64(a.Quantity)
		if a.CurrentPrice != nil {
			current += *a.CurrentPrice * q
		}
		basis += a.PurchasePrice * q
		if a.Sentiment != nil {
			sentimentSum += *a.Sentiment
			sentimentCount++
		}
	}

	var sentimentMean float64
	if sentimentCount > 0 {
		sentimentMean = sentimentSum / float64(sentimentCount)
	}
	if basis <= 0 {
		return sentimentMean
	}
	return current/basis*valueWeight + sentimentMean*sentimentWeight
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
