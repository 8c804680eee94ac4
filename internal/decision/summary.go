package decision

import (
	"fmt"
	"strconv"

	"github.com/dyike/CortexTrade/models"
)

const unknown = "unknown"

// Summary is the situation text handed to every persona.
func Summary(a models.EnrichedAsset, phs float64) string {
	current, sentiment, headline := unknown, unknown, unknown
	if a.CurrentPrice != nil {
		current = formatPrice(*a.CurrentPrice)
	}
	if a.Sentiment != nil {
		sentiment = strconv.FormatFloat(*a.Sentiment, 'f', -1, 64)
	}
	if a.Headline != nil && *a.Headline != "" {
		headline = *a.Headline
	}
	return fmt.Sprintf("Current Price: %s, Purchase Price: %s, Sentiment: %s, News: %s, PHS: %s",
		current, formatPrice(a.PurchasePrice), sentiment, headline, strconv.FormatFloat(Round2(phs), 'f', 2, 64))
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
