package agents

import (
	"strings"

	"github.com/dyike/CortexTrade/models"
)

// Classify maps a free-text recommendation to an action. "buy" is checked
// before "sell", so a response naming both is a buy.
func Classify(text string) models.Action {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "buy"):
		return models.ActionBuy
	case strings.Contains(lower, "sell"):
		return models.ActionSell
	default:
		return models.ActionHold
	}
}
