package decision

import "github.com/dyike/CortexTrade/models"

func Count(votes []models.AgentVote) models.VoteTally {
	var t models.VoteTally
	for _, v := range votes {
		add(&t, v.Action)
	}
	return t
}

func add(t *models.VoteTally, action models.Action) {
	switch action {
	case models.ActionBuy:
		t.Buy++
	case models.ActionSell:
		t.Sell++
	default:
		t.Hold++
	}
}

func countOf(t models.VoteTally, action models.Action) int {
	switch action {
	case models.ActionBuy:
		return t.Buy
	case models.ActionSell:
		return t.Sell
	default:
		return t.Hold
	}
}

// Winner returns the action with the strictly greatest count. Ties go to the
// earlier action in buy, sell, hold order.
func Winner(t models.VoteTally) models.Action {
	best := models.Actions[0]
	for _, a := range models.Actions[1:] {
		if countOf(t, a) > countOf(t, best) {
			best = a
		}
	}
	return best
}
