package models

import "time"

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Actions lists every action in tie-break order: buy beats sell beats hold.
var Actions = []Action{ActionBuy, ActionSell, ActionHold}

func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

type AgentVote struct {
	Agent       string `json:"agent"`
	Action      Action `json:"action"`
	Explanation string `json:"explanation"`
	TxHash      string `json:"tx_hash,omitempty"`
}

type VoteTally struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
	Hold int `json:"hold"`
}

type Decision struct {
	ID           string      `json:"id"`
	CycleID      string      `json:"cycle_id"`
	Symbol       string      `json:"symbol"`
	Price        *float64    `json:"price,omitempty"`
	Action       Action      `json:"action"`
	Explanations []AgentVote `json:"explanations"`
	Votes        VoteTally   `json:"votes"`
	// PHS is rounded to two decimals.
	PHS       float64   `json:"phs"`
	TxHash    string    `json:"tx_hash,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}
