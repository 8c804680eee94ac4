package decision

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexTrade/models"
)

// PriceSource resolves the latest tick a given source emitted for a symbol.
type PriceSource interface {
	LatestTickFrom(source, symbol string) (models.Tick, bool)
}

// Arbitrage compares the oracle reference price with the secondary feed's
// price for the asset itself.
type Arbitrage struct {
	Threshold       float64
	Keyword         string
	OracleSymbol    string
	OracleSource    string
	SecondarySource string
}

type Signal struct {
	Fire           bool
	OraclePrice    float64
	SecondaryPrice float64
}

func DefaultArbitrage() Arbitrage {
	return Arbitrage{
		Threshold:       0.05,
		Keyword:         "btc",
		OracleSymbol:    "ETH/USD",
		OracleSource:    "chainlink",
		SecondarySource: "coingecko",
	}
}

// Applies reports whether the symbol is subject to the check at all.
func (a Arbitrage) Applies(symbol string) bool {
	return a.Keyword != "" && strings.Contains(strings.ToLower(symbol), strings.ToLower(a.Keyword))
}

// Check fires when the oracle price exceeds the secondary price by more than
// the threshold. It never fires when either price is unknown.
func (a Arbitrage) Check(prices PriceSource, symbol string) Signal {
	if !a.Applies(symbol) {
		return Signal{}
	}
	oracle, ok := prices.LatestTickFrom(a.OracleSource, a.OracleSymbol)
	if !ok {
		return Signal{}
	}
	secondary, ok := prices.LatestTickFrom(a.SecondarySource, symbol)
	if !ok {
		return Signal{}
	}

	limit := decimal.NewFromFloat(secondary.Price).Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(a.Threshold)))
	return Signal{
		Fire:           decimal.NewFromFloat(oracle.Price).GreaterThan(limit),
		OraclePrice:    oracle.Price,
		SecondaryPrice: secondary.Price,
	}
}

func (a Arbitrage) Explain(s Signal) string {
	return fmt.Sprintf("Arbitrage: %s %s (%s) > %s (%s) by >%s%%.",
		sourceName(a.OracleSource), a.OracleSymbol, formatPrice(s.OraclePrice),
		sourceName(a.SecondarySource), formatPrice(s.SecondaryPrice),
		decimal.NewFromFloat(a.Threshold).Mul(decimal.NewFromInt(100)).String())
}

func sourceName(tag string) string {
	switch strings.ToLower(tag) {
	case "chainlink":
		return "Chainlink"
	case "coingecko":
		return "CoinGecko"
	}
	return tag
}
