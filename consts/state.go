package consts

// Feed source tags carried on every tick.
const (
	SourceAlphaVantage = "alphavantage"
	SourceYahoo        = "yahoo"
	SourceLongport     = "longport"
	SourceBinance      = "binance"
	SourceCoinGecko    = "coingecko"
	SourceChainlink    = "chainlink"
)

const (
	Status_OK    = "ok"
	Status_Error = "error"
)
