package entity

// SwapQuoteState is the swap form plus its derived quote.
// ToAmount is empty whenever the inputs changed and no quote for them resolved yet.
type SwapQuoteState struct {
	FromToken       string  `json:"fromToken"`
	ToToken         string  `json:"toToken"`
	FromAmount      string  `json:"fromAmount"`
	ToAmount        string  `json:"toAmount"`
	Slippage        float64 `json:"slippage"`
	PriceImpact     string  `json:"priceImpact"`
	ExchangeRate    string  `json:"exchangeRate"`
	GasEstimate     string  `json:"gasEstimate"`
	MinimumReceived string  `json:"minimumReceived"`
	Loading         bool    `json:"loading"`
	Error           string  `json:"error,omitempty"`
	Generation      uint64  `json:"generation"`
}

// SwapQuote is the summary handed to callers confirming a swap.
type SwapQuote struct {
	FromToken       string  `json:"fromToken"`
	ToToken         string  `json:"toToken"`
	FromAmount      string  `json:"fromAmount"`
	ToAmount        string  `json:"toAmount"`
	ExchangeRate    string  `json:"exchangeRate"`
	PriceImpact     string  `json:"priceImpact"`
	MinimumReceived string  `json:"minimumReceived"`
	Slippage        float64 `json:"slippage"`
	GasEstimate     string  `json:"gasEstimate"`
}

// PoolInfo are the exchange reserves for an ordered pair.
type PoolInfo struct {
	ReserveA       string `json:"reserveA"`
	ReserveB       string `json:"reserveB"`
	TotalLiquidity string `json:"totalLiquidity"`
}

// PoolPosition is a pair's reserves together with the account's share.
type PoolPosition struct {
	TokenA        string   `json:"tokenA"`
	TokenB        string   `json:"tokenB"`
	Pool          PoolInfo `json:"pool"`
	UserLiquidity string   `json:"userLiquidity"`
}
