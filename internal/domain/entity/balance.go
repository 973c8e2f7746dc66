package entity

// TokenBalance is one row of the balances view.
type TokenBalance struct {
	Symbol   string   `json:"symbol"`
	Balance  string   `json:"balance"`
	ValueUSD *float64 `json:"valueUsd,omitempty"`
}

// BalancesState is replaced as a whole on every load.
type BalancesState struct {
	Account  string         `json:"account,omitempty"`
	ChainID  uint64         `json:"chainId,omitempty"`
	Balances []TokenBalance `json:"balances"`
	Loading  bool           `json:"loading"`
	Error    string         `json:"error,omitempty"`
}

// Balance returns the balance string for symbol, "0" when absent.
func (s BalancesState) Balance(symbol string) string {
	for _, b := range s.Balances {
		if b.Symbol == symbol {
			return b.Balance
		}
	}
	return "0"
}

// TotalValueUSD sums the known USD values.
func (s BalancesState) TotalValueUSD() float64 {
	var total float64
	for _, b := range s.Balances {
		if b.ValueUSD != nil {
			total += *b.ValueUSD
		}
	}
	return total
}
