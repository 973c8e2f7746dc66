package entity

// TokenInfo holds the details of a registered token on one network.
// Native tokens are read through the account balance; Address still points
// at the token contract used for approvals and pool routing.
type TokenInfo struct {
	ChainID     uint64 `json:"chainId"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	Native      bool   `json:"native,omitempty"`
	Description string `json:"description,omitempty"`
}

// TokenMetadata is what a token contract reports about itself.
type TokenMetadata struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}
