package entity

import "time"

// TxType labels a history entry.
type TxType string

const (
	TxTypeStake        TxType = "Stake"
	TxTypeUnstake      TxType = "Unstake"
	TxTypeHarvest      TxType = "Harvest"
	TxTypeSwap         TxType = "Swap"
	TxTypeSupply       TxType = "Supply"
	TxTypeBorrow       TxType = "Borrow"
	TxTypeRepay        TxType = "Repay"
	TxTypePoolStake    TxType = "StakePool"
	TxTypePoolUnstake  TxType = "UnstakePool"
	TxTypeClaimRewards TxType = "ClaimRewards"
)

// Transaction is one entry of the reconstructed history feed.
type Transaction struct {
	Type        TxType    `json:"type"`
	Amount      string    `json:"amount"`
	Asset       string    `json:"asset"`
	Hash        string    `json:"hash"`
	BlockNumber uint64    `json:"blockNumber"`
	LogIndex    uint      `json:"logIndex"`
	Timestamp   time.Time `json:"timestamp"`
	Status      TxStatus  `json:"status"`
}

// PositionType groups portfolio rows.
type PositionType string

const (
	PositionStaking  PositionType = "Staking"
	PositionHoldings PositionType = "Holdings"
	PositionFarming  PositionType = "Farming"
)

// Position is one row of the portfolio.
type Position struct {
	Asset    string       `json:"asset"`
	Type     PositionType `json:"type"`
	Amount   string       `json:"amount"`
	ValueUSD float64      `json:"valueUsd"`
	APY      string       `json:"apy,omitempty"`
}

// PortfolioSnapshot aggregates the other feature states at one point in time.
type PortfolioSnapshot struct {
	Account       string         `json:"account,omitempty"`
	Balances      []TokenBalance `json:"balances"`
	Staking       StakingState   `json:"staking"`
	Farms         []FarmView     `json:"farms"`
	Positions     []Position     `json:"positions"`
	TotalValueUSD float64        `json:"totalValueUsd"`
	TotalEarnings float64        `json:"totalEarnings"`
	Transactions  []Transaction  `json:"transactions"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Loading       bool           `json:"loading"`
	Error         string         `json:"error,omitempty"`
}
