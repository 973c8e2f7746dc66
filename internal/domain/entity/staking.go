package entity

// StakerInfo is the staking module's record for one account.
type StakerInfo struct {
	StakedAmount   string `json:"stakedAmount"`
	PendingRewards string `json:"pendingRewards"`
	LastUpdate     uint64 `json:"lastUpdate"`
}

// StakingState is the staking feature's whole state.
type StakingState struct {
	Staked         string `json:"staked"`
	PendingRewards string `json:"pendingRewards"`
	LastUpdate     uint64 `json:"lastUpdate"`
	TotalStaked    string `json:"totalStaked"`
	APY            string `json:"apy"`
	Loading        bool   `json:"loading"`
	Error          string `json:"error,omitempty"`
}
