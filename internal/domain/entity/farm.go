package entity

// RiskTier is derived from a farm's allocation points.
type RiskTier string

const (
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

// FarmPoolInfo is the raw farm pool record.
type FarmPoolInfo struct {
	LPToken        string `json:"lpToken"`
	RewardToken    string `json:"rewardToken"`
	AllocPoint     uint64 `json:"allocPoint"`
	TotalStaked    string `json:"totalStaked"`
	RewardPerBlock string `json:"rewardPerBlock"`
	Name           string `json:"name"`
	Active         bool   `json:"active"`
}

// FarmUserInfo is a user's position in one farm pool.
type FarmUserInfo struct {
	Amount         string `json:"amount"`
	RewardDebt     string `json:"rewardDebt"`
	PendingRewards string `json:"pendingRewards"`
}

// FarmView is one farm as shown to users. Error is set when the pool
// could not be read; the other fields are then zero.
type FarmView struct {
	ID          uint64   `json:"id"`
	Pair        string   `json:"pair"`
	APY         string   `json:"apy"`
	TVL         string   `json:"tvl"`
	Earned      string   `json:"earned"`
	Staked      string   `json:"staked"`
	Multiplier  string   `json:"multiplier"`
	Risk        RiskTier `json:"risk"`
	LPToken     string   `json:"lpToken"`
	RewardToken string   `json:"rewardToken"`
	Active      bool     `json:"active"`
	Error       string   `json:"error,omitempty"`
}

// FarmStats summarises the whole farm list.
type FarmStats struct {
	TotalTVL        string `json:"totalTvl"`
	MaxAPY          string `json:"maxApy"`
	ActiveFarms     int    `json:"activeFarms"`
	ActivePositions int    `json:"activePositions"`
}

// FarmsState is the farms feature's whole state.
type FarmsState struct {
	Farms   []FarmView `json:"farms"`
	Stats   FarmStats  `json:"stats"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
}
