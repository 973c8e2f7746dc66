package entity

// Health classifies a borrow position against the liquidation threshold.
type Health string

const (
	HealthNone         Health = "none"
	HealthHealthy      Health = "healthy"
	HealthWarning      Health = "warning"
	HealthLiquidatable Health = "liquidatable"
)

// BorrowPosition is the client-side view of a prospective borrow.
type BorrowPosition struct {
	CollateralToken  string  `json:"collateralToken"`
	BorrowToken      string  `json:"borrowToken"`
	CollateralAmount string  `json:"collateralAmount"`
	BorrowAmount     string  `json:"borrowAmount"`
	LTV              float64 `json:"ltv"`
	LiquidationLTV   float64 `json:"liquidationLtv"`
	Health           Health  `json:"health"`
}

// LoanView is one loan as reported by the lending module.
type LoanView struct {
	ID               uint64 `json:"id"`
	CollateralToken  string `json:"collateralToken"`
	BorrowToken      string `json:"borrowToken"`
	CollateralAmount string `json:"collateralAmount"`
	BorrowAmount     string `json:"borrowAmount"`
	TotalOwed        string `json:"totalOwed"`
	Active           bool   `json:"active"`
}

// LendingPoolInfo is the lending module's per-token pool summary.
// Utilization is a percentage.
type LendingPoolInfo struct {
	TotalSupplied      string  `json:"totalSupplied"`
	TotalBorrowed      string  `json:"totalBorrowed"`
	AvailableLiquidity string  `json:"availableLiquidity"`
	Utilization        float64 `json:"utilization"`
}

// BorrowState is the borrow feature's whole state.
type BorrowState struct {
	Position        BorrowPosition   `json:"position"`
	MaxBorrow       string           `json:"maxBorrow"`
	BorrowAPR       float64          `json:"borrowApr"`
	Loans           []LoanView       `json:"loans"`
	Supplied        string           `json:"supplied"`
	Pool            *LendingPoolInfo `json:"pool,omitempty"`
	CollateralTypes []string         `json:"collateralTypes"`
	Loading         bool             `json:"loading"`
	Error           string           `json:"error,omitempty"`
}
