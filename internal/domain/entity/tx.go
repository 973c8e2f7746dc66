package entity

// TxStatus mirrors the receipt status.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxSuccess TxStatus = "success"
	TxFailed  TxStatus = "failed"
)

// TxResult is returned by every mutating contract action once the
// transaction is included.
type TxResult struct {
	Hash        string   `json:"hash"`
	BlockNumber uint64   `json:"blockNumber"`
	GasUsed     uint64   `json:"gasUsed"`
	Status      TxStatus `json:"status"`
}
