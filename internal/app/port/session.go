package port

import (
	"kaia_defi/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// Session is an immutable snapshot of the wallet connection together with
// the chain handles derived for it. Address and Signer are set together.
type Session struct {
	entity.SessionView
	Backend ChainBackend
	Signer  Signer
}

// IsConnected reports whether actions may be attempted with this session.
func (s Session) IsConnected() bool {
	return s.State == entity.StateConnected && s.Address != "" && s.Signer != nil
}

// Account returns the session address.
func (s Session) Account() common.Address {
	return common.HexToAddress(s.Address)
}

// SessionSource exposes the current session to feature services.
type SessionSource interface {
	Current() Session
}
