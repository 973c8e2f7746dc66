package entity

// ConnectionState is the wallet connection lifecycle state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// WalletEventKind distinguishes notifications coming from the wallet.
type WalletEventKind int

const (
	AccountsChanged WalletEventKind = iota
	ChainChanged
)

// WalletEvent is a notification emitted by a wallet provider.
// ChainID carries the raw 0x-prefixed value the wallet reported.
type WalletEvent struct {
	Kind     WalletEventKind
	Accounts []string
	ChainID  string
}

// SessionEventKind names a session transition.
type SessionEventKind string

const (
	SessionConnecting     SessionEventKind = "connecting"
	SessionConnected      SessionEventKind = "connected"
	SessionDisconnected   SessionEventKind = "disconnected"
	SessionAccountChanged SessionEventKind = "accountChanged"
	SessionChainChanged   SessionEventKind = "chainChanged"
	SessionSwitching      SessionEventKind = "switchingNetwork"
	SessionNetworkPrompt  SessionEventKind = "networkPrompt"
)

// SessionView is the serialisable part of a wallet session.
type SessionView struct {
	Address          string          `json:"address,omitempty"`
	ChainID          uint64          `json:"chainId,omitempty"`
	State            ConnectionState `json:"state"`
	SwitchingNetwork bool            `json:"switchingNetwork"`
	NetworkPrompt    string          `json:"networkPrompt,omitempty"`
	SupportedNetwork bool            `json:"supportedNetwork"`
}
