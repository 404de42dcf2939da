package domain

import "time"

// Signal bus channels. The ws hub subscribes to "vault:*".
const (
	ChannelDeposits    = "vault:deposits"
	ChannelWithdrawals = "vault:withdrawals"
	ChannelDeploys     = "vault:deploys"
	ChannelYield       = "vault:yield"
	ChannelRebalance   = "vault:rebalance"
	ChannelEmergency   = "vault:emergency"
	ChannelHealth      = "vault:health"
)

// VaultEvent is the JSON envelope published on the signal bus.
type VaultEvent struct {
	Event     string         `json:"event"`
	ChainID   uint32         `json:"chain_id,omitempty"`
	Amount    int64          `json:"amount,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
