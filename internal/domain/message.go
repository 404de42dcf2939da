package domain

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageType identifies the cross-chain message kind.
type MessageType uint8

const (
	MsgDepositRequest MessageType = iota + 1
	MsgWithdrawalRequest
	MsgYieldReport
	MsgRebalanceCommand
	MsgEmergencyPause
	MsgEmergencyUnpause
	MsgEmergencyWithdrawAll
)

// String returns the wire name for the message type.
func (t MessageType) String() string {
	switch t {
	case MsgDepositRequest:
		return "deposit_request"
	case MsgWithdrawalRequest:
		return "withdrawal_request"
	case MsgYieldReport:
		return "yield_report"
	case MsgRebalanceCommand:
		return "rebalance_command"
	case MsgEmergencyPause:
		return "emergency_pause"
	case MsgEmergencyUnpause:
		return "emergency_unpause"
	case MsgEmergencyWithdrawAll:
		return "emergency_withdraw_all"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether the type is a known message type.
func (t MessageType) Valid() bool {
	return t >= MsgDepositRequest && t <= MsgEmergencyWithdrawAll
}

// CrossChainMessage is an immutable, typed instruction or report exchanged
// between the home ledger and child vaults. It is identified by a
// content-derived ID used for duplicate-delivery detection.
type CrossChainMessage struct {
	Type          MessageType `json:"type"`
	SourceChainID uint32      `json:"source_chain_id"`
	TargetChainID uint32      `json:"target_chain_id"`
	TargetAddress string      `json:"target_address"`
	Payload       []byte      `json:"payload"`
	Nonce         uint64      `json:"nonce"`
	Timestamp     int64       `json:"timestamp"` // unix seconds
}

// ID returns the content-derived message identifier: the keccak-256 hash of
// the canonical field encoding. Two deliveries of the same message always
// produce the same ID; distinct nonces always produce distinct IDs.
func (m CrossChainMessage) ID() string {
	buf := make([]byte, 0, 64+len(m.Payload)+len(m.TargetAddress))
	buf = append(buf, byte(m.Type))
	buf = binary.BigEndian.AppendUint32(buf, m.SourceChainID)
	buf = binary.BigEndian.AppendUint32(buf, m.TargetChainID)
	buf = append(buf, []byte(m.TargetAddress)...)
	buf = binary.BigEndian.AppendUint64(buf, m.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.Timestamp))
	buf = append(buf, m.Payload...)
	return crypto.Keccak256Hash(buf).Hex()
}

// ---------------------------------------------------------------------------
// Typed payloads. Encoded as JSON on the wire; each has a Decode counterpart
// on the messaging codec.
// ---------------------------------------------------------------------------

// DepositRequestPayload instructs a child vault to invest bridged capital.
type DepositRequestPayload struct {
	Amount int64 `json:"amount"`
}

// WithdrawalPayload is used in both directions: home -> child it requests a
// liquidation; child -> home it reports the settled amount returning to the
// buffer.
type WithdrawalPayload struct {
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
}

// YieldReportPayload carries a child vault's trailing APY and total value.
type YieldReportPayload struct {
	APYBps     int64 `json:"apy_bps"`
	TotalValue int64 `json:"total_value"`
}

// RebalanceCommandPayload instructs a child to release capital for
// redeployment on another chain.
type RebalanceCommandPayload struct {
	Amount        int64  `json:"amount"`
	TargetChainID uint32 `json:"target_chain_id"`
}

// EmergencyPayload optionally carries a human-readable reason.
type EmergencyPayload struct {
	Reason string `json:"reason,omitempty"`
}

// MarshalPayload encodes a typed payload for embedding in a message.
func MarshalPayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal payload: %w", err)
	}
	return data, nil
}

// ValidAddress reports whether s is a well-formed hex address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// MessageAge returns how long ago the message was created.
func MessageAge(m CrossChainMessage, now time.Time) time.Duration {
	return now.Sub(time.Unix(m.Timestamp, 0))
}
