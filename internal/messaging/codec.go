package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/omnivault/omnivault/internal/domain"
)

// decodePayload unmarshals a message payload into dst, wrapping failures with
// the message type for diagnostics.
func decodePayload(msg domain.CrossChainMessage, dst any) error {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("messaging: decode %s payload: %w", msg.Type, err)
	}
	return nil
}

// DecodeDepositRequest extracts the typed payload from a deposit request.
func DecodeDepositRequest(msg domain.CrossChainMessage) (domain.DepositRequestPayload, error) {
	var p domain.DepositRequestPayload
	err := decodePayload(msg, &p)
	return p, err
}

// DecodeWithdrawal extracts the typed payload from a withdrawal message.
func DecodeWithdrawal(msg domain.CrossChainMessage) (domain.WithdrawalPayload, error) {
	var p domain.WithdrawalPayload
	err := decodePayload(msg, &p)
	return p, err
}

// DecodeYieldReport extracts the typed payload from a yield report.
func DecodeYieldReport(msg domain.CrossChainMessage) (domain.YieldReportPayload, error) {
	var p domain.YieldReportPayload
	err := decodePayload(msg, &p)
	return p, err
}

// DecodeRebalanceCommand extracts the typed payload from a rebalance command.
func DecodeRebalanceCommand(msg domain.CrossChainMessage) (domain.RebalanceCommandPayload, error) {
	var p domain.RebalanceCommandPayload
	err := decodePayload(msg, &p)
	return p, err
}

// DecodeEmergency extracts the optional reason from an emergency message.
// Empty payloads are valid.
func DecodeEmergency(msg domain.CrossChainMessage) (domain.EmergencyPayload, error) {
	var p domain.EmergencyPayload
	if len(msg.Payload) == 0 {
		return p, nil
	}
	err := decodePayload(msg, &p)
	return p, err
}
