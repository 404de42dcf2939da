// Package bridge defines the settlement adapter contract through which the
// underlying asset itself moves between chains, independent of message
// content. The adapter is an external collaborator: this package specifies the
// interface and ships an in-memory implementation for the sim mode and tests.
package bridge

import "context"

// Adapter moves the underlying asset between chains with burn-on-source /
// mint-on-destination semantics.
type Adapter interface {
	// BurnAndSend burns amount on the local chain and initiates settlement to
	// recipient on the destination chain. It returns a transfer id for
	// reconciliation.
	BurnAndSend(ctx context.Context, amount int64, destChainID uint32, recipient string) (transferID string, err error)

	// ReceiveAndMint finalizes an inbound settlement identified by proof and
	// returns the minted amount.
	ReceiveAndMint(ctx context.Context, proof []byte) (amount int64, err error)
}
