package domain

import "errors"

var (
	// Configuration errors: rejected before any state change.
	ErrZeroAmount     = errors.New("amount must be positive")
	ErrInvalidAddress = errors.New("invalid address")
	ErrUnknownChain   = errors.New("chain not configured")

	// Authorization errors.
	ErrUnauthorized    = errors.New("caller lacks required role")
	ErrUntrustedOrigin = errors.New("untrusted message origin")
	ErrUntrustedSender = errors.New("untrusted message sender")

	// State errors: rejected with a specific reason.
	ErrDepositCapExceeded   = errors.New("deposit cap exceeded")
	ErrCooldownActive       = errors.New("rebalance cooldown active")
	ErrRebalanceInFlight    = errors.New("rebalance already in flight for source chain")
	ErrChildNotActive       = errors.New("child vault not active")
	ErrChildAlreadyActive   = errors.New("child vault already onboarded")
	ErrInsufficientBuffer   = errors.New("insufficient buffer")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrPaused               = errors.New("emergency pause active")
	ErrTimelockActive       = errors.New("fee timelock has not elapsed")
	ErrNoPendingFeeUpdate   = errors.New("no pending fee update")
	ErrFeeCapExceeded       = errors.New("fee exceeds cap")
	ErrDepositLimitExceeded = errors.New("deposit exceeds child limit")
	ErrBelowMinLiquidity    = errors.New("strategy liquidity below minimum")
	ErrSnapshotTooSoon      = errors.New("snapshot interval has not elapsed")
	ErrSlippageTooHigh      = errors.New("slippage tolerance above hard ceiling")

	// Messaging errors.
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrNoHandler          = errors.New("no handler registered for message type")

	// Settlement errors: surfaced via the failure log, never as a silent
	// accounting correction.
	ErrSettlementFailed = errors.New("bridge settlement failed")

	// Generic store errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)
