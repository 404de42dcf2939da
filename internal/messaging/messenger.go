// Package messaging implements the cross-chain messenger: an authenticated,
// idempotent message transport between the home ledger and child vaults.
// Outbound messages are nonce-stamped and dispatched through a Transport;
// inbound messages pass origin and sender verification plus duplicate
// detection before reaching a typed handler.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omnivault/omnivault/internal/domain"
)

// HandlerFunc processes one verified, deduplicated inbound message.
type HandlerFunc func(ctx context.Context, msg domain.CrossChainMessage) error

// Remote describes a trusted counterpart on another chain.
type Remote struct {
	ChainID uint32
	// Address is the trusted counterpart address; inbound messages from this
	// chain must originate from it.
	Address string
}

// Messenger is the sole entry and exit point for cross-chain messages on one
// chain. It is safe for concurrent use.
type Messenger struct {
	chainID   uint32
	localAddr string
	transport Transport
	store     domain.MessageStore
	failedOps domain.FailedOpStore
	logger    *slog.Logger

	mu       sync.RWMutex
	remotes  map[uint32]Remote
	handlers map[domain.MessageType]HandlerFunc

	now func() time.Time
}

// New creates a Messenger for the given local chain and address. failedOps
// may be nil; handler failures are then only logged.
func New(
	chainID uint32,
	localAddr string,
	transport Transport,
	store domain.MessageStore,
	failedOps domain.FailedOpStore,
	logger *slog.Logger,
) *Messenger {
	return &Messenger{
		chainID:   chainID,
		localAddr: localAddr,
		transport: transport,
		store:     store,
		failedOps: failedOps,
		logger:    logger.With(slog.String("component", "messenger")),
		remotes:   make(map[uint32]Remote),
		handlers:  make(map[domain.MessageType]HandlerFunc),
		now:       time.Now,
	}
}

// AddRemote registers a trusted counterpart for a chain. Messages to or from
// an unregistered chain are rejected.
func (m *Messenger) AddRemote(r Remote) error {
	if !domain.ValidAddress(r.Address) {
		return fmt.Errorf("messenger: remote %d address %q: %w", r.ChainID, r.Address, domain.ErrInvalidAddress)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remotes[r.ChainID] = r
	return nil
}

// RemoveRemote drops the trusted counterpart for a chain.
func (m *Messenger) RemoveRemote(chainID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.remotes, chainID)
}

// RegisterHandler installs the handler for a message type, replacing any
// previous registration.
func (m *Messenger) RegisterHandler(t domain.MessageType, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = h
}

// Send constructs, nonce-stamps, and dispatches a typed message to the
// trusted counterpart on targetChain. It fails closed when the destination is
// not configured. The returned message is immutable once dispatched.
func (m *Messenger) Send(ctx context.Context, t domain.MessageType, targetChain uint32, payload any) (domain.CrossChainMessage, error) {
	m.mu.RLock()
	remote, ok := m.remotes[targetChain]
	m.mu.RUnlock()
	if !ok {
		return domain.CrossChainMessage{}, fmt.Errorf("messenger: send %s to chain %d: %w", t, targetChain, domain.ErrUnknownChain)
	}

	body, err := domain.MarshalPayload(payload)
	if err != nil {
		return domain.CrossChainMessage{}, err
	}

	nonce, err := m.store.NextNonce(ctx, targetChain)
	if err != nil {
		return domain.CrossChainMessage{}, fmt.Errorf("messenger: allocate nonce for chain %d: %w", targetChain, err)
	}

	msg := domain.CrossChainMessage{
		Type:          t,
		SourceChainID: m.chainID,
		TargetChainID: targetChain,
		TargetAddress: remote.Address,
		Payload:       body,
		Nonce:         nonce,
		Timestamp:     m.now().Unix(),
	}

	if err := m.transport.Dispatch(ctx, msg); err != nil {
		return domain.CrossChainMessage{}, fmt.Errorf("messenger: dispatch %s to chain %d: %w", t, targetChain, err)
	}

	m.logger.InfoContext(ctx, "message dispatched",
		slog.String("message_id", msg.ID()),
		slog.String("type", t.String()),
		slog.Uint64("target_chain", uint64(targetChain)),
		slog.Uint64("nonce", nonce),
	)
	return msg, nil
}

// Handle is the sole entry point for inbound messages. It verifies the origin
// chain is trusted and the sender matches the configured counterpart, rejects
// unknown types, and drops duplicate deliveries as a silent no-op. The
// message is marked processed before its handler runs: a handler failure is
// recorded in the failure log and recovered out-of-band, never by replaying
// the message.
func (m *Messenger) Handle(ctx context.Context, originChain uint32, originSender string, msg domain.CrossChainMessage) error {
	m.mu.RLock()
	remote, trusted := m.remotes[originChain]
	m.mu.RUnlock()
	if !trusted {
		return fmt.Errorf("messenger: inbound from chain %d: %w", originChain, domain.ErrUntrustedOrigin)
	}
	if originSender != remote.Address {
		return fmt.Errorf("messenger: inbound from chain %d sender %s: %w", originChain, originSender, domain.ErrUntrustedSender)
	}
	if !msg.Type.Valid() {
		return fmt.Errorf("messenger: inbound type %d: %w", uint8(msg.Type), domain.ErrUnknownMessageType)
	}

	m.mu.RLock()
	handler, ok := m.handlers[msg.Type]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("messenger: inbound %s: %w", msg.Type, domain.ErrNoHandler)
	}

	id := msg.ID()
	if err := m.store.MarkProcessed(ctx, id, msg.Type, originChain); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Duplicate delivery: treated as success, not double-applied.
			m.logger.DebugContext(ctx, "duplicate message dropped",
				slog.String("message_id", id),
				slog.String("type", msg.Type.String()),
			)
			return nil
		}
		return fmt.Errorf("messenger: mark processed %s: %w", id, err)
	}

	if err := handler(ctx, msg); err != nil {
		m.logger.ErrorContext(ctx, "message handler failed",
			slog.String("message_id", id),
			slog.String("type", msg.Type.String()),
			slog.String("error", err.Error()),
		)
		if m.failedOps != nil {
			_ = m.failedOps.Append(ctx, domain.FailedOperationRecord{
				Timestamp:     m.now(),
				OperationType: "message_" + msg.Type.String(),
				Origin:        fmt.Sprintf("chain:%d", originChain),
				ErrorMessage:  err.Error(),
				Reference:     id,
			})
		}
		return err
	}

	m.logger.InfoContext(ctx, "message processed",
		slog.String("message_id", id),
		slog.String("type", msg.Type.String()),
		slog.Uint64("origin_chain", uint64(originChain)),
	)
	return nil
}

// ChainID returns the local chain id.
func (m *Messenger) ChainID() uint32 { return m.chainID }

// LocalAddress returns the local vault address used as the sender identity.
func (m *Messenger) LocalAddress() string { return m.localAddr }

// Remotes returns a snapshot of the configured trusted counterparts.
func (m *Messenger) Remotes() []Remote {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Remote, 0, len(m.remotes))
	for _, r := range m.remotes {
		out = append(out, r)
	}
	return out
}
