package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/omnivault/omnivault/internal/domain"
)

// Transfer is one settlement tracked by the in-memory adapter.
type Transfer struct {
	ID          string
	Amount      int64
	DestChainID uint32
	Recipient   string
	Settled     bool
}

// InMem is a same-process settlement adapter used by the sim mode and tests.
// Transfers are held until Deliver is called (or immediately when autoSettle
// is on), which lets tests exercise the "message arrived, settlement delayed"
// and "settlement failed" paths.
type InMem struct {
	mu         sync.Mutex
	transfers  map[string]*Transfer
	autoSettle bool
	failNext   bool
	onSettle   func(ctx context.Context, t Transfer)
}

// NewInMem creates an in-memory adapter. When autoSettle is true each
// BurnAndSend settles synchronously.
func NewInMem(autoSettle bool) *InMem {
	return &InMem{
		transfers:  make(map[string]*Transfer),
		autoSettle: autoSettle,
	}
}

// OnSettle registers a callback invoked when a transfer settles.
func (b *InMem) OnSettle(fn func(ctx context.Context, t Transfer)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSettle = fn
}

// FailNext makes the next BurnAndSend return ErrSettlementFailed.
func (b *InMem) FailNext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = true
}

// BurnAndSend implements Adapter.
func (b *InMem) BurnAndSend(ctx context.Context, amount int64, destChainID uint32, recipient string) (string, error) {
	if amount <= 0 {
		return "", domain.ErrZeroAmount
	}

	b.mu.Lock()
	if b.failNext {
		b.failNext = false
		b.mu.Unlock()
		return "", fmt.Errorf("inmem bridge: burn %d to chain %d: %w", amount, destChainID, domain.ErrSettlementFailed)
	}
	t := &Transfer{
		ID:          uuid.New().String(),
		Amount:      amount,
		DestChainID: destChainID,
		Recipient:   recipient,
	}
	b.transfers[t.ID] = t
	auto := b.autoSettle
	b.mu.Unlock()

	if auto {
		if err := b.Deliver(ctx, t.ID); err != nil {
			return "", err
		}
	}
	return t.ID, nil
}

// Deliver settles a pending transfer, invoking the settle callback once.
func (b *InMem) Deliver(ctx context.Context, transferID string) error {
	b.mu.Lock()
	t, ok := b.transfers[transferID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("inmem bridge: transfer %s: %w", transferID, domain.ErrNotFound)
	}
	if t.Settled {
		b.mu.Unlock()
		return nil
	}
	t.Settled = true
	cb := b.onSettle
	snapshot := *t
	b.mu.Unlock()

	if cb != nil {
		cb(ctx, snapshot)
	}
	return nil
}

// ReceiveAndMint implements Adapter. The proof is the JSON-encoded transfer.
func (b *InMem) ReceiveAndMint(ctx context.Context, proof []byte) (int64, error) {
	var t Transfer
	if err := json.Unmarshal(proof, &t); err != nil {
		return 0, fmt.Errorf("inmem bridge: decode proof: %w", err)
	}
	if t.Amount <= 0 {
		return 0, domain.ErrZeroAmount
	}
	return t.Amount, nil
}

// Proof encodes a settled transfer as a proof blob for ReceiveAndMint.
func Proof(t Transfer) []byte {
	data, _ := json.Marshal(t)
	return data
}

// Compile-time interface check.
var _ Adapter = (*InMem)(nil)
