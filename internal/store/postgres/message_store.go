package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnivault/omnivault/internal/domain"
)

// MessageStore implements domain.MessageStore using PostgreSQL. Processed
// message ids live in their own table so idempotency survives restarts;
// outbound nonces are allocated with an atomic upsert.
type MessageStore struct {
	pool *pgxpool.Pool
}

// NewMessageStore creates a MessageStore backed by the given pool.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// MarkProcessed records a message id, returning domain.ErrAlreadyExists when
// the id was recorded before. The primary-key violation is the duplicate
// detection: no read-then-write race.
func (s *MessageStore) MarkProcessed(ctx context.Context, messageID string, msgType domain.MessageType, originChain uint32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processed_messages (message_id, message_type, origin_chain) VALUES ($1, $2, $3)`,
		messageID, int16(msgType), int64(originChain),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: mark processed %s: %w", messageID, err)
	}
	return nil
}

// IsProcessed reports whether a message id has been recorded.
func (s *MessageStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_messages WHERE message_id = $1)`,
		messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check processed %s: %w", messageID, err)
	}
	return exists, nil
}

// NextNonce atomically allocates the next outbound nonce for a chain.
func (s *MessageStore) NextNonce(ctx context.Context, chainID uint32) (uint64, error) {
	var nonce int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO outbound_nonces (chain_id, nonce) VALUES ($1, 1)
		ON CONFLICT (chain_id) DO UPDATE SET nonce = outbound_nonces.nonce + 1
		RETURNING nonce`,
		int64(chainID),
	).Scan(&nonce)
	if err != nil {
		return 0, fmt.Errorf("postgres: next nonce for chain %d: %w", chainID, err)
	}
	return uint64(nonce), nil
}

// Compile-time interface check.
var _ domain.MessageStore = (*MessageStore)(nil)
