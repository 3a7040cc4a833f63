package resolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGHoldStore keeps holds in the resolution_hold table so every server
// instance sees the same pending submissions.
type PGHoldStore struct {
	pool *pgxpool.Pool
}

func NewPGHoldStore(pool *pgxpool.Pool) *PGHoldStore {
	return &PGHoldStore{pool: pool}
}

func (s *PGHoldStore) Put(ctx context.Context, h Hold) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resolution_hold (id, kind, payload, expires_at)
		VALUES ($1, $2, $3, $4)`,
		h.ID, string(h.Kind), h.Payload, h.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("hold put: %w", err)
	}
	// Expired rows are only kept for a day for troubleshooting.
	if _, err := s.pool.Exec(ctx, `DELETE FROM resolution_hold WHERE expires_at < NOW() - INTERVAL '1 day'`); err != nil {
		return fmt.Errorf("hold prune: %w", err)
	}
	return nil
}

func (s *PGHoldStore) Claim(ctx context.Context, kind HoldKind, id uuid.UUID, now time.Time) (Hold, error) {
	h := Hold{ID: id, Kind: kind}
	err := s.pool.QueryRow(ctx, `
		UPDATE resolution_hold SET claimed_at = $3
		WHERE id = $1 AND kind = $2 AND claimed_at IS NULL AND expires_at > $3
		RETURNING payload, expires_at`,
		id, string(kind), now,
	).Scan(&h.Payload, &h.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Hold{}, ErrHoldNotFound
	}
	if err != nil {
		return Hold{}, fmt.Errorf("hold claim: %w", err)
	}
	return h, nil
}

func (s *PGHoldStore) Release(ctx context.Context, kind HoldKind, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE resolution_hold SET claimed_at = NULL WHERE id = $1 AND kind = $2`, id, string(kind))
	if err != nil {
		return fmt.Errorf("hold release: %w", err)
	}
	return nil
}
