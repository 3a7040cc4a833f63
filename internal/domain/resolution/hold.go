package resolution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HoldKind separates the two things a client may come back for.
type HoldKind string

const (
	HoldDecision HoldKind = "decision"
	HoldCommit   HoldKind = "commit"
)

var ErrHoldNotFound = errors.New("hold not found, expired or already claimed")

// Hold is server-side state a client refers to by id: a pending
// submission waiting for a human decision, or the progress of a partial
// commit. The client never sends the payload back.
type Hold struct {
	ID        uuid.UUID
	Kind      HoldKind
	Payload   []byte
	ExpiresAt time.Time
}

// HoldStore keeps holds until they are claimed or expire. Claim is atomic:
// of several concurrent claims for one hold exactly one succeeds, the rest
// get ErrHoldNotFound.
type HoldStore interface {
	Put(ctx context.Context, h Hold) error
	Claim(ctx context.Context, kind HoldKind, id uuid.UUID, now time.Time) (Hold, error)
	// Release makes a claimed hold claimable again.
	Release(ctx context.Context, kind HoldKind, id uuid.UUID) error
}

type holdKey struct {
	kind HoldKind
	id   uuid.UUID
}

type memoryHold struct {
	Hold
	claimed bool
}

// MemoryHoldStore keeps holds in process. It serves a single server
// instance; replicas share a PGHoldStore instead.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[holdKey]*memoryHold
}

func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[holdKey]*memoryHold)}
}

func (s *MemoryHoldStore) Put(_ context.Context, h Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[holdKey{h.Kind, h.ID}] = &memoryHold{Hold: h}
	return nil
}

func (s *MemoryHoldStore) Claim(_ context.Context, kind HoldKind, id uuid.UUID, now time.Time) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, h := range s.holds {
		if !now.Before(h.ExpiresAt) {
			delete(s.holds, k)
		}
	}
	h, ok := s.holds[holdKey{kind, id}]
	if !ok || h.claimed {
		return Hold{}, ErrHoldNotFound
	}
	h.claimed = true
	return h.Hold, nil
}

func (s *MemoryHoldStore) Release(_ context.Context, kind HoldKind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.holds[holdKey{kind, id}]; ok {
		h.claimed = false
	}
	return nil
}
