package resolution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/surgery"
)

// BreakerSettings configures the circuit breaker in front of the store.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// BreakerStore fails fast with a storage error while the database is
// unreachable instead of letting every submission wait for a timeout. It
// never retries.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerStore(next Store, s BreakerSettings, logger zerolog.Logger, onChange func(name, state string)) *BreakerStore {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "patient-store",
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Lookups that find nothing and cancelled callers say nothing
			// about database health.
			return err == nil ||
				errors.Is(err, identity.ErrPatientNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("store circuit breaker state changed")
			if onChange != nil {
				onChange(name, to.String())
			}
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

func guarded[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	v, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (b *BreakerStore) exec(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (b *BreakerStore) FindByHealthCardNumber(ctx context.Context, number string) ([]*identity.Patient, error) {
	return guarded(b.cb, func() ([]*identity.Patient, error) {
		return b.next.FindByHealthCardNumber(ctx, number)
	})
}

func (b *BreakerStore) FindByNameAndBirthDate(ctx context.Context, name NameKey, birthDate time.Time, limit int) ([]*identity.Patient, error) {
	return guarded(b.cb, func() ([]*identity.Patient, error) {
		return b.next.FindByNameAndBirthDate(ctx, name, birthDate, limit)
	})
}

func (b *BreakerStore) GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error) {
	return guarded(b.cb, func() (*identity.Patient, error) {
		return b.next.GetPatient(ctx, id)
	})
}

func (b *BreakerStore) CreatePatient(ctx context.Context, p *identity.Patient) error {
	return b.exec(func() error { return b.next.CreatePatient(ctx, p) })
}

func (b *BreakerStore) UpdatePatient(ctx context.Context, p *identity.Patient) error {
	return b.exec(func() error { return b.next.UpdatePatient(ctx, p) })
}

func (b *BreakerStore) CreateProcedure(ctx context.Context, p *procedure.Procedure) error {
	return b.exec(func() error { return b.next.CreateProcedure(ctx, p) })
}

func (b *BreakerStore) CreateSurgery(ctx context.Context, s *surgery.Surgery) error {
	return b.exec(func() error { return b.next.CreateSurgery(ctx, s) })
}
