package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	// Identity lookups used by patient resolution.
	FindByHealthCardNumber(ctx context.Context, number string) ([]*Patient, error)
	// FindByBirthDate returns at most limit patients born on birthDate.
	// Rows whose name tokens overlap nameTokens are returned first.
	FindByBirthDate(ctx context.Context, birthDate time.Time, nameTokens []string, limit int) ([]*Patient, error)
}
