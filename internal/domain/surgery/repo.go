package surgery

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Surgery) error
	GetByID(ctx context.Context, id uuid.UUID) (*Surgery, error)
	ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*Surgery, error)
}
