package surgery

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateSurgery(ctx context.Context, sg *Surgery) error {
	if sg.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if sg.ProcedureID == uuid.Nil {
		return fmt.Errorf("procedure_id is required")
	}
	if fields := sg.Problems(); len(fields) > 0 {
		return fmt.Errorf("invalid surgery fields: %s", strings.Join(fields, ", "))
	}
	return s.repo.Create(ctx, sg)
}

func (s *Service) GetSurgery(ctx context.Context, id uuid.UUID) (*Surgery, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByProcedure(ctx context.Context, procedureID uuid.UUID) ([]*Surgery, error) {
	return s.repo.ListByProcedure(ctx, procedureID)
}
