package procedure

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

// CreateProcedure stores p against an already resolved patient.
func (s *Service) CreateProcedure(ctx context.Context, p *Procedure) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if fields := p.Problems(); len(fields) > 0 {
		return fmt.Errorf("invalid procedure fields: %s", strings.Join(fields, ", "))
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetProcedure(ctx context.Context, id uuid.UUID) (*Procedure, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Procedure, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
