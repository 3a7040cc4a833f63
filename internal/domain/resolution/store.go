package resolution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/surgery"
)

// Store is the persistence boundary of patient resolution. Every method
// either succeeds or returns an error; partial results are never returned.
type Store interface {
	FindByHealthCardNumber(ctx context.Context, number string) ([]*identity.Patient, error)
	FindByNameAndBirthDate(ctx context.Context, name NameKey, birthDate time.Time, limit int) ([]*identity.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	CreatePatient(ctx context.Context, p *identity.Patient) error
	UpdatePatient(ctx context.Context, p *identity.Patient) error
	CreateProcedure(ctx context.Context, p *procedure.Procedure) error
	CreateSurgery(ctx context.Context, s *surgery.Surgery) error
}

// RepoStore adapts the domain repositories to Store.
type RepoStore struct {
	patients   identity.PatientRepository
	procedures procedure.Repository
	surgeries  surgery.Repository
}

func NewRepoStore(patients identity.PatientRepository, procedures procedure.Repository, surgeries surgery.Repository) *RepoStore {
	return &RepoStore{patients: patients, procedures: procedures, surgeries: surgeries}
}

func (s *RepoStore) FindByHealthCardNumber(ctx context.Context, number string) ([]*identity.Patient, error) {
	return s.patients.FindByHealthCardNumber(ctx, number)
}

func (s *RepoStore) FindByNameAndBirthDate(ctx context.Context, name NameKey, birthDate time.Time, limit int) ([]*identity.Patient, error) {
	return s.patients.FindByBirthDate(ctx, birthDate, name.Significant, limit)
}

func (s *RepoStore) GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *RepoStore) CreatePatient(ctx context.Context, p *identity.Patient) error {
	p.NameTokens = NewNameKey(p.FullName).Tokens
	return s.patients.Create(ctx, p)
}

func (s *RepoStore) UpdatePatient(ctx context.Context, p *identity.Patient) error {
	p.NameTokens = NewNameKey(p.FullName).Tokens
	return s.patients.Update(ctx, p)
}

func (s *RepoStore) CreateProcedure(ctx context.Context, p *procedure.Procedure) error {
	return s.procedures.Create(ctx, p)
}

func (s *RepoStore) CreateSurgery(ctx context.Context, sg *surgery.Surgery) error {
	return s.surgeries.Create(ctx, sg)
}
