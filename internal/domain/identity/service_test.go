package identity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.VersionID = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	p.VersionID++
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) sorted() []*Patient {
	out := make([]*Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	all := m.sorted()
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockPatientRepo) FindByHealthCardNumber(_ context.Context, number string) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.sorted() {
		if p.HealthCard() == number {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPatientRepo) FindByBirthDate(_ context.Context, birthDate time.Time, _ []string, limit int) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.sorted() {
		if p.BirthDate.Equal(birthDate) && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func seedPatient(repo *mockPatientRepo, name string) *Patient {
	p := &Patient{FullName: name, BirthDate: time.Date(1980, 5, 10, 0, 0, 0, 0, time.UTC)}
	repo.Create(context.Background(), p)
	return p
}

// -- Tests --

func TestService_GetPatient(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)
	p := seedPatient(repo, "Maria Silva")

	got, err := svc.GetPatient(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FullName != "Maria Silva" {
		t.Errorf("expected Maria Silva, got %s", got.FullName)
	}

	if _, err := svc.GetPatient(context.Background(), uuid.New()); err != ErrPatientNotFound {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestService_ListPatients(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo)
	for _, n := range []string{"Ana Costa", "Joao Pereira", "Maria Silva"} {
		seedPatient(repo, n)
	}

	items, total, err := svc.ListPatients(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", len(items), total)
	}
	items, _, _ = svc.ListPatients(context.Background(), 2, 2)
	if len(items) != 1 || items[0].FullName != "Maria Silva" {
		t.Errorf("unexpected second page %v", items)
	}
}

func TestPatient_Clone(t *testing.T) {
	card := "123456789012345"
	p := &Patient{FullName: "Maria Silva", HealthCardNumber: &card, NameTokens: []string{"maria", "silva"}}
	c := p.Clone()

	*c.HealthCardNumber = "000000000000000"
	c.NameTokens[0] = "x"
	if p.HealthCard() != card {
		t.Error("clone must not share the health card pointer")
	}
	if p.NameTokens[0] != "maria" {
		t.Error("clone must not share name tokens")
	}
}

func TestPatient_Accessors(t *testing.T) {
	p := &Patient{}
	if p.SexValue() != "" || p.HealthCard() != "" {
		t.Error("unset fields must read as empty")
	}
	if !ValidSex("") || !ValidSex(SexFemale) || ValidSex("unknown") {
		t.Error("unexpected sex validation")
	}
}
