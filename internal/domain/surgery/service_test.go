package surgery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Surgery
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Surgery)}
}

func (m *mockRepo) Create(_ context.Context, s *Surgery) error {
	s.ID = uuid.New()
	if s.Status == "" {
		s.Status = "scheduled"
	}
	s.CreatedAt = time.Now()
	m.items[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Surgery, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, ErrSurgeryNotFound
	}
	return s, nil
}

func (m *mockRepo) ListByProcedure(_ context.Context, procedureID uuid.UUID) ([]*Surgery, error) {
	var out []*Surgery
	for _, s := range m.items {
		if s.ProcedureID == procedureID {
			out = append(out, s)
		}
	}
	return out, nil
}

func validSurgery() *Surgery {
	return &Surgery{PatientID: uuid.New(), ProcedureID: uuid.New(), SurgeryName: "Cholecystectomy"}
}

// -- Tests --

func TestService_CreateSurgery(t *testing.T) {
	svc := NewService(newMockRepo())
	s := validSurgery()
	if err := svc.CreateSurgery(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Error("expected id assigned")
	}
}

func TestService_CreateSurgery_RequiresReferences(t *testing.T) {
	svc := NewService(newMockRepo())

	s := validSurgery()
	s.PatientID = uuid.Nil
	if err := svc.CreateSurgery(context.Background(), s); err == nil {
		t.Error("expected error without patient")
	}
	s = validSurgery()
	s.ProcedureID = uuid.Nil
	if err := svc.CreateSurgery(context.Background(), s); err == nil {
		t.Error("expected error without procedure")
	}
}

func TestSurgery_Problems(t *testing.T) {
	start := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	side := "top"
	s := &Surgery{Status: "paused", Laterality: &side, StartedAt: &start, EndedAt: &end}

	got := map[string]bool{}
	for _, f := range s.Problems() {
		got[f] = true
	}
	for _, want := range []string{"surgery_name", "status", "laterality", "ended_at"} {
		if !got[want] {
			t.Errorf("expected %s reported", want)
		}
	}

	if f := validSurgery().Problems(); len(f) != 0 {
		t.Errorf("expected no problems, got %v", f)
	}
}

func TestService_ListByProcedure(t *testing.T) {
	svc := NewService(newMockRepo())
	a := validSurgery()
	svc.CreateSurgery(context.Background(), a)
	b := validSurgery()
	b.ProcedureID = a.ProcedureID
	svc.CreateSurgery(context.Background(), b)
	svc.CreateSurgery(context.Background(), validSurgery())

	items, err := svc.ListByProcedure(context.Background(), a.ProcedureID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 surgeries, got %d", len(items))
	}
}
