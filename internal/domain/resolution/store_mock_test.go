package resolution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/surgery"
)

var errDBDown = errors.New("connection refused")

// -- Mock Store --

type mockStore struct {
	mu         sync.Mutex
	patients   map[uuid.UUID]*identity.Patient
	order      []uuid.UUID
	procedures map[uuid.UUID]*procedure.Procedure
	surgeries  map[uuid.UUID]*surgery.Surgery

	// failOn maps an operation name to the error it returns.
	failOn map[string]error
	calls  []string
}

func newMockStore(patients ...*identity.Patient) *mockStore {
	m := &mockStore{
		patients:   make(map[uuid.UUID]*identity.Patient),
		procedures: make(map[uuid.UUID]*procedure.Procedure),
		surgeries:  make(map[uuid.UUID]*surgery.Surgery),
		failOn:     make(map[string]error),
	}
	for _, p := range patients {
		m.seed(p)
	}
	return m
}

func (m *mockStore) seed(p *identity.Patient) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = p
	m.order = append(m.order, p.ID)
}

// remove deletes a patient as if another user had merged it away.
func (m *mockStore) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patients, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *mockStore) record(op string) error {
	m.calls = append(m.calls, op)
	return m.failOn[op]
}

func (m *mockStore) called(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *mockStore) FindByHealthCardNumber(_ context.Context, number string) ([]*identity.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("find_by_health_card_number"); err != nil {
		return nil, err
	}
	var out []*identity.Patient
	for _, id := range m.order {
		p := m.patients[id]
		if p.HealthCard() == number {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) FindByNameAndBirthDate(_ context.Context, _ NameKey, birthDate time.Time, limit int) ([]*identity.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("find_by_name_and_birth_date"); err != nil {
		return nil, err
	}
	var out []*identity.Patient
	for _, id := range m.order {
		p := m.patients[id]
		if NormalizeDate(p.BirthDate).Equal(birthDate) {
			out = append(out, p.Clone())
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) GetPatient(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get_patient"); err != nil {
		return nil, err
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, identity.ErrPatientNotFound
	}
	return p.Clone(), nil
}

func (m *mockStore) CreatePatient(_ context.Context, p *identity.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create_patient"); err != nil {
		return err
	}
	p.ID = uuid.New()
	p.VersionID = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = p.Clone()
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockStore) UpdatePatient(_ context.Context, p *identity.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update_patient"); err != nil {
		return err
	}
	if _, ok := m.patients[p.ID]; !ok {
		return identity.ErrPatientNotFound
	}
	p.VersionID++
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p.Clone()
	return nil
}

func (m *mockStore) CreateProcedure(_ context.Context, p *procedure.Procedure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create_procedure"); err != nil {
		return err
	}
	if _, ok := m.patients[p.PatientID]; !ok {
		return errors.New("procedure references unknown patient")
	}
	p.ID = uuid.New()
	if p.Status == "" {
		p.Status = "scheduled"
	}
	cp := *p
	m.procedures[p.ID] = &cp
	return nil
}

func (m *mockStore) CreateSurgery(_ context.Context, s *surgery.Surgery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create_surgery"); err != nil {
		return err
	}
	if _, ok := m.procedures[s.ProcedureID]; !ok {
		return errors.New("surgery references unknown procedure")
	}
	s.ID = uuid.New()
	cp := *s
	m.surgeries[s.ID] = &cp
	return nil
}

func (m *mockStore) patientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patients)
}

func (m *mockStore) procedureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procedures)
}

// -- fixtures --

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func stored(name, birth string) *identity.Patient {
	return &identity.Patient{ID: uuid.New(), FullName: name, BirthDate: date(birth)}
}

func withCard(p *identity.Patient, card string) *identity.Patient {
	p.HealthCardNumber = &card
	return p
}

func withSex(p *identity.Patient, sex string) *identity.Patient {
	p.Sex = &sex
	return p
}

func submission(name, birth, card string) Submission {
	return Submission{
		Patient: PatientInput{FullName: name, BirthDate: birth, HealthCardNumber: card},
		Procedure: procedure.Procedure{
			ProcedureName:  "Laparoscopic cholecystectomy",
			AnesthesiaType: "general",
		},
	}
}

func mustSubject(t interface{ Fatalf(string, ...any) }, sub Submission) subject {
	s, err := validate(sub, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return s
}
