package surgery

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSurgeryNotFound = errors.New("surgery not found")

// Surgery maps to the surgery table. It references both the patient and
// the anesthesia procedure it was charted under.
type Surgery struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProcedureID   uuid.UUID  `db:"procedure_id" json:"procedure_id"`
	SurgeryName   string     `db:"surgery_name" json:"surgery_name"`
	Surgeon       *string    `db:"surgeon" json:"surgeon,omitempty"`
	OperatingRoom *string    `db:"operating_room" json:"operating_room,omitempty"`
	Laterality    *string    `db:"laterality" json:"laterality,omitempty"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	EndedAt       *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

var validStatuses = map[string]bool{
	"scheduled": true, "in-or": true, "completed": true, "cancelled": true,
}

var validLateralities = map[string]bool{
	"left": true, "right": true, "bilateral": true, "none": true,
}

// Problems lists the fields that prevent s from being stored. Patient and
// procedure references are set later by the resolution commit.
func (s *Surgery) Problems() []string {
	var fields []string
	if s.SurgeryName == "" {
		fields = append(fields, "surgery_name")
	}
	if s.Status != "" && !validStatuses[s.Status] {
		fields = append(fields, "status")
	}
	if s.Laterality != nil && !validLateralities[*s.Laterality] {
		fields = append(fields, "laterality")
	}
	if s.StartedAt != nil && s.EndedAt != nil && s.EndedAt.Before(*s.StartedAt) {
		fields = append(fields, "ended_at")
	}
	return fields
}
