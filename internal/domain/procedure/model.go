package procedure

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrProcedureNotFound = errors.New("procedure not found")

// Procedure maps to the anesthesia_procedure table. It always belongs to a
// resolved patient.
type Procedure struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProcedureName    string     `db:"procedure_name" json:"procedure_name"`
	AnesthesiaType   string     `db:"anesthesia_type" json:"anesthesia_type"`
	ASAClass         *string    `db:"asa_class" json:"asa_class,omitempty"`
	Anesthesiologist *string    `db:"anesthesiologist" json:"anesthesiologist,omitempty"`
	ScheduledAt      *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Status           string     `db:"status" json:"status"`
	Note             *string    `db:"note" json:"note,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

var validAnesthesiaTypes = map[string]bool{
	"general": true, "regional": true, "neuraxial": true,
	"sedation": true, "local": true, "combined": true,
}

var validStatuses = map[string]bool{
	"scheduled": true, "in-progress": true, "completed": true, "cancelled": true,
}

var validASAClasses = map[string]bool{
	"I": true, "II": true, "III": true, "IV": true, "V": true, "VI": true,
}

// Problems returns the names of the fields that prevent p from being
// stored. The patient reference is not checked here; it is assigned
// after resolution.
func (p *Procedure) Problems() []string {
	var fields []string
	if p.ProcedureName == "" {
		fields = append(fields, "procedure_name")
	}
	if !validAnesthesiaTypes[p.AnesthesiaType] {
		fields = append(fields, "anesthesia_type")
	}
	if p.Status != "" && !validStatuses[p.Status] {
		fields = append(fields, "status")
	}
	if p.ASAClass != nil && !validASAClasses[*p.ASAClass] {
		fields = append(fields, "asa_class")
	}
	return fields
}
