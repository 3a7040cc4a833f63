package resolution

import (
	"strings"
	"time"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/surgery"
)

// PatientInput is the patient half of a charting form as typed by the user.
type PatientInput struct {
	FullName         string `json:"full_name"`
	BirthDate        string `json:"birth_date"`
	Sex              string `json:"sex,omitempty"`
	HealthCardNumber string `json:"health_card_number,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	AddressLine      string `json:"address_line,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	MotherName       string `json:"mother_name,omitempty"`
}

// Submission is one charting form: the patient, the anesthesia procedure
// and, for the surgical workflow, the surgery.
type Submission struct {
	Patient   PatientInput        `json:"patient"`
	Procedure procedure.Procedure `json:"procedure"`
	Surgery   *surgery.Surgery    `json:"surgery,omitempty"`
}

// subject is a validated and normalized PatientInput.
type subject struct {
	input      PatientInput
	fullName   string
	name       NameKey
	birthDate  time.Time
	sex        string
	healthCard string
}

func validate(sub Submission, now time.Time) (subject, error) {
	var fields []string
	in := sub.Patient

	s := subject{
		input:    in,
		fullName: strings.TrimSpace(in.FullName),
		name:     NewNameKey(in.FullName),
		sex:      strings.ToLower(strings.TrimSpace(in.Sex)),
	}
	if len(s.name.Tokens) == 0 {
		fields = append(fields, "patient.full_name")
	}
	bd, err := ParseBirthDate(in.BirthDate, now)
	if err != nil {
		fields = append(fields, "patient.birth_date")
	}
	s.birthDate = bd
	if !identity.ValidSex(s.sex) {
		fields = append(fields, "patient.sex")
	}
	if raw := strings.TrimSpace(in.HealthCardNumber); raw != "" {
		s.healthCard = NormalizeHealthCard(raw)
		if !onlyHealthCardChars(raw) || !ValidHealthCard(s.healthCard) {
			fields = append(fields, "patient.health_card_number")
		}
	}

	for _, f := range sub.Procedure.Problems() {
		fields = append(fields, "procedure."+f)
	}
	if sub.Surgery != nil {
		for _, f := range sub.Surgery.Problems() {
			fields = append(fields, "surgery."+f)
		}
	}

	if len(fields) > 0 {
		return subject{}, &ValidationError{Fields: fields}
	}
	return s, nil
}

func onlyHealthCardChars(raw string) bool {
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == ' ', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// newPatient builds the record written when no existing patient is reused.
func (s subject) newPatient() *identity.Patient {
	p := &identity.Patient{
		FullName:  s.fullName,
		BirthDate: s.birthDate,
	}
	if s.sex != "" {
		p.Sex = strPtr(s.sex)
	}
	if s.healthCard != "" {
		p.HealthCardNumber = strPtr(s.healthCard)
	}
	applyContact(p, s.input)
	return p
}

// applyTo copies the submitted identity fields that differ, and every
// non-empty contact field, onto an existing record. The id is untouched.
func (s subject) applyTo(p *identity.Patient) {
	if s.fullName != "" && s.fullName != strings.TrimSpace(p.FullName) {
		p.FullName = s.fullName
	}
	if !s.birthDate.IsZero() && !s.birthDate.Equal(NormalizeDate(p.BirthDate)) {
		p.BirthDate = s.birthDate
	}
	if s.sex != "" {
		p.Sex = strPtr(s.sex)
	}
	if s.healthCard != "" {
		p.HealthCardNumber = strPtr(s.healthCard)
	}
	applyContact(p, s.input)
}

func applyContact(p *identity.Patient, in PatientInput) {
	set := func(dst **string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = strPtr(v)
		}
	}
	set(&p.Phone, in.Phone)
	set(&p.Email, in.Email)
	set(&p.AddressLine, in.AddressLine)
	set(&p.City, in.City)
	set(&p.State, in.State)
	set(&p.PostalCode, in.PostalCode)
	set(&p.MotherName, in.MotherName)
}

func strPtr(s string) *string { return &s }
