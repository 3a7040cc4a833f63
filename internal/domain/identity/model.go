package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrPatientNotFound = errors.New("patient not found")

const (
	SexMale   = "male"
	SexFemale = "female"
	SexOther  = "other"
)

var validSexes = map[string]bool{
	SexMale: true, SexFemale: true, SexOther: true,
}

// ValidSex reports whether s is a recognised sex code. The empty string
// means unknown and is accepted.
func ValidSex(s string) bool {
	return s == "" || validSexes[s]
}

// Patient maps to the patient table.
type Patient struct {
	ID               uuid.UUID `db:"id" json:"id"`
	FullName         string    `db:"full_name" json:"full_name"`
	BirthDate        time.Time `db:"birth_date" json:"birth_date"`
	Sex              *string   `db:"sex" json:"sex,omitempty"`
	HealthCardNumber *string   `db:"health_card_number" json:"health_card_number,omitempty"`
	// NameTokens is the normalized name token list written alongside the
	// record so the birth-date lookup can rank rows sharing a token first.
	NameTokens   []string  `db:"name_tokens" json:"-"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`
	AddressLine  *string   `db:"address_line" json:"address_line,omitempty"`
	City         *string   `db:"city" json:"city,omitempty"`
	State        *string   `db:"state" json:"state,omitempty"`
	PostalCode   *string   `db:"postal_code" json:"postal_code,omitempty"`
	MotherName   *string   `db:"mother_name" json:"mother_name,omitempty"`
	VersionID    int       `db:"version_id" json:"version_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SexValue returns the sex code or "" when unknown.
func (p *Patient) SexValue() string {
	if p.Sex == nil {
		return ""
	}
	return *p.Sex
}

// HealthCard returns the stored health-card number or "".
func (p *Patient) HealthCard() string {
	if p.HealthCardNumber == nil {
		return ""
	}
	return *p.HealthCardNumber
}

// Clone returns a deep copy so callers can mutate a candidate without
// touching the instance held by a repository.
func (p *Patient) Clone() *Patient {
	cp := *p
	if p.NameTokens != nil {
		cp.NameTokens = append([]string(nil), p.NameTokens...)
	}
	cp.Sex = cloneStr(p.Sex)
	cp.HealthCardNumber = cloneStr(p.HealthCardNumber)
	cp.Phone = cloneStr(p.Phone)
	cp.Email = cloneStr(p.Email)
	cp.AddressLine = cloneStr(p.AddressLine)
	cp.City = cloneStr(p.City)
	cp.State = cloneStr(p.State)
	cp.PostalCode = cloneStr(p.PostalCode)
	cp.MotherName = cloneStr(p.MotherName)
	return &cp
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
