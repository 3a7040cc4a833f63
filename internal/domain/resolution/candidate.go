package resolution

import (
	"bytes"
	"encoding/json"

	"github.com/ehr/surgichart/internal/domain/identity"
)

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

func (t Tier) rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	}
	return 0
}

// AtLeast reports whether t is as confident as other.
func (t Tier) AtLeast(other Tier) bool { return t.rank() >= other.rank() }

type SearchMethod string

const (
	MethodHealthCard    SearchMethod = "health_card"
	MethodNameBirthDate SearchMethod = "name_birth_date"
)

// Field enumerates the identity fields that can differ.
type Field string

const (
	FieldName       Field = "name"
	FieldBirthDate  Field = "birthDate"
	FieldSex        Field = "sex"
	FieldHealthCard Field = "healthCardNumber"
)

var fieldOrder = []Field{FieldName, FieldBirthDate, FieldSex, FieldHealthCard}

// FieldDifference records the stored and submitted value of one field.
type FieldDifference struct {
	Field     Field
	Existing  string
	Submitted string
}

// Differences marshals as an object keyed by field name:
// {"name":{"existing":"Maria Silva","new":"Maria da Silva"}}.
type Differences []FieldDifference

func (d Differences) Get(f Field) (FieldDifference, bool) {
	for _, fd := range d {
		if fd.Field == f {
			return fd, true
		}
	}
	return FieldDifference{}, false
}

func (d Differences) Has(f Field) bool {
	_, ok := d.Get(f)
	return ok
}

type differenceJSON struct {
	Existing string `json:"existing"`
	New      string `json:"new"`
}

func (d Differences) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range fieldOrder {
		fd, ok := d.Get(f)
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(string(f))
		val, err := json.Marshal(differenceJSON{Existing: fd.Existing, New: fd.Submitted})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Differences) UnmarshalJSON(data []byte) error {
	var m map[Field]differenceJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(Differences, 0, len(m))
	for _, f := range fieldOrder {
		if v, ok := m[f]; ok {
			out = append(out, FieldDifference{Field: f, Existing: v.Existing, Submitted: v.New})
		}
	}
	*d = out
	return nil
}

// ScoreFactor is one inspectable term of a candidate's score.
type ScoreFactor struct {
	Field        Field   `json:"field"`
	Weight       float64 `json:"weight"`
	Similarity   float64 `json:"similarity"`
	Contribution float64 `json:"contribution"`
	Note         string  `json:"note,omitempty"`
}

// MatchCandidate is a stored patient annotated for one resolution. None of
// the annotations are persisted.
type MatchCandidate struct {
	Patient      *identity.Patient `json:"patient"`
	Score        float64           `json:"score"`
	Tier         Tier              `json:"tier"`
	Factors      []ScoreFactor     `json:"factors"`
	Differences  Differences       `json:"differences"`
	Methods      []SearchMethod    `json:"search_methods"`
	Relationship RelationshipKind  `json:"relationship,omitempty"`
}

func (c *MatchCandidate) FoundBy(m SearchMethod) bool {
	for _, have := range c.Methods {
		if have == m {
			return true
		}
	}
	return false
}
