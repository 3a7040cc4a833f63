package resolution

import (
	"math"
	"strings"

	"github.com/ehr/surgichart/internal/domain/identity"
)

const dateLayout = "2006-01-02"

// Scorer compares a submission with stored patients. Every term of the
// score is reported so a clinician can see why a record was proposed.
type Scorer struct {
	cfg MatchConfig
}

func NewScorer(cfg MatchConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// NameSimilarity is the larger of the canonical edit ratio and the
// discounted overlap of significant tokens.
func (s *Scorer) NameSimilarity(a, b NameKey) float64 {
	if a.Canonical == b.Canonical {
		return 1
	}
	edit := editRatio(a.Canonical, b.Canonical)
	overlap := tokenOverlap(a.Significant, b.Significant) * s.cfg.TokenOverlapFactor
	return math.Max(edit, overlap)
}

func (s *Scorer) evaluate(sub subject, p *identity.Patient, methods []SearchMethod) *MatchCandidate {
	score, factors := s.score(sub, p)
	return &MatchCandidate{
		Patient:     p,
		Score:       score,
		Tier:        s.cfg.TierFor(score),
		Factors:     factors,
		Differences: differences(sub, p),
		Methods:     methods,
	}
}

func (s *Scorer) score(sub subject, p *identity.Patient) (float64, []ScoreFactor) {
	var factors []ScoreFactor
	var total, weights float64

	add := func(f Field, weight, sim float64) {
		factors = append(factors, ScoreFactor{
			Field:        f,
			Weight:       weight,
			Similarity:   round3(sim),
			Contribution: round3(weight * sim),
		})
		total += weight * sim
		weights += weight
	}

	nameSim := s.NameSimilarity(sub.name, NewNameKey(p.FullName))
	add(FieldName, s.cfg.NameWeight, nameSim)
	add(FieldBirthDate, s.cfg.BirthDateWeight, boolSim(sub.birthDate.Equal(NormalizeDate(p.BirthDate))))
	if stored := p.SexValue(); sub.sex != "" && stored != "" {
		add(FieldSex, s.cfg.SexWeight, boolSim(sub.sex == stored))
	}

	score := 0.0
	if weights > 0 {
		score = total / weights
	}

	if stored := p.HealthCard(); sub.healthCard != "" && stored != "" {
		switch {
		case sub.healthCard == stored && nameSim >= s.cfg.HealthCardNameAgreement:
			factors = append(factors, ScoreFactor{Field: FieldHealthCard, Similarity: 1, Note: "equal health card number, raised to high tier"})
			score = math.Max(score, s.cfg.HighThreshold)
		case sub.healthCard == stored:
			// A card shared by a different name is a typo or a misfiled
			// record; it is shown, never trusted.
			factors = append(factors, ScoreFactor{Field: FieldHealthCard, Similarity: 1, Note: "equal health card number, contradicted by name"})
		default:
			factors = append(factors, ScoreFactor{Field: FieldHealthCard, Similarity: 0, Note: "different health card number, score penalised"})
			score *= s.cfg.HealthCardMismatchPenalty
		}
	}

	return round3(score), factors
}

// differences lists every identity field where the submission carries a
// value and it is not the stored one.
func differences(sub subject, p *identity.Patient) Differences {
	var diffs Differences
	if stored := strings.TrimSpace(p.FullName); sub.fullName != "" && sub.fullName != stored {
		diffs = append(diffs, FieldDifference{Field: FieldName, Existing: stored, Submitted: sub.fullName})
	}
	if stored := NormalizeDate(p.BirthDate); !sub.birthDate.IsZero() && !sub.birthDate.Equal(stored) {
		diffs = append(diffs, FieldDifference{Field: FieldBirthDate, Existing: stored.Format(dateLayout), Submitted: sub.birthDate.Format(dateLayout)})
	}
	if stored := p.SexValue(); sub.sex != "" && sub.sex != stored {
		diffs = append(diffs, FieldDifference{Field: FieldSex, Existing: stored, Submitted: sub.sex})
	}
	if stored := p.HealthCard(); sub.healthCard != "" && sub.healthCard != stored {
		diffs = append(diffs, FieldDifference{Field: FieldHealthCard, Existing: stored, Submitted: sub.healthCard})
	}
	return diffs
}

func boolSim(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
