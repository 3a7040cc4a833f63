package resolution

import "fmt"

// MatchConfig holds every threshold and weight used by the locator,
// scorer and classifier.
type MatchConfig struct {
	HighThreshold   float64
	MediumThreshold float64
	// MinScore drops weak name+birth-date candidates. Health-card hits
	// are always kept.
	MinScore float64

	MaxCandidates  int
	ScanLimit      int
	PrefilterRatio float64

	NameWeight      float64
	BirthDateWeight float64
	SexWeight       float64

	// TokenOverlapFactor scales token overlap so that a pure subset never
	// scores like an exact canonical match.
	TokenOverlapFactor        float64
	HealthCardMismatchPenalty float64
	// HealthCardNameAgreement is the name similarity an equal health card
	// needs before it lifts the score to the high tier.
	HealthCardNameAgreement float64
	SiblingNameSimilarity   float64
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		HighThreshold:             0.90,
		MediumThreshold:           0.60,
		MinScore:                  0.50,
		MaxCandidates:             20,
		ScanLimit:                 200,
		PrefilterRatio:            0.50,
		NameWeight:                0.55,
		BirthDateWeight:           0.35,
		SexWeight:                 0.10,
		TokenOverlapFactor:        0.95,
		HealthCardMismatchPenalty: 0.85,
		HealthCardNameAgreement:   0.60,
		SiblingNameSimilarity:     0.60,
	}
}

func (c MatchConfig) Validate() error {
	if c.HighThreshold <= 0 || c.HighThreshold > 1 {
		return fmt.Errorf("high threshold must be in (0,1], got %.3f", c.HighThreshold)
	}
	if c.MediumThreshold <= 0 || c.MediumThreshold >= c.HighThreshold {
		return fmt.Errorf("medium threshold must be in (0,%.3f), got %.3f", c.HighThreshold, c.MediumThreshold)
	}
	if c.MinScore < 0 || c.MinScore > c.HighThreshold {
		return fmt.Errorf("min score must be in [0,%.3f], got %.3f", c.HighThreshold, c.MinScore)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive, got %d", c.MaxCandidates)
	}
	if c.ScanLimit < c.MaxCandidates {
		return fmt.Errorf("scan limit %d is below max candidates %d", c.ScanLimit, c.MaxCandidates)
	}
	if c.PrefilterRatio <= 0 || c.PrefilterRatio > 1 {
		return fmt.Errorf("prefilter ratio must be in (0,1], got %.3f", c.PrefilterRatio)
	}
	if c.NameWeight <= 0 || c.BirthDateWeight < 0 || c.SexWeight < 0 {
		return fmt.Errorf("weights must be non-negative and name weight positive")
	}
	if c.HealthCardMismatchPenalty <= 0 || c.HealthCardMismatchPenalty > 1 {
		return fmt.Errorf("health card mismatch penalty must be in (0,1], got %.3f", c.HealthCardMismatchPenalty)
	}
	if c.HealthCardNameAgreement < 0 || c.HealthCardNameAgreement > 1 {
		return fmt.Errorf("health card name agreement must be in [0,1], got %.3f", c.HealthCardNameAgreement)
	}
	return nil
}

// TierFor buckets a score against the configured cut points.
func (c MatchConfig) TierFor(score float64) Tier {
	switch {
	case score >= c.HighThreshold:
		return TierHigh
	case score >= c.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}
