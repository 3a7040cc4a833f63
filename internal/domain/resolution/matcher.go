package resolution

import (
	"context"
	"sort"
)

// Matcher runs locator, scorer and classifier and reduces their output to
// exactly one Outcome.
type Matcher struct {
	cfg        MatchConfig
	locator    *Locator
	scorer     *Scorer
	classifier *Classifier
}

func NewMatcher(store Store, cfg MatchConfig) *Matcher {
	scorer := NewScorer(cfg)
	return &Matcher{
		cfg:        cfg,
		locator:    NewLocator(store, cfg),
		scorer:     scorer,
		classifier: NewClassifier(scorer),
	}
}

func (m *Matcher) match(ctx context.Context, sub subject) (Outcome, error) {
	found, err := m.locator.locate(ctx, sub)
	if err != nil {
		return nil, err
	}
	cands := make([]*MatchCandidate, 0, len(found))
	for _, f := range found {
		cands = append(cands, m.scorer.evaluate(sub, f.patient, f.methods))
	}
	return m.decide(sub, cands), nil
}

func (m *Matcher) decide(sub subject, cands []*MatchCandidate) Outcome {
	var kept []*MatchCandidate
	cardHits := 0
	for _, c := range cands {
		byCard := c.FoundBy(MethodHealthCard)
		if byCard {
			cardHits++
		}
		if byCard || c.Score >= m.cfg.MinScore {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return NoMatch{}
	}
	sortCandidates(kept)

	if cardHits > 1 {
		return SimilarMatches{Candidates: kept, IntegrityConflict: true}
	}

	// A health-card hit contradicted by a different, reasonably similar
	// patient on the name path is shown to a human.
	if cardHits == 1 {
		for _, c := range kept {
			if !c.FoundBy(MethodHealthCard) && c.Tier.AtLeast(TierMedium) {
				return SimilarMatches{Candidates: kept}
			}
		}
	}

	var high []*MatchCandidate
	for _, c := range kept {
		if c.Tier == TierHigh {
			high = append(high, c)
		}
	}
	if len(high) != 1 {
		return SimilarMatches{Candidates: kept}
	}

	top := high[0]
	if len(top.Differences) == 0 {
		return ExactMatch{Candidate: top}
	}
	top.Relationship = m.classifier.Classify(sub, top.Patient, top.Differences)
	return ExactWithDifferences{
		Candidate:    top,
		Relationship: top.Relationship,
		Confidence:   top.Tier,
		Differences:  top.Differences,
	}
}

func sortCandidates(cands []*MatchCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ac, bc := a.FoundBy(MethodHealthCard), b.FoundBy(MethodHealthCard)
		if ac != bc {
			return ac
		}
		return a.Patient.ID.String() < b.Patient.ID.String()
	})
}
