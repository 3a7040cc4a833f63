package resolution

type OutcomeKind string

const (
	KindNoMatch              OutcomeKind = "no_match"
	KindExactMatch           OutcomeKind = "exact_match"
	KindExactWithDifferences OutcomeKind = "exact_with_differences"
	KindSimilarMatches       OutcomeKind = "similar_matches"
)

// Outcome is the single verdict of a resolution. The variants are
// NoMatch, ExactMatch, ExactWithDifferences and SimilarMatches.
type Outcome interface {
	Kind() OutcomeKind
	isOutcome()
}

type NoMatch struct{}

type ExactMatch struct {
	Candidate *MatchCandidate
}

type ExactWithDifferences struct {
	Candidate    *MatchCandidate
	Relationship RelationshipKind
	Confidence   Tier
	Differences  Differences
}

type SimilarMatches struct {
	Candidates []*MatchCandidate
	// IntegrityConflict is set when more than one stored patient carries
	// the submitted health-card number.
	IntegrityConflict bool
}

func (NoMatch) Kind() OutcomeKind              { return KindNoMatch }
func (ExactMatch) Kind() OutcomeKind           { return KindExactMatch }
func (ExactWithDifferences) Kind() OutcomeKind { return KindExactWithDifferences }
func (SimilarMatches) Kind() OutcomeKind       { return KindSimilarMatches }

func (NoMatch) isOutcome()              {}
func (ExactMatch) isOutcome()           {}
func (ExactWithDifferences) isOutcome() {}
func (SimilarMatches) isOutcome()       {}
