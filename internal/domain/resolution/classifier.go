package resolution

import "github.com/ehr/surgichart/internal/domain/identity"

type RelationshipKind string

const (
	RelationshipIdentical        RelationshipKind = "identical"
	RelationshipNameExpanded     RelationshipKind = "name_expanded"
	RelationshipAccentDifference RelationshipKind = "accent_difference"
	RelationshipPossibleSibling  RelationshipKind = "possible_sibling"
)

// classifyRule returns a kind and true when the rule applies.
type classifyRule func(c *Classifier, sub subject, stored *identity.Patient, diffs Differences) (RelationshipKind, bool)

// Classifier labels why a single high-confidence candidate differs from
// the submission. Rules run in order and the first match wins; the label
// is advisory and never triggers a merge.
type Classifier struct {
	scorer *Scorer
	rules  []classifyRule
}

func NewClassifier(scorer *Scorer) *Classifier {
	return &Classifier{
		scorer: scorer,
		rules:  []classifyRule{accentDifferenceRule, nameExpandedRule, possibleSiblingRule},
	}
}

func (c *Classifier) Classify(sub subject, stored *identity.Patient, diffs Differences) RelationshipKind {
	for _, rule := range c.rules {
		if kind, ok := rule(c, sub, stored, diffs); ok {
			return kind
		}
	}
	return RelationshipIdentical
}

// Same health card and the names only differ in case, spacing or accents.
func accentDifferenceRule(_ *Classifier, sub subject, stored *identity.Patient, diffs Differences) (RelationshipKind, bool) {
	if sub.healthCard == "" || sub.healthCard != stored.HealthCard() {
		return "", false
	}
	if !diffs.Has(FieldName) {
		return "", false
	}
	if sub.name.Canonical != NormalizeName(stored.FullName) {
		return "", false
	}
	return RelationshipAccentDifference, true
}

// Submitted name adds tokens to the stored one, same birth date.
func nameExpandedRule(_ *Classifier, sub subject, stored *identity.Patient, _ Differences) (RelationshipKind, bool) {
	if !sub.birthDate.Equal(NormalizeDate(stored.BirthDate)) {
		return "", false
	}
	if !strictSuperset(sub.name.Tokens, NewNameKey(stored.FullName).Tokens) {
		return "", false
	}
	return RelationshipNameExpanded, true
}

// Same birth date and a similar name, but a different given name and no
// containment between the two names.
func possibleSiblingRule(c *Classifier, sub subject, stored *identity.Patient, _ Differences) (RelationshipKind, bool) {
	if !sub.birthDate.Equal(NormalizeDate(stored.BirthDate)) {
		return "", false
	}
	key := NewNameKey(stored.FullName)
	if sub.name.First() == key.First() {
		return "", false
	}
	if strictSuperset(sub.name.Tokens, key.Tokens) || strictSuperset(key.Tokens, sub.name.Tokens) {
		return "", false
	}
	if c.scorer.NameSimilarity(sub.name, key) < c.scorer.cfg.SiblingNameSimilarity {
		return "", false
	}
	return RelationshipPossibleSibling, true
}
