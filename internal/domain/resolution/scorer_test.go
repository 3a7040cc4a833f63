package resolution

import (
	"encoding/json"
	"testing"
)

func TestScorer_NameSimilarity(t *testing.T) {
	s := NewScorer(DefaultMatchConfig())

	if got := s.NameSimilarity(NewNameKey("José da Silva"), NewNameKey("JOSE DA SILVA")); got != 1 {
		t.Errorf("accent and case must not matter, got %f", got)
	}
	a, b := NewNameKey("Maria Aparecida Silva Santos"), NewNameKey("Maria Silva")
	if got := s.NameSimilarity(a, b); got != s.NameSimilarity(b, a) {
		t.Error("similarity must be symmetric")
	}
	if got := s.NameSimilarity(a, b); got >= 1 {
		t.Errorf("a contained name must not score like an identical one, got %f", got)
	}
}

func TestScorer_Evaluate(t *testing.T) {
	cfg := DefaultMatchConfig()
	s := NewScorer(cfg)

	tests := []struct {
		name      string
		stored    string
		submitted string
		tier      Tier
	}{
		{"identical", "Maria Silva", "Maria Silva", TierHigh},
		{"name expanded", "Maria Silva", "Maria Aparecida Silva Santos", TierHigh},
		{"one token shared", "Joao Pereira", "Joao Souza", TierMedium},
		{"unrelated", "Xu Li", "Maria Aparecida Santos", TierLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := mustSubject(t, submission(tt.submitted, "1980-05-10", ""))
			c := s.evaluate(sub, stored(tt.stored, "1980-05-10"), []SearchMethod{MethodNameBirthDate})
			if c.Tier != tt.tier {
				t.Errorf("expected tier %s, got %s (score %.3f)", tt.tier, c.Tier, c.Score)
			}
			if c.Score < 0 || c.Score > 1 {
				t.Errorf("score out of range: %f", c.Score)
			}
			if len(c.Factors) != 2 {
				t.Errorf("expected name and birth date factors, got %d", len(c.Factors))
			}
		})
	}
}

func TestScorer_SexOnlyWhenBothKnown(t *testing.T) {
	s := NewScorer(DefaultMatchConfig())
	sub := submission("Pedro Henrique Alves", "1990-07-01", "")
	sub.Patient.Sex = "male"
	sj := mustSubject(t, sub)

	c := s.evaluate(sj, stored("Pedro Henrique Alves", "1990-07-01"), nil)
	if len(c.Factors) != 2 || c.Score != 1 {
		t.Errorf("unknown stored sex must not be scored, got %d factors score %.3f", len(c.Factors), c.Score)
	}
	c = s.evaluate(sj, withSex(stored("Pedro Henrique Alves", "1990-07-01"), "female"), nil)
	if len(c.Factors) != 3 || c.Score >= 1 {
		t.Errorf("expected sex mismatch to lower the score, got %.3f", c.Score)
	}
	if !c.Differences.Has(FieldSex) {
		t.Error("expected sex difference")
	}
}

func TestScorer_HealthCard(t *testing.T) {
	cfg := DefaultMatchConfig()
	s := NewScorer(cfg)

	// An equal CNS lifts an agreeing name with a mistyped birth date into
	// the high tier.
	sj := mustSubject(t, submission("Maria Silva Santos", "1980-05-11", "123456789012345"))
	c := s.evaluate(sj, withCard(stored("Maria Silva", "1980-05-10"), "123456789012345"), []SearchMethod{MethodHealthCard})
	if c.Tier != TierHigh {
		t.Errorf("equal health card should be high, got %s (%.3f)", c.Tier, c.Score)
	}

	// A different CNS keeps an otherwise identical record below high.
	sj = mustSubject(t, submission("Maria Silva", "1980-05-10", "123456789012345"))
	c = s.evaluate(sj, withCard(stored("Maria Silva", "1980-05-10"), "111111111111111"), nil)
	if c.Tier == TierHigh {
		t.Errorf("different health card must not be high, got %.3f", c.Score)
	}
	if c.Score != round3(cfg.HealthCardMismatchPenalty) {
		t.Errorf("expected penalised score %.3f, got %.3f", cfg.HealthCardMismatchPenalty, c.Score)
	}
	if !c.Differences.Has(FieldHealthCard) {
		t.Error("expected health card difference")
	}
}

func TestScorer_HealthCardContradictedByName(t *testing.T) {
	s := NewScorer(DefaultMatchConfig())

	sj := mustSubject(t, submission("Joao Souza", "1980-05-10", "123456789012345"))
	c := s.evaluate(sj, withCard(stored("Maria Silva", "1980-05-10"), "123456789012345"), []SearchMethod{MethodHealthCard})
	if c.Tier == TierHigh {
		t.Fatalf("a shared card must not lift an unrelated name, got %s (%.3f)", c.Tier, c.Score)
	}
	var card *ScoreFactor
	for i := range c.Factors {
		if c.Factors[i].Field == FieldHealthCard {
			card = &c.Factors[i]
		}
	}
	if card == nil || card.Similarity != 1 {
		t.Errorf("expected the equal card reported as a factor, got %+v", c.Factors)
	}

	cfg := DefaultMatchConfig()
	cfg.HealthCardNameAgreement = 0
	c = NewScorer(cfg).evaluate(sj, withCard(stored("Maria Silva", "1980-05-10"), "123456789012345"), nil)
	if c.Tier != TierHigh {
		t.Errorf("without a name agreement floor the card alone decides, got %s", c.Tier)
	}
}

func TestDifferences(t *testing.T) {
	sj := mustSubject(t, submission("Maria Aparecida Silva", "1980-05-11", ""))
	p := withCard(stored("Maria Silva", "1980-05-10"), "123456789012345")
	diffs := differences(sj, p)

	if !diffs.Has(FieldName) || !diffs.Has(FieldBirthDate) {
		t.Errorf("expected name and birth date differences, got %+v", diffs)
	}
	if diffs.Has(FieldHealthCard) {
		t.Error("an absent submitted value is not a difference")
	}
	bd, _ := diffs.Get(FieldBirthDate)
	if bd.Existing != "1980-05-10" || bd.Submitted != "1980-05-11" {
		t.Errorf("unexpected birth date difference %+v", bd)
	}

	same := mustSubject(t, submission("Maria Silva ", "1980-05-10", "123456789012345"))
	if d := differences(same, p); len(d) != 0 {
		t.Errorf("expected no differences, got %+v", d)
	}
}

func TestDifferences_JSON(t *testing.T) {
	d := Differences{
		{Field: FieldBirthDate, Existing: "1980-05-10", Submitted: "1980-05-11"},
		{Field: FieldName, Existing: "Maria Silva", Submitted: "Maria da Silva"},
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"name":{"existing":"Maria Silva","new":"Maria da Silva"},"birthDate":{"existing":"1980-05-10","new":"1980-05-11"}}`
	if string(b) != want {
		t.Errorf("got %s\nwant %s", b, want)
	}

	var back Differences
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n, ok := back.Get(FieldName); !ok || n.Submitted != "Maria da Silva" {
		t.Errorf("unexpected round trip %+v", back)
	}
}
