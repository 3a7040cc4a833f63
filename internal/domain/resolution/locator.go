package resolution

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/surgichart/internal/domain/identity"
)

type located struct {
	patient *identity.Patient
	methods []SearchMethod
}

// Locator gathers plausible prior patients through the health-card and
// the name+birth-date access paths. Both paths always run so that a
// disagreement between them reaches the decision step.
type Locator struct {
	store Store
	cfg   MatchConfig
}

func NewLocator(store Store, cfg MatchConfig) *Locator {
	return &Locator{store: store, cfg: cfg}
}

func (l *Locator) locate(ctx context.Context, sub subject) ([]located, error) {
	var byCard, byName []*identity.Patient

	g, gctx := errgroup.WithContext(ctx)
	if sub.healthCard != "" {
		g.Go(func() error {
			found, err := l.store.FindByHealthCardNumber(gctx, sub.healthCard)
			if err != nil {
				return storageErr("find_by_health_card_number", err)
			}
			byCard = found
			return nil
		})
	}
	g.Go(func() error {
		found, err := l.store.FindByNameAndBirthDate(gctx, sub.name, sub.birthDate, l.cfg.ScanLimit)
		if err != nil {
			return storageErr("find_by_name_and_birth_date", err)
		}
		byName = l.prefilter(sub, found)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(byCard, byName, l.cfg.MaxCandidates), nil
}

// prefilter keeps same-birth-date rows that share a significant token or
// are within the coarse edit-ratio bound.
func (l *Locator) prefilter(sub subject, rows []*identity.Patient) []*identity.Patient {
	var kept []*identity.Patient
	for _, p := range rows {
		key := NewNameKey(p.FullName)
		if sharesToken(sub.name.Significant, key.Significant) || editRatio(sub.name.Canonical, key.Canonical) >= l.cfg.PrefilterRatio {
			kept = append(kept, p)
		}
	}
	return kept
}

// merge de-duplicates by id, health-card hits first, and caps the result.
// Health-card hits are never cut by the cap.
func merge(byCard, byName []*identity.Patient, limit int) []located {
	index := make(map[uuid.UUID]int)
	var out []located
	for _, p := range byCard {
		if i, ok := index[p.ID]; ok {
			out[i].methods = appendMethod(out[i].methods, MethodHealthCard)
			continue
		}
		index[p.ID] = len(out)
		out = append(out, located{patient: p, methods: []SearchMethod{MethodHealthCard}})
	}
	for _, p := range byName {
		if i, ok := index[p.ID]; ok {
			out[i].methods = appendMethod(out[i].methods, MethodNameBirthDate)
			continue
		}
		if len(out) >= limit {
			continue
		}
		index[p.ID] = len(out)
		out = append(out, located{patient: p, methods: []SearchMethod{MethodNameBirthDate}})
	}
	return out
}

func appendMethod(ms []SearchMethod, m SearchMethod) []SearchMethod {
	for _, have := range ms {
		if have == m {
			return ms
		}
	}
	return append(ms, m)
}
