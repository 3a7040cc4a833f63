package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/surgery"
)

type Action string

const (
	ActionPatientAndProcedureCreated Action = "patient_and_procedure_created"
	ActionProcedureCreated           Action = "procedure_created"
	ActionExactWithDifferences       Action = "exact_patient_with_differences"
	ActionSimilarPatientsFound       Action = "similar_patients_found"
)

// DefaultHoldTTL bounds how long a pending submission or a partial commit
// can be picked up again.
const DefaultHoldTTL = 30 * time.Minute

// PendingSubmission is a resolution suspended for a human decision. The
// server keeps it under ID until one resume operation or Cancel claims it,
// or until it expires. Clients only send the ID back; the submission and
// the candidate list are never taken from the request.
type PendingSubmission struct {
	ID           uuid.UUID   `json:"id"`
	Submission   Submission  `json:"submission"`
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Reason       OutcomeKind `json:"reason"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

func (p *PendingSubmission) hasCandidate(id uuid.UUID) bool {
	for _, c := range p.CandidateIDs {
		if c == id {
			return true
		}
	}
	return false
}

// CreationResult is returned by ResolveAndCreate. Which fields are set
// depends on Action.
type CreationResult struct {
	Action Action `json:"action"`

	Patient   *identity.Patient    `json:"patient,omitempty"`
	Procedure *procedure.Procedure `json:"procedure,omitempty"`
	Surgery   *surgery.Surgery     `json:"surgery,omitempty"`

	ExistingPatient *identity.Patient `json:"existing_patient,omitempty"`
	Candidate       *MatchCandidate   `json:"candidate,omitempty"`
	Confidence      Tier              `json:"confidence,omitempty"`
	Relationship    RelationshipKind  `json:"relationship,omitempty"`
	Differences     Differences       `json:"differences,omitempty"`

	SimilarPatients   []*MatchCandidate `json:"similar_patients,omitempty"`
	IntegrityConflict bool              `json:"integrity_conflict,omitempty"`

	Pending *PendingSubmission `json:"pending_submission,omitempty"`

	Outcome Outcome `json:"-"`
}

// Orchestrator sequences resolution and persistence for one submission at
// a time. State that outlives a call is kept in the HoldStore, so a single
// instance serves concurrent requests.
type Orchestrator struct {
	store   Store
	holds   HoldStore
	holdTTL time.Duration
	matcher *Matcher
	log     zerolog.Logger
	obs     Observer
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithHoldStore replaces the in-process hold store.
func WithHoldStore(holds HoldStore) Option {
	return func(o *Orchestrator) {
		if holds != nil {
			o.holds = holds
		}
	}
}

func WithHoldTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.holdTTL = ttl
		}
	}
}

func NewOrchestrator(store Store, cfg MatchConfig, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		holds:   NewMemoryHoldStore(),
		holdTTL: DefaultHoldTTL,
		matcher: NewMatcher(store, cfg),
		log:     logger.With().Str("component", "patient_resolution").Logger(),
		obs:     noopObserver{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResolveAndCreate resolves the submitted patient and, when no human
// decision is needed, writes the records.
func (o *Orchestrator) ResolveAndCreate(ctx context.Context, sub Submission) (*CreationResult, error) {
	sj, err := validate(sub, o.now())
	if err != nil {
		return nil, err
	}
	m := newMachine(StateIdle, o.log)
	if err := m.to(StateResolving); err != nil {
		return nil, err
	}

	outcome, err := o.matcher.match(ctx, sj)
	if err != nil {
		o.reportStorage(err)
		o.log.Warn().Err(err).Msg("patient resolution aborted")
		return nil, m.fail(err)
	}
	o.obs.OutcomeResolved(string(outcome.Kind()), candidateCount(outcome))
	o.log.Info().
		Str("outcome", string(outcome.Kind())).
		Int("candidates", candidateCount(outcome)).
		Msg("patient resolved")

	switch out := outcome.(type) {
	case NoMatch:
		prog := &CommitProgress{Decision: DecisionAutoCreate, Submission: sub}
		res, err := o.commit(ctx, m, sj, prog, nil)
		if err != nil {
			return nil, err
		}
		return &CreationResult{
			Action:    ActionPatientAndProcedureCreated,
			Patient:   res.Patient,
			Procedure: res.Procedure,
			Surgery:   res.Surgery,
			Outcome:   out,
		}, nil

	case ExactMatch:
		prog := &CommitProgress{Decision: DecisionAutoReuse, Submission: sub, PatientID: out.Candidate.Patient.ID}
		res, err := o.commit(ctx, m, sj, prog, out.Candidate.Patient)
		if err != nil {
			return nil, err
		}
		return &CreationResult{
			Action:    ActionProcedureCreated,
			Patient:   res.Patient,
			Procedure: res.Procedure,
			Surgery:   res.Surgery,
			Outcome:   out,
		}, nil

	case ExactWithDifferences:
		pending, err := o.suspend(ctx, sub, out.Kind(), out.Candidate)
		if err != nil {
			return nil, m.fail(err)
		}
		if err := m.to(StateAwaitingHuman); err != nil {
			return nil, err
		}
		return &CreationResult{
			Action:          ActionExactWithDifferences,
			ExistingPatient: out.Candidate.Patient,
			Candidate:       out.Candidate,
			Confidence:      out.Confidence,
			Relationship:    out.Relationship,
			Differences:     out.Differences,
			Pending:         pending,
			Outcome:         out,
		}, nil

	case SimilarMatches:
		if out.IntegrityConflict {
			o.obs.IntegrityConflict()
			o.log.Warn().Int("records", countByCard(out.Candidates)).Msg("health card number shared by several patients")
		}
		pending, err := o.suspend(ctx, sub, out.Kind(), out.Candidates...)
		if err != nil {
			return nil, m.fail(err)
		}
		if err := m.to(StateAwaitingHuman); err != nil {
			return nil, err
		}
		return &CreationResult{
			Action:            ActionSimilarPatientsFound,
			SimilarPatients:   out.Candidates,
			IntegrityConflict: out.IntegrityConflict,
			Pending:           pending,
			Outcome:           out,
		}, nil
	}
	return nil, m.fail(errors.New("unhandled resolution outcome"))
}

// ResumeWithExisting reuses the chosen candidate as stored.
func (o *Orchestrator) ResumeWithExisting(ctx context.Context, pendingID, candidateID uuid.UUID) (*CommitResult, error) {
	return o.resume(ctx, DecisionReuse, pendingID, candidateID)
}

// ResumeWithUpdate copies the submitted values onto the chosen candidate,
// keeping its id, then charts against it.
func (o *Orchestrator) ResumeWithUpdate(ctx context.Context, pendingID, candidateID uuid.UUID) (*CommitResult, error) {
	return o.resume(ctx, DecisionReuseAndUpdate, pendingID, candidateID)
}

// ResumeForceNew ignores every candidate and creates a new patient.
func (o *Orchestrator) ResumeForceNew(ctx context.Context, pendingID uuid.UUID) (*CommitResult, error) {
	return o.resume(ctx, DecisionForceCreate, pendingID, uuid.Nil)
}

// Cancel discards a pending submission without writing anything.
func (o *Orchestrator) Cancel(ctx context.Context, pendingID uuid.UUID) error {
	pending, err := o.claimPending(ctx, pendingID)
	if err != nil {
		return err
	}
	m := newMachine(StateAwaitingHuman, o.log)
	if err := m.to(StateIdle); err != nil {
		return err
	}
	o.log.Info().Str("pending_id", pending.ID.String()).Str("reason", string(pending.Reason)).
		Int("candidates", len(pending.CandidateIDs)).Msg("pending submission cancelled")
	return nil
}

// ContinueCommit finishes a commit that stopped with a PartialCommitError,
// running only the steps that have not completed. Each progress id can be
// continued once; a further failure hands out a new one.
func (o *Orchestrator) ContinueCommit(ctx context.Context, progressID uuid.UUID) (*CommitResult, error) {
	h, err := o.holds.Claim(ctx, HoldCommit, progressID, o.now())
	if err != nil {
		return nil, o.holdErr("claim_progress", err, ErrProgressUnknown)
	}
	var prog CommitProgress
	if err := json.Unmarshal(h.Payload, &prog); err != nil {
		return nil, fmt.Errorf("decode commit progress %s: %w", progressID, err)
	}

	res, err := o.continueCommit(ctx, &prog)
	if err != nil {
		var pe *PartialCommitError
		if !errors.As(err, &pe) {
			o.release(ctx, HoldCommit, progressID)
		}
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) continueCommit(ctx context.Context, prog *CommitProgress) (*CommitResult, error) {
	if !prog.Decision.valid() {
		return nil, &ValidationError{Fields: []string{"progress.decision"}}
	}
	if len(prog.Remaining()) == 0 {
		return nil, ErrCommitComplete
	}
	if prog.PatientID == uuid.Nil && (prog.PatientDone || prog.Decision.patientStep() != StepCreatePatient) {
		return nil, &ValidationError{Fields: []string{"progress.patient_id"}}
	}
	sj, err := validate(prog.Submission, o.now())
	if err != nil {
		return nil, err
	}
	m := newMachine(StateFailed, o.log)
	return o.commit(ctx, m, sj, prog, nil)
}

func (o *Orchestrator) resume(ctx context.Context, d Decision, pendingID, candidateID uuid.UUID) (*CommitResult, error) {
	pending, err := o.claimPending(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	res, err := o.resumeClaimed(ctx, d, pending, candidateID)
	if err != nil {
		// Nothing was written, so the human may choose again.
		var pe *PartialCommitError
		if !errors.As(err, &pe) {
			o.release(ctx, HoldDecision, pending.ID)
		}
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) resumeClaimed(ctx context.Context, d Decision, pending *PendingSubmission, candidateID uuid.UUID) (*CommitResult, error) {
	if d != DecisionForceCreate && !pending.hasCandidate(candidateID) {
		return nil, ErrUnknownCandidate
	}
	sj, err := validate(pending.Submission, o.now())
	if err != nil {
		return nil, err
	}
	m := newMachine(StateAwaitingHuman, o.log)
	prog := &CommitProgress{Decision: d, Submission: pending.Submission, PatientID: candidateID}
	return o.commit(ctx, m, sj, prog, nil)
}

// suspend stores a pending submission for the given candidates.
func (o *Orchestrator) suspend(ctx context.Context, sub Submission, reason OutcomeKind, cands ...*MatchCandidate) (*PendingSubmission, error) {
	ids := make([]uuid.UUID, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.Patient.ID)
	}
	p := &PendingSubmission{
		ID:           uuid.New(),
		Submission:   sub,
		CandidateIDs: ids,
		Reason:       reason,
		ExpiresAt:    o.now().Add(o.holdTTL),
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode pending submission: %w", err)
	}
	if err := o.holds.Put(ctx, Hold{ID: p.ID, Kind: HoldDecision, Payload: payload, ExpiresAt: p.ExpiresAt}); err != nil {
		o.obs.StorageFailure("save_pending")
		return nil, storageErr("save_pending", err)
	}
	return p, nil
}

func (o *Orchestrator) claimPending(ctx context.Context, id uuid.UUID) (*PendingSubmission, error) {
	h, err := o.holds.Claim(ctx, HoldDecision, id, o.now())
	if err != nil {
		return nil, o.holdErr("claim_pending", err, ErrPendingClosed)
	}
	var p PendingSubmission
	if err := json.Unmarshal(h.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode pending submission %s: %w", id, err)
	}
	return &p, nil
}

// saveProgress stores the progress of a partial commit and sets its id.
// When the hold cannot be stored the id stays nil and the commit can only
// be finished by hand.
func (o *Orchestrator) saveProgress(ctx context.Context, pe *PartialCommitError) {
	pe.Progress.ID = uuid.New()
	payload, err := json.Marshal(pe.Progress)
	if err == nil {
		err = o.holds.Put(ctx, Hold{ID: pe.Progress.ID, Kind: HoldCommit, Payload: payload, ExpiresAt: o.now().Add(o.holdTTL)})
	}
	if err != nil {
		o.obs.StorageFailure("save_progress")
		o.log.Error().Err(err).Str("patient_id", pe.Progress.PatientID.String()).Msg("partial commit progress not saved")
		pe.Progress.ID = uuid.Nil
	}
}

func (o *Orchestrator) release(ctx context.Context, kind HoldKind, id uuid.UUID) {
	if err := o.holds.Release(context.WithoutCancel(ctx), kind, id); err != nil {
		o.log.Warn().Err(err).Str("kind", string(kind)).Str("hold_id", id.String()).Msg("hold release failed")
	}
}

func (o *Orchestrator) holdErr(op string, err, missing error) error {
	if errors.Is(err, ErrHoldNotFound) {
		return missing
	}
	o.obs.StorageFailure(op)
	return storageErr(op, err)
}

func (o *Orchestrator) reportStorage(err error) {
	var se *StorageError
	if errors.As(err, &se) {
		o.obs.StorageFailure(se.Op)
	}
}

func candidateCount(out Outcome) int {
	switch v := out.(type) {
	case ExactMatch, ExactWithDifferences:
		return 1
	case SimilarMatches:
		return len(v.Candidates)
	}
	return 0
}

func countByCard(cands []*MatchCandidate) int {
	n := 0
	for _, c := range cands {
		if c.FoundBy(MethodHealthCard) {
			n++
		}
	}
	return n
}
