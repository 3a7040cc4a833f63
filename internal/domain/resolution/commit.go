package resolution

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/surgery"
)

// Decision names how the patient of a commit is obtained.
type Decision string

const (
	DecisionAutoCreate     Decision = "auto_create"
	DecisionAutoReuse      Decision = "auto_reuse"
	DecisionReuse          Decision = "reuse"
	DecisionReuseAndUpdate Decision = "reuse_and_update"
	DecisionForceCreate    Decision = "force_create"
)

func (d Decision) valid() bool {
	switch d {
	case DecisionAutoCreate, DecisionAutoReuse, DecisionReuse, DecisionReuseAndUpdate, DecisionForceCreate:
		return true
	}
	return false
}

func (d Decision) patientStep() CommitStep {
	switch d {
	case DecisionAutoCreate, DecisionForceCreate:
		return StepCreatePatient
	case DecisionReuseAndUpdate:
		return StepUpdatePatient
	default:
		return StepLoadPatient
	}
}

type CommitStep string

const (
	StepLoadPatient     CommitStep = "load_patient"
	StepCreatePatient   CommitStep = "create_patient"
	StepUpdatePatient   CommitStep = "update_patient"
	StepCreateProcedure CommitStep = "create_procedure"
	StepCreateSurgery   CommitStep = "create_surgery"
)

// CommitProgress is the resumable state of a commit: the original
// submission, how the patient is obtained and the ids written so far. ID
// is set once the progress of a partial commit is held for ContinueCommit.
type CommitProgress struct {
	ID          uuid.UUID  `json:"id"`
	Decision    Decision   `json:"decision"`
	Submission  Submission `json:"submission"`
	PatientID   uuid.UUID  `json:"patient_id"`
	PatientDone bool       `json:"patient_done"`
	ProcedureID *uuid.UUID `json:"procedure_id,omitempty"`
	SurgeryID   *uuid.UUID `json:"surgery_id,omitempty"`
}

// Remaining lists the steps that have not completed, in execution order.
func (p CommitProgress) Remaining() []CommitStep {
	var steps []CommitStep
	if !p.PatientDone {
		steps = append(steps, p.Decision.patientStep())
	}
	if p.ProcedureID == nil {
		steps = append(steps, StepCreateProcedure)
	}
	if p.Submission.Surgery != nil && p.SurgeryID == nil {
		steps = append(steps, StepCreateSurgery)
	}
	return steps
}

// written reports whether any record has been created or changed.
func (p CommitProgress) written() bool {
	if p.ProcedureID != nil || p.SurgeryID != nil {
		return true
	}
	return p.PatientDone && p.Decision.patientStep() != StepLoadPatient
}

// CommitResult carries the records read or written by a commit. Records
// written by an earlier call of a continued commit are only referenced in
// Progress.
type CommitResult struct {
	Patient   *identity.Patient    `json:"patient"`
	Procedure *procedure.Procedure `json:"procedure,omitempty"`
	Surgery   *surgery.Surgery     `json:"surgery,omitempty"`
	Progress  CommitProgress       `json:"progress"`
}

// commit writes patient, procedure and surgery in that order. It runs
// detached from the caller's cancellation: once started it finishes or
// fails, and never leaves a procedure pointing at a missing patient.
func (o *Orchestrator) commit(ctx context.Context, m *machine, sub subject, prog *CommitProgress, known *identity.Patient) (*CommitResult, error) {
	ctx = context.WithoutCancel(ctx)
	if err := m.to(StateCommitting); err != nil {
		return nil, err
	}

	log := o.log.With().Str("decision", string(prog.Decision)).Logger()
	res := &CommitResult{}

	fail := func(step CommitStep, err error) (*CommitResult, error) {
		var cause error
		if errors.Is(err, identity.ErrPatientNotFound) {
			// The chosen patient was removed after it was offered.
			cause = fmt.Errorf("%w: patient %s no longer exists", ErrUnknownCandidate, prog.PatientID)
		} else {
			cause = storageErr(string(step), err)
			o.obs.StorageFailure(string(step))
		}
		if !prog.written() {
			log.Warn().Err(err).Str("step", string(step)).Msg("commit failed before any write")
			return nil, m.fail(cause)
		}
		o.obs.PartialCommit(string(step))
		logProgress(log.Error().Err(err), prog).Str("step", string(step)).Msg("partial commit")
		pe := &PartialCommitError{Progress: *prog, Step: step, Err: cause}
		o.saveProgress(ctx, pe)
		return nil, m.fail(pe)
	}

	if !prog.PatientDone {
		step := prog.Decision.patientStep()
		switch step {
		case StepCreatePatient:
			p := sub.newPatient()
			if err := o.store.CreatePatient(ctx, p); err != nil {
				return fail(step, err)
			}
			prog.PatientID = p.ID
			res.Patient = p
		case StepUpdatePatient:
			current, err := o.store.GetPatient(ctx, prog.PatientID)
			if err != nil {
				return fail(StepLoadPatient, err)
			}
			updated := current.Clone()
			sub.applyTo(updated)
			updated.ID = current.ID
			if err := o.store.UpdatePatient(ctx, updated); err != nil {
				return fail(step, err)
			}
			res.Patient = updated
		default:
			p := known
			if p == nil {
				var err error
				if p, err = o.store.GetPatient(ctx, prog.PatientID); err != nil {
					return fail(step, err)
				}
			}
			res.Patient = p
		}
		prog.PatientDone = true
	} else {
		p, err := o.store.GetPatient(ctx, prog.PatientID)
		if err != nil {
			return fail(StepLoadPatient, err)
		}
		res.Patient = p
	}

	if prog.ProcedureID == nil {
		proc := prog.Submission.Procedure
		proc.PatientID = prog.PatientID
		if err := o.store.CreateProcedure(ctx, &proc); err != nil {
			return fail(StepCreateProcedure, err)
		}
		id := proc.ID
		prog.ProcedureID = &id
		res.Procedure = &proc
	}

	if prog.Submission.Surgery != nil && prog.SurgeryID == nil {
		sg := *prog.Submission.Surgery
		sg.PatientID = prog.PatientID
		sg.ProcedureID = *prog.ProcedureID
		if err := o.store.CreateSurgery(ctx, &sg); err != nil {
			return fail(StepCreateSurgery, err)
		}
		id := sg.ID
		prog.SurgeryID = &id
		res.Surgery = &sg
	}

	if err := m.to(StateDone); err != nil {
		return nil, err
	}
	res.Progress = *prog
	o.obs.CommitCompleted(string(prog.Decision))
	logProgress(log.Info(), prog).Msg("commit completed")
	return res, nil
}

func logProgress(evt *zerolog.Event, prog *CommitProgress) *zerolog.Event {
	evt = evt.Str("patient_id", prog.PatientID.String())
	if prog.ProcedureID != nil {
		evt = evt.Str("procedure_id", prog.ProcedureID.String())
	}
	if prog.SurgeryID != nil {
		evt = evt.Str("surgery_id", prog.SurgeryID.String())
	}
	return evt
}
