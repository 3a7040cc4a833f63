package resolution

import (
	"fmt"

	"github.com/rs/zerolog"
)

type State string

const (
	StateIdle          State = "idle"
	StateResolving     State = "resolving"
	StateAwaitingHuman State = "awaiting_human"
	StateCommitting    State = "committing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Auto-commit passes through Committing on its way from Resolving to
// Done. Failed may re-enter Committing when the caller continues a
// partial commit.
var transitions = map[State][]State{
	StateIdle:          {StateResolving},
	StateResolving:     {StateCommitting, StateAwaitingHuman, StateDone, StateFailed},
	StateAwaitingHuman: {StateCommitting, StateIdle},
	StateCommitting:    {StateDone, StateFailed},
	StateFailed:        {StateCommitting},
}

func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the state of a single resolution run.
type machine struct {
	state State
	log   zerolog.Logger
}

func newMachine(start State, log zerolog.Logger) *machine {
	return &machine{state: start, log: log}
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
	}
	m.log.Debug().Str("from", string(m.state)).Str("to", string(next)).Msg("resolution state")
	m.state = next
	return nil
}

// fail moves to Failed from any state that allows it and returns err.
func (m *machine) fail(err error) error {
	if CanTransition(m.state, StateFailed) {
		_ = m.to(StateFailed)
	}
	return err
}
