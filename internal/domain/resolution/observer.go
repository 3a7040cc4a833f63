package resolution

// Observer receives resolution events, typically to feed metrics.
type Observer interface {
	OutcomeResolved(kind string, candidates int)
	IntegrityConflict()
	CommitCompleted(decision string)
	PartialCommit(step string)
	StorageFailure(op string)
}

type noopObserver struct{}

func (noopObserver) OutcomeResolved(string, int) {}
func (noopObserver) IntegrityConflict()          {}
func (noopObserver) CommitCompleted(string)      {}
func (noopObserver) PartialCommit(string)        {}
func (noopObserver) StorageFailure(string)       {}
