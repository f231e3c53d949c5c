package generation

// State is the lifecycle state of a generation session.
type State string

const (
	StateIdle                           State = "idle"
	StateAwaitingModelDownloadAllowance State = "awaitingModelDownloadAllowance"
	StateLoadingModel                   State = "loadingModel"
	StateAwaitingSearchResults          State = "awaitingSearchResults"
	StatePreparingToGenerate            State = "preparingToGenerate"
	StateGenerating                     State = "generating"
	StateInterrupted                    State = "interrupted"
	StateFailed                         State = "failed"
	StateCompleted                      State = "completed"
)

// Terminal reports whether no further transitions may leave s.
func (s State) Terminal() bool {
	switch s {
	case StateInterrupted, StateFailed, StateCompleted:
		return true
	default:
		return false
	}
}

func (s State) String() string { return string(s) }
