package model

// State is the shared lifecycle vocabulary for jobs and files.
type State string

const (
	StateSubmitted State = "SUBMITTED"
	StateReady     State = "READY"
	StateActive    State = "ACTIVE"
	StateStaging   State = "STAGING"
	StateFinished  State = "FINISHED"
	StateFailed    State = "FAILED"
	StateCanceled  State = "CANCELED"
)

// ActiveStates are the states of a transfer that has not finished yet.
// Jobs and files outside this set are terminal.
var ActiveStates = []State{StateSubmitted, StateReady, StateActive, StateStaging}

// IsActive reports whether the state still counts as in-flight work.
func (s State) IsActive() bool {
	for _, a := range ActiveStates {
		if s == a {
			return true
		}
	}
	return false
}

// IsFinished is the complement of IsActive: any state outside the active
// set counts as finished, including states written by external agents.
func (s State) IsFinished() bool {
	return !s.IsActive()
}

func (s State) String() string {
	return string(s)
}
