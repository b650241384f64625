package ajaxform

// State is the phase of a controller's submission lifecycle:
//
//	Idle -> Submitting -> {Succeeded | Failed} -> Settled -> Idle
type State int

const (
	// StateIdle accepts a new submission.
	StateIdle State = iota

	// StateSubmitting covers building the body, sending the request and
	// waiting for the response. Re-entrant submits are rejected.
	StateSubmitting

	// StateSucceeded renders the success message, runs OnSuccess and
	// resets the form.
	StateSucceeded

	// StateFailed renders the error messages and runs OnFailed.
	StateFailed

	// StateSettled scrolls, blurs, runs OnComplete and broadcasts
	// completion before returning to StateIdle.
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}
