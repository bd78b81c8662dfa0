package upload

// Status represents the current state of an upload task.
//
// The lifecycle is reserve -> transfer -> finalize, with user commands
// (pause/resume/cancel/retry) and failure propagation branching off it:
//
//	Queued -> Reserving -> Uploading -> Finalizing -> Succeeded
//
// Succeeded and Canceled are final. Failed and Blocked are resting states a
// user can retry out of; cancellation is deliberate and cannot be retried.
type Status int

const (
	// StatusQueued indicates the task is waiting for a free concurrency slot.
	StatusQueued Status = iota
	// StatusReserving indicates the backend is being asked for an upload slot.
	StatusReserving
	// StatusUploading indicates the byte stream is in flight.
	StatusUploading
	// StatusFinalizing indicates the commit call is in flight.
	StatusFinalizing
	// StatusPaused indicates the user suspended the task.
	StatusPaused
	// StatusSucceeded indicates the backend committed the asset.
	StatusSucceeded
	// StatusFailed indicates an attempt failed; the task can be retried.
	StatusFailed
	// StatusBlocked indicates an earlier task's failure prevented this task
	// from being attempted (strict-sequential batches only).
	StatusBlocked
	// StatusCanceled indicates the user abandoned the task.
	StatusCanceled
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusReserving:
		return "reserving"
	case StatusUploading:
		return "uploading"
	case StatusFinalizing:
		return "finalizing"
	case StatusPaused:
		return "paused"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can ever apply. Failed and
// Blocked are not terminal: an explicit retry requeues them.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

// IsActive reports whether the task still wants to make progress. This is the
// set the aggregate "hasActive" summary flag is computed from.
func (s Status) IsActive() bool {
	switch s {
	case StatusQueued, StatusReserving, StatusUploading, StatusFinalizing:
		return true
	default:
		return false
	}
}

// IsInFlight reports whether the task currently occupies a concurrency slot,
// i.e. one of the three protocol phases is executing.
func (s Status) IsInFlight() bool {
	return s == StatusReserving || s == StatusUploading || s == StatusFinalizing
}

// CanTransitionTo checks if a state transition is legal.
func (s Status) CanTransitionTo(next Status) bool {
	// Any non-terminal state may be canceled; Succeeded is immutable.
	if next == StatusCanceled {
		return !s.IsTerminal()
	}

	switch s {
	case StatusQueued:
		// Failed covers the batch-level configuration error, which marks
		// queued tasks failed before any attempt. Blocked and Paused cover
		// sequential propagation and pause-all hitting not-yet-started tasks.
		return next == StatusReserving || next == StatusPaused ||
			next == StatusBlocked || next == StatusFailed
	case StatusReserving:
		// Reserving -> Finalizing is the zero-byte shortcut: there is
		// nothing to stream, so the task never enters Uploading.
		return next == StatusUploading || next == StatusFinalizing || next == StatusFailed
	case StatusUploading:
		return next == StatusFinalizing || next == StatusFailed || next == StatusPaused
	case StatusFinalizing:
		return next == StatusSucceeded || next == StatusFailed
	case StatusPaused:
		return next == StatusQueued || next == StatusBlocked
	case StatusFailed:
		return next == StatusQueued || next == StatusBlocked
	case StatusBlocked:
		return next == StatusQueued
	default:
		return false
	}
}
