package upload

// Policy selects one of the two scheduling strategies. A batch runs under
// exactly one policy for its whole life; the two failure-handling rules are
// never mixed.
type Policy interface {
	// Name identifies the policy in logs and the UI.
	Name() string
	// Ceiling is the maximum number of tasks allowed in a protocol phase
	// (reserving/uploading/finalizing) at once.
	Ceiling() int
	// PropagatesFailures reports whether one task's failure blocks the tasks
	// submitted after it.
	PropagatesFailures() bool
}

// DefaultCeiling is the concurrency ceiling used when none is configured.
const DefaultCeiling = 3

// BoundedPolicy runs up to MaxInFlight independent tasks concurrently.
// Tasks do not share ordering preconditions, so a failure in one never
// blocks another.
type BoundedPolicy struct {
	MaxInFlight int
}

func (p BoundedPolicy) Name() string { return "bounded" }

func (p BoundedPolicy) Ceiling() int {
	if p.MaxInFlight < 1 {
		return DefaultCeiling
	}
	return p.MaxInFlight
}

func (p BoundedPolicy) PropagatesFailures() bool { return false }

// SequentialPolicy processes tasks strictly one at a time in submission
// order. A failure mid-batch leaves the remaining tasks' preconditions
// unverified, so they are marked blocked ("not attempted, not your fault")
// until the failure is explicitly retried.
type SequentialPolicy struct{}

func (SequentialPolicy) Name() string             { return "sequential" }
func (SequentialPolicy) Ceiling() int             { return 1 }
func (SequentialPolicy) PropagatesFailures() bool { return true }

// blockedByEarlierFailure is the generic message propagated onto blocked
// tasks that have no error of their own.
const blockedByEarlierFailure = "blocked by an earlier failure in this batch"

// propagateFailure marks every task after failedIdx that is still waiting
// (queued, paused, or already blocked) as blocked by the failed task.
// It must be called with the scheduler lock held; it returns the tasks it
// changed so the caller can notify listeners after unlocking.
func propagateFailure(tasks []*Task, failedIdx int) []*Task {
	failed := tasks[failedIdx]
	var changed []*Task

	for _, t := range tasks[failedIdx+1:] {
		switch t.Status {
		case StatusQueued, StatusPaused:
			t.Status = StatusBlocked
			t.blockedBy = failed.ID
			if t.LastError == "" {
				t.LastError = blockedByEarlierFailure
			}
			changed = append(changed, t)
		case StatusBlocked:
			// Already blocked by an even earlier failure; re-point it at the
			// most recent one so retrying that failure unblocks it.
			t.blockedBy = failed.ID
		}
	}

	return changed
}
