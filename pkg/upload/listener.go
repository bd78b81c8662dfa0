package upload

// StatusListener receives task and aggregate state changes from the
// scheduler. Callbacks are invoked sequentially, outside the scheduler's
// lock, with copies: listeners can inspect them freely but must not block
// for long, since they run on the pipeline's goroutines.
type StatusListener interface {
	// OnTaskChanged is called whenever a task's status or progress changes.
	OnTaskChanged(old, current Task)
	// OnSummaryChanged is called with the recomputed aggregate after every
	// batch mutation.
	OnSummaryChanged(s Summary)
}

// ListenerFuncs adapts plain functions to the StatusListener interface; nil
// fields are skipped.
type ListenerFuncs struct {
	TaskChanged    func(old, current Task)
	SummaryChanged func(s Summary)
}

func (l ListenerFuncs) OnTaskChanged(old, current Task) {
	if l.TaskChanged != nil {
		l.TaskChanged(old, current)
	}
}

func (l ListenerFuncs) OnSummaryChanged(s Summary) {
	if l.SummaryChanged != nil {
		l.SummaryChanged(s)
	}
}
