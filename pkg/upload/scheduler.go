// Package upload implements the batch import pipeline: a per-task state
// machine driven by a concurrency-bounded scheduler over the three-phase
// backend protocol (reserve, transfer bytes, finalize), with user commands
// for pausing, cancellation and retry, and aggregate progress reporting.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/arciva/importer/api"
	"github.com/arciva/importer/pkg/pending"
)

var (
	// ErrMissingProject is the batch-fatal configuration error: without a
	// destination project no task can be attempted.
	ErrMissingProject = errors.New("no destination project configured")

	// ErrAlreadySubmitted is returned when Submit is called twice; a
	// scheduler drives exactly one batch.
	ErrAlreadySubmitted = errors.New("batch already submitted")

	// ErrUnknownTask is returned by per-task commands for an id that is not
	// part of the batch.
	ErrUnknownTask = errors.New("unknown task")
)

// TransferClient performs the three-phase remote protocol for one task.
// api.Client is the production implementation; tests substitute doubles.
type TransferClient interface {
	Reserve(ctx context.Context, projectID, filename string, sizeBytes int64, mime string) (*api.Reservation, error)
	TransferBytes(ctx context.Context, res *api.Reservation, src io.Reader, size int64, onProgress api.ProgressFunc) (*api.TransferResult, error)
	Finalize(ctx context.Context, res *api.Reservation, ignoreDuplicates bool) (*api.FinalizeResult, error)
}

// Config configures a scheduler for one batch.
type Config struct {
	// ProjectID is the destination container; submission fails without it.
	ProjectID string
	// Policy picks the scheduling strategy; defaults to BoundedPolicy.
	Policy Policy
	// IgnoreDuplicates is forwarded to the finalize call; the backend owns
	// deduplication.
	IgnoreDuplicates bool
}

// change pairs the before/after snapshots of one task mutation for listener
// notification.
type change struct {
	old, current Task
}

// Scheduler owns the task list of one batch and is the only component that
// initiates protocol calls. Every mutation of the shared task list happens
// behind its mutex, so command handlers never observe a task mid-transition.
type Scheduler struct {
	client TransferClient
	cfg    Config

	mu        sync.Mutex
	cond      *sync.Cond
	emitMu    sync.Mutex
	tasks     []*Task
	index     map[string]int
	listeners []StatusListener
	runCtx    context.Context
	submitted bool
}

// NewScheduler creates a scheduler for one batch using the given protocol
// client.
func NewScheduler(client TransferClient, cfg Config) *Scheduler {
	if cfg.Policy == nil {
		cfg.Policy = BoundedPolicy{}
	}
	s := &Scheduler{
		client: client,
		cfg:    cfg,
		index:  make(map[string]int),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AddListener registers a status listener. Register before Submit to observe
// every transition.
func (s *Scheduler) AddListener(l StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Policy returns the active scheduling policy.
func (s *Scheduler) Policy() Policy { return s.cfg.Policy }

// Submit accepts the batch and begins driving execution. Items whose source
// cannot be resolved are rejected before scheduling and returned as warnings.
// A missing destination project fails every task immediately and returns
// ErrMissingProject; nothing is attempted.
func (s *Scheduler) Submit(ctx context.Context, items []pending.Item) ([]pending.Warning, error) {
	s.mu.Lock()
	if s.submitted {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	s.submitted = true
	s.runCtx = ctx

	var warnings []pending.Warning
	for _, item := range items {
		if item.Source == nil {
			warnings = append(warnings, pending.Warning{Path: item.Name, Err: pending.ErrMissingSource})
			continue
		}
		t := newTask(item)
		s.index[t.ID] = len(s.tasks)
		s.tasks = append(s.tasks, t)
	}

	slog.Info("batch submitted",
		"tasks", len(s.tasks),
		"skipped", len(warnings),
		"policy", s.cfg.Policy.Name(),
		"project", s.cfg.ProjectID)

	var evs []change
	if s.cfg.ProjectID == "" {
		for _, t := range s.tasks {
			s.moveLocked(t, StatusFailed, &evs, func(t *Task) {
				t.LastError = ErrMissingProject.Error()
			})
		}
		s.unlockAndEmit(evs)
		return warnings, ErrMissingProject
	}

	s.admitLocked(&evs)
	s.unlockAndEmit(evs)
	return warnings, nil
}

// Tasks returns snapshot copies of all tasks in submission order.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Task returns a snapshot of one task.
func (s *Scheduler) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Task{}, false
	}
	return s.tasks[i].snapshot(), true
}

// Summary recomputes the aggregate progress of the batch.
func (s *Scheduler) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summarize(s.snapshotLocked())
}

// Wait blocks until the batch settles: every task is terminal, failed,
// blocked, or paused, and nothing will change without a further user command.
func (s *Scheduler) Wait(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.settledLocked() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return nil
}

// Pause suspends one task. Queued and uploading tasks pause immediately; a
// task whose reservation is in flight lands in paused once the reservation
// resolves, without starting its byte transfer. Otherwise a no-op.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	t, err := s.taskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var evs []change
	s.pauseLocked(t, &evs)
	// Pausing an uploading task frees its slot for the next queued task.
	s.admitLocked(&evs)
	s.unlockAndEmit(evs)
	return nil
}

// PauseAll suspends every queued, reserving, or uploading task. Idempotent.
func (s *Scheduler) PauseAll() {
	s.mu.Lock()
	var evs []change
	for _, t := range s.tasks {
		s.pauseLocked(t, &evs)
	}
	s.unlockAndEmit(evs)
}

// Resume requeues one paused task; a no-op otherwise.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	t, err := s.taskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var evs []change
	s.resumeLocked(t, &evs)
	s.admitLocked(&evs)
	s.unlockAndEmit(evs)
	return nil
}

// ResumeAll requeues every paused task. Idempotent.
func (s *Scheduler) ResumeAll() {
	s.mu.Lock()
	var evs []change
	for _, t := range s.tasks {
		s.resumeLocked(t, &evs)
	}
	s.admitLocked(&evs)
	s.unlockAndEmit(evs)
}

// Cancel abandons one task. Cancellation is immediate: any in-flight network
// operation is aborted and no finalize call will be issued for the task, even
// if its byte transfer had already completed. Canceling never touches sibling
// tasks, and a canceled task cannot be retried.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	t, err := s.taskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var evs []change
	s.cancelLocked(t, &evs)
	s.admitLocked(&evs)
	s.unlockAndEmit(evs)
	return nil
}

// CancelAll cancels every task that is not already succeeded or canceled.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	var evs []change
	for _, t := range s.tasks {
		s.cancelLocked(t, &evs)
	}
	s.unlockAndEmit(evs)
}

// Retry requeues a failed or blocked task. Retrying a failed task increments
// its attempt counter, resets its byte accounting, and unblocks the tasks its
// failure blocked; retrying a blocked task requeues just that task.
func (s *Scheduler) Retry(id string) error {
	s.mu.Lock()
	t, err := s.taskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	var evs []change
	switch t.Status {
	case StatusFailed:
		s.moveLocked(t, StatusQueued, &evs, func(t *Task) {
			t.Attempt++
			t.BytesTransferred = 0
			t.LastError = ""
			t.AssetID = ""
			t.UploadToken = ""
		})
		for _, other := range s.tasks {
			if other.Status == StatusBlocked && other.blockedBy == t.ID {
				s.moveLocked(other, StatusQueued, &evs, func(o *Task) {
					o.blockedBy = ""
					if o.LastError == blockedByEarlierFailure {
						o.LastError = ""
					}
				})
			}
		}
	case StatusBlocked:
		s.moveLocked(t, StatusQueued, &evs, func(t *Task) {
			t.blockedBy = ""
			if t.LastError == blockedByEarlierFailure {
				t.LastError = ""
			}
		})
	}

	s.admitLocked(&evs)
	s.unlockAndEmit(evs)
	return nil
}

// --- internal machinery ---

// releaseAttemptLocked cancels and drops the task's attempt context once the
// attempt is over, so completed attempts do not stay registered on the batch
// context for the life of the batch.
func (s *Scheduler) releaseAttemptLocked(t *Task) {
	if t.cancelAttempt != nil {
		t.cancelAttempt()
		t.cancelAttempt = nil
	}
}

func (s *Scheduler) taskLocked(id string) (*Task, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, ErrUnknownTask
	}
	return s.tasks[i], nil
}

func (s *Scheduler) snapshotLocked() []Task {
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.snapshot()
	}
	return out
}

func (s *Scheduler) settledLocked() bool {
	if !s.submitted {
		return false
	}
	for _, t := range s.tasks {
		if t.Status.IsActive() {
			return false
		}
	}
	return true
}

func (s *Scheduler) inFlightLocked() int {
	n := 0
	for _, t := range s.tasks {
		if t.Status.IsInFlight() {
			n++
		}
	}
	return n
}

// moveLocked applies a legal status transition plus any extra mutation and
// records the before/after snapshots for notification. Illegal transitions
// are rejected, which is what makes every command an idempotent no-op when
// it does not apply.
func (s *Scheduler) moveLocked(t *Task, next Status, evs *[]change, also func(*Task)) bool {
	if !t.Status.CanTransitionTo(next) {
		return false
	}
	old := t.snapshot()
	t.Status = next
	if next == StatusSucceeded {
		t.BytesTransferred = t.SizeBytes
	}
	if also != nil {
		also(t)
	}
	*evs = append(*evs, change{old: old, current: t.snapshot()})
	return true
}

// admitLocked promotes earliest-submitted queued tasks into reserving while
// the policy's concurrency ceiling has room, spawning one goroutine per
// admitted task. Called on submission and after every freed slot.
func (s *Scheduler) admitLocked(evs *[]change) {
	if s.runCtx == nil || s.runCtx.Err() != nil {
		return
	}
	ceiling := s.cfg.Policy.Ceiling()
	for s.inFlightLocked() < ceiling {
		var next *Task
		for _, t := range s.tasks {
			if t.Status == StatusQueued {
				next = t
				break
			}
		}
		if next == nil {
			return
		}
		if !s.moveLocked(next, StatusReserving, evs, nil) {
			return
		}
		ctx, cancel := context.WithCancel(s.runCtx)
		next.cancelAttempt = cancel
		next.pauseRequested = false
		next.generation++
		go s.run(ctx, next.ID, next.generation)
	}
}

func (s *Scheduler) pauseLocked(t *Task, evs *[]change) {
	switch t.Status {
	case StatusQueued:
		s.moveLocked(t, StatusPaused, evs, nil)
	case StatusUploading:
		if s.moveLocked(t, StatusPaused, evs, nil) && t.cancelAttempt != nil {
			// Abort the in-flight byte stream; a later resume restarts the
			// attempt from the beginning.
			t.cancelAttempt()
			t.cancelAttempt = nil
		}
	case StatusReserving:
		// The reservation round-trip cannot be interrupted mid-flight without
		// leaking the slot; mark the task so it lands in paused as soon as
		// the reservation resolves.
		t.pauseRequested = true
	}
}

func (s *Scheduler) resumeLocked(t *Task, evs *[]change) {
	switch {
	case t.Status == StatusReserving && t.pauseRequested:
		// Resume arrived before the in-flight reservation resolved; undo the
		// deferred pause.
		t.pauseRequested = false
	case t.Status == StatusPaused:
		s.moveLocked(t, StatusQueued, evs, func(t *Task) {
			t.pauseRequested = false
		})
	}
}

func (s *Scheduler) cancelLocked(t *Task, evs *[]change) {
	if !s.moveLocked(t, StatusCanceled, evs, nil) {
		return
	}
	t.pauseRequested = false
	if t.cancelAttempt != nil {
		t.cancelAttempt()
		t.cancelAttempt = nil
	}
}

// attemptFailed converts a protocol error into task state at the scheduler
// boundary; no error ever escapes to the UI layer. Cancellation and pause
// aborts are not failures.
func (s *Scheduler) attemptFailed(ctx context.Context, id string, gen int, err error) {
	s.mu.Lock()
	t, lookupErr := s.taskLocked(id)
	if lookupErr != nil {
		s.mu.Unlock()
		return
	}

	var evs []change
	switch {
	case t.generation != gen || !t.Status.IsInFlight():
		// A command (cancel, or pause of an uploading task) already moved
		// the task; the aborted network call is expected fallout.
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		// The batch context died under the task; this is abandonment, not
		// failure.
		s.moveLocked(t, StatusCanceled, &evs, nil)
		s.releaseAttemptLocked(t)
		s.admitLocked(&evs)
	default:
		s.moveLocked(t, StatusFailed, &evs, func(t *Task) {
			t.LastError = err.Error()
		})
		s.releaseAttemptLocked(t)
		slog.Warn("task attempt failed",
			"task", t.ID,
			"name", t.Item.Name,
			"attempt", t.Attempt,
			"error", err)
		if s.cfg.Policy.PropagatesFailures() {
			if i, ok := s.index[t.ID]; ok {
				before := make(map[string]Task, len(s.tasks)-i-1)
				for _, later := range s.tasks[i+1:] {
					before[later.ID] = later.snapshot()
				}
				for _, blocked := range propagateFailure(s.tasks, i) {
					evs = append(evs, change{old: before[blocked.ID], current: blocked.snapshot()})
				}
			}
		}
		s.admitLocked(&evs)
	}
	s.unlockAndEmit(evs)
}

// run executes one attempt of one task: reserve, stream, finalize. It holds
// no lock across network calls; every state decision is re-checked under the
// lock once the call resolves, so user commands win races against I/O.
func (s *Scheduler) run(ctx context.Context, id string, gen int) {
	s.mu.Lock()
	t, err := s.taskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return
	}
	projectID := s.cfg.ProjectID
	item := t.Item
	size := t.SizeBytes
	s.mu.Unlock()

	res, err := s.client.Reserve(ctx, projectID, item.Name, size, item.MimeType)
	if err != nil {
		s.attemptFailed(ctx, id, gen, err)
		return
	}

	var (
		evs          []change
		streamBytes  bool
		finalizeOnly bool
	)
	s.mu.Lock()
	if t.generation == gen && t.Status == StatusReserving {
		t.AssetID = res.AssetID
		t.UploadToken = res.UploadToken
		switch {
		case t.pauseRequested:
			// Deferred pause: surface the reservation result, then park the
			// task before any byte moves.
			s.moveLocked(t, StatusUploading, &evs, nil)
			s.moveLocked(t, StatusPaused, &evs, func(t *Task) {
				t.pauseRequested = false
			})
			s.releaseAttemptLocked(t)
			s.admitLocked(&evs)
		case size == 0:
			// Nothing to stream; commit directly.
			s.moveLocked(t, StatusFinalizing, &evs, nil)
			finalizeOnly = true
		default:
			s.moveLocked(t, StatusUploading, &evs, nil)
			streamBytes = true
		}
	}
	s.unlockAndEmit(evs)

	if !streamBytes && !finalizeOnly {
		return
	}

	if streamBytes {
		src, err := item.Source.Open(ctx)
		if err != nil {
			s.attemptFailed(ctx, id, gen, err)
			return
		}
		_, terr := s.client.TransferBytes(ctx, res, src, size, func(sent, total int64) {
			s.onProgress(id, gen, sent)
		})
		_ = src.Close()
		if terr != nil {
			s.attemptFailed(ctx, id, gen, terr)
			return
		}

		evs = nil
		proceed := false
		s.mu.Lock()
		// The transfer completed, but a cancel may have landed between the
		// last byte and here; in that case finalize must never be issued.
		if t.generation == gen && t.Status == StatusUploading && ctx.Err() == nil {
			proceed = s.moveLocked(t, StatusFinalizing, &evs, nil)
		}
		s.unlockAndEmit(evs)
		if !proceed {
			return
		}
	}

	result, ferr := s.client.Finalize(ctx, res, s.cfg.IgnoreDuplicates)
	if ferr != nil {
		s.attemptFailed(ctx, id, gen, ferr)
		return
	}

	evs = nil
	s.mu.Lock()
	if t.generation == gen && t.Status == StatusFinalizing {
		s.moveLocked(t, StatusSucceeded, &evs, func(t *Task) {
			t.AssetID = result.AssetID
		})
		s.releaseAttemptLocked(t)
		slog.Info("task succeeded",
			"task", t.ID,
			"name", item.Name,
			"asset", result.AssetID,
			"status", string(result.Status))
		s.admitLocked(&evs)
	}
	s.unlockAndEmit(evs)
}

// onProgress folds a transfer progress callback into the task under the
// scheduler lock. Progress is monotone while uploading: stale or replayed
// reports never move the counter backwards, and it never exceeds the task
// size.
func (s *Scheduler) onProgress(id string, gen int, sent int64) {
	s.mu.Lock()
	t, err := s.taskLocked(id)
	if err != nil {
		s.mu.Unlock()
		return
	}
	var evs []change
	if t.generation == gen && t.Status == StatusUploading {
		clamped := min(sent, t.SizeBytes)
		if clamped > t.BytesTransferred {
			old := t.snapshot()
			t.BytesTransferred = clamped
			evs = append(evs, change{old: old, current: t.snapshot()})
		}
	}
	s.unlockAndEmit(evs)
}

// unlockAndEmit releases the lock and then notifies listeners, in order, with
// the recorded snapshots. Listeners never run under the lock. Must be called
// with the lock held.
func (s *Scheduler) unlockAndEmit(evs []change) {
	var (
		listeners []StatusListener
		summary   Summary
	)
	if len(evs) > 0 {
		listeners = make([]StatusListener, len(s.listeners))
		copy(listeners, s.listeners)
		summary = Summarize(s.snapshotLocked())
		s.cond.Broadcast()
	}
	s.mu.Unlock()

	if len(evs) == 0 {
		return
	}
	// One emitter at a time so listeners see a serialized stream even when
	// several task goroutines settle at once.
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	for _, l := range listeners {
		for _, ev := range evs {
			l.OnTaskChanged(ev.old, ev.current)
		}
		l.OnSummaryChanged(summary)
	}
}
