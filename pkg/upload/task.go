package upload

import (
	"context"

	"github.com/arciva/importer/pkg/pending"
	"github.com/google/uuid"
)

// Task is the mutable unit the pipeline operates on, created 1:1 from a
// pending item at submission time. All mutation happens inside the scheduler,
// behind its lock; callers only ever see copies.
type Task struct {
	ID   string
	Item pending.Item

	SizeBytes        int64
	BytesTransferred int64
	Status           Status
	// Attempt starts at 1 and increments each time a failed task is retried.
	Attempt   int
	LastError string

	// AssetID and UploadToken are populated once a reservation succeeds and
	// identify the remote slot for the rest of the attempt.
	AssetID     string
	UploadToken string

	// pauseRequested defers a pause command that arrived while the
	// reservation round-trip was in flight: the task lands in Paused as soon
	// as the reservation resolves, without starting the byte transfer.
	pauseRequested bool
	// blockedBy is the id of the failed task whose propagation blocked this
	// one; retrying that task unblocks this one too.
	blockedBy string
	// generation increments on every admission. A run goroutine from an
	// aborted attempt carries a stale generation and must not touch the task
	// once a newer attempt is in flight.
	generation int
	// cancelAttempt aborts the network activity of the current attempt.
	cancelAttempt context.CancelFunc
}

// primingDivisor sets the initial fake progress fraction shown for a freshly
// created task (about 2%), so the UI indicates life before the first server
// response.
const primingDivisor = 50

func newTask(item pending.Item) *Task {
	t := &Task{
		ID:        uuid.New().String(),
		Item:      item,
		SizeBytes: item.SizeBytes,
		Status:    StatusQueued,
		Attempt:   1,
	}
	if t.SizeBytes > 0 {
		t.BytesTransferred = t.SizeBytes / primingDivisor
		if t.BytesTransferred == 0 {
			t.BytesTransferred = 1
		}
	}
	return t
}

// snapshot returns a copy safe to hand outside the scheduler's lock.
func (t *Task) snapshot() Task {
	c := *t
	c.cancelAttempt = nil
	return c
}

// Progress returns the task's completion fraction in [0, 1].
func (t Task) Progress() float64 {
	if t.SizeBytes <= 0 {
		if t.Status == StatusSucceeded {
			return 1.0
		}
		return 0.0
	}
	return float64(t.BytesTransferred) / float64(t.SizeBytes)
}
