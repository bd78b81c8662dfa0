package upload

// Summary is the aggregate progress view consumed by the UI layer. It is
// derived from the task list on every call and never cached; scheduling
// decisions must read raw task status instead of this.
type Summary struct {
	TaskCount      int
	CompletedCount int
	FailedCount    int
	CanceledCount  int

	TotalBytes    int64
	UploadedBytes int64
	// OverallFraction is uploaded/total bytes; for byte-less batches it
	// degrades to completed/count, and to 0 for an empty batch.
	OverallFraction float64

	HasErrors bool
	HasActive bool
	HasPaused bool
}

// Summarize computes the aggregate progress of a task list.
func Summarize(tasks []Task) Summary {
	var s Summary
	s.TaskCount = len(tasks)

	for _, t := range tasks {
		s.TotalBytes += t.SizeBytes
		s.UploadedBytes += t.BytesTransferred

		switch t.Status {
		case StatusSucceeded:
			s.CompletedCount++
		case StatusFailed:
			s.FailedCount++
			s.HasErrors = true
		case StatusCanceled:
			s.CanceledCount++
		case StatusPaused:
			s.HasPaused = true
		}
		if t.Status.IsActive() {
			s.HasActive = true
		}
	}

	switch {
	case s.TotalBytes > 0:
		s.OverallFraction = float64(s.UploadedBytes) / float64(s.TotalBytes)
	case s.TaskCount > 0:
		s.OverallFraction = float64(s.CompletedCount) / float64(s.TaskCount)
	}

	return s
}
