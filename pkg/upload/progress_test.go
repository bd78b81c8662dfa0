package upload

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizeEmptyBatch(t *testing.T) {
	s := Summarize(nil)
	if s.TaskCount != 0 || s.OverallFraction != 0 {
		t.Errorf("empty batch summary = %+v, want zero values", s)
	}
}

func TestSummarizeByteWeighted(t *testing.T) {
	tasks := []Task{
		{SizeBytes: 1000, BytesTransferred: 1000, Status: StatusSucceeded},
		{SizeBytes: 3000, BytesTransferred: 1500, Status: StatusUploading},
	}

	s := Summarize(tasks)
	if s.TaskCount != 2 || s.CompletedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", s.TaskCount, s.CompletedCount)
	}
	if s.TotalBytes != 4000 || s.UploadedBytes != 2500 {
		t.Errorf("bytes = %d/%d, want 2500/4000", s.UploadedBytes, s.TotalBytes)
	}
	if !almostEqual(s.OverallFraction, 0.625) {
		t.Errorf("OverallFraction = %v, want 0.625", s.OverallFraction)
	}
	if !s.HasActive || s.HasErrors || s.HasPaused {
		t.Errorf("flags = %+v, want active only", s)
	}
}

func TestSummarizeByteLessBatchFallsBackToCounts(t *testing.T) {
	tasks := []Task{
		{Status: StatusSucceeded},
		{Status: StatusSucceeded},
		{Status: StatusQueued},
		{Status: StatusQueued},
	}

	s := Summarize(tasks)
	if !almostEqual(s.OverallFraction, 0.5) {
		t.Errorf("OverallFraction = %v, want 0.5", s.OverallFraction)
	}
}

func TestSummarizeFlags(t *testing.T) {
	tasks := []Task{
		{SizeBytes: 10, Status: StatusFailed},
		{SizeBytes: 10, Status: StatusPaused},
		{SizeBytes: 10, Status: StatusCanceled},
		{SizeBytes: 10, Status: StatusBlocked},
	}

	s := Summarize(tasks)
	if !s.HasErrors {
		t.Error("HasErrors = false, want true with a failed task")
	}
	if !s.HasPaused {
		t.Error("HasPaused = false, want true with a paused task")
	}
	if s.HasActive {
		t.Error("HasActive = true, want false when nothing is running")
	}
	if s.FailedCount != 1 || s.CanceledCount != 1 {
		t.Errorf("failed/canceled = %d/%d, want 1/1", s.FailedCount, s.CanceledCount)
	}
}
