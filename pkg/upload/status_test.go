package upload

import "testing"

func TestStatusString(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{StatusQueued, "queued"},
		{StatusReserving, "reserving"},
		{StatusUploading, "uploading"},
		{StatusFinalizing, "finalizing"},
		{StatusPaused, "paused"},
		{StatusSucceeded, "succeeded"},
		{StatusFailed, "failed"},
		{StatusBlocked, "blocked"},
		{StatusCanceled, "canceled"},
		{Status(99), "unknown"},
	}

	for _, c := range cases {
		if got := c.status.String(); got != c.want {
			t.Errorf("Status(%d).String() = %q, want %q", c.status, got, c.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusSucceeded: true,
		StatusCanceled:  true,
	}

	for _, s := range allStatuses() {
		if got := s.IsTerminal(); got != terminal[s] {
			t.Errorf("%v.IsTerminal() = %v, want %v", s, got, terminal[s])
		}
	}
}

func TestStatusCanTransitionTo(t *testing.T) {
	legal := []struct {
		from, to Status
	}{
		{StatusQueued, StatusReserving},
		{StatusQueued, StatusPaused},
		{StatusQueued, StatusBlocked},
		{StatusQueued, StatusFailed},
		{StatusQueued, StatusCanceled},
		{StatusReserving, StatusUploading},
		{StatusReserving, StatusFinalizing},
		{StatusReserving, StatusFailed},
		{StatusReserving, StatusCanceled},
		{StatusUploading, StatusFinalizing},
		{StatusUploading, StatusPaused},
		{StatusUploading, StatusFailed},
		{StatusUploading, StatusCanceled},
		{StatusFinalizing, StatusSucceeded},
		{StatusFinalizing, StatusFailed},
		{StatusFinalizing, StatusCanceled},
		{StatusPaused, StatusQueued},
		{StatusPaused, StatusBlocked},
		{StatusPaused, StatusCanceled},
		{StatusFailed, StatusQueued},
		{StatusFailed, StatusBlocked},
		{StatusFailed, StatusCanceled},
		{StatusBlocked, StatusQueued},
		{StatusBlocked, StatusCanceled},
	}

	allowed := make(map[[2]Status]bool, len(legal))
	for _, c := range legal {
		allowed[[2]Status{c.from, c.to}] = true
	}

	for _, from := range allStatuses() {
		for _, to := range allStatuses() {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%v.CanTransitionTo(%v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	for _, from := range []Status{StatusSucceeded, StatusCanceled} {
		for _, to := range allStatuses() {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal %v must not transition to %v", from, to)
			}
		}
	}
}

func allStatuses() []Status {
	return []Status{
		StatusQueued,
		StatusReserving,
		StatusUploading,
		StatusFinalizing,
		StatusPaused,
		StatusSucceeded,
		StatusFailed,
		StatusBlocked,
		StatusCanceled,
	}
}
