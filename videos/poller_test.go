package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"soragen/logging"
	"soragen/transport"
)

// newPollServer returns a service backed by a server that walks through
// the given statuses, one per fetch, repeating the last one. The counter
// reports how many status fetches arrived.
func newPollServer(t *testing.T, statuses []string, failMessage string) (*Service, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(fetches.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		status := statuses[n]

		job := map[string]interface{}{
			"id":       "video_123",
			"status":   status,
			"progress": 50,
		}
		if status == "failed" && failMessage != "" {
			job["error"] = map[string]string{"message": failMessage}
		}
		json.NewEncoder(w).Encode(job)
	}))
	t.Cleanup(server.Close)

	dispatcher, err := transport.NewDispatcher(transport.DispatcherConfig{
		BaseURL:         server.URL,
		APIKey:          "sk-test",
		MinRequestDelay: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(dispatcher, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	return svc, &fetches
}

func TestWaitForCompletionSequence(t *testing.T) {
	svc, fetches := newPollServer(t, []string{"queued", "in_progress", "completed"}, "")

	job, err := svc.WaitForCompletion(context.Background(), "video_123", PollOptions{
		Interval: 10 * time.Millisecond,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("WaitForCompletion() error = %v", err)
	}
	if job.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", job.Status)
	}
	if n := fetches.Load(); n != 3 {
		t.Errorf("fetches = %d, want 3", n)
	}
}

func TestWaitForCompletionTimeout(t *testing.T) {
	svc, fetches := newPollServer(t, []string{"in_progress"}, "")

	_, err := svc.WaitForCompletion(context.Background(), "video_123", PollOptions{
		Interval: 100 * time.Millisecond,
		Timeout:  200 * time.Millisecond,
	})
	if !IsTimedOut(err) {
		t.Fatalf("error = %v, want timed-out WaitError", err)
	}
	// ~0ms and ~100ms fetches fit inside the 200ms budget; the third
	// iteration hits the timeout check before fetching.
	if n := fetches.Load(); n > 2 {
		t.Errorf("fetches = %d, want at most 2", n)
	}
	if n := fetches.Load(); n < 1 {
		t.Errorf("fetches = %d, want at least 1", n)
	}
}

func TestWaitForCompletionPreCancelled(t *testing.T) {
	svc, fetches := newPollServer(t, []string{"in_progress"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.WaitForCompletion(ctx, "video_123", PollOptions{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	})
	if !IsCanceled(err) {
		t.Fatalf("error = %v, want canceled WaitError", err)
	}
	if n := fetches.Load(); n != 0 {
		t.Errorf("fetches = %d, want 0 for a pre-cancelled context", n)
	}
}

func TestWaitForCompletionJobFailure(t *testing.T) {
	svc, _ := newPollServer(t, []string{"in_progress", "failed"}, "content policy violation")

	_, err := svc.WaitForCompletion(context.Background(), "video_123", PollOptions{
		Interval: 10 * time.Millisecond,
		Timeout:  5 * time.Second,
	})
	if !IsJobFailed(err) {
		t.Fatalf("error = %v, want job-failed WaitError", err)
	}
	wErr, _ := AsWaitError(err)
	if wErr.Message != "content policy violation" {
		t.Errorf("Message = %q, want upstream failure message", wErr.Message)
	}
	if wErr.JobID != "video_123" {
		t.Errorf("JobID = %q", wErr.JobID)
	}
}

func TestWaitForCompletionJobFailureDefaultMessage(t *testing.T) {
	svc, _ := newPollServer(t, []string{"failed"}, "")

	_, err := svc.WaitForCompletion(context.Background(), "video_123", PollOptions{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	})
	wErr, ok := AsWaitError(err)
	if !ok || wErr.Outcome != OutcomeFailed {
		t.Fatalf("error = %v, want job-failed WaitError", err)
	}
	if wErr.Message != defaultFailureMessage {
		t.Errorf("Message = %q, want default failure message", wErr.Message)
	}
}

func TestWaitForCompletionFetchErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"no such job"}}`)
	}))
	defer server.Close()

	dispatcher, err := transport.NewDispatcher(transport.DispatcherConfig{
		BaseURL:         server.URL,
		APIKey:          "sk-test",
		MinRequestDelay: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(dispatcher, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.WaitForCompletion(context.Background(), "video_gone", PollOptions{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	})
	if err == nil {
		t.Fatal("WaitForCompletion() = nil, want propagated fetch error")
	}
	if _, ok := AsWaitError(err); ok {
		t.Errorf("fetch error was wrapped in WaitError: %v", err)
	}
}

func TestPollOptionsDefaults(t *testing.T) {
	opts := PollOptions{}.withDefaults()
	if opts.Interval != DefaultPollInterval {
		t.Errorf("Interval = %v, want %v", opts.Interval, DefaultPollInterval)
	}
	if opts.Timeout != DefaultPollTimeout {
		t.Errorf("Timeout = %v, want %v", opts.Timeout, DefaultPollTimeout)
	}

	custom := PollOptions{Interval: time.Second, Timeout: time.Minute}.withDefaults()
	if custom.Interval != time.Second || custom.Timeout != time.Minute {
		t.Errorf("withDefaults() overwrote explicit options: %+v", custom)
	}
}
