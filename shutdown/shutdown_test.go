package shutdown

import (
	"context"
	"testing"
)

func TestSignalCounterForceThreshold(t *testing.T) {
	forced := 0
	counter := NewSignalCounter(2, func() { forced++ })

	if got := counter.Increment(); got != 1 {
		t.Errorf("first Increment() = %d, want 1", got)
	}
	if forced != 0 {
		t.Error("onForce fired before threshold")
	}

	if got := counter.Increment(); got != 2 {
		t.Errorf("second Increment() = %d, want 2", got)
	}
	if forced != 1 {
		t.Errorf("onForce fired %d times, want 1", forced)
	}

	// Every increment at or past the threshold fires again.
	counter.Increment()
	if forced != 2 {
		t.Errorf("onForce fired %d times after third signal, want 2", forced)
	}
}

func TestSignalCounterNilCallback(t *testing.T) {
	counter := NewSignalCounter(1, nil)
	counter.Increment()
	if counter.Count() != 1 {
		t.Errorf("Count() = %d, want 1", counter.Count())
	}
}

func TestWithSignalsStopReleasesContext(t *testing.T) {
	ctx, stop := WithSignals(context.Background(), nil)

	select {
	case <-ctx.Done():
		t.Fatal("context done before any signal")
	default:
	}

	stop()

	select {
	case <-ctx.Done():
	default:
		t.Error("stop() did not cancel the context")
	}
}
