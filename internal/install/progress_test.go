package install

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan float64) []float64 {
	var got []float64
	for f := range ch {
		got = append(got, f)
	}
	return got
}

func TestTrackerSubscribeReplaysCurrent(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Advance(StateIPAllocated)

	ch := tr.Subscribe()
	select {
	case f := <-ch:
		assert.InDelta(t, 0.4, f, 1e-9)
	default:
		t.Fatal("expected current fraction to be buffered on subscribe")
	}
}

func TestTrackerSubscribeAfterTerminal(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Advance(StateCompleted)

	// A late subscriber still sees the final value, then the stream ends.
	got := drain(tr.Subscribe())
	assert.Equal(t, []float64{1}, got)
	assert.NoError(t, tr.Err())
}

func TestTrackerBroadcastsAndCloses(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	ch := tr.Subscribe()

	tr.Advance(StateInstanceCreated)
	tr.Advance(StateIPAllocated)
	tr.Advance(StateInstanceRunning)
	tr.Advance(StateCertificateCreated)
	tr.Advance(StateCompleted)

	got := drain(ch)
	assert.Equal(t, []float64{0, 0.2, 0.4, 0.6, 0.8, 1}, got)
}

func TestTrackerIgnoresRegressions(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	require.True(t, tr.Advance(StateInstanceRunning))
	assert.False(t, tr.Advance(StateInstanceCreated), "regression must not take effect")
	assert.False(t, tr.Advance(StateInstanceRunning), "same-state transition must not take effect")
	assert.Equal(t, StateInstanceRunning, tr.State())
}

func TestTrackerTerminalIsFinal(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	require.True(t, tr.Advance(StateCompleted))

	assert.False(t, tr.Fail(errors.New("late failure")))
	assert.False(t, tr.Cancel())
	assert.Equal(t, StateCompleted, tr.State())
	assert.NoError(t, tr.Err())
}

func TestTrackerFail(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	ch := tr.Subscribe()

	failure := &FailedError{Reason: "disk full"}
	require.True(t, tr.Fail(failure))

	got := drain(ch)
	assert.Equal(t, []float64{0, 1}, got)
	assert.Equal(t, StateFailed, tr.State())

	var fe *FailedError
	require.ErrorAs(t, tr.Err(), &fe)
	assert.Equal(t, "disk full", fe.Reason)
}

func TestTrackerCancel(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	require.True(t, tr.Cancel())
	assert.Equal(t, StateCanceled, tr.State())
	assert.ErrorIs(t, tr.Err(), ErrCanceled)
}

func TestTrackerCoalescesWhenConsumerLags(t *testing.T) {
	t.Parallel()

	ch := make(chan float64, subscriberBuffer)

	// Push more values than the buffer holds without a consumer. The send
	// must never block, and the newest value must survive.
	for i := 0; i <= subscriberBuffer*3; i++ {
		sendLatest(ch, float64(i))
	}
	close(ch)

	got := drain(ch)
	require.Len(t, got, subscriberBuffer)
	assert.InDelta(t, float64(subscriberBuffer*3), got[len(got)-1], 1e-9,
		"latest value must survive coalescing")
}

func TestFailedErrorMessage(t *testing.T) {
	t.Parallel()

	withReason := &FailedError{Reason: "certificate request rejected"}
	assert.Equal(t, "install failed: certificate request rejected", withReason.Error())

	cause := errors.New("operation timed out")
	wrapped := &FailedError{Err: cause}
	assert.Equal(t, "install failed: operation timed out", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}
