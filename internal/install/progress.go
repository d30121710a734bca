package install

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCanceled is the terminal error of an install whose server was deleted
// before provisioning completed.
var ErrCanceled = errors.New("install canceled")

// FailedError is a fatal install failure: the guest signaled install-error,
// or a provisioning step failed.
type FailedError struct {
	Reason string // guest-supplied reason, if any
	Err    error  // underlying provisioning error, if any
}

func (e *FailedError) Error() string {
	if e.Reason != "" {
		return "install failed: " + e.Reason
	}
	return fmt.Sprintf("install failed: %v", e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// subscriberBuffer bounds each subscriber channel. Sends coalesce to the
// latest value when the consumer lags, so the bound is never blocking.
const subscriberBuffer = 8

// Tracker holds the current install state and broadcasts fractional
// progress to subscribers. New subscribers are replayed the current value
// first; channels close once a terminal state is reached, after which Err
// reports how the install ended.
type Tracker struct {
	mu    sync.Mutex
	state State
	err   error
	subs  []chan float64
}

func NewTracker() *Tracker {
	return &Tracker{state: StateUnknown}
}

// State returns the current install state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err reports the terminal error: ErrCanceled after cancellation, a
// *FailedError after failure, nil while running or after completion.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Subscribe returns a finite stream of fractional-completion values. The
// current value is delivered immediately; the channel closes when a
// terminal state is reached (immediately, for a tracker that already is).
func (t *Tracker) Subscribe() <-chan float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan float64, subscriberBuffer)
	ch <- t.state.Fraction()
	if t.state.Terminal() {
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	return ch
}

// Advance moves the machine along the success path. Transitions that would
// regress the state, and any transition after a terminal state, are
// ignored. Returns whether the transition took effect.
func (t *Tracker) Advance(s State) bool {
	return t.transition(s, nil)
}

// Fail moves to StateFailed with the given error.
func (t *Tracker) Fail(err error) bool {
	return t.transition(StateFailed, err)
}

// Cancel moves to StateCanceled. A no-op once terminal.
func (t *Tracker) Cancel() bool {
	return t.transition(StateCanceled, ErrCanceled)
}

func (t *Tracker) transition(s State, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return false
	}
	if !s.Terminal() && s <= t.state {
		return false
	}
	t.state = s
	t.err = err

	f := s.Fraction()
	for _, ch := range t.subs {
		sendLatest(ch, f)
	}
	if s.Terminal() {
		for _, ch := range t.subs {
			close(ch)
		}
		t.subs = nil
	}
	return true
}

// sendLatest delivers f without blocking, dropping the oldest buffered
// value when the consumer lags.
func sendLatest(ch chan float64, f float64) {
	for {
		select {
		case ch <- f:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
