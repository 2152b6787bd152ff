package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"voice-transcription-service/internal/models"
)

// State is the lifecycle state of one invocation.
type State int

const (
	// StateInit - request received, not yet validated.
	StateInit State = iota
	// StateSetup - building track sessions for enabled directions.
	StateSetup
	// StateRunning - recognition tasks are being started.
	StateRunning
	// StateAwaiting - waiting for recognition tasks to finish.
	StateAwaiting
	// StateSuccess - every awaited task finished without error.
	StateSuccess
	// StateTimedOut - a wait exceeded the session deadline.
	StateTimedOut
	// StateFailed - validation, setup or a task failed.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSetup:
		return "SETUP"
	case StateRunning:
		return "RUNNING"
	case StateAwaiting:
		return "AWAITING"
	case StateSuccess:
		return "SUCCESS"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for SUCCESS, TIMED_OUT and FAILED.
func (s State) IsTerminal() bool {
	return s >= StateSuccess
}

// Errors for invalid state transitions.
var (
	ErrInvocationFinished = errors.New("invocation already finished")
	ErrInvalidTransition  = errors.New("invalid state transition")
)

// Lifecycle tracks one invocation. Safe for concurrent use.
//
//	INIT → SETUP → RUNNING → AWAITING → SUCCESS
//	  │      │        │          │
//	  └──────┴────────┴──────────┴──→ FAILED | TIMED_OUT
type Lifecycle struct {
	mu    sync.RWMutex
	state State
	err   error
}

// NewLifecycle creates a lifecycle in INIT state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateInit}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the error that ended the invocation, if any.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Advance moves to the next non-failure state. Only single forward steps
// are allowed, and SUCCESS is reachable only from AWAITING.
func (l *Lifecycle) Advance(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsTerminal() {
		return ErrInvocationFinished
	}
	if to != l.state+1 || to > StateSuccess {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, l.state, to)
	}
	l.state = to
	return nil
}

// Fail ends the invocation with err. Timeouts move to TIMED_OUT, anything
// else to FAILED. Returns false if the invocation had already finished.
func (l *Lifecycle) Fail(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsTerminal() {
		return false
	}
	l.err = err
	if errors.Is(err, models.ErrTimeout) {
		l.state = StateTimedOut
	} else {
		l.state = StateFailed
	}
	return true
}

// Result maps the state to the response reported to the invoker. Anything
// other than SUCCESS, including an unfinished invocation, is Failed.
func (l *Lifecycle) Result() models.Result {
	if l.State() == StateSuccess {
		return models.ResultSuccess
	}
	return models.ResultFailed
}
