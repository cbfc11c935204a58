package task

import (
	"context"
	"errors"
)

// Scope names the device-group transaction scope a task executes under.
// Scoped tasks reflect inside a transaction so that concurrent tasks of
// the same scope on other devices are serialized.
type Scope string

const (
	// ScopeNone marks tasks that do not require a transaction.
	ScopeNone Scope = ""
	// ScopeGroupSync serializes group state synchronization.
	ScopeGroupSync Scope = "group-sync"
	// ScopeProfileSync serializes user profile synchronization.
	ScopeProfileSync Scope = "profile-sync"
)

// Task is a unit of protocol work executed exactly once by the runner.
//
// Run receives a codec handle bound to the current connection. A task
// must tolerate being re-run from scratch (after a crash for persistent
// tasks, after a reconnect for transient ones): it checks current model
// state before mutating so effects are never double-applied.
type Task interface {
	// Persist reports whether the task must survive a restart and be
	// re-run until it succeeds.
	Persist() bool

	// TransactionScope returns the scope the task's reflection runs
	// under, or ScopeNone.
	TransactionScope() Scope

	// Run executes the task against the given codec handle.
	Run(ctx context.Context, handle CodecHandle) error
}

var (
	// ErrReflectFailed wraps a failure to reflect a message to the
	// device group. Reflection failures are fatal for the current run:
	// nothing may be transmitted to the remote party afterwards.
	ErrReflectFailed = errors.New("reflect failed")

	// ErrInvariantViolation marks a broken internal invariant, e.g. a
	// reflected update referring to a message of the wrong direction.
	// It indicates a bug or a misbehaving device, never a network
	// condition.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrSendFailed wraps a failure to transmit a message to one or
	// more receivers.
	ErrSendFailed = errors.New("send failed")
)
