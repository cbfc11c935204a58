// Package task implements the protocol task system: the units of work that
// encode, send, receive and reflect end-to-end messages across a user's
// linked devices.
//
// Tasks are constructed with all inputs already resolved and executed
// exactly once by an external runner. Each invocation receives a codec
// handle that abstracts the transactional reflect/send primitive shared
// with the user's other devices. Tasks are idempotent by construction:
// re-running a persisted task after a crash checks current model state
// before mutating, so effects are never double-applied.
package task
