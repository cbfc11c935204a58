// Package scheduler runs recurring background jobs with cancellable
// handles, e.g. periodic group resyncs and protocol state cache eviction.
//
// A Scheduler is an explicit instance owned by whatever composes the
// process; there is no package-level singleton.
package scheduler
