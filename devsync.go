package devsync

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/scheduler"
	"github.com/opd-ai/devsync/state"
	"github.com/opd-ai/devsync/task"
)

// Options configure a Manager.
type Options struct {
	// Model is the application's model layer.
	Model model.Repository

	// Blob is the blob server boundary.
	Blob blob.Service

	// RecordStore backs the persistent half of the protocol state store.
	// When nil, a process-local in-memory store is used; use
	// state.OpenSQLiteRecordStore for durable state.
	RecordStore state.RecordStore

	// Log is the logger for all protocol components. When nil, the
	// logrus standard logger is used.
	Log *logrus.Logger
}

// Configuration errors.
var (
	ErrMissingModel = errors.New("model repository is required")
	ErrMissingBlob  = errors.New("blob service is required")
)

// Manager is the composition root of the protocol task system. It owns
// the protocol state store (volatile and persistent halves) and the
// background job scheduler, and hands a shared Services bundle to all
// tasks of the session.
type Manager struct {
	services  *task.Services
	scheduler *scheduler.Scheduler
	log       *logrus.Logger
}

// New creates a Manager, loading persistent protocol state from the
// configured record store.
func New(opts Options) (*Manager, error) {
	if opts.Model == nil {
		return nil, ErrMissingModel
	}
	if opts.Blob == nil {
		return nil, ErrMissingBlob
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	store := opts.RecordStore
	if store == nil {
		store = state.NewMemoryRecordStore()
	}

	persistent, err := state.NewPersistentState(store)
	if err != nil {
		return nil, err
	}

	return &Manager{
		services: &task.Services{
			Model:           opts.Model,
			Blob:            opts.Blob,
			VolatileState:   state.NewVolatileState(),
			PersistentState: persistent,
			Log:             log,
		},
		scheduler: scheduler.New(),
		log:       log,
	}, nil
}

// Services returns the shared capability bundle for constructing tasks.
func (m *Manager) Services() *task.Services {
	return m.services
}

// RunTask executes a task against the given codec handle. Persistent
// tasks that fail are expected to be re-run by the caller on the next
// connection; the failure is logged accordingly.
func (m *Manager) RunTask(ctx context.Context, handle task.CodecHandle, t task.Task) error {
	err := t.Run(ctx, handle)
	if err != nil && t.Persist() {
		m.log.WithError(err).Warn("Persistent task failed, re-run it on the next connection")
	}
	return err
}

// ScheduleStateCleanup runs periodic expiry sweeps over the persistent
// protocol state at the given interval.
func (m *Manager) ScheduleStateCleanup(interval time.Duration) *scheduler.JobHandle {
	return m.scheduler.ScheduleRecurringJob(func(log *logrus.Entry, cancel func()) {
		removed, err := m.services.PersistentState.CleanupExpired()
		if err != nil {
			log.WithError(err).Warn("Protocol state cleanup failed")
			return
		}
		if removed > 0 {
			log.WithField("removed", removed).Debug("Expired protocol state removed")
		}
	}, scheduler.JobOptions{
		Tag:          "protocol-state-cleanup",
		Interval:     interval,
		InitialDelay: interval,
	})
}

// SchedulePeriodicGroupResync periodically sends sync requests for the
// groups returned by the groups callback, using a codec handle obtained
// from connect per run. Connection failures skip the run.
func (m *Manager) SchedulePeriodicGroupResync(groups func() []model.Group, connect func(ctx context.Context) (task.CodecHandle, error), interval time.Duration) *scheduler.JobHandle {
	return m.scheduler.ScheduleRecurringJob(func(log *logrus.Entry, cancel func()) {
		ctx := context.Background()
		handle, err := connect(ctx)
		if err != nil {
			log.WithError(err).Debug("Skipping group resync, no connection")
			return
		}
		t := task.NewGroupSyncRequestsTask(m.services, groups(), task.FanOutOptions{})
		if err := t.Run(ctx, handle); err != nil {
			log.WithError(err).Warn("Group resync failed")
		}
	}, scheduler.JobOptions{
		Tag:          "group-resync",
		Interval:     interval,
		InitialDelay: interval,
	})
}

// Scheduler exposes the background job scheduler for application jobs.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// Close cancels all background jobs. It does not close the record
// store; the store belongs to the caller.
func (m *Manager) Close() {
	m.scheduler.CancelAll()
}
