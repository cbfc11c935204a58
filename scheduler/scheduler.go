package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Job is a unit of recurring background work. It receives a tag-scoped
// logger and its own cancel function so that it can self-cancel.
type Job func(log *logrus.Entry, cancel func())

// JobOptions configure a recurring job.
type JobOptions struct {
	// Tag is a short description of the job, used for logging.
	Tag string

	// Interval is the fixed interval between job invocations.
	Interval time.Duration

	// InitialDelay is the time until the first invocation. If zero, the
	// first invocation is queued to run immediately (asynchronously).
	InitialDelay time.Duration
}

// JobHandle identifies a scheduled recurring job and allows cancelling it.
type JobHandle struct {
	// Tag is the job's descriptive tag.
	Tag string

	id     uuid.UUID
	cancel func()
}

// Cancel stops all future invocations of the job. A currently running
// invocation is not interrupted. Cancel is idempotent.
func (h *JobHandle) Cancel() {
	h.cancel()
}

// Scheduler runs recurring background jobs. The zero value is not usable;
// create instances with New.
type Scheduler struct {
	mu      sync.Mutex
	handles map[uuid.UUID]*JobHandle
	log     *logrus.Entry
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{
		handles: make(map[uuid.UUID]*JobHandle),
		log:     logrus.WithField("component", "background-jobs"),
	}
}

// ScheduleRecurringJob registers a recurring job.
//
// The job first runs after InitialDelay (immediately, as a queued
// asynchronous invocation, if the delay is zero) and then on the fixed
// Interval until its handle is cancelled.
func (s *Scheduler) ScheduleRecurringJob(job Job, opts JobOptions) *JobHandle {
	jobLog := s.log.WithField("job", opts.Tag)

	handle := &JobHandle{
		Tag: opts.Tag,
		id:  uuid.New(),
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	cancel := func() {
		stopOnce.Do(func() {
			close(stop)
			s.unregister(handle)
		})
	}
	handle.cancel = cancel

	s.mu.Lock()
	s.handles[handle.id] = handle
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{
		"job":           opts.Tag,
		"interval":      opts.Interval,
		"initial_delay": opts.InitialDelay,
	}).Debug("Scheduled recurring background job")

	go func() {
		if opts.InitialDelay > 0 {
			initial := time.NewTimer(opts.InitialDelay)
			select {
			case <-initial.C:
			case <-stop:
				initial.Stop()
				return
			}
		} else {
			// First run fires right away, but asynchronously relative to
			// the caller of ScheduleRecurringJob.
			select {
			case <-stop:
				return
			default:
			}
		}

		job(jobLog, cancel)

		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				job(jobLog, cancel)
			case <-stop:
				return
			}
		}
	}()

	return handle
}

// CancelAll cancels every outstanding job and returns the number of jobs
// cancelled. It panics if any handle remains registered afterwards, since
// a leftover handle indicates a bookkeeping defect.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	handles := make([]*JobHandle, 0, len(s.handles))
	for _, handle := range s.handles {
		handles = append(handles, handle)
	}
	s.mu.Unlock()

	for _, handle := range handles {
		handle.Cancel()
	}

	s.mu.Lock()
	remaining := len(s.handles)
	s.mu.Unlock()
	if remaining != 0 {
		panic(fmt.Sprintf("scheduler: %d job handles still registered after CancelAll", remaining))
	}
	return len(handles)
}

// Len returns the number of currently registered job handles.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.handles)
}

func (s *Scheduler) unregister(handle *JobHandle) {
	s.mu.Lock()
	_, registered := s.handles[handle.id]
	delete(s.handles, handle.id)
	s.mu.Unlock()
	if registered {
		s.log.WithField("job", handle.Tag).Debug("Cancelled recurring background job")
	}
}
