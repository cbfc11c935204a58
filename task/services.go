package task

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/state"
)

// Services bundles the capabilities tasks operate on. A single Services
// value is shared by all tasks of a session.
type Services struct {
	Model           model.Repository
	Blob            blob.Service
	VolatileState   *state.VolatileState
	PersistentState *state.PersistentState
	Log             *logrus.Logger
}

// logger returns a scoped entry for a task, falling back to the
// standard logger when none was configured.
func (s *Services) logger(taskName string) *logrus.Entry {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("task", taskName)
}
