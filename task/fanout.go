package task

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// RequestProfilePicturesTask asks a set of contacts to re-send their
// profile pictures. Delivery is best-effort and sequential: a failure
// for one contact never prevents the remaining sends. With
// ThrowOnFailure set, the collected failures are returned after the
// fan-out completes.
type RequestProfilePicturesTask struct {
	services *Services
	contacts []model.Contact
	opts     FanOutOptions
	log      *logrus.Entry
}

// FanOutOptions configures best-effort fan-out tasks.
type FanOutOptions struct {
	// ThrowOnFailure surfaces collected per-receiver failures as the
	// task result instead of only logging them.
	ThrowOnFailure bool
}

func NewRequestProfilePicturesTask(services *Services, contacts []model.Contact, opts FanOutOptions) *RequestProfilePicturesTask {
	return &RequestProfilePicturesTask{
		services: services,
		contacts: contacts,
		opts:     opts,
		log:      services.logger("request-profile-pictures"),
	}
}

func (t *RequestProfilePicturesTask) Persist() bool { return false }

func (t *RequestProfilePicturesTask) TransactionScope() Scope { return ScopeNone }

func (t *RequestProfilePicturesTask) Run(ctx context.Context, handle CodecHandle) error {
	var failures []error
	for _, contact := range t.contacts {
		identity := contact.View().Identity
		if identity.IsGateway() || identity == echoIdentity {
			continue
		}
		err := runOutgoing(ctx, t.services, handle, ContactReceiver(contact), wire.MessageTypeContactRequestPicture, wire.RequestProfilePicture{}, ScopeNone)
		if err != nil {
			t.log.WithFields(logrus.Fields{
				"contact": identity,
				"error":   err,
			}).Warn("Profile picture request failed")
			failures = append(failures, err)
		}
	}
	if t.opts.ThrowOnFailure {
		return errors.Join(failures...)
	}
	return nil
}

// GroupSyncRequestsTask sends sync requests for a set of groups the
// user did not create, e.g. after relinking a device. Like all fan-out
// tasks it is best-effort and sequential.
type GroupSyncRequestsTask struct {
	services *Services
	groups   []model.Group
	opts     FanOutOptions
	log      *logrus.Entry
}

func NewGroupSyncRequestsTask(services *Services, groups []model.Group, opts FanOutOptions) *GroupSyncRequestsTask {
	return &GroupSyncRequestsTask{
		services: services,
		groups:   groups,
		opts:     opts,
		log:      services.logger("group-sync-requests"),
	}
}

func (t *GroupSyncRequestsTask) Persist() bool { return false }

func (t *GroupSyncRequestsTask) TransactionScope() Scope { return ScopeNone }

func (t *GroupSyncRequestsTask) Run(ctx context.Context, handle CodecHandle) error {
	user := t.services.Model.UserIdentity()

	var failures []error
	for _, group := range t.groups {
		view := group.View()
		if view.Creator == user {
			// The user is the authoritative source for own groups.
			continue
		}
		if err := requestSyncFromCreator(ctx, t.services, handle, view.GroupID, view.Creator, t.log); err != nil {
			t.log.WithFields(logrus.Fields{
				"group":   view.GroupID,
				"creator": view.Creator,
				"error":   err,
			}).Warn("Group sync request failed")
			failures = append(failures, err)
		}
	}
	if t.opts.ThrowOnFailure {
		return errors.Join(failures...)
	}
	return nil
}
