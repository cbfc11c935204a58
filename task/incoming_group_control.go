package task

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// IncomingGroupSetupTask applies a group membership announcement from a
// group creator. The member list is authoritative: an unknown group is
// created implicitly when the user is included, a known group is
// updated, and an empty list (or a list without the user) marks the
// user as removed.
type IncomingGroupSetupTask struct {
	services *Services
	groupID  wire.GroupID
	sender   model.Sender
	members  []wire.Identity
	at       time.Time
	log      *logrus.Entry
}

func NewIncomingGroupSetupTask(services *Services, groupID wire.GroupID, sender model.Sender, members []wire.Identity, at time.Time) *IncomingGroupSetupTask {
	return &IncomingGroupSetupTask{
		services: services,
		groupID:  groupID,
		sender:   sender,
		members:  members,
		at:       at,
		log: services.logger("incoming-group-setup").WithFields(logrus.Fields{
			"group":   groupID,
			"creator": sender.Identity(),
		}),
	}
}

func (t *IncomingGroupSetupTask) Persist() bool { return false }

func (t *IncomingGroupSetupTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupSetupTask) Run(ctx context.Context, handle CodecHandle) error {
	user := t.services.Model.UserIdentity()
	creator := t.sender.Identity()

	// Strip the creator and the user from the announced list; membership
	// of both is tracked separately.
	members := make([]wire.Identity, 0, len(t.members))
	userIncluded := false
	for _, member := range t.members {
		if member == user {
			userIncluded = true
			continue
		}
		if member == creator {
			continue
		}
		members = append(members, member)
	}

	group, known := t.services.Model.GroupByIDAndCreator(t.groupID, creator)
	if !known {
		if !userIncluded {
			t.log.Debug("Discarding setup for unknown group without the user")
			return nil
		}
		if _, err := t.sender.Resolve(t.services.Model); err != nil {
			return err
		}
		if _, err := t.services.Model.CreateGroup(t.groupID, creator, members); err != nil {
			return err
		}
		t.log.WithField("members", len(members)).Info("Group created from setup")
		return nil
	}

	if !userIncluded {
		if group.View().UserState != model.GroupStateMember {
			// Already out of the group.
			return nil
		}
		t.log.Info("User removed from group by setup")
		return group.MarkLeft(t.at)
	}

	if err := group.SetMembers(members, t.at); err != nil {
		return err
	}
	t.log.WithField("members", len(members)).Debug("Group members updated from setup")
	return nil
}

// IncomingGroupNameTask applies a group rename announced by the group
// creator.
type IncomingGroupNameTask struct {
	services *Services
	groupID  wire.GroupID
	sender   model.Sender
	name     string
	at       time.Time
	log      *logrus.Entry
}

func NewIncomingGroupNameTask(services *Services, groupID wire.GroupID, sender model.Sender, name string, at time.Time) *IncomingGroupNameTask {
	return &IncomingGroupNameTask{
		services: services,
		groupID:  groupID,
		sender:   sender,
		name:     name,
		at:       at,
		log: services.logger("incoming-group-name").WithFields(logrus.Fields{
			"group":   groupID,
			"creator": sender.Identity(),
		}),
	}
}

func (t *IncomingGroupNameTask) Persist() bool { return false }

func (t *IncomingGroupNameTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupNameTask) Run(ctx context.Context, handle CodecHandle) error {
	creator := t.sender.Identity()
	result, ok, err := commonGroupReceiveSteps(ctx, t.services, handle, t.groupID, creator, t.sender, t.log)
	if err != nil || !ok {
		return err
	}
	if err := result.group.SetName(t.name, t.at); err != nil {
		return err
	}
	t.log.Debug("Group renamed")
	return nil
}

// IncomingGroupLeaveTask removes the sender from the group's member
// list.
type IncomingGroupLeaveTask struct {
	services *Services
	groupID  wire.GroupID
	creator  wire.Identity
	sender   model.Sender
	at       time.Time
	log      *logrus.Entry
}

func NewIncomingGroupLeaveTask(services *Services, groupID wire.GroupID, creator wire.Identity, sender model.Sender, at time.Time) *IncomingGroupLeaveTask {
	return &IncomingGroupLeaveTask{
		services: services,
		groupID:  groupID,
		creator:  creator,
		sender:   sender,
		at:       at,
		log: services.logger("incoming-group-leave").WithFields(logrus.Fields{
			"group":   groupID,
			"creator": creator,
			"sender":  sender.Identity(),
		}),
	}
}

func (t *IncomingGroupLeaveTask) Persist() bool { return false }

func (t *IncomingGroupLeaveTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupLeaveTask) Run(ctx context.Context, handle CodecHandle) error {
	// Leaves bypass the common receive gate: a departing sender is no
	// longer a member, which is exactly the state the gate would try to
	// correct with a sync request or counter-leave.
	if t.sender.Identity() == t.creator {
		// The creator cannot leave their own group.
		t.log.Warn("Discarding group leave from creator")
		return nil
	}

	group, known := t.services.Model.GroupByIDAndCreator(t.groupID, t.creator)
	if !known {
		t.log.Debug("Discarding leave for unknown group")
		return nil
	}
	if !group.HasMember(t.sender.Identity()) {
		// Already gone.
		return nil
	}

	members := make([]wire.Identity, 0, len(group.View().Members))
	for _, member := range group.View().Members {
		if member == t.sender.Identity() {
			continue
		}
		members = append(members, member)
	}
	if err := group.SetMembers(members, t.at); err != nil {
		return err
	}
	t.log.Debug("Member left group")
	return nil
}

// IncomingGroupCallStartTask registers a group call announced by a
// member.
type IncomingGroupCallStartTask struct {
	services *Services
	groupID  wire.GroupID
	creator  wire.Identity
	sender   model.Sender
	call     wire.GroupCallStart
	at       time.Time
	log      *logrus.Entry
}

func NewIncomingGroupCallStartTask(services *Services, groupID wire.GroupID, creator wire.Identity, sender model.Sender, call wire.GroupCallStart, at time.Time) *IncomingGroupCallStartTask {
	return &IncomingGroupCallStartTask{
		services: services,
		groupID:  groupID,
		creator:  creator,
		sender:   sender,
		call:     call,
		at:       at,
		log: services.logger("incoming-group-call-start").WithFields(logrus.Fields{
			"group":   groupID,
			"creator": creator,
			"sender":  sender.Identity(),
		}),
	}
}

func (t *IncomingGroupCallStartTask) Persist() bool { return false }

func (t *IncomingGroupCallStartTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupCallStartTask) Run(ctx context.Context, handle CodecHandle) error {
	if !strings.HasPrefix(t.call.SFUBaseURL, "https://") {
		t.log.WithField("url", t.call.SFUBaseURL).Warn("Discarding group call with invalid SFU base URL")
		return nil
	}

	result, ok, err := commonGroupReceiveSteps(ctx, t.services, handle, t.groupID, t.creator, t.sender, t.log)
	if err != nil || !ok {
		return err
	}

	err = result.group.RegisterCall(model.GroupCallBaseData{
		StartedBy:       t.sender.Identity(),
		ProtocolVersion: t.call.ProtocolVersion,
		GroupCallKey:    t.call.GroupCallKey,
		SFUBaseURL:      t.call.SFUBaseURL,
		StartedAt:       t.at,
	})
	if err != nil {
		return err
	}
	t.log.Info("Group call registered")
	return nil
}
