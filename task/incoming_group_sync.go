package task

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// IncomingGroupSyncRequestTask answers a member's request for a full
// group resync: the current setup, name and profile picture are sent
// back to the requester. Only the creator answers sync requests.
//
// Repeated requests from the same sender for the same group within one
// hour are dropped, tracked in volatile state so the throttle resets on
// restart.
type IncomingGroupSyncRequestTask struct {
	services *Services
	groupID  wire.GroupID
	sender   model.Sender
	log      *logrus.Entry
}

func NewIncomingGroupSyncRequestTask(services *Services, groupID wire.GroupID, sender model.Sender) *IncomingGroupSyncRequestTask {
	return &IncomingGroupSyncRequestTask{
		services: services,
		groupID:  groupID,
		sender:   sender,
		log: services.logger("incoming-group-sync-request").WithFields(logrus.Fields{
			"group":  groupID,
			"sender": sender.Identity(),
		}),
	}
}

func (t *IncomingGroupSyncRequestTask) Persist() bool { return false }

func (t *IncomingGroupSyncRequestTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupSyncRequestTask) Run(ctx context.Context, handle CodecHandle) error {
	user := t.services.Model.UserIdentity()
	senderID := t.sender.Identity()

	if last, ok := t.services.VolatileState.LastProcessedGroupSyncRequest(t.groupID, user, senderID); ok {
		if time.Since(last) < groupSyncRequestWindow {
			t.log.Debug("Discarding repeated group sync request within throttle window")
			return nil
		}
	}
	t.services.VolatileState.SetLastProcessedGroupSyncRequest(t.groupID, user, senderID, time.Now())

	sender, err := t.sender.Resolve(t.services.Model)
	if err != nil {
		return err
	}

	group, known := t.services.Model.GroupByIDAndCreator(t.groupID, user)
	if !known || group.View().UserState != model.GroupStateMember {
		t.log.Info("Answering sync request for unknown or dissolved group with empty setup")
		return sendEmptyGroupSetup(ctx, t.services, handle, t.groupID, sender)
	}
	if !group.HasMember(senderID) {
		t.log.Info("Answering sync request from non-member with empty setup")
		return sendEmptyGroupSetup(ctx, t.services, handle, t.groupID, sender)
	}

	if err := sendGroupSetup(ctx, t.services, handle, group, sender); err != nil {
		return err
	}
	if err := sendGroupName(ctx, t.services, handle, group, sender); err != nil {
		return err
	}
	if err := sendGroupProfilePicture(ctx, t.services, handle, group, sender); err != nil {
		return err
	}
	t.log.Debug("Group sync request answered")
	return nil
}
