package task

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// groupReceiveResult is the outcome of the common group receive steps.
type groupReceiveResult struct {
	group  model.Group
	sender model.Contact
}

// commonGroupReceiveSteps gates every incoming group-addressed message.
// It verifies that the referenced group exists and that the sender is a
// current member. When the gate fails, the message must be discarded;
// the steps respond with the appropriate corrective message (empty
// setup, leave, or sync request) so that the remote party converges.
//
// Returns ok=false when the message must be discarded. A non-nil error
// indicates a failure of a corrective send, not a protocol decision.
func commonGroupReceiveSteps(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, creator wire.Identity, sender model.Sender, log *logrus.Entry) (groupReceiveResult, bool, error) {
	user := services.Model.UserIdentity()
	log = log.WithFields(logrus.Fields{
		"group":   groupID,
		"creator": creator,
		"sender":  sender.Identity(),
	})

	if creator == user {
		return receiveStepsAsCreator(ctx, services, handle, groupID, sender, log)
	}
	return receiveStepsAsMember(ctx, services, handle, groupID, creator, sender, log)
}

// receiveStepsAsCreator handles group messages addressed to a group the
// user created. Unknown or dissolved groups, and non-member senders,
// are answered with an empty setup revoking the sender's membership.
func receiveStepsAsCreator(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, sender model.Sender, log *logrus.Entry) (groupReceiveResult, bool, error) {
	user := services.Model.UserIdentity()

	group, known := services.Model.GroupByIDAndCreator(groupID, user)
	if !known || group.View().UserState != model.GroupStateMember {
		log.Info("Discarding message for unknown or dissolved own group")
		senderContact, err := sender.Resolve(services.Model)
		if err != nil {
			return groupReceiveResult{}, false, fmt.Errorf("resolve sender: %w", err)
		}
		if err := sendEmptyGroupSetup(ctx, services, handle, groupID, senderContact); err != nil {
			return groupReceiveResult{}, false, err
		}
		return groupReceiveResult{}, false, nil
	}

	if !group.HasMember(sender.Identity()) {
		log.Info("Discarding group message from non-member")
		senderContact, err := sender.Resolve(services.Model)
		if err != nil {
			return groupReceiveResult{}, false, fmt.Errorf("resolve sender: %w", err)
		}
		if err := sendEmptyGroupSetup(ctx, services, handle, groupID, senderContact); err != nil {
			return groupReceiveResult{}, false, err
		}
		return groupReceiveResult{}, false, nil
	}

	senderContact, err := sender.Resolve(services.Model)
	if err != nil {
		return groupReceiveResult{}, false, fmt.Errorf("resolve sender: %w", err)
	}
	return groupReceiveResult{group: group, sender: senderContact}, true, nil
}

// receiveStepsAsMember handles group messages for a group created by
// another identity. Unknown groups and unknown senders trigger a sync
// request towards the creator; messages to a group the user already
// left are answered with a leave.
func receiveStepsAsMember(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, creator wire.Identity, sender model.Sender, log *logrus.Entry) (groupReceiveResult, bool, error) {
	group, known := services.Model.GroupByIDAndCreator(groupID, creator)
	if !known {
		log.Info("Discarding message for unknown group, requesting sync")
		if err := requestSyncFromCreator(ctx, services, handle, groupID, creator, log); err != nil {
			return groupReceiveResult{}, false, err
		}
		return groupReceiveResult{}, false, nil
	}

	if group.View().UserState != model.GroupStateMember {
		log.Info("Discarding message for group the user left")
		senderContact, err := sender.Resolve(services.Model)
		if err != nil {
			return groupReceiveResult{}, false, fmt.Errorf("resolve sender: %w", err)
		}
		if err := sendGroupLeaveTo(ctx, services, handle, groupID, creator, senderContact); err != nil {
			return groupReceiveResult{}, false, err
		}
		return groupReceiveResult{}, false, nil
	}

	if !group.HasMember(sender.Identity()) {
		log.Info("Discarding group message from non-member, requesting sync")
		if err := requestSyncFromCreator(ctx, services, handle, groupID, creator, log); err != nil {
			return groupReceiveResult{}, false, err
		}
		return groupReceiveResult{}, false, nil
	}

	senderContact, err := sender.Resolve(services.Model)
	if err != nil {
		return groupReceiveResult{}, false, fmt.Errorf("resolve sender: %w", err)
	}
	return groupReceiveResult{group: group, sender: senderContact}, true, nil
}

// requestSyncFromCreator sends a sync request when the creator is a
// known contact. An unknown creator cannot be asked; the message is
// dropped silently and a later setup will establish the group.
func requestSyncFromCreator(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, creator wire.Identity, log *logrus.Entry) error {
	creatorContact, known := services.Model.ContactByIdentity(creator)
	if !known {
		log.Debug("Group creator is not a known contact, skipping sync request")
		return nil
	}
	return sendGroupSyncRequest(ctx, services, handle, groupID, creatorContact, log)
}

// sendGroupLeaveTo announces that the user is no longer part of the
// group to a single receiver.
func sendGroupLeaveTo(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, creator wire.Identity, receiver model.Contact) error {
	encoder := wire.GroupMemberContainer{Creator: creator, GroupID: groupID, Inner: wire.GroupLeave{}}
	return runOutgoing(ctx, services, handle, ContactReceiver(receiver), wire.MessageTypeGroupLeave, encoder, ScopeNone)
}
