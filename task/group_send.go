package task

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// groupSyncRequestWindow suppresses repeated sync requests for the same
// group within one hour, in both directions.
const groupSyncRequestWindow = time.Hour

// runOutgoing builds an envelope for the given type and delivers it via
// a nested outgoing message task, so that reflection and profile
// distribution behave identically for directly triggered sends.
func runOutgoing(ctx context.Context, services *Services, handle CodecHandle, receiver Receiver, t wire.MessageType, encoder wire.PayloadEncoder, scope Scope) error {
	id, err := wire.NewMessageID()
	if err != nil {
		return err
	}
	envelope, err := wire.NewEnvelope(id, time.Now(), t, encoder, wire.FlagsForMessageType(t), false)
	if err != nil {
		return err
	}
	return NewScopedOutgoingMessageTask(services, receiver, envelope, scope).Run(ctx, handle)
}

// sendGroupSyncRequest asks the group creator for a full resync of the
// given group. Requests to the same group are suppressed within the
// sync request window, and gateway creators are never asked (they do
// not answer).
func sendGroupSyncRequest(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, creator model.Contact, log *logrus.Entry) error {
	user := services.Model.UserIdentity()
	creatorID := creator.View().Identity
	if creatorID.IsGateway() {
		return nil
	}

	if last, ok := services.VolatileState.LastProcessedGroupSyncRequest(groupID, creatorID, user); ok {
		if time.Since(last) < groupSyncRequestWindow {
			log.WithFields(logrus.Fields{
				"group":   groupID,
				"creator": creatorID,
			}).Debug("Group sync request suppressed, one was sent recently")
			return nil
		}
	}

	encoder := wire.GroupMemberContainer{Creator: creatorID, GroupID: groupID, Inner: wire.GroupSyncRequest{}}
	if err := runOutgoing(ctx, services, handle, ContactReceiver(creator), wire.MessageTypeGroupSyncRequest, encoder, ScopeNone); err != nil {
		return fmt.Errorf("send group sync request: %w", err)
	}
	services.VolatileState.SetLastProcessedGroupSyncRequest(groupID, creatorID, user, time.Now())
	return nil
}

// sendEmptyGroupSetup tells the receiver that they are not (or no
// longer) part of a group the user created.
func sendEmptyGroupSetup(ctx context.Context, services *Services, handle CodecHandle, groupID wire.GroupID, receiver model.Contact) error {
	encoder := wire.GroupCreatorContainer{GroupID: groupID, Inner: wire.GroupSetup{}}
	return runOutgoing(ctx, services, handle, ContactReceiver(receiver), wire.MessageTypeGroupSetup, encoder, ScopeNone)
}

// sendGroupSetup announces the current member list of a group the user
// created to a single receiver.
func sendGroupSetup(ctx context.Context, services *Services, handle CodecHandle, group model.Group, receiver model.Contact) error {
	view := group.View()
	members := make([]wire.Identity, 0, len(view.Members))
	for _, member := range view.Members {
		if member == view.Creator {
			continue
		}
		members = append(members, member)
	}
	encoder := wire.GroupCreatorContainer{GroupID: view.GroupID, Inner: wire.GroupSetup{Members: members}}
	return runOutgoing(ctx, services, handle, ContactReceiver(receiver), wire.MessageTypeGroupSetup, encoder, ScopeNone)
}

// sendGroupName announces the current name of a group the user created
// to a single receiver.
func sendGroupName(ctx context.Context, services *Services, handle CodecHandle, group model.Group, receiver model.Contact) error {
	view := group.View()
	encoder := wire.GroupCreatorContainer{GroupID: view.GroupID, Inner: wire.GroupName{Name: view.Name}}
	return runOutgoing(ctx, services, handle, ContactReceiver(receiver), wire.MessageTypeGroupName, encoder, ScopeNone)
}

// sendGroupProfilePicture announces the group's current profile picture
// to a single receiver: a freshly uploaded set-profile-picture when the
// group has one, a delete-profile-picture otherwise.
func sendGroupProfilePicture(ctx context.Context, services *Services, handle CodecHandle, group model.Group, receiver model.Contact) error {
	view := group.View()

	if len(view.Picture) == 0 {
		encoder := wire.GroupCreatorContainer{GroupID: view.GroupID, Inner: wire.DeleteProfilePicture{}}
		return runOutgoing(ctx, services, handle, ContactReceiver(receiver), wire.MessageTypeGroupDeleteProfilePicture, encoder, ScopeNone)
	}

	var key wire.BlobKey
	if _, err := rand.Read(key[:]); err != nil {
		return fmt.Errorf("%w: %v", wire.ErrEntropyUnavailable, err)
	}
	sealed := blob.SealBox(view.Picture, key)
	blobID, err := services.Blob.Upload(ctx, blob.ScopePublic, sealed)
	if err != nil {
		return fmt.Errorf("upload group profile picture: %w", err)
	}

	encoder := wire.GroupCreatorContainer{GroupID: view.GroupID, Inner: wire.SetProfilePicture{
		PictureBlobID: blobID,
		PictureSize:   uint32(len(view.Picture)),
		Key:           key,
	}}
	return runOutgoing(ctx, services, handle, ContactReceiver(receiver), wire.MessageTypeGroupSetProfilePicture, encoder, ScopeNone)
}

// OutgoingGroupLeaveTask announces that the user left a group to all
// remaining members and ends the membership locally afterwards.
type OutgoingGroupLeaveTask struct {
	services *Services
	group    model.Group
	log      *logrus.Entry
}

func NewOutgoingGroupLeaveTask(services *Services, group model.Group) *OutgoingGroupLeaveTask {
	view := group.View()
	return &OutgoingGroupLeaveTask{
		services: services,
		group:    group,
		log: services.logger("outgoing-group-leave").WithFields(logrus.Fields{
			"group":   view.GroupID,
			"creator": view.Creator,
		}),
	}
}

func (t *OutgoingGroupLeaveTask) Persist() bool { return true }

func (t *OutgoingGroupLeaveTask) TransactionScope() Scope { return ScopeNone }

func (t *OutgoingGroupLeaveTask) Run(ctx context.Context, handle CodecHandle) error {
	view := t.group.View()
	if view.UserState != model.GroupStateMember {
		// Already out, e.g. a re-run after a crash.
		return nil
	}
	encoder := wire.GroupMemberContainer{Creator: view.Creator, GroupID: view.GroupID, Inner: wire.GroupLeave{}}
	if err := runOutgoing(ctx, t.services, handle, GroupReceiver(t.group), wire.MessageTypeGroupLeave, encoder, ScopeNone); err != nil {
		return err
	}
	if err := t.group.MarkLeft(time.Now()); err != nil {
		return err
	}
	t.log.Info("Left group")
	return nil
}
