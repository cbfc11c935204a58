package task

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// IncomingGroupSetProfilePictureTask applies a group profile picture
// announced by the group creator: download the referenced blob, open
// the box and store the picture on the group model.
//
// Blob failures are soft: the task logs and completes without mutating,
// relying on redelivery of the message.
type IncomingGroupSetProfilePictureTask struct {
	services *Services
	groupID  wire.GroupID
	sender   model.Sender
	picture  wire.SetProfilePicture
	log      *logrus.Entry
}

func NewIncomingGroupSetProfilePictureTask(services *Services, groupID wire.GroupID, sender model.Sender, picture wire.SetProfilePicture) *IncomingGroupSetProfilePictureTask {
	return &IncomingGroupSetProfilePictureTask{
		services: services,
		groupID:  groupID,
		sender:   sender,
		picture:  picture,
		log: services.logger("incoming-group-set-profile-picture").WithFields(logrus.Fields{
			"group":   groupID,
			"creator": sender.Identity(),
		}),
	}
}

func (t *IncomingGroupSetProfilePictureTask) Persist() bool { return false }

func (t *IncomingGroupSetProfilePictureTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupSetProfilePictureTask) Run(ctx context.Context, handle CodecHandle) error {
	creator := t.sender.Identity()
	result, ok, err := commonGroupReceiveSteps(ctx, t.services, handle, t.groupID, creator, t.sender, t.log)
	if err != nil || !ok {
		return err
	}

	sealed, err := t.services.Blob.Download(ctx, blob.ScopePublic, t.picture.PictureBlobID)
	if err != nil {
		t.log.WithError(err).Warn("Group profile picture blob download failed, discarding")
		return nil
	}
	picture, err := blob.OpenBox(sealed, t.picture.Key)
	if err != nil {
		t.log.WithError(err).Warn("Group profile picture blob failed to authenticate, discarding")
		return nil
	}
	if err := result.group.ProfilePicture().SetPicture(picture, model.SourceAdminDefined); err != nil {
		return err
	}
	t.log.Debug("Group profile picture updated")
	return nil
}

// IncomingGroupDeleteProfilePictureTask removes the admin-defined
// profile picture of a group, as announced by the group creator.
type IncomingGroupDeleteProfilePictureTask struct {
	services *Services
	groupID  wire.GroupID
	sender   model.Sender
	log      *logrus.Entry
}

func NewIncomingGroupDeleteProfilePictureTask(services *Services, groupID wire.GroupID, sender model.Sender) *IncomingGroupDeleteProfilePictureTask {
	return &IncomingGroupDeleteProfilePictureTask{
		services: services,
		groupID:  groupID,
		sender:   sender,
		log: services.logger("incoming-group-delete-profile-picture").WithFields(logrus.Fields{
			"group":   groupID,
			"creator": sender.Identity(),
		}),
	}
}

func (t *IncomingGroupDeleteProfilePictureTask) Persist() bool { return false }

func (t *IncomingGroupDeleteProfilePictureTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingGroupDeleteProfilePictureTask) Run(ctx context.Context, handle CodecHandle) error {
	creator := t.sender.Identity()
	result, ok, err := commonGroupReceiveSteps(ctx, t.services, handle, t.groupID, creator, t.sender, t.log)
	if err != nil || !ok {
		return err
	}
	if err := result.group.ProfilePicture().RemovePicture(model.SourceAdminDefined); err != nil {
		return err
	}
	t.log.Debug("Group profile picture removed")
	return nil
}
