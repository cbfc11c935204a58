package task

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// IncomingContactSetProfilePictureTask applies a contact's new profile
// picture: download the referenced blob, open the box and store the
// picture on the contact model.
//
// Blob failures are soft: the task logs and completes without mutating,
// relying on redelivery of the message.
type IncomingContactSetProfilePictureTask struct {
	services *Services
	contact  model.Contact
	picture  wire.SetProfilePicture
	log      *logrus.Entry
}

func NewIncomingContactSetProfilePictureTask(services *Services, contact model.Contact, picture wire.SetProfilePicture) *IncomingContactSetProfilePictureTask {
	return &IncomingContactSetProfilePictureTask{
		services: services,
		contact:  contact,
		picture:  picture,
		log:      services.logger("incoming-contact-set-profile-picture").WithField("contact", contact.View().Identity),
	}
}

func (t *IncomingContactSetProfilePictureTask) Persist() bool { return false }

func (t *IncomingContactSetProfilePictureTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingContactSetProfilePictureTask) Run(ctx context.Context, handle CodecHandle) error {
	sealed, err := t.services.Blob.Download(ctx, blob.ScopePublic, t.picture.PictureBlobID)
	if err != nil {
		t.log.WithError(err).Warn("Profile picture blob download failed, discarding")
		return nil
	}
	picture, err := blob.OpenBox(sealed, t.picture.Key)
	if err != nil {
		t.log.WithError(err).Warn("Profile picture blob failed to authenticate, discarding")
		return nil
	}
	if err := t.contact.ProfilePicture().SetPicture(picture, model.SourceContactDefined); err != nil {
		return err
	}
	t.log.Debug("Contact profile picture updated")
	return nil
}

// IncomingContactDeleteProfilePictureTask removes the contact-defined
// profile picture of a contact.
type IncomingContactDeleteProfilePictureTask struct {
	services *Services
	contact  model.Contact
	log      *logrus.Entry
}

func NewIncomingContactDeleteProfilePictureTask(services *Services, contact model.Contact) *IncomingContactDeleteProfilePictureTask {
	return &IncomingContactDeleteProfilePictureTask{
		services: services,
		contact:  contact,
		log:      services.logger("incoming-contact-delete-profile-picture").WithField("contact", contact.View().Identity),
	}
}

func (t *IncomingContactDeleteProfilePictureTask) Persist() bool { return false }

func (t *IncomingContactDeleteProfilePictureTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingContactDeleteProfilePictureTask) Run(ctx context.Context, handle CodecHandle) error {
	if err := t.contact.ProfilePicture().RemovePicture(model.SourceContactDefined); err != nil {
		return err
	}
	t.log.Debug("Contact profile picture removed")
	return nil
}

// IncomingContactRequestProfilePictureTask handles a contact asking for
// the user's profile picture: the cached distribution decision for that
// contact is dropped, so the next message to them re-announces the
// picture.
type IncomingContactRequestProfilePictureTask struct {
	services *Services
	contact  model.Contact
	log      *logrus.Entry
}

func NewIncomingContactRequestProfilePictureTask(services *Services, contact model.Contact) *IncomingContactRequestProfilePictureTask {
	return &IncomingContactRequestProfilePictureTask{
		services: services,
		contact:  contact,
		log:      services.logger("incoming-contact-request-profile-picture").WithField("contact", contact.View().Identity),
	}
}

func (t *IncomingContactRequestProfilePictureTask) Persist() bool { return false }

func (t *IncomingContactRequestProfilePictureTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingContactRequestProfilePictureTask) Run(ctx context.Context, handle CodecHandle) error {
	identity := t.contact.View().Identity
	if err := t.services.PersistentState.ClearUserProfileDistribution(identity); err != nil {
		return err
	}
	t.log.Debug("Profile picture distribution state cleared on request")
	return nil
}
