package task

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/state"
	"github.com/opd-ai/devsync/wire"
)

// echoIdentity is the echo test client. It never receives the user's
// profile.
const echoIdentity wire.Identity = "ECHOECHO"

// distributeUserProfilePicture runs the profile picture distribution
// steps for each receiver: decide whether the receiver should see the
// user's picture, compare against the cached decision, and send a
// set-profile-picture or delete-profile-picture message only when the
// decision changed. Decisions are cached for seven days, after which
// the picture is re-announced.
func distributeUserProfilePicture(ctx context.Context, services *Services, handle CodecHandle, receivers []wire.Identity, log *logrus.Entry) error {
	profile := services.Model.UserProfile()

	for _, receiver := range receivers {
		if receiver.IsGateway() || receiver == echoIdentity {
			continue
		}
		if err := distributeToReceiver(ctx, services, handle, profile, receiver, log); err != nil {
			return fmt.Errorf("distribute profile picture to %s: %w", receiver, err)
		}
	}
	return nil
}

func distributeToReceiver(ctx context.Context, services *Services, handle CodecHandle, profile model.UserProfile, receiver wire.Identity, log *logrus.Entry) error {
	view := profile.View()
	now := time.Now()

	cached, haveCached := services.PersistentState.LastUserProfileDistribution(receiver)

	if !shareWith(view, receiver) || view.Picture == nil || len(view.Picture.Bytes) == 0 {
		// The receiver must not (or can not) see a picture. Only send a
		// removal if the last decision was not already a removal.
		if haveCached && cached.Removed {
			return nil
		}
		if err := sendProfilePictureMessage(ctx, handle, receiver, wire.MessageTypeContactDeletePicture, wire.DeleteProfilePicture{}, now); err != nil {
			return err
		}
		log.WithField("receiver", receiver).Debug("Profile picture removal announced")
		return services.PersistentState.SetLastUserProfileDistribution(receiver, state.UserProfileDecision{Removed: true}, now)
	}

	picture, err := ensurePictureUploaded(ctx, services, profile, now)
	if err != nil {
		return err
	}

	if haveCached && !cached.Removed && cached.BlobID == picture.BlobID {
		// Receiver already has the current picture.
		return nil
	}

	payload := wire.SetProfilePicture{
		PictureBlobID: picture.BlobID,
		PictureSize:   uint32(len(picture.Bytes)),
		Key:           picture.Key,
	}
	if err := sendProfilePictureMessage(ctx, handle, receiver, wire.MessageTypeContactSetPicture, payload, now); err != nil {
		return err
	}
	log.WithField("receiver", receiver).Debug("Profile picture announced")
	return services.PersistentState.SetLastUserProfileDistribution(receiver, state.UserProfileDecision{BlobID: picture.BlobID}, now)
}

// shareWith evaluates the user's profile picture share policy for one
// receiver.
func shareWith(view model.UserProfileView, receiver wire.Identity) bool {
	switch view.SharePolicy {
	case model.ShareWithEveryone:
		return true
	case model.ShareWithNobody:
		return false
	case model.ShareWithAllowList:
		for _, allowed := range view.AllowList {
			if allowed == receiver {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ensurePictureUploaded returns the user's profile picture with a valid
// blob server upload, uploading a freshly sealed copy when the previous
// upload is missing or older than the distribution TTL (blobs on the
// server expire, so stale ids must not be announced).
func ensurePictureUploaded(ctx context.Context, services *Services, profile model.UserProfile, now time.Time) (model.UserProfilePicture, error) {
	picture := *profile.View().Picture
	if !picture.BlobID.IsZero() && now.Sub(picture.LastUploadedAt) <= state.UserProfileDistributionTTL {
		return picture, nil
	}

	var key wire.BlobKey
	if _, err := rand.Read(key[:]); err != nil {
		return model.UserProfilePicture{}, fmt.Errorf("%w: %v", wire.ErrEntropyUnavailable, err)
	}
	sealed := blob.SealBox(picture.Bytes, key)
	blobID, err := services.Blob.Upload(ctx, blob.ScopePublic, sealed)
	if err != nil {
		return model.UserProfilePicture{}, fmt.Errorf("upload profile picture: %w", err)
	}
	if err := profile.RecordPictureUpload(blobID, key, now); err != nil {
		return model.UserProfilePicture{}, err
	}

	picture.BlobID = blobID
	picture.Key = key
	picture.LastUploadedAt = now
	return picture, nil
}

func sendProfilePictureMessage(ctx context.Context, handle CodecHandle, receiver wire.Identity, t wire.MessageType, encoder wire.PayloadEncoder, createdAt time.Time) error {
	id, err := wire.NewMessageID()
	if err != nil {
		return err
	}
	envelope, err := wire.NewEnvelope(id, createdAt, t, encoder, wire.FlagsForMessageType(t), false)
	if err != nil {
		return err
	}
	err = handle.Send(ctx, &OutboundMessage{
		Receiver:  receiver,
		MessageID: envelope.MessageID,
		CreatedAt: envelope.CreatedAt,
		Type:      envelope.Type,
		Flags:     envelope.Flags,
		Payload:   envelope.EncodePayload(),
	})
	if err != nil {
		return fmt.Errorf("%w: to %s: %v", ErrSendFailed, receiver, err)
	}
	return nil
}
