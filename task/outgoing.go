package task

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/wire"
)

// OutgoingMessageTask delivers one outgoing message: it reflects the
// message to the device group first (multi-device), then fans it out to
// every receiver identity, then distributes the user's profile picture
// where the envelope allows it.
//
// The task is persistent: an unsent message survives a restart and is
// re-run until delivery succeeds.
type OutgoingMessageTask struct {
	services *Services
	receiver Receiver
	envelope *wire.Envelope
	scope    Scope
	log      *logrus.Entry
}

// NewOutgoingMessageTask creates an unscoped outgoing message task.
func NewOutgoingMessageTask(services *Services, receiver Receiver, envelope *wire.Envelope) *OutgoingMessageTask {
	return NewScopedOutgoingMessageTask(services, receiver, envelope, ScopeNone)
}

// NewScopedOutgoingMessageTask creates an outgoing message task whose
// reflection runs inside a transaction of the given scope.
func NewScopedOutgoingMessageTask(services *Services, receiver Receiver, envelope *wire.Envelope, scope Scope) *OutgoingMessageTask {
	return &OutgoingMessageTask{
		services: services,
		receiver: receiver,
		envelope: envelope,
		scope:    scope,
		log: services.logger("outgoing-message").WithFields(logrus.Fields{
			"message_id": envelope.MessageID,
			"type":       envelope.Type,
		}),
	}
}

func (t *OutgoingMessageTask) Persist() bool { return true }

func (t *OutgoingMessageTask) TransactionScope() Scope { return t.scope }

func (t *OutgoingMessageTask) Run(ctx context.Context, handle CodecHandle) error {
	user := t.services.Model.UserIdentity()
	receivers := t.receiver.identities(user)
	payload := t.envelope.EncodePayload()

	if handle.MultiDevice() {
		if err := t.reflect(ctx, handle, payload); err != nil {
			return err
		}
	}

	nickname := ""
	if t.envelope.AllowProfileDistribution {
		nickname = t.services.Model.UserProfile().View().Nickname
	}

	for _, identity := range receivers {
		err := handle.Send(ctx, &OutboundMessage{
			Receiver:  identity,
			MessageID: t.envelope.MessageID,
			CreatedAt: t.envelope.CreatedAt,
			Type:      t.envelope.Type,
			Flags:     t.envelope.Flags,
			Payload:   payload,
			Nickname:  nickname,
		})
		if err != nil {
			return fmt.Errorf("%w: to %s: %v", ErrSendFailed, identity, err)
		}
		t.log.WithField("receiver", identity).Debug("Message sent")
	}

	if t.envelope.AllowProfileDistribution {
		if err := distributeUserProfilePicture(ctx, t.services, handle, receivers, t.log); err != nil {
			// Distribution is opportunistic: the message itself was
			// delivered, so log and move on.
			t.log.WithError(err).Warn("Profile picture distribution failed")
		}
	}
	return nil
}

// reflect mirrors the message to the device group. Reflection commits
// before any send so that the devices agree on the message having been
// sent even if delivery to the remote party fails afterwards.
func (t *OutgoingMessageTask) reflect(ctx context.Context, handle CodecHandle, payload []byte) error {
	scoped := t.scope != ScopeNone
	if scoped {
		if err := handle.BeginTransaction(ctx, t.scope); err != nil {
			return fmt.Errorf("begin %s transaction: %w", t.scope, err)
		}
	}

	err := handle.Reflect(ctx, &ReflectedMessage{
		Conversation: t.receiver.ConversationID(),
		MessageID:    t.envelope.MessageID,
		CreatedAt:    t.envelope.CreatedAt,
		Type:         t.envelope.Type,
		Payload:      payload,
	})
	if err != nil {
		if scoped {
			if abortErr := handle.AbortTransaction(ctx); abortErr != nil {
				t.log.WithError(abortErr).Warn("Transaction abort failed")
			}
		}
		return fmt.Errorf("%w: %v", ErrReflectFailed, err)
	}

	if scoped {
		if err := handle.CommitTransaction(ctx); err != nil {
			return fmt.Errorf("commit %s transaction: %w", t.scope, err)
		}
	}
	t.log.Debug("Message reflected")
	return nil
}
