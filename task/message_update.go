package task

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// MessageUpdate is the sealed union of updates applicable to an already
// delivered message.
type MessageUpdate interface {
	isMessageUpdate()
	name() string
}

// EditUpdate replaces the text of a message.
type EditUpdate struct {
	NewText string
}

func (EditUpdate) isMessageUpdate() {}
func (EditUpdate) name() string     { return "edit" }

// DeleteUpdate converts a message into its terminal deleted state.
type DeleteUpdate struct{}

func (DeleteUpdate) isMessageUpdate() {}
func (DeleteUpdate) name() string     { return "delete" }

func errDirectionMismatch(id wire.MessageID, want, got model.MessageDirection) error {
	return fmt.Errorf("%w: message %s is %s, expected %s", ErrInvariantViolation, id, got, want)
}

// MessageUpdateTask applies an edit or delete to an existing message.
// It is used both for updates received from a remote party (targeting
// inbound messages) and for updates reflected from the user's other
// devices (targeting outbound messages); the expected direction is
// fixed at construction and enforced as an invariant.
//
// Updates for messages that no longer exist are dropped. Deletion is
// terminal: once a message is deleted, any further update (edit or a
// repeated delete) is a stale leftover of a benign race and is
// discarded with a warning.
type MessageUpdateTask struct {
	services     *Services
	conversation wire.ConversationID
	messageID    wire.MessageID
	direction    model.MessageDirection
	update       MessageUpdate
	at           time.Time
	log          *logrus.Entry
}

// NewIncomingMessageUpdateTask applies an update sent by the remote
// party, which must reference an inbound message.
func NewIncomingMessageUpdateTask(services *Services, conversation wire.ConversationID, messageID wire.MessageID, update MessageUpdate, at time.Time) *MessageUpdateTask {
	return newMessageUpdateTask(services, "incoming-message-update", conversation, messageID, model.DirectionInbound, update, at)
}

// NewReflectedMessageUpdateTask applies an update reflected from one of
// the user's other devices, which must reference an outbound message.
func NewReflectedMessageUpdateTask(services *Services, conversation wire.ConversationID, messageID wire.MessageID, update MessageUpdate, at time.Time) *MessageUpdateTask {
	return newMessageUpdateTask(services, "reflected-message-update", conversation, messageID, model.DirectionOutbound, update, at)
}

func newMessageUpdateTask(services *Services, name string, conversation wire.ConversationID, messageID wire.MessageID, direction model.MessageDirection, update MessageUpdate, at time.Time) *MessageUpdateTask {
	return &MessageUpdateTask{
		services:     services,
		conversation: conversation,
		messageID:    messageID,
		direction:    direction,
		update:       update,
		at:           at,
		log: services.logger(name).WithFields(logrus.Fields{
			"conversation": conversation,
			"message_id":   messageID,
			"update":       update.name(),
		}),
	}
}

func (t *MessageUpdateTask) Persist() bool { return false }

func (t *MessageUpdateTask) TransactionScope() Scope { return ScopeNone }

func (t *MessageUpdateTask) Run(ctx context.Context, handle CodecHandle) error {
	conversation, ok := t.services.Model.ConversationByID(t.conversation)
	if !ok {
		t.log.Debug("Discarding update for unknown conversation")
		return nil
	}
	message, found := conversation.GetMessage(t.messageID)
	if !found {
		t.log.Debug("Discarding update for unknown message")
		return nil
	}

	view := message.View()
	if view.Deleted {
		// Deletion is terminal; whatever arrives afterwards lost a race.
		t.log.Warn("Discarding update for deleted message")
		return nil
	}
	if view.Direction != t.direction {
		return errDirectionMismatch(t.messageID, t.direction, view.Direction)
	}

	switch update := t.update.(type) {
	case EditUpdate:
		if err := message.Edit(update.NewText, t.at); err != nil {
			return err
		}
		t.log.Debug("Message edited")
		return nil
	case DeleteUpdate:
		if err := conversation.MarkMessageDeleted(t.messageID, t.at); err != nil {
			return err
		}
		t.log.Debug("Message deleted")
		return nil
	default:
		return fmt.Errorf("%w: unhandled message update %T", ErrInvariantViolation, t.update)
	}
}
