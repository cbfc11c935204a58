package task

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// OutgoingDeliveryReceiptTask sends a delivery receipt for one or more
// received messages back to their sender. The task is persistent so
// receipts survive a restart.
type OutgoingDeliveryReceiptTask struct {
	services   *Services
	contact    model.Contact
	status     wire.DeliveryReceiptStatus
	messageIDs []wire.MessageID
	log        *logrus.Entry
}

func NewOutgoingDeliveryReceiptTask(services *Services, contact model.Contact, status wire.DeliveryReceiptStatus, messageIDs []wire.MessageID) *OutgoingDeliveryReceiptTask {
	return &OutgoingDeliveryReceiptTask{
		services:   services,
		contact:    contact,
		status:     status,
		messageIDs: messageIDs,
		log: services.logger("outgoing-delivery-receipt").WithFields(logrus.Fields{
			"contact": contact.View().Identity,
			"status":  receiptStatusName(status),
		}),
	}
}

func (t *OutgoingDeliveryReceiptTask) Persist() bool { return true }

func (t *OutgoingDeliveryReceiptTask) TransactionScope() Scope { return ScopeNone }

func (t *OutgoingDeliveryReceiptTask) Run(ctx context.Context, handle CodecHandle) error {
	if len(t.messageIDs) == 0 {
		return nil
	}
	encoder := wire.DeliveryReceipt{Status: t.status, MessageIDs: t.messageIDs}
	return runOutgoing(ctx, t.services, handle, ContactReceiver(t.contact), wire.MessageTypeDeliveryReceipt, encoder, ScopeNone)
}

// IncomingDeliveryReceiptTask applies a delivery receipt received from
// a remote party to the referenced outbound messages.
//
// Receipts for unknown messages are skipped, they may refer to messages
// already removed locally. A receipt for an inbound message violates
// the direction invariant and is reported loudly.
type IncomingDeliveryReceiptTask struct {
	services     *Services
	conversation wire.ConversationID
	status       wire.DeliveryReceiptStatus
	messageIDs   []wire.MessageID
	at           time.Time
	log          *logrus.Entry
}

func NewIncomingDeliveryReceiptTask(services *Services, conversation wire.ConversationID, status wire.DeliveryReceiptStatus, messageIDs []wire.MessageID, at time.Time) *IncomingDeliveryReceiptTask {
	return &IncomingDeliveryReceiptTask{
		services:     services,
		conversation: conversation,
		status:       status,
		messageIDs:   messageIDs,
		at:           at,
		log: services.logger("incoming-delivery-receipt").WithFields(logrus.Fields{
			"conversation": conversation,
			"status":       receiptStatusName(status),
		}),
	}
}

func (t *IncomingDeliveryReceiptTask) Persist() bool { return false }

func (t *IncomingDeliveryReceiptTask) TransactionScope() Scope { return ScopeNone }

func (t *IncomingDeliveryReceiptTask) Run(ctx context.Context, handle CodecHandle) error {
	conversation, ok := t.services.Model.ConversationByID(t.conversation)
	if !ok {
		t.log.Debug("Discarding delivery receipt for unknown conversation")
		return nil
	}

	for _, id := range t.messageIDs {
		message, found := conversation.GetMessage(id)
		if !found {
			t.log.WithField("message_id", id).Debug("Skipping receipt for unknown message")
			continue
		}
		if direction := message.View().Direction; direction != model.DirectionOutbound {
			return errDirectionMismatch(id, model.DirectionOutbound, direction)
		}

		var err error
		switch t.status {
		case wire.DeliveryReceiptReceived:
			err = conversation.MarkMessageDelivered(id, t.at)
		case wire.DeliveryReceiptRead:
			err = conversation.MarkMessageRead(id, t.at)
		case wire.DeliveryReceiptAcknowledged, wire.DeliveryReceiptDeclined:
			// Reactions carry no state tracked here.
			t.log.WithField("message_id", id).Debug("Ignoring reaction receipt")
		default:
			t.log.WithField("message_id", id).Warn("Discarding receipt with unknown status")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func receiptStatusName(status wire.DeliveryReceiptStatus) string {
	switch status {
	case wire.DeliveryReceiptReceived:
		return "received"
	case wire.DeliveryReceiptRead:
		return "read"
	case wire.DeliveryReceiptAcknowledged:
		return "acknowledged"
	case wire.DeliveryReceiptDeclined:
		return "declined"
	default:
		return "unknown"
	}
}
