package wire

import (
	"errors"
	"fmt"
	"time"
)

// MessageType is the end-to-end message type discriminant.
type MessageType uint8

// End-to-end message types as defined by the chat server protocol.
const (
	MessageTypeText                  MessageType = 0x01
	MessageTypeDeliveryReceipt       MessageType = 0x80
	MessageTypeEditMessage           MessageType = 0x91
	MessageTypeDeleteMessage         MessageType = 0x92
	MessageTypeGroupEditMessage      MessageType = 0x93
	MessageTypeGroupDeleteMessage    MessageType = 0x94
	MessageTypeContactSetPicture     MessageType = 0x18
	MessageTypeContactDeletePicture  MessageType = 0x19
	MessageTypeContactRequestPicture MessageType = 0x1a

	MessageTypeGroupText                 MessageType = 0x41
	MessageTypeGroupSetup                MessageType = 0x4a
	MessageTypeGroupName                 MessageType = 0x4b
	MessageTypeGroupLeave                MessageType = 0x4c
	MessageTypeGroupCallStart            MessageType = 0x4f
	MessageTypeGroupSetProfilePicture    MessageType = 0x50
	MessageTypeGroupSyncRequest          MessageType = 0x51
	MessageTypeGroupDeleteProfilePicture MessageType = 0x54
	MessageTypeGroupDeliveryReceipt      MessageType = 0x81
)

// typeNames maps message types to their debug names.
var typeNames = map[MessageType]string{
	MessageTypeText:                      "text",
	MessageTypeDeliveryReceipt:           "delivery-receipt",
	MessageTypeEditMessage:               "edit-message",
	MessageTypeDeleteMessage:             "delete-message",
	MessageTypeGroupEditMessage:          "group-edit-message",
	MessageTypeGroupDeleteMessage:        "group-delete-message",
	MessageTypeContactSetPicture:         "contact-set-profile-picture",
	MessageTypeContactDeletePicture:      "contact-delete-profile-picture",
	MessageTypeContactRequestPicture:     "contact-request-profile-picture",
	MessageTypeGroupText:                 "group-text",
	MessageTypeGroupSetup:                "group-setup",
	MessageTypeGroupName:                 "group-name",
	MessageTypeGroupLeave:                "group-leave",
	MessageTypeGroupCallStart:            "group-call-start",
	MessageTypeGroupSetProfilePicture:    "group-set-profile-picture",
	MessageTypeGroupSyncRequest:          "group-sync-request",
	MessageTypeGroupDeleteProfilePicture: "group-delete-profile-picture",
	MessageTypeGroupDeliveryReceipt:      "group-delivery-receipt",
}

// String returns the debug name of the message type.
func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("<unknown> (0x%02x)", uint8(t))
}

// IsGroupType reports whether messages of this type address a group.
func (t MessageType) IsGroupType() bool {
	switch t {
	case MessageTypeGroupText, MessageTypeGroupSetup, MessageTypeGroupName,
		MessageTypeGroupLeave, MessageTypeGroupCallStart,
		MessageTypeGroupSetProfilePicture, MessageTypeGroupSyncRequest,
		MessageTypeGroupDeleteProfilePicture, MessageTypeGroupDeliveryReceipt,
		MessageTypeGroupEditMessage, MessageTypeGroupDeleteMessage:
		return true
	default:
		return false
	}
}

// PayloadEncoder encodes a message payload into its wire representation.
type PayloadEncoder interface {
	// ByteLength returns the exact encoded length in bytes.
	ByteLength() int

	// Encode writes the payload into buf, which must be at least
	// ByteLength() bytes long, and returns the written slice.
	Encode(buf []byte) []byte
}

// Envelope encoding errors.
var (
	ErrInvalidMessageType    = errors.New("invalid message type")
	ErrInconsistentFlags     = errors.New("flags inconsistent with message type")
	ErrMissingPayloadEncoder = errors.New("missing payload encoder")
)

// Envelope is an immutable outgoing message: the logical message together
// with everything required to put it on the wire.
type Envelope struct {
	MessageID MessageID
	CreatedAt time.Time
	Type      MessageType
	Encoder   PayloadEncoder
	Flags     Flags

	// AllowProfileDistribution indicates whether the user's profile
	// (nickname and profile picture) may be shared with the receiver of
	// this message.
	AllowProfileDistribution bool
}

// NewEnvelope validates and constructs an outgoing envelope.
//
// The type 0xff is rejected to prevent payload confusion with the protocol's
// authentication payloads. Delivery receipts must never request delivery
// receipts themselves.
func NewEnvelope(id MessageID, createdAt time.Time, t MessageType, encoder PayloadEncoder, flags Flags, allowProfileDistribution bool) (*Envelope, error) {
	if uint8(t) == 0xff {
		return nil, fmt.Errorf("%w: 0xff is reserved", ErrInvalidMessageType)
	}
	if encoder == nil {
		return nil, ErrMissingPayloadEncoder
	}
	if (t == MessageTypeDeliveryReceipt || t == MessageTypeGroupDeliveryReceipt) && !flags.DontSendDeliveryReceipts {
		return nil, fmt.Errorf("%w: delivery receipts must set DontSendDeliveryReceipts", ErrInconsistentFlags)
	}
	if t.IsGroupType() && !flags.GroupMessage {
		return nil, fmt.Errorf("%w: group message type %s without GroupMessage flag", ErrInconsistentFlags, t)
	}
	return &Envelope{
		MessageID:                id,
		CreatedAt:                createdAt,
		Type:                     t,
		Encoder:                  encoder,
		Flags:                    flags,
		AllowProfileDistribution: allowProfileDistribution,
	}, nil
}

// EncodePayload encodes the payload into a freshly allocated buffer.
func (e *Envelope) EncodePayload() []byte {
	return e.Encoder.Encode(make([]byte, e.Encoder.ByteLength()))
}
