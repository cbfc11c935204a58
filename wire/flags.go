package wire

// Flag bits as defined by the chat server protocol.
const (
	flagSendPushNotification      uint8 = 0x01
	flagDontQueue                 uint8 = 0x02
	flagDontAck                   uint8 = 0x04
	flagGroupMessage              uint8 = 0x10
	flagImmediateDeliveryRequired uint8 = 0x20
	flagDontSendDeliveryReceipts  uint8 = 0x80
)

// Flags are the per-message flags carried in the message header.
type Flags struct {
	// SendPushNotification requests a push notification for the receiver.
	// Do not set this for messages that require no attention, such as
	// delivery receipts.
	SendPushNotification bool

	// DontQueue discards the message if the receiver is not connected,
	// e.g. for typing indicators.
	DontQueue bool

	// DontAck skips the server acknowledgement for messages where reliable
	// delivery is not essential.
	DontAck bool

	// GroupMessage marks the message as part of a group conversation.
	GroupMessage bool

	// ImmediateDeliveryRequired uses the receiver's high-priority push
	// token. Messages with this flag are only queued for 60 seconds.
	ImmediateDeliveryRequired bool

	// DontSendDeliveryReceipts asks the receiver not to respond with
	// delivery receipts. Set on every outgoing delivery receipt so that
	// receipts never request further receipts.
	DontSendDeliveryReceipts bool
}

// ToBitmask encodes the flags into the 1-byte header representation.
func (f Flags) ToBitmask() uint8 {
	var mask uint8
	if f.SendPushNotification {
		mask |= flagSendPushNotification
	}
	if f.DontQueue {
		mask |= flagDontQueue
	}
	if f.DontAck {
		mask |= flagDontAck
	}
	if f.GroupMessage {
		mask |= flagGroupMessage
	}
	if f.ImmediateDeliveryRequired {
		mask |= flagImmediateDeliveryRequired
	}
	if f.DontSendDeliveryReceipts {
		mask |= flagDontSendDeliveryReceipts
	}
	return mask
}

// FlagsFromBitmask decodes the 1-byte header representation.
func FlagsFromBitmask(mask uint8) Flags {
	return Flags{
		SendPushNotification:      mask&flagSendPushNotification != 0,
		DontQueue:                 mask&flagDontQueue != 0,
		DontAck:                   mask&flagDontAck != 0,
		GroupMessage:              mask&flagGroupMessage != 0,
		ImmediateDeliveryRequired: mask&flagImmediateDeliveryRequired != 0,
		DontSendDeliveryReceipts:  mask&flagDontSendDeliveryReceipts != 0,
	}
}

// FlagsForMessageType returns the default flags for the given type.
func FlagsForMessageType(t MessageType) Flags {
	switch t {
	case MessageTypeText:
		return Flags{SendPushNotification: true}
	case MessageTypeGroupText:
		return Flags{SendPushNotification: true, GroupMessage: true}
	case MessageTypeDeliveryReceipt:
		// Receipts never request push notifications or further receipts.
		return Flags{DontSendDeliveryReceipts: true}
	case MessageTypeGroupCallStart:
		return Flags{SendPushNotification: true, GroupMessage: true, ImmediateDeliveryRequired: true}
	case MessageTypeGroupSetup,
		MessageTypeGroupName,
		MessageTypeGroupLeave,
		MessageTypeGroupSyncRequest,
		MessageTypeGroupSetProfilePicture,
		MessageTypeGroupDeleteProfilePicture:
		return Flags{GroupMessage: true}
	default:
		return Flags{}
	}
}
