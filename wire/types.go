package wire

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// IdentityLength is the fixed length of a client identity string.
const IdentityLength = 8

// BlobIDLength is the length of a blob identifier on the blob server.
const BlobIDLength = 16

// BlobKeyLength is the length of a symmetric blob encryption key.
const BlobKeyLength = 32

// Identity is an 8-character client identity as assigned by the directory
// server (e.g. "ECHOECHO"). Gateway identities start with '*'.
type Identity string

// Valid reports whether the identity has the expected fixed length.
func (i Identity) Valid() bool {
	return len(i) == IdentityLength
}

// IsGateway reports whether the identity belongs to a gateway client.
func (i Identity) IsGateway() bool {
	return len(i) > 0 && i[0] == '*'
}

// GroupID identifies a group within the id space of its creator.
type GroupID uint64

// MessageID identifies a message within the id space of the sending device.
type MessageID uint64

// ErrEntropyUnavailable indicates that the system random source failed.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// NewMessageID returns a new random message ID. Message IDs must be unique
// within the id space of the sending device.
func NewMessageID() (MessageID, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return MessageID(binary.LittleEndian.Uint64(buf[:])), nil
}

// String renders the message ID as a fixed-width hex string for logging.
func (id MessageID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// BlobID identifies an uploaded blob on the blob server.
type BlobID [BlobIDLength]byte

// IsZero reports whether the blob ID is unset.
func (b BlobID) IsZero() bool {
	return b == BlobID{}
}

// BlobKey is the symmetric key a blob was sealed with.
type BlobKey [BlobKeyLength]byte

// ConversationKind discriminates the two conversation id variants.
type ConversationKind uint8

const (
	// ConversationContact addresses a 1:1 conversation with a contact.
	ConversationContact ConversationKind = iota
	// ConversationGroup addresses a group conversation.
	ConversationGroup
)

// ConversationID addresses either a 1:1 contact conversation or a group
// conversation (identified by creator identity and group id).
type ConversationID struct {
	Kind    ConversationKind
	Contact Identity
	Creator Identity
	GroupID GroupID
}

// ContactConversation returns a conversation ID for a 1:1 conversation.
func ContactConversation(contact Identity) ConversationID {
	return ConversationID{Kind: ConversationContact, Contact: contact}
}

// GroupConversation returns a conversation ID for a group conversation.
func GroupConversation(creator Identity, groupID GroupID) ConversationID {
	return ConversationID{Kind: ConversationGroup, Creator: creator, GroupID: groupID}
}

// String renders a debug representation of the conversation ID.
func (c ConversationID) String() string {
	switch c.Kind {
	case ConversationContact:
		return string(c.Contact)
	case ConversationGroup:
		return fmt.Sprintf("%s.%016x", c.Creator, uint64(c.GroupID))
	default:
		return "<invalid>"
	}
}
