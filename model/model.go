package model

import (
	"time"

	"github.com/opd-ai/devsync/wire"
)

// ProfilePictureSource distinguishes where a profile picture came from, so
// that precedence rules in the model layer can arbitrate conflicting
// sources.
type ProfilePictureSource uint8

const (
	// SourceContactDefined marks a picture set by the contact themselves.
	SourceContactDefined ProfilePictureSource = iota + 1
	// SourceAdminDefined marks a picture set by an administrator (e.g. a
	// group creator or a managed-workspace admin).
	SourceAdminDefined
	// SourceUserDefined marks a picture chosen locally by the user.
	SourceUserDefined
)

// GroupUserState is the user's own membership state within a group.
type GroupUserState uint8

const (
	// GroupStateMember means the user is an active member.
	GroupStateMember GroupUserState = iota
	// GroupStateLeft means the user has left the group.
	GroupStateLeft
	// GroupStateKicked means the user was removed by the creator.
	GroupStateKicked
)

// MessageDirection is the direction of a conversation message.
type MessageDirection uint8

const (
	// DirectionInbound marks a message received from a remote party.
	DirectionInbound MessageDirection = iota + 1
	// DirectionOutbound marks a message sent by this user.
	DirectionOutbound
)

// String returns a debug name for the direction.
func (d MessageDirection) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "<invalid>"
	}
}

// ContactView is a read-only snapshot of a contact.
type ContactView struct {
	Identity  wire.Identity
	PublicKey [32]byte
	Nickname  string
}

// ContactInit describes a not-yet-known contact that may be created on
// demand while processing a message.
type ContactInit struct {
	Identity  wire.Identity
	PublicKey [32]byte
	Nickname  string
}

// ProfilePictureController mutates a receiver's profile picture.
type ProfilePictureController interface {
	// SetPicture stores picture bytes from the given source.
	SetPicture(picture []byte, source ProfilePictureSource) error

	// RemovePicture removes the picture contributed by the given source.
	RemovePicture(source ProfilePictureSource) error
}

// Contact is the controller surface of a contact model.
type Contact interface {
	View() ContactView
	ProfilePicture() ProfilePictureController
}

// GroupCallBaseData describes a running group call.
type GroupCallBaseData struct {
	StartedBy       wire.Identity
	ProtocolVersion uint32
	GroupCallKey    [32]byte
	SFUBaseURL      string
	StartedAt       time.Time
}

// GroupView is a read-only snapshot of a group.
type GroupView struct {
	GroupID   wire.GroupID
	Creator   wire.Identity
	Name      string
	Members   []wire.Identity
	UserState GroupUserState

	// Picture holds the group's profile picture bytes, if any.
	Picture []byte
}

// Group is the controller surface of a group model.
type Group interface {
	View() GroupView

	// HasMember reports whether the identity is a current group member.
	// The creator counts as a member.
	HasMember(identity wire.Identity) bool

	// SetName updates the group name.
	SetName(name string, at time.Time) error

	// SetMembers replaces the member list.
	SetMembers(members []wire.Identity, at time.Time) error

	// MarkLeft marks the user as no longer participating (the group was
	// dissolved, or membership was revoked by an empty setup).
	MarkLeft(at time.Time) error

	// RegisterCall records a group call announced within this group.
	RegisterCall(call GroupCallBaseData) error

	ProfilePicture() ProfilePictureController
}

// MessageView is a read-only snapshot of a conversation message.
type MessageView struct {
	ID           wire.MessageID
	Direction    MessageDirection
	Text         string
	Deleted      bool
	LastEditedAt time.Time
}

// Message is the controller surface of a single message.
type Message interface {
	View() MessageView

	// Edit replaces the message text.
	Edit(newText string, lastEditedAt time.Time) error
}

// Conversation is the controller surface of a conversation.
type Conversation interface {
	// GetMessage looks up a message by id.
	GetMessage(id wire.MessageID) (Message, bool)

	// MarkMessageDeleted converts the message into its terminal deleted
	// placeholder state.
	MarkMessageDeleted(id wire.MessageID, at time.Time) error

	// MarkMessageDelivered records a remote delivery receipt.
	MarkMessageDelivered(id wire.MessageID, at time.Time) error

	// MarkMessageRead records a remote read receipt.
	MarkMessageRead(id wire.MessageID, at time.Time) error
}

// ProfilePicturePolicy controls with whom the user's own profile picture
// is shared.
type ProfilePicturePolicy uint8

const (
	// ShareWithEveryone distributes the picture to all contacts.
	ShareWithEveryone ProfilePicturePolicy = iota
	// ShareWithNobody never distributes the picture.
	ShareWithNobody
	// ShareWithAllowList distributes the picture to listed contacts only.
	ShareWithAllowList
)

// UserProfilePicture is the user's own profile picture together with its
// last known blob server upload.
type UserProfilePicture struct {
	Bytes          []byte
	BlobID         wire.BlobID
	Key            wire.BlobKey
	LastUploadedAt time.Time
}

// UserProfileView is a read-only snapshot of the user's own profile.
type UserProfileView struct {
	Nickname    string
	Picture     *UserProfilePicture
	SharePolicy ProfilePicturePolicy
	AllowList   []wire.Identity
}

// UserProfile is the controller surface of the user's own profile.
type UserProfile interface {
	View() UserProfileView

	// RecordPictureUpload stores the blob id and key of a fresh profile
	// picture upload.
	RecordPictureUpload(blobID wire.BlobID, key wire.BlobKey, uploadedAt time.Time) error
}

// Repository resolves models by key. It is an opaque capability handed to
// tasks; the caching and invalidation behind it belong to the model layer.
type Repository interface {
	// UserIdentity returns the identity of this user.
	UserIdentity() wire.Identity

	// UserProfile returns the user's own profile controller.
	UserProfile() UserProfile

	// ContactByIdentity looks up a known contact.
	ContactByIdentity(identity wire.Identity) (Contact, bool)

	// AddContact creates (and reflects) a contact from init data.
	AddContact(init ContactInit) (Contact, error)

	// GroupByIDAndCreator looks up a group by its id and creator.
	GroupByIDAndCreator(groupID wire.GroupID, creator wire.Identity) (Group, bool)

	// CreateGroup creates a group implicitly from a received setup.
	CreateGroup(groupID wire.GroupID, creator wire.Identity, members []wire.Identity) (Group, error)

	// ConversationByID looks up a conversation.
	ConversationByID(id wire.ConversationID) (Conversation, bool)
}
