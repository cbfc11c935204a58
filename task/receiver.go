package task

import (
	"sort"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

// Receiver is the destination of an outgoing message: either a single
// contact or a group. Exactly one variant is set.
type Receiver struct {
	contact model.Contact
	group   model.Group
}

// ContactReceiver addresses a 1:1 conversation.
func ContactReceiver(contact model.Contact) Receiver {
	return Receiver{contact: contact}
}

// GroupReceiver addresses a group conversation.
func GroupReceiver(group model.Group) Receiver {
	return Receiver{group: group}
}

// Group returns the group model when the receiver is a group.
func (r Receiver) Group() (model.Group, bool) {
	return r.group, r.group != nil
}

// Contact returns the contact model when the receiver is a contact.
func (r Receiver) Contact() (model.Contact, bool) {
	return r.contact, r.contact != nil
}

// ConversationID returns the conversation the receiver maps to.
func (r Receiver) ConversationID() wire.ConversationID {
	if r.group != nil {
		view := r.group.View()
		return wire.GroupConversation(view.Creator, view.GroupID)
	}
	return wire.ContactConversation(r.contact.View().Identity)
}

// identities returns the remote identities a message to this receiver is
// fanned out to, excluding the user, in stable sorted order.
func (r Receiver) identities(user wire.Identity) []wire.Identity {
	if r.contact != nil {
		identity := r.contact.View().Identity
		if identity == user {
			return nil
		}
		return []wire.Identity{identity}
	}

	view := r.group.View()
	seen := make(map[wire.Identity]struct{}, len(view.Members)+1)
	var out []wire.Identity
	add := func(identity wire.Identity) {
		if identity == user {
			return
		}
		if _, dup := seen[identity]; dup {
			return
		}
		seen[identity] = struct{}{}
		out = append(out, identity)
	}
	add(view.Creator)
	for _, member := range view.Members {
		add(member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
