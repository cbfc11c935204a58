package model

import "github.com/opd-ai/devsync/wire"

// Sender is the resolved-or-pending sender of an incoming message: either
// an existing contact model, or init data for a contact that is not known
// yet. Exactly one variant is set; task logic branches explicitly via
// Resolved.
type Sender struct {
	contact Contact
	init    *ContactInit
}

// SenderFromContact wraps an existing contact model.
func SenderFromContact(contact Contact) Sender {
	return Sender{contact: contact}
}

// SenderFromInit wraps init data for a not-yet-known contact.
func SenderFromInit(init ContactInit) Sender {
	return Sender{init: &init}
}

// Identity returns the sender's identity, regardless of variant.
func (s Sender) Identity() wire.Identity {
	if s.contact != nil {
		return s.contact.View().Identity
	}
	if s.init != nil {
		return s.init.Identity
	}
	return ""
}

// Resolved returns the contact model if the sender is already known.
func (s Sender) Resolved() (Contact, bool) {
	return s.contact, s.contact != nil
}

// Init returns the pending init data if the sender is not known yet.
func (s Sender) Init() (ContactInit, bool) {
	if s.init == nil {
		return ContactInit{}, false
	}
	return *s.init, true
}

// Resolve returns the sender's contact model, creating the contact from
// init data if necessary.
func (s Sender) Resolve(repo Repository) (Contact, error) {
	if contact, ok := s.Resolved(); ok {
		return contact, nil
	}
	init, _ := s.Init()
	return repo.AddContact(init)
}
