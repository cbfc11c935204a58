package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/wire"
)

// Kind is the typed discriminant of a persistent protocol state entry.
type Kind uint8

const (
	// KindUserProfileDistribution records the last user profile
	// distribution decision per receiver identity.
	KindUserProfileDistribution Kind = 1
)

// UserProfileDistributionTTL is the expiration window for user profile
// distribution decisions, as defined by the profile picture distribution
// steps of the protocol (7 days).
const UserProfileDistributionTTL = 604800 * time.Second

// ErrRecordStore wraps failures of the underlying record accessor.
var ErrRecordStore = errors.New("record store failure")

// UserProfileDecision is the last profile distribution decision sent to a
// receiver: either a profile picture blob id, or a removal mark.
type UserProfileDecision struct {
	// Removed indicates that a delete-profile-picture message was sent.
	Removed bool

	// BlobID is the blob id of the most recent set-profile-picture
	// message. Only meaningful when Removed is false.
	BlobID wire.BlobID
}

// Record is one durable protocol state row as exposed by the storage
// engine's key/record accessor.
type Record struct {
	UID       int64
	Kind      Kind
	Bytes     []byte
	CreatedAt time.Time
}

// RecordStore is the boundary to the durable storage engine. The engine
// itself is an external collaborator; this interface is the full contract
// the protocol state store relies upon.
type RecordStore interface {
	// List returns all stored protocol state records.
	List() ([]Record, error)

	// Insert stores a new record and returns its unique row id.
	Insert(kind Kind, data []byte, createdAt time.Time) (int64, error)

	// Delete removes the records with the given row ids. Missing rows are
	// ignored.
	Delete(uids []int64) error
}

type userProfileEntry struct {
	decision  UserProfileDecision
	createdAt time.Time
	uid       int64
}

// PersistentState is the durable half of the protocol state store. Entries
// are cached in memory and mirrored to the record store; expiry is enforced
// at read time against the fixed TTL rather than by background deletion.
type PersistentState struct {
	mu          sync.Mutex
	store       RecordStore
	now         func() time.Time
	userProfile map[wire.Identity]userProfileEntry
}

// Option configures a PersistentState.
type Option func(*PersistentState)

// WithTimeSource overrides the time source, for deterministic expiry in
// tests.
func WithTimeSource(now func() time.Time) Option {
	return func(p *PersistentState) { p.now = now }
}

// NewPersistentState loads all durable protocol state from the record
// store. Rows that are already expired, undecodable, or superseded by a
// newer row for the same receiver are deleted on load.
func NewPersistentState(store RecordStore, opts ...Option) (*PersistentState, error) {
	p := &PersistentState{
		store:       store,
		now:         time.Now,
		userProfile: make(map[wire.Identity]userProfileEntry),
	}
	for _, opt := range opts {
		opt(p)
	}

	records, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}

	var stale []int64
	for _, record := range records {
		switch record.Kind {
		case KindUserProfileDistribution:
			if p.now().Sub(record.CreatedAt) > UserProfileDistributionTTL {
				stale = append(stale, record.UID)
				continue
			}
			receiver, decision, err := decodeUserProfileDistribution(record.Bytes)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"uid":   record.UID,
					"error": err,
				}).Warn("Dropping undecodable persistent protocol state record")
				stale = append(stale, record.UID)
				continue
			}
			previous, exists := p.userProfile[receiver]
			if exists {
				logrus.WithFields(logrus.Fields{
					"receiver": receiver,
				}).Warn("Duplicate user profile distribution state for receiver")
				// Keep only the most recent row.
				if !record.CreatedAt.After(previous.createdAt) {
					stale = append(stale, record.UID)
					continue
				}
				stale = append(stale, previous.uid)
			}
			p.userProfile[receiver] = userProfileEntry{
				decision:  decision,
				createdAt: record.CreatedAt,
				uid:       record.UID,
			}
		default:
			logrus.WithFields(logrus.Fields{
				"kind": record.Kind,
				"uid":  record.UID,
			}).Warn("Ignoring persistent protocol state record of unknown kind")
		}
	}

	if len(stale) > 0 {
		if err := store.Delete(stale); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordStore, err)
		}
	}
	return p, nil
}

// LastUserProfileDistribution returns the last distribution decision sent
// to the given receiver. It reports not-found once the entry's age exceeds
// the TTL, even if a row is still physically present (the row is deleted as
// a side effect).
func (p *PersistentState) LastUserProfileDistribution(receiver wire.Identity) (UserProfileDecision, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.userProfile[receiver]
	if !ok {
		return UserProfileDecision{}, false
	}
	if p.now().Sub(entry.createdAt) > UserProfileDistributionTTL {
		delete(p.userProfile, receiver)
		if err := p.store.Delete([]int64{entry.uid}); err != nil {
			logrus.WithFields(logrus.Fields{
				"receiver": receiver,
				"error":    err,
			}).Warn("Failed to delete expired protocol state record")
		}
		return UserProfileDecision{}, false
	}
	return entry.decision, true
}

// SetLastUserProfileDistribution records a new distribution decision for
// the given receiver, unconditionally overwriting any prior entry.
func (p *PersistentState) SetLastUserProfileDistribution(receiver wire.Identity, decision UserProfileDecision, createdAt time.Time) error {
	encoded, err := encodeUserProfileDistribution(receiver, decision)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if previous, ok := p.userProfile[receiver]; ok {
		if err := p.store.Delete([]int64{previous.uid}); err != nil {
			return fmt.Errorf("%w: %v", ErrRecordStore, err)
		}
	}

	uid, err := p.store.Insert(KindUserProfileDistribution, encoded, createdAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	p.userProfile[receiver] = userProfileEntry{
		decision:  decision,
		createdAt: createdAt,
		uid:       uid,
	}
	return nil
}

// ClearUserProfileDistribution forgets the distribution decision for the
// given receiver, forcing the next distribution run to re-announce.
func (p *PersistentState) ClearUserProfileDistribution(receiver wire.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.userProfile[receiver]
	if !ok {
		return nil
	}
	delete(p.userProfile, receiver)
	if err := p.store.Delete([]int64{entry.uid}); err != nil {
		return fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return nil
}

// CleanupExpired removes all expired entries from the cache and the record
// store and returns the number of removed entries.
func (p *PersistentState) CleanupExpired() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stale []int64
	for receiver, entry := range p.userProfile {
		if p.now().Sub(entry.createdAt) > UserProfileDistributionTTL {
			stale = append(stale, entry.uid)
			delete(p.userProfile, receiver)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := p.store.Delete(stale); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRecordStore, err)
	}
	return len(stale), nil
}
