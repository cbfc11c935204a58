package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/devsync/wire"
)

// groupSyncKey uniquely identifies a group sync request source: the group
// (group id plus creator) and the requesting sender.
type groupSyncKey string

func newGroupSyncKey(groupID wire.GroupID, creator, sender wire.Identity) groupSyncKey {
	return groupSyncKey(fmt.Sprintf("%016x.%s.%s", uint64(groupID), creator, sender))
}

// VolatileState is the in-memory half of the protocol state store. It maps
// (group id, creator identity, sender identity) to the timestamp of the
// last processed group sync request.
//
// The store itself applies no expiry and no monotonicity policy; callers
// decide whether a stored timestamp is still fresh and whether to overwrite
// it. All state is lost on restart by construction.
type VolatileState struct {
	mu                    sync.Mutex
	lastGroupSyncRequests map[groupSyncKey]time.Time
}

// NewVolatileState creates an empty volatile protocol state.
func NewVolatileState() *VolatileState {
	return &VolatileState{
		lastGroupSyncRequests: make(map[groupSyncKey]time.Time),
	}
}

// LastProcessedGroupSyncRequest returns the timestamp of the last processed
// group sync request for the given group and sender, if any.
func (v *VolatileState) LastProcessedGroupSyncRequest(groupID wire.GroupID, creator, sender wire.Identity) (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ts, ok := v.lastGroupSyncRequests[newGroupSyncKey(groupID, creator, sender)]
	return ts, ok
}

// SetLastProcessedGroupSyncRequest records the timestamp of the last
// processed group sync request for the given group and sender.
func (v *VolatileState) SetLastProcessedGroupSyncRequest(groupID wire.GroupID, creator, sender wire.Identity, ts time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastGroupSyncRequests[newGroupSyncKey(groupID, creator, sender)] = ts
}

// Len returns the number of cached group sync request entries.
func (v *VolatileState) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.lastGroupSyncRequests)
}
