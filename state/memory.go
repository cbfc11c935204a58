package state

import (
	"sync"
	"time"
)

// MemoryRecordStore is an in-memory RecordStore. It does not survive a
// restart and is intended for tests and for deployments that accept losing
// idempotency state across restarts.
type MemoryRecordStore struct {
	mu      sync.Mutex
	nextUID int64
	records map[int64]Record
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		nextUID: 1,
		records: make(map[int64]Record),
	}
}

// List implements RecordStore.
func (m *MemoryRecordStore) List() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]Record, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	return records, nil
}

// Insert implements RecordStore.
func (m *MemoryRecordStore) Insert(kind Kind, data []byte, createdAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uid := m.nextUID
	m.nextUID++
	m.records[uid] = Record{
		UID:       uid,
		Kind:      kind,
		Bytes:     append([]byte(nil), data...),
		CreatedAt: createdAt,
	}
	return uid, nil
}

// Delete implements RecordStore.
func (m *MemoryRecordStore) Delete(uids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, uid := range uids {
		delete(m.records, uid)
	}
	return nil
}

// Len returns the number of stored records.
func (m *MemoryRecordStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}
