package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/devsync/wire"
)

func openTestStore(t *testing.T) *SQLiteRecordStore {
	t.Helper()
	store, err := OpenSQLiteRecordStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRecordStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	createdAt := time.Now().Truncate(time.Millisecond)
	uid, err := store.Insert(KindUserProfileDistribution, []byte{0x01, 0x02}, createdAt)
	require.NoError(t, err)

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uid, records[0].UID)
	assert.Equal(t, KindUserProfileDistribution, records[0].Kind)
	assert.Equal(t, []byte{0x01, 0x02}, records[0].Bytes)
	assert.True(t, records[0].CreatedAt.Equal(createdAt))
}

func TestSQLiteRecordStoreDelete(t *testing.T) {
	store := openTestStore(t)

	first, err := store.Insert(KindUserProfileDistribution, []byte{0x01}, time.Now())
	require.NoError(t, err)
	second, err := store.Insert(KindUserProfileDistribution, []byte{0x02}, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.Delete([]int64{first, 999}), "missing uids are ignored")

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second, records[0].UID)

	require.NoError(t, store.Delete(nil), "empty delete is a no-op")
}

func TestSQLiteRecordStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := OpenSQLiteRecordStore(path)
	require.NoError(t, err)
	_, err = store.Insert(KindUserProfileDistribution, []byte{0x01}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteRecordStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPersistentStateOnSQLite(t *testing.T) {
	store := openTestStore(t)
	persistent, err := NewPersistentState(store)
	require.NoError(t, err)

	decision := UserProfileDecision{BlobID: wire.BlobID{0x07}}
	require.NoError(t, persistent.SetLastUserProfileDistribution("AAAAAAAA", decision, time.Now()))

	// A fresh state instance must load the decision back from disk.
	reloaded, err := NewPersistentState(store)
	require.NoError(t, err)
	got, ok := reloaded.LastUserProfileDistribution("AAAAAAAA")
	require.True(t, ok)
	assert.Equal(t, decision, got)
}
