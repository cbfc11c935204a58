package devsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/state"
	"github.com/opd-ai/devsync/task"
	"github.com/opd-ai/devsync/wire"
)

type stubRepo struct{}

func (stubRepo) UserIdentity() wire.Identity { return "MYUSERID" }

func (stubRepo) UserProfile() model.UserProfile { return nil }

func (stubRepo) ContactByIdentity(wire.Identity) (model.Contact, bool) { return nil, false }
func (stubRepo) AddContact(model.ContactInit) (model.Contact, error) {
	return nil, errors.New("not implemented")
}
func (stubRepo) GroupByIDAndCreator(wire.GroupID, wire.Identity) (model.Group, bool) {
	return nil, false
}
func (stubRepo) CreateGroup(wire.GroupID, wire.Identity, []wire.Identity) (model.Group, error) {
	return nil, errors.New("not implemented")
}
func (stubRepo) ConversationByID(wire.ConversationID) (model.Conversation, bool) {
	return nil, false
}

type stubBlob struct{}

func (stubBlob) Download(context.Context, blob.Scope, wire.BlobID) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (stubBlob) Upload(context.Context, blob.Scope, []byte) (wire.BlobID, error) {
	return wire.BlobID{}, errors.New("not implemented")
}

type stubTask struct {
	persist bool
	err     error
	runs    int
}

func (t *stubTask) Persist() bool { return t.persist }

func (t *stubTask) TransactionScope() task.Scope { return task.ScopeNone }

func (t *stubTask) Run(ctx context.Context, handle task.CodecHandle) error {
	t.runs++
	return t.err
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Blob: stubBlob{}})
	assert.ErrorIs(t, err, ErrMissingModel)

	_, err = New(Options{Model: stubRepo{}})
	assert.ErrorIs(t, err, ErrMissingBlob)

	mgr, err := New(Options{Model: stubRepo{}, Blob: stubBlob{}})
	require.NoError(t, err)
	defer mgr.Close()
	assert.NotNil(t, mgr.Services())
	assert.NotNil(t, mgr.Services().VolatileState)
	assert.NotNil(t, mgr.Services().PersistentState)
}

func TestRunTaskPassesThroughResult(t *testing.T) {
	mgr, err := New(Options{Model: stubRepo{}, Blob: stubBlob{}})
	require.NoError(t, err)
	defer mgr.Close()

	ok := &stubTask{persist: true}
	require.NoError(t, mgr.RunTask(context.Background(), nil, ok))
	assert.Equal(t, 1, ok.runs)

	failing := &stubTask{persist: true, err: errors.New("offline")}
	assert.Error(t, mgr.RunTask(context.Background(), nil, failing))
}

func TestScheduleStateCleanup(t *testing.T) {
	store := state.NewMemoryRecordStore()
	mgr, err := New(Options{Model: stubRepo{}, Blob: stubBlob{}, RecordStore: store})
	require.NoError(t, err)
	defer mgr.Close()

	expired := time.Now().Add(-state.UserProfileDistributionTTL - time.Hour)
	require.NoError(t, mgr.Services().PersistentState.SetLastUserProfileDistribution(
		"AAAAAAAA", state.UserProfileDecision{Removed: true}, expired))

	handle := mgr.ScheduleStateCleanup(10 * time.Millisecond)
	defer handle.Cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expired state was not cleaned up")
}

func TestSchedulePeriodicGroupResyncSkipsWithoutConnection(t *testing.T) {
	mgr, err := New(Options{Model: stubRepo{}, Blob: stubBlob{}})
	require.NoError(t, err)
	defer mgr.Close()

	var attempts atomic.Int32
	connect := func(ctx context.Context) (task.CodecHandle, error) {
		attempts.Add(1)
		return nil, errors.New("offline")
	}
	groups := func() []model.Group { return nil }

	handle := mgr.SchedulePeriodicGroupResync(groups, connect, 10*time.Millisecond)
	defer handle.Cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if attempts.Load() >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("resync job did not run")
}

func TestCloseCancelsJobs(t *testing.T) {
	mgr, err := New(Options{Model: stubRepo{}, Blob: stubBlob{}})
	require.NoError(t, err)

	mgr.ScheduleStateCleanup(time.Hour)
	require.Equal(t, 1, mgr.Scheduler().Len())

	mgr.Close()
	assert.Equal(t, 0, mgr.Scheduler().Len())
}
