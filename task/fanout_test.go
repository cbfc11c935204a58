package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/wire"
)

func TestRequestProfilePicturesFanOut(t *testing.T) {
	repo := newMockRepo(testUser)
	contacts := []model.Contact{
		repo.addContact("AFRIEND1"),
		repo.addContact("BFRIEND1"),
		repo.addContact("*GATEWAY"),
	}
	services := newTestServices(repo, newMockBlob())
	handle := newMockHandle(false)

	task := NewRequestProfilePicturesTask(services, contacts, FanOutOptions{})
	require.NoError(t, task.Run(context.Background(), handle))

	// Gateway contacts are skipped, the rest each get one request.
	require.Len(t, handle.sent, 2)
	for _, msg := range handle.sent {
		assert.Equal(t, wire.MessageTypeContactRequestPicture, msg.Type)
	}
}

func TestRequestProfilePicturesFailureIsolation(t *testing.T) {
	repo := newMockRepo(testUser)
	contacts := []model.Contact{
		repo.addContact("AFRIEND1"),
		repo.addContact("BFRIEND1"),
		repo.addContact("CFRIEND1"),
	}
	services := newTestServices(repo, newMockBlob())
	handle := newMockHandle(false)
	handle.sendErrFor["BFRIEND1"] = errors.New("queue full")

	// Without ThrowOnFailure the fan-out swallows individual failures.
	task := NewRequestProfilePicturesTask(services, contacts, FanOutOptions{})
	require.NoError(t, task.Run(context.Background(), handle))
	assert.Equal(t, []string{"send:AFRIEND1", "send:CFRIEND1"}, handle.ops)
}

func TestRequestProfilePicturesThrowOnFailure(t *testing.T) {
	repo := newMockRepo(testUser)
	contacts := []model.Contact{
		repo.addContact("AFRIEND1"),
		repo.addContact("BFRIEND1"),
	}
	services := newTestServices(repo, newMockBlob())
	handle := newMockHandle(false)
	handle.sendErrFor["AFRIEND1"] = errors.New("queue full")

	task := NewRequestProfilePicturesTask(services, contacts, FanOutOptions{ThrowOnFailure: true})
	err := task.Run(context.Background(), handle)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSendFailed)
	// The failure must not have prevented the remaining send.
	assert.Equal(t, []string{"send:BFRIEND1"}, handle.ops)
}

func TestGroupSyncRequestsFanOut(t *testing.T) {
	repo := newMockRepo(testUser)
	repo.addContact("CREATOR1")
	repo.addContact("CREATOR2")
	groups := []model.Group{
		repo.addGroup(newMockGroup(1, "CREATOR1", testUser)),
		repo.addGroup(newMockGroup(2, "CREATOR2", testUser)),
		repo.addGroup(newMockGroup(3, testUser, "MEMBER01")),
	}
	services := newTestServices(repo, newMockBlob())
	handle := newMockHandle(false)

	task := NewGroupSyncRequestsTask(services, groups, FanOutOptions{})
	require.NoError(t, task.Run(context.Background(), handle))

	// Own groups are skipped, each foreign group asks its creator once.
	require.Len(t, handle.sent, 2)
	assert.Equal(t, wire.Identity("CREATOR1"), handle.sent[0].Receiver)
	assert.Equal(t, wire.Identity("CREATOR2"), handle.sent[1].Receiver)
	for _, msg := range handle.sent {
		assert.Equal(t, wire.MessageTypeGroupSyncRequest, msg.Type)
	}
}

func TestGroupSyncRequestsThrottledPerGroup(t *testing.T) {
	repo := newMockRepo(testUser)
	repo.addContact("CREATOR1")
	groups := []model.Group{repo.addGroup(newMockGroup(1, "CREATOR1", testUser))}
	services := newTestServices(repo, newMockBlob())

	handle := newMockHandle(false)
	require.NoError(t, NewGroupSyncRequestsTask(services, groups, FanOutOptions{}).Run(context.Background(), handle))
	require.Len(t, handle.sent, 1)

	// A second fan-out within the window sends nothing.
	handle2 := newMockHandle(false)
	require.NoError(t, NewGroupSyncRequestsTask(services, groups, FanOutOptions{}).Run(context.Background(), handle2))
	assert.Empty(t, handle2.sent)

	// Once the window has passed, the request goes out again.
	services.VolatileState.SetLastProcessedGroupSyncRequest(1, "CREATOR1", testUser, time.Now().Add(-2*groupSyncRequestWindow))
	handle3 := newMockHandle(false)
	require.NoError(t, NewGroupSyncRequestsTask(services, groups, FanOutOptions{}).Run(context.Background(), handle3))
	assert.Len(t, handle3.sent, 1)
}

func TestGroupSyncRequestsSkipGatewayCreators(t *testing.T) {
	repo := newMockRepo(testUser)
	repo.addContact("*GATEWAY")
	groups := []model.Group{repo.addGroup(newMockGroup(1, "*GATEWAY", testUser))}
	services := newTestServices(repo, newMockBlob())
	handle := newMockHandle(false)

	require.NoError(t, NewGroupSyncRequestsTask(services, groups, FanOutOptions{}).Run(context.Background(), handle))
	assert.Empty(t, handle.sent)
}
