package task

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/devsync/blob"
	"github.com/opd-ai/devsync/model"
	"github.com/opd-ai/devsync/state"
	"github.com/opd-ai/devsync/wire"
)

// mockHandle records every codec operation in order and can inject
// failures per operation.
type mockHandle struct {
	multiDevice bool

	ops       []string
	sent      []*OutboundMessage
	reflected []*ReflectedMessage

	reflectErr  error
	sendErrFor  map[wire.Identity]error
	inTxn       bool
	txnScopes   []Scope
	commitCount int
	abortCount  int
}

func newMockHandle(multiDevice bool) *mockHandle {
	return &mockHandle{multiDevice: multiDevice, sendErrFor: make(map[wire.Identity]error)}
}

func (h *mockHandle) MultiDevice() bool { return h.multiDevice }

func (h *mockHandle) Send(ctx context.Context, msg *OutboundMessage) error {
	if err := h.sendErrFor[msg.Receiver]; err != nil {
		return err
	}
	h.ops = append(h.ops, "send:"+string(msg.Receiver))
	h.sent = append(h.sent, msg)
	return nil
}

func (h *mockHandle) Reflect(ctx context.Context, msg *ReflectedMessage) error {
	if h.reflectErr != nil {
		return h.reflectErr
	}
	h.ops = append(h.ops, "reflect")
	h.reflected = append(h.reflected, msg)
	return nil
}

func (h *mockHandle) BeginTransaction(ctx context.Context, scope Scope) error {
	h.ops = append(h.ops, "begin")
	h.inTxn = true
	h.txnScopes = append(h.txnScopes, scope)
	return nil
}

func (h *mockHandle) CommitTransaction(ctx context.Context) error {
	h.ops = append(h.ops, "commit")
	h.inTxn = false
	h.commitCount++
	return nil
}

func (h *mockHandle) AbortTransaction(ctx context.Context) error {
	h.ops = append(h.ops, "abort")
	h.inTxn = false
	h.abortCount++
	return nil
}

// sentTypes returns the message types of all sent messages in order.
func (h *mockHandle) sentTypes() []wire.MessageType {
	types := make([]wire.MessageType, 0, len(h.sent))
	for _, msg := range h.sent {
		types = append(types, msg.Type)
	}
	return types
}

type mockPictureController struct {
	setCalls    [][]byte
	setSources  []model.ProfilePictureSource
	removeCalls []model.ProfilePictureSource
}

func (m *mockPictureController) SetPicture(picture []byte, source model.ProfilePictureSource) error {
	m.setCalls = append(m.setCalls, picture)
	m.setSources = append(m.setSources, source)
	return nil
}

func (m *mockPictureController) RemovePicture(source model.ProfilePictureSource) error {
	m.removeCalls = append(m.removeCalls, source)
	return nil
}

type mockContact struct {
	view    model.ContactView
	picture *mockPictureController
}

func newMockContact(identity wire.Identity) *mockContact {
	return &mockContact{
		view:    model.ContactView{Identity: identity},
		picture: &mockPictureController{},
	}
}

func (m *mockContact) View() model.ContactView { return m.view }

func (m *mockContact) ProfilePicture() model.ProfilePictureController { return m.picture }

type mockGroup struct {
	view    model.GroupView
	picture *mockPictureController

	nameCalls   []string
	memberCalls [][]wire.Identity
	leftCalls   int
	calls       []model.GroupCallBaseData
}

func newMockGroup(groupID wire.GroupID, creator wire.Identity, members ...wire.Identity) *mockGroup {
	return &mockGroup{
		view: model.GroupView{
			GroupID:   groupID,
			Creator:   creator,
			Members:   members,
			UserState: model.GroupStateMember,
		},
		picture: &mockPictureController{},
	}
}

func (m *mockGroup) View() model.GroupView { return m.view }

func (m *mockGroup) HasMember(identity wire.Identity) bool {
	if identity == m.view.Creator {
		return true
	}
	for _, member := range m.view.Members {
		if member == identity {
			return true
		}
	}
	return false
}

func (m *mockGroup) SetName(name string, at time.Time) error {
	m.nameCalls = append(m.nameCalls, name)
	m.view.Name = name
	return nil
}

func (m *mockGroup) SetMembers(members []wire.Identity, at time.Time) error {
	m.memberCalls = append(m.memberCalls, members)
	m.view.Members = members
	return nil
}

func (m *mockGroup) MarkLeft(at time.Time) error {
	m.leftCalls++
	m.view.UserState = model.GroupStateKicked
	return nil
}

func (m *mockGroup) RegisterCall(call model.GroupCallBaseData) error {
	m.calls = append(m.calls, call)
	return nil
}

func (m *mockGroup) ProfilePicture() model.ProfilePictureController { return m.picture }

// mutated reports whether any state-changing call was made.
func (m *mockGroup) mutated() bool {
	return len(m.nameCalls) > 0 || len(m.memberCalls) > 0 || m.leftCalls > 0 || len(m.calls) > 0
}

type mockMessage struct {
	view  model.MessageView
	edits []string
}

func (m *mockMessage) View() model.MessageView { return m.view }

func (m *mockMessage) Edit(newText string, lastEditedAt time.Time) error {
	m.edits = append(m.edits, newText)
	m.view.Text = newText
	m.view.LastEditedAt = lastEditedAt
	return nil
}

type mockConversation struct {
	messages  map[wire.MessageID]*mockMessage
	deleted   []wire.MessageID
	delivered []wire.MessageID
	read      []wire.MessageID
}

func newMockConversation(messages ...*mockMessage) *mockConversation {
	c := &mockConversation{messages: make(map[wire.MessageID]*mockMessage)}
	for _, msg := range messages {
		c.messages[msg.view.ID] = msg
	}
	return c
}

func (m *mockConversation) GetMessage(id wire.MessageID) (model.Message, bool) {
	msg, ok := m.messages[id]
	return msg, ok
}

func (m *mockConversation) MarkMessageDeleted(id wire.MessageID, at time.Time) error {
	m.deleted = append(m.deleted, id)
	if msg, ok := m.messages[id]; ok {
		msg.view.Deleted = true
	}
	return nil
}

func (m *mockConversation) MarkMessageDelivered(id wire.MessageID, at time.Time) error {
	m.delivered = append(m.delivered, id)
	return nil
}

func (m *mockConversation) MarkMessageRead(id wire.MessageID, at time.Time) error {
	m.read = append(m.read, id)
	return nil
}

type mockProfile struct {
	view    model.UserProfileView
	uploads []wire.BlobID
}

func (m *mockProfile) View() model.UserProfileView { return m.view }

func (m *mockProfile) RecordPictureUpload(blobID wire.BlobID, key wire.BlobKey, uploadedAt time.Time) error {
	m.uploads = append(m.uploads, blobID)
	if m.view.Picture != nil {
		m.view.Picture.BlobID = blobID
		m.view.Picture.Key = key
		m.view.Picture.LastUploadedAt = uploadedAt
	}
	return nil
}

type groupKey struct {
	groupID wire.GroupID
	creator wire.Identity
}

type mockRepo struct {
	user          wire.Identity
	profile       *mockProfile
	contacts      map[wire.Identity]*mockContact
	groups        map[groupKey]*mockGroup
	conversations map[string]*mockConversation
	added         []model.ContactInit
	created       []groupKey
}

func newMockRepo(user wire.Identity) *mockRepo {
	return &mockRepo{
		user:          user,
		profile:       &mockProfile{},
		contacts:      make(map[wire.Identity]*mockContact),
		groups:        make(map[groupKey]*mockGroup),
		conversations: make(map[string]*mockConversation),
	}
}

func (m *mockRepo) addContact(identity wire.Identity) *mockContact {
	contact := newMockContact(identity)
	m.contacts[identity] = contact
	return contact
}

func (m *mockRepo) addGroup(group *mockGroup) *mockGroup {
	m.groups[groupKey{group.view.GroupID, group.view.Creator}] = group
	return group
}

func (m *mockRepo) addConversation(id wire.ConversationID, conversation *mockConversation) {
	m.conversations[id.String()] = conversation
}

func (m *mockRepo) UserIdentity() wire.Identity { return m.user }

func (m *mockRepo) UserProfile() model.UserProfile { return m.profile }

func (m *mockRepo) ContactByIdentity(identity wire.Identity) (model.Contact, bool) {
	contact, ok := m.contacts[identity]
	return contact, ok
}

func (m *mockRepo) AddContact(init model.ContactInit) (model.Contact, error) {
	m.added = append(m.added, init)
	contact := newMockContact(init.Identity)
	m.contacts[init.Identity] = contact
	return contact, nil
}

func (m *mockRepo) GroupByIDAndCreator(groupID wire.GroupID, creator wire.Identity) (model.Group, bool) {
	group, ok := m.groups[groupKey{groupID, creator}]
	return group, ok
}

func (m *mockRepo) CreateGroup(groupID wire.GroupID, creator wire.Identity, members []wire.Identity) (model.Group, error) {
	m.created = append(m.created, groupKey{groupID, creator})
	group := newMockGroup(groupID, creator, members...)
	m.groups[groupKey{groupID, creator}] = group
	return group, nil
}

func (m *mockRepo) ConversationByID(id wire.ConversationID) (model.Conversation, bool) {
	conversation, ok := m.conversations[id.String()]
	return conversation, ok
}

type mockBlob struct {
	uploads    [][]byte
	nextBlobID wire.BlobID
	downloads  map[wire.BlobID][]byte
	downErr    error
	upErr      error
}

func newMockBlob() *mockBlob {
	return &mockBlob{
		nextBlobID: wire.BlobID{0xb1, 0x0b},
		downloads:  make(map[wire.BlobID][]byte),
	}
}

func (m *mockBlob) Download(ctx context.Context, scope blob.Scope, id wire.BlobID) ([]byte, error) {
	if m.downErr != nil {
		return nil, m.downErr
	}
	data, ok := m.downloads[id]
	if !ok {
		return nil, fmt.Errorf("blob %x not found", id[:])
	}
	return data, nil
}

func (m *mockBlob) Upload(ctx context.Context, scope blob.Scope, data []byte) (wire.BlobID, error) {
	if m.upErr != nil {
		return wire.BlobID{}, m.upErr
	}
	m.uploads = append(m.uploads, data)
	return m.nextBlobID, nil
}

// newTestServices wires a full Services bundle around the given repo
// and blob mock, with in-memory protocol state.
func newTestServices(repo *mockRepo, blobs *mockBlob) *Services {
	persistent, err := state.NewPersistentState(state.NewMemoryRecordStore())
	if err != nil {
		panic(err)
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &Services{
		Model:           repo,
		Blob:            blobs,
		VolatileState:   state.NewVolatileState(),
		PersistentState: persistent,
		Log:             log,
	}
}

func mustEnvelope(t wire.MessageType, encoder wire.PayloadEncoder, allowProfile bool) *wire.Envelope {
	id, err := wire.NewMessageID()
	if err != nil {
		panic(err)
	}
	envelope, err := wire.NewEnvelope(id, time.Now(), t, encoder, wire.FlagsForMessageType(t), allowProfile)
	if err != nil {
		panic(err)
	}
	return envelope
}
