package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"

	"ynetwork/internal/models"
	"ynetwork/internal/notifications"
	"ynetwork/internal/repository"
	"ynetwork/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type emitted struct {
	UserID  uint
	Type    string
	Payload any
}

// recordingRealtime captures every emitted event.
type recordingRealtime struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recordingRealtime) Emit(_ context.Context, userID uint, eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{UserID: userID, Type: eventType, Payload: payload})
}

func (r *recordingRealtime) recipients(eventType string) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for _, e := range r.events {
		if e.Type == eventType {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, recipientID uint, in NotifyInput) {
	m.Called(ctx, recipientID, in)
}

type chatFixture struct {
	db       *gorm.DB
	svc      *ChatService
	realtime *recordingRealtime
	notifier *mockNotifier
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	rt := &recordingRealtime{}
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Maybe()
	return &chatFixture{
		db:       db,
		svc:      NewChatService(repository.NewChatRepository(db), repository.NewUserRepository(db), rt, n),
		realtime: rt,
		notifier: n,
	}
}

func (f *chatFixture) direct(t *testing.T, from, to uint) *models.Conversation {
	t.Helper()
	conv, _, err := f.svc.CreateConversation(context.Background(), CreateConversationInput{
		InitiatorID:  from,
		RecipientIDs: []uint{to},
		Type:         models.ConversationOneToOne,
	})
	require.NoError(t, err)
	return conv
}

func (f *chatFixture) send(t *testing.T, from, convID uint, content string) *models.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		SenderID:       from,
		ConversationID: convID,
		Content:        content,
	})
	require.NoError(t, err)
	return msg
}

func (f *chatFixture) unread(t *testing.T, userID, convID uint) int64 {
	t.Helper()
	page, err := f.svc.ListConversations(context.Background(), userID, Pagination{})
	require.NoError(t, err)
	for _, c := range page.Conversations {
		if c.ID == convID {
			return c.UnreadCount
		}
	}
	t.Fatalf("conversation %d not listed for user %d", convID, userID)
	return 0
}

func TestChatService_CreateConversation_Dedup(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")

	first, created, err := f.svc.CreateConversation(ctx, CreateConversationInput{
		InitiatorID: a.ID, RecipientIDs: []uint{b.ID}, Type: models.ConversationOneToOne,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.Participants, 2)

	again, created, err := f.svc.CreateConversation(ctx, CreateConversationInput{
		InitiatorID: a.ID, RecipientIDs: []uint{b.ID}, Type: models.ConversationOneToOne,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	reversed, created, err := f.svc.CreateConversation(ctx, CreateConversationInput{
		InitiatorID: b.ID, RecipientIDs: []uint{a.ID},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, reversed.ID)

	assert.ElementsMatch(t, []uint{a.ID, b.ID}, f.realtime.recipients(notifications.EventNewConversation),
		"only the creating call announces the conversation")
}

func TestChatService_CreateConversation_Validation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")
	c := testutil.CreateUser(t, f.db, "")

	tests := []struct {
		name     string
		in       CreateConversationInput
		wantCode string
	}{
		{"no recipients", CreateConversationInput{InitiatorID: a.ID}, models.CodeValidation},
		{"direct with two recipients", CreateConversationInput{
			InitiatorID: a.ID, RecipientIDs: []uint{b.ID, c.ID}, Type: models.ConversationOneToOne,
		}, models.CodeValidation},
		{"direct with self", CreateConversationInput{
			InitiatorID: a.ID, RecipientIDs: []uint{a.ID},
		}, models.CodeValidation},
		{"group without name", CreateConversationInput{
			InitiatorID: a.ID, RecipientIDs: []uint{b.ID, c.ID}, Type: models.ConversationGroup, GroupName: "  ",
		}, models.CodeValidation},
		{"unknown type", CreateConversationInput{
			InitiatorID: a.ID, RecipientIDs: []uint{b.ID}, Type: "broadcast",
		}, models.CodeValidation},
		{"unknown recipient", CreateConversationInput{
			InitiatorID: a.ID, RecipientIDs: []uint{99999},
		}, models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.CreateConversation(ctx, tt.in)
			assert.True(t, models.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestChatService_CreateGroupConversation(t *testing.T) {
	f := newChatFixture(t)
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")
	c := testutil.CreateUser(t, f.db, "")

	conv, created, err := f.svc.CreateConversation(context.Background(), CreateConversationInput{
		InitiatorID:  a.ID,
		RecipientIDs: []uint{b.ID, c.ID, b.ID},
		Type:         models.ConversationGroup,
		GroupName:    "Study buddies",
	})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, conv.GroupAdminID)
	assert.Equal(t, a.ID, *conv.GroupAdminID)
	assert.Nil(t, conv.PairKey)
	assert.Len(t, conv.Participants, 3)
	assert.ElementsMatch(t, []uint{a.ID, b.ID, c.ID}, f.realtime.recipients(notifications.EventNewConversation))
}

func TestChatService_SendMessage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")
	outsider := testutil.CreateUser(t, f.db, "")
	conv := f.direct(t, a.ID, b.ID)

	t.Run("non participant is forbidden and nothing is stored", func(t *testing.T) {
		_, err := f.svc.SendMessage(ctx, SendMessageInput{SenderID: outsider.ID, ConversationID: conv.ID, Content: "hi"})
		assert.True(t, models.IsCode(err, models.CodeForbidden), "got %v", err)

		var count int64
		require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("missing conversation", func(t *testing.T) {
		_, err := f.svc.SendMessage(ctx, SendMessageInput{SenderID: a.ID, ConversationID: 4242, Content: "hi"})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("content bounds", func(t *testing.T) {
		for _, content := range []string{"", "   ", strings.Repeat("x", models.MaxMessageLength+1)} {
			_, err := f.svc.SendMessage(ctx, SendMessageInput{SenderID: a.ID, ConversationID: conv.ID, Content: content})
			assert.True(t, models.IsCode(err, models.CodeValidation), "content length %d", len(content))
		}
		msg := f.send(t, a.ID, conv.ID, strings.Repeat("y", models.MaxMessageLength))
		assert.NotZero(t, msg.ID)
	})

	t.Run("pushes to the other participant with the sender attached", func(t *testing.T) {
		msg := f.send(t, a.ID, conv.ID, "  hello  ")
		assert.Equal(t, "hello", msg.Content)
		require.NotNil(t, msg.SenderSummary)
		assert.Equal(t, a.Username, msg.SenderSummary.Username)
		assert.NotContains(t, f.realtime.recipients(notifications.EventNewMessage), a.ID)
		assert.Contains(t, f.realtime.recipients(notifications.EventNewMessage), b.ID)

		got, err := repository.NewChatRepository(f.db).GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.False(t, got.LastMessageTimestamp.Before(msg.CreatedAt))
	})
}

func TestChatService_GroupSendNotifiesOthersOnly(t *testing.T) {
	f := newChatFixture(t)
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")
	c := testutil.CreateUser(t, f.db, "")

	conv, _, err := f.svc.CreateConversation(context.Background(), CreateConversationInput{
		InitiatorID: a.ID, RecipientIDs: []uint{b.ID, c.ID}, Type: models.ConversationGroup, GroupName: "Team",
	})
	require.NoError(t, err)

	n := &mockNotifier{}
	matches := func(in NotifyInput) bool {
		return in.ActorID == a.ID && in.Type == models.NotificationNewMessage &&
			in.Target != nil && in.Target.Kind == models.TargetConversation && in.Target.ID == conv.ID
	}
	n.On("Notify", mock.Anything, b.ID, mock.MatchedBy(matches)).Once()
	n.On("Notify", mock.Anything, c.ID, mock.MatchedBy(matches)).Once()
	f.svc.notifier = n

	f.send(t, a.ID, conv.ID, "meeting at 5")

	n.AssertExpectations(t)
	n.AssertNotCalled(t, "Notify", mock.Anything, a.ID, mock.Anything)
}

func TestChatService_UnreadAndMarkRead(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")

	c1 := f.direct(t, a.ID, b.ID)
	again := f.direct(t, a.ID, b.ID)
	require.Equal(t, c1.ID, again.ID)

	hello := f.send(t, a.ID, c1.ID, "hello")
	assert.Equal(t, int64(1), f.unread(t, b.ID, c1.ID))
	assert.Equal(t, int64(0), f.unread(t, a.ID, c1.ID), "own messages are never unread")

	marked, err := f.svc.MarkRead(ctx, MarkReadInput{UserID: b.ID, ConversationID: c1.ID, LastMessageID: hello.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	assert.Equal(t, int64(0), f.unread(t, b.ID, c1.ID))

	marked, err = f.svc.MarkRead(ctx, MarkReadInput{UserID: b.ID, ConversationID: c1.ID, LastMessageID: hello.ID})
	require.NoError(t, err)
	assert.Zero(t, marked, "marking the same message twice is a no-op")

	f.send(t, a.ID, c1.ID, "second")
	assert.Equal(t, int64(1), f.unread(t, b.ID, c1.ID))

	marked, err = f.svc.MarkRead(ctx, MarkReadInput{UserID: b.ID, ConversationID: c1.ID, LastMessageID: hello.ID})
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Equal(t, int64(1), f.unread(t, b.ID, c1.ID), "an earlier id never un-reads or over-reads")

	t.Run("errors", func(t *testing.T) {
		outsider := testutil.CreateUser(t, f.db, "")
		other := f.direct(t, a.ID, outsider.ID)
		foreign := f.send(t, outsider.ID, other.ID, "elsewhere")

		_, err := f.svc.MarkRead(ctx, MarkReadInput{UserID: b.ID, ConversationID: c1.ID, LastMessageID: foreign.ID})
		assert.True(t, models.IsCode(err, models.CodeNotFound))

		_, err = f.svc.MarkRead(ctx, MarkReadInput{UserID: b.ID, ConversationID: c1.ID, LastMessageID: 98765})
		assert.True(t, models.IsCode(err, models.CodeNotFound))

		_, err = f.svc.MarkRead(ctx, MarkReadInput{UserID: outsider.ID, ConversationID: c1.ID, LastMessageID: hello.ID})
		assert.True(t, models.IsCode(err, models.CodeForbidden))

		_, err = f.svc.MarkRead(ctx, MarkReadInput{UserID: b.ID, ConversationID: 5555, LastMessageID: hello.ID})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestChatService_ListMessagesPagesTileHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")
	conv := f.direct(t, a.ID, b.ID)

	var sent []uint
	for _, body := range []string{"one", "two", "three", "four", "five"} {
		sent = append(sent, f.send(t, a.ID, conv.ID, body).ID)
	}

	var collected [][]uint
	for page := 1; page <= 3; page++ {
		msgs, err := f.svc.ListMessages(ctx, b.ID, conv.ID, Pagination{Page: page, Limit: 2})
		require.NoError(t, err)
		ids := make([]uint, 0, len(msgs))
		for i, m := range msgs {
			ids = append(ids, m.ID)
			if i > 0 {
				assert.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt), "page is oldest first")
			}
		}
		collected = append(collected, ids)
	}
	assert.Equal(t, [][]uint{{sent[3], sent[4]}, {sent[1], sent[2]}, {sent[0]}}, collected)

	far, err := f.svc.ListMessages(ctx, b.ID, conv.ID, Pagination{Page: math.MaxInt64, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, far, "a page past the end is empty")

	_, err = f.svc.ListMessages(ctx, testutil.CreateUser(t, f.db, "").ID, conv.ID, Pagination{})
	assert.True(t, models.IsCode(err, models.CodeForbidden))
}

func TestChatService_ListConversations(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")
	c := testutil.CreateUser(t, f.db, "")

	withB := f.direct(t, a.ID, b.ID)
	withC := f.direct(t, a.ID, c.ID)
	f.send(t, b.ID, withB.ID, "older")
	latest := f.send(t, c.ID, withC.ID, "newer")

	page, err := f.svc.ListConversations(ctx, a.ID, Pagination{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 2)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)

	top := page.Conversations[0]
	assert.Equal(t, withC.ID, top.ID)
	require.Len(t, top.Participants, 1, "the caller is left out")
	assert.Equal(t, c.Username, top.Participants[0].Username)
	require.NotNil(t, top.LastMessage)
	assert.Equal(t, latest.ID, top.LastMessage.ID)
	assert.Equal(t, int64(1), top.UnreadCount)

	far, err := f.svc.ListConversations(ctx, a.ID, Pagination{Page: math.MaxInt64 / 10, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, far.Conversations)
	assert.Equal(t, int64(2), far.TotalCount)

	empty, err := f.svc.ListConversations(ctx, testutil.CreateUser(t, f.db, "").ID, Pagination{})
	require.NoError(t, err)
	assert.Empty(t, empty.Conversations)
	assert.NotNil(t, empty.Conversations)
}
