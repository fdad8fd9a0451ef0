package repository

import (
	"context"
	"testing"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirect(t *testing.T, repo ChatRepository, a, b uint) *models.Conversation {
	t.Helper()
	key := models.DirectPairKey(a, b)
	conv := &models.Conversation{Type: models.ConversationOneToOne, PairKey: &key}
	require.NoError(t, repo.CreateConversation(context.Background(), conv, []uint{a, b}))
	return conv
}

func sendAt(t *testing.T, repo ChatRepository, convID, senderID uint, content string, at time.Time) *models.Message {
	t.Helper()
	msg := &models.Message{ConversationID: convID, SenderID: senderID, Content: content, CreatedAt: at}
	require.NoError(t, repo.CreateMessage(context.Background(), msg))
	return msg
}

func TestChatRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	t.Run("direct conversation is found regardless of argument order", func(t *testing.T) {
		conv := newDirect(t, repo, alice.ID, bob.ID)

		found, err := repo.FindDirectConversation(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, conv.ID, found.ID)

		missing, err := repo.FindDirectConversation(ctx, alice.ID, carol.ID)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("second direct conversation for the same pair conflicts", func(t *testing.T) {
		key := models.DirectPairKey(bob.ID, alice.ID)
		dup := &models.Conversation{Type: models.ConversationOneToOne, PairKey: &key}
		err := repo.CreateConversation(ctx, dup, []uint{bob.ID, alice.ID})
		require.Error(t, err)
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("participants", func(t *testing.T) {
		conv := &models.Conversation{Type: models.ConversationGroup, GroupName: "Study"}
		require.NoError(t, repo.CreateConversation(ctx, conv, []uint{alice.ID}))

		require.NoError(t, addParticipant(db.WithContext(ctx), conv.ID, bob.ID))
		require.NoError(t, addParticipant(db.WithContext(ctx), conv.ID, bob.ID))

		ids, err := repo.ParticipantIDs(ctx, conv.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, ids)

		ok, err := repo.IsParticipant(ctx, conv.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, removeParticipant(db.WithContext(ctx), conv.ID, bob.ID))
		ok, err = repo.IsParticipant(ctx, conv.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("get missing conversation", func(t *testing.T) {
		_, err := repo.GetConversation(ctx, 99999)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestChatRepository_MessagesAndReadState(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	conv := newDirect(t, repo, alice.ID, bob.ID)

	base := time.Now().UTC().Add(-time.Hour)
	m1 := sendAt(t, repo, conv.ID, alice.ID, "one", base)
	m2 := sendAt(t, repo, conv.ID, alice.ID, "two", base.Add(time.Minute))
	sendAt(t, repo, conv.ID, bob.ID, "three", base.Add(2*time.Minute))
	m4 := sendAt(t, repo, conv.ID, alice.ID, "four", base.Add(3*time.Minute))

	t.Run("send advances last message timestamp", func(t *testing.T) {
		got, err := repo.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, m4.CreatedAt, got.LastMessageTimestamp, time.Millisecond)
	})

	t.Run("history pages are chronological and newest first by offset", func(t *testing.T) {
		page, err := repo.GetMessages(ctx, conv.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "three", page[0].Content)
		assert.Equal(t, "four", page[1].Content)
		require.NotNil(t, page[1].SenderSummary)
		assert.Equal(t, "alice", page[1].SenderSummary.Username)

		older, err := repo.GetMessages(ctx, conv.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, older, 2)
		assert.Equal(t, "one", older[0].Content)
	})

	t.Run("unread counts exclude own messages", func(t *testing.T) {
		counts, err := repo.UnreadCountsFor(ctx, bob.ID, []uint{conv.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts[conv.ID])

		counts, err = repo.UnreadCountsFor(ctx, alice.ID, []uint{conv.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[conv.ID])
	})

	t.Run("mark read up to a message is monotonic", func(t *testing.T) {
		n, err := repo.MarkReadUpTo(ctx, bob.ID, conv.ID, m2.CreatedAt, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		// Marking an older message afterwards adds nothing.
		n, err = repo.MarkReadUpTo(ctx, bob.ID, conv.ID, m1.CreatedAt, time.Now().UTC())
		require.NoError(t, err)
		assert.Zero(t, n)

		counts, err := repo.UnreadCountsFor(ctx, bob.ID, []uint{conv.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[conv.ID])

		n, err = repo.MarkReadUpTo(ctx, bob.ID, conv.ID, m4.CreatedAt, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		counts, err = repo.UnreadCountsFor(ctx, bob.ID, []uint{conv.ID})
		require.NoError(t, err)
		assert.Zero(t, counts[conv.ID])
	})

	t.Run("last messages and participants are batched per conversation", func(t *testing.T) {
		last, err := repo.LastMessagesFor(ctx, []uint{conv.ID})
		require.NoError(t, err)
		require.Contains(t, last, conv.ID)
		assert.Equal(t, m4.ID, last[conv.ID].ID)

		parts, err := repo.ParticipantsFor(ctx, []uint{conv.ID})
		require.NoError(t, err)
		assert.Len(t, parts[conv.ID], 2)
	})
}

func TestChatRepository_ListUserConversations(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	withBob := newDirect(t, repo, alice.ID, bob.ID)
	withCarol := newDirect(t, repo, alice.ID, carol.ID)
	newDirect(t, repo, bob.ID, carol.ID)

	now := time.Now().UTC()
	sendAt(t, repo, withCarol.ID, carol.ID, "old", now.Add(-time.Hour))
	sendAt(t, repo, withBob.ID, bob.ID, "new", now)

	convs, total, err := repo.ListUserConversations(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, convs, 2)
	assert.Equal(t, withBob.ID, convs[0].ID)
	assert.Equal(t, withCarol.ID, convs[1].ID)

	page, total, err := repo.ListUserConversations(ctx, alice.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, withCarol.ID, page[0].ID)
}
