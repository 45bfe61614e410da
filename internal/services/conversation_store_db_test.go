package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStore_CreateSession(t *testing.T) {
	db := newTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()
	owner := uuid.New()

	chat, err := store.CreateSession(ctx, owner, "Research", models.DefaultChatSettings(), "Hello!")
	require.NoError(t, err)

	assert.Equal(t, owner, chat.UserID)
	assert.True(t, chat.IsActive)
	assert.Equal(t, 1, chat.Metadata.TotalMessages)
	assert.Equal(t, models.DefaultModel, chat.Settings.Model)

	messages, err := store.LoadMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleAssistant, messages[0].Role)
	assert.Equal(t, "Hello!", messages[0].Content)
}

func TestConversationStore_AppendMessage(t *testing.T) {
	db := newTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()
	owner := uuid.New()

	chat, err := store.CreateSession(ctx, owner, "Chat", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)

	t.Run("Keeps the message count in step", func(t *testing.T) {
		previous := chat.Metadata.LastActivity
		for i := 0; i < 4; i++ {
			role := models.RoleUser
			if i%2 == 1 {
				role = models.RoleAssistant
			}
			updated, message, err := store.AppendMessage(ctx, chat.ID, role, fmt.Sprintf("message %d", i), nil)
			require.NoError(t, err)
			assert.Equal(t, role, message.Role)

			messages, err := store.LoadMessages(ctx, chat.ID)
			require.NoError(t, err)
			assert.Equal(t, len(messages), updated.Metadata.TotalMessages)
			assert.False(t, updated.Metadata.LastActivity.Before(previous))
			previous = updated.Metadata.LastActivity
		}
	})

	t.Run("Attachments update the file context", func(t *testing.T) {
		updated, message, err := store.AppendMessage(ctx, chat.ID, models.RoleUser, "see file", []models.Attachment{{
			FileID:       uuid.New(),
			OriginalName: "data.csv",
			FileType:     models.FileTypeCSV,
		}})
		require.NoError(t, err)
		assert.Len(t, message.Attachments, 1)
		assert.True(t, updated.Metadata.FileContext.HasFiles)
		assert.Equal(t, []models.FileType{models.FileTypeCSV}, []models.FileType(updated.Metadata.FileContext.FileTypes))
		assert.Equal(t, 0, updated.Metadata.FileContext.TotalFiles)
	})

	t.Run("Unknown session", func(t *testing.T) {
		_, _, err := store.AppendMessage(ctx, uuid.New(), models.RoleUser, "hi", nil)
		assert.ErrorIs(t, err, ErrChatNotFound)
	})

	t.Run("Concurrent appends keep the invariant", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, err := store.AppendMessage(ctx, chat.ID, models.RoleUser, fmt.Sprintf("parallel %d", i), nil)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		found, err := store.FindActive(ctx, chat.ID, owner)
		require.NoError(t, err)
		messages, err := store.LoadMessages(ctx, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, len(messages), found.Metadata.TotalMessages)
	})
}

func TestConversationStore_RecentMessages(t *testing.T) {
	db := newTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()

	chat, err := store.CreateSession(ctx, uuid.New(), "Chat", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)
	for i := 1; i <= 12; i++ {
		_, _, err := store.AppendMessage(ctx, chat.ID, models.RoleUser, fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}

	recent, err := store.RecentMessages(ctx, chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "m3", recent[0].Content)
	assert.Equal(t, "m12", recent[9].Content)

	_, _, err = store.AppendMessage(ctx, chat.ID, models.RoleAssistant, "m13", nil)
	require.NoError(t, err)
	again, err := store.RecentMessages(ctx, chat.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, "m13", again[9].Content)
	assert.Equal(t, "m12", recent[9].Content, "earlier result is not affected by later appends")

	empty, err := store.RecentMessages(ctx, chat.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConversationStore_FindActive(t *testing.T) {
	db := newTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()
	owner := uuid.New()

	chat, err := store.CreateSession(ctx, owner, "Chat", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)

	_, err = store.FindActive(ctx, chat.ID, uuid.New())
	assert.ErrorIs(t, err, ErrChatNotFound, "foreign owner")

	require.NoError(t, store.SoftDelete(ctx, chat.ID, owner))
	_, err = store.FindActive(ctx, chat.ID, owner)
	assert.ErrorIs(t, err, ErrChatNotFound, "inactive chat")
	assert.ErrorIs(t, store.SoftDelete(ctx, chat.ID, owner), ErrChatNotFound)
}

func TestConversationStore_ListActive(t *testing.T) {
	db := newTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()
	owner := uuid.New()

	alpha, err := store.CreateSession(ctx, owner, "Alpha project", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	beta, err := store.CreateSession(ctx, owner, "Beta", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = store.CreateSession(ctx, uuid.New(), "Alpha of someone else", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, _, err = store.AppendMessage(ctx, alpha.ID, models.RoleUser, "Quarterly REVENUE numbers", nil)
	require.NoError(t, err)

	t.Run("Most recent activity first", func(t *testing.T) {
		chats, total, err := store.ListActive(ctx, owner, ChatListQuery{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, chats, 2)
		assert.Equal(t, alpha.ID, chats[0].ID)
		assert.Equal(t, beta.ID, chats[1].ID)
	})

	t.Run("Search by title", func(t *testing.T) {
		chats, total, err := store.ListActive(ctx, owner, ChatListQuery{Page: 1, Limit: 10, Search: "alpha"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, chats, 1)
		assert.Equal(t, alpha.ID, chats[0].ID)
	})

	t.Run("Search by message content", func(t *testing.T) {
		chats, _, err := store.ListActive(ctx, owner, ChatListQuery{Page: 1, Limit: 10, Search: "revenue"})
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, alpha.ID, chats[0].ID)
	})

	t.Run("Wildcards in the search term match literally", func(t *testing.T) {
		discount, err := store.CreateSession(ctx, owner, "100% off", models.DefaultChatSettings(), "Welcome")
		require.NoError(t, err)
		defer func() { require.NoError(t, store.SoftDelete(ctx, discount.ID, owner)) }()

		chats, total, err := store.ListActive(ctx, owner, ChatListQuery{Page: 1, Limit: 10, Search: "100%"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, chats, 1)
		assert.Equal(t, discount.ID, chats[0].ID)

		chats, _, err = store.ListActive(ctx, owner, ChatListQuery{Page: 1, Limit: 10, Search: "%"})
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, discount.ID, chats[0].ID)

		_, total, err = store.ListActive(ctx, owner, ChatListQuery{Page: 1, Limit: 10, Search: "b_ta"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})

	t.Run("Pages", func(t *testing.T) {
		chats, total, err := store.ListActive(ctx, owner, ChatListQuery{Page: 2, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, chats, 1)
		assert.Equal(t, beta.ID, chats[0].ID)
	})
}

func TestConversationStore_Maintenance(t *testing.T) {
	db := newTestDB(t)
	store := NewConversationStore(db)
	ctx := context.Background()
	owner := uuid.New()

	chat, err := store.CreateSession(ctx, owner, "Chat", models.DefaultChatSettings(), "Welcome")
	require.NoError(t, err)

	t.Run("UpdateSettings applies only given fields", func(t *testing.T) {
		temperature := 1.2
		updated, err := store.UpdateSettings(ctx, chat.ID, owner, SettingsPatch{Temperature: &temperature})
		require.NoError(t, err)
		assert.Equal(t, 1.2, updated.Settings.Temperature)
		assert.Equal(t, models.DefaultModel, updated.Settings.Model)
		assert.Equal(t, models.DefaultMaxTokens, updated.Settings.MaxTokens)
	})

	t.Run("RecordFile counts uploads", func(t *testing.T) {
		require.NoError(t, store.RecordFile(ctx, chat.ID, models.FileTypePDF))
		require.NoError(t, store.RecordFile(ctx, chat.ID, models.FileTypePDF))

		found, err := store.FindActive(ctx, chat.ID, owner)
		require.NoError(t, err)
		assert.True(t, found.Metadata.FileContext.HasFiles)
		assert.Equal(t, 2, found.Metadata.FileContext.TotalFiles)
		assert.Equal(t, []models.FileType{models.FileTypePDF}, []models.FileType(found.Metadata.FileContext.FileTypes))
	})

	t.Run("ClearMessages resets metadata", func(t *testing.T) {
		_, _, err := store.AppendMessage(ctx, chat.ID, models.RoleUser, "hello", nil)
		require.NoError(t, err)

		require.NoError(t, store.ClearMessages(ctx, chat.ID, owner))

		found, err := store.FindActive(ctx, chat.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, 0, found.Metadata.TotalMessages)
		assert.False(t, found.Metadata.FileContext.HasFiles)

		last, err := store.LastMessage(ctx, chat.ID)
		require.NoError(t, err)
		assert.Nil(t, last)

		updated, message, err := store.AppendMessage(ctx, chat.ID, models.RoleUser, "fresh start", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, message.Seq)
		assert.Equal(t, 1, updated.Metadata.TotalMessages)
	})
}
