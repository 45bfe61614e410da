package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatListQuery struct {
	Page   int
	Limit  int
	Search string
}

// SettingsPatch carries the settings fields a caller wants to change.
type SettingsPatch struct {
	Model       *string
	Temperature *float64
	MaxTokens   *int
}

// DefaultConversationStore implements ConversationStore
type DefaultConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *DefaultConversationStore {
	return &DefaultConversationStore{db: db}
}

// CreateSession stores a new chat seeded with the assistant welcome message.
func (s *DefaultConversationStore) CreateSession(ctx context.Context, owner uuid.UUID, title string, settings models.ChatSettings, welcome string) (*models.ChatSession, error) {
	now := time.Now()
	chat := &models.ChatSession{
		UserID:   owner,
		Title:    title,
		Settings: settings,
		IsActive: true,
		Metadata: models.ChatMetadata{
			TotalMessages: 1,
			LastActivity:  now,
			FileContext: models.FileContext{
				FileTypes: datatypes.JSONSlice[models.FileType]{},
			},
		},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		message := models.Message{
			ChatID:      chat.ID,
			Seq:         0,
			Role:        models.RoleAssistant,
			Content:     welcome,
			Timestamp:   now,
			Attachments: datatypes.JSONSlice[models.Attachment]{},
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		chat.Messages = []models.Message{message}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// AppendMessage adds a message and refreshes the chat metadata in one
// transaction. The chat row is locked so concurrent appends get distinct
// sequence numbers.
func (s *DefaultConversationStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role models.MessageRole, content string, attachments []models.Attachment) (*models.ChatSession, *models.Message, error) {
	var chat models.ChatSession
	var message models.Message

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).
			First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now()
		if now.Before(chat.Metadata.LastActivity) {
			now = chat.Metadata.LastActivity
		}

		if attachments == nil {
			attachments = []models.Attachment{}
		}
		message = models.Message{
			ChatID:      chat.ID,
			Seq:         chat.Metadata.TotalMessages,
			Role:        role,
			Content:     content,
			Timestamp:   now,
			Attachments: attachments,
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}

		var total int64
		if err := tx.Model(&models.Message{}).Where("chat_id = ?", chat.ID).Count(&total).Error; err != nil {
			return err
		}

		chat.Metadata.TotalMessages = int(total)
		chat.Metadata.LastActivity = now
		for _, attachment := range attachments {
			chat.Metadata.FileContext.HasFiles = true
			chat.Metadata.FileContext.FileTypes = addFileType(chat.Metadata.FileContext.FileTypes, attachment.FileType)
		}

		return tx.Model(&chat).Updates(map[string]interface{}{
			"meta_total_messages":  chat.Metadata.TotalMessages,
			"meta_last_activity":   chat.Metadata.LastActivity,
			"meta_file_has_files":  chat.Metadata.FileContext.HasFiles,
			"meta_file_file_types": chat.Metadata.FileContext.FileTypes,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &chat, &message, nil
}

// RecordFile notes a successfully processed upload in the chat's file context.
func (s *DefaultConversationStore) RecordFile(ctx context.Context, sessionID uuid.UUID, fileType models.FileType) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).
			First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}

		return tx.Model(&chat).Updates(map[string]interface{}{
			"meta_file_has_files":   true,
			"meta_file_file_types":  addFileType(chat.Metadata.FileContext.FileTypes, fileType),
			"meta_file_total_files": chat.Metadata.FileContext.TotalFiles + 1,
		}).Error
	})
}

func addFileType(types datatypes.JSONSlice[models.FileType], fileType models.FileType) datatypes.JSONSlice[models.FileType] {
	if fileType == "" {
		return types
	}
	for _, t := range types {
		if t == fileType {
			return types
		}
	}
	return append(types, fileType)
}

// RecentMessages returns up to n of the latest messages, oldest first.
func (s *DefaultConversationStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.Message, error) {
	if n <= 0 {
		return []models.Message{}, nil
	}
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", sessionID).
		Order("seq desc").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *DefaultConversationStore) LoadMessages(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", sessionID).
		Order("seq asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *DefaultConversationStore) LastMessage(ctx context.Context, sessionID uuid.UUID) (*models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", sessionID).
		Order("seq desc").
		Limit(1).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// FindActive loads an active chat owned by owner, without its messages.
func (s *DefaultConversationStore) FindActive(ctx context.Context, sessionID, owner uuid.UUID) (*models.ChatSession, error) {
	var chat models.ChatSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, owner, true).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListActive pages through the owner's active chats, most recently active
// first. Search matches titles or message content, case-insensitively.
func (s *DefaultConversationStore) ListActive(ctx context.Context, owner uuid.UUID, query ChatListQuery) ([]models.ChatSession, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("user_id = ? AND is_active = ?", owner, true)

	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\' OR EXISTS (SELECT 1 FROM messages WHERE messages.chat_id = chat_sessions.id AND LOWER(messages.content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var chats []models.ChatSession
	err := q.Order("meta_last_activity desc").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&chats).Error
	if err != nil {
		return nil, 0, err
	}
	return chats, total, nil
}

func (s *DefaultConversationStore) UpdateSettings(ctx context.Context, sessionID, owner uuid.UUID, patch SettingsPatch) (*models.ChatSession, error) {
	chat, err := s.FindActive(ctx, sessionID, owner)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Model != nil {
		updates["settings_model"] = *patch.Model
	}
	if patch.Temperature != nil {
		updates["settings_temperature"] = *patch.Temperature
	}
	if patch.MaxTokens != nil {
		updates["settings_max_tokens"] = *patch.MaxTokens
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(chat).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.FindActive(ctx, sessionID, owner)
}

func (s *DefaultConversationStore) SoftDelete(ctx context.Context, sessionID, owner uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.ChatSession{}).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, owner, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// ClearMessages drops every message of the chat and resets its counters.
func (s *DefaultConversationStore) ClearMessages(ctx context.Context, sessionID, owner uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.ChatSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ? AND is_active = ?", sessionID, owner, true).
			First(&chat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}

		lastActivity := time.Now()
		if lastActivity.Before(chat.Metadata.LastActivity) {
			lastActivity = chat.Metadata.LastActivity
		}
		return tx.Model(&chat).Updates(map[string]interface{}{
			"meta_total_messages":   0,
			"meta_last_activity":    lastActivity,
			"meta_file_has_files":   false,
			"meta_file_file_types":  datatypes.JSONSlice[models.FileType]{},
			"meta_file_total_files": 0,
		}).Error
	})
}
