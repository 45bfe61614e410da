package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	// RoleSystem only appears in assembled prompts, never in storage.
	RoleSystem MessageRole = "system"
)

const (
	DefaultChatTitle   = "New Chat"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// SupportedModels lists the model identifiers a chat may be configured with.
var SupportedModels = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"}

type ChatSettings struct {
	Model       string  `gorm:"size:32;not null" json:"model"`
	Temperature float64 `gorm:"not null" json:"temperature"`
	MaxTokens   int     `gorm:"not null" json:"maxTokens"`
}

func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

type FileContext struct {
	HasFiles   bool                          `json:"hasFiles"`
	FileTypes  datatypes.JSONSlice[FileType] `json:"fileTypes"`
	TotalFiles int                           `json:"totalFiles"`
}

type ChatMetadata struct {
	TotalMessages int         `gorm:"not null;default:0" json:"totalMessages"`
	LastActivity  time.Time   `gorm:"index" json:"lastActivity"`
	FileContext   FileContext `gorm:"embedded;embeddedPrefix:file_" json:"fileContext"`
}

type ChatSession struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID    `gorm:"type:uuid;index;not null" json:"userId"`
	Title     string       `gorm:"size:100;not null" json:"title"`
	Messages  []Message    `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
	Settings  ChatSettings `gorm:"embedded;embeddedPrefix:settings_" json:"settings"`
	Metadata  ChatMetadata `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`
	IsActive  bool         `gorm:"index;not null" json:"isActive"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (c *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Attachment references an uploaded file cited by a message. The file
// itself stays owned by the chat.
type Attachment struct {
	FileID       uuid.UUID `json:"fileId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	FileType     FileType  `json:"fileType"`
}

type Message struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID      uuid.UUID                       `gorm:"type:uuid;index:idx_chat_seq,priority:1;not null" json:"chatId"`
	Seq         int                             `gorm:"index:idx_chat_seq,priority:2;not null" json:"-"`
	Role        MessageRole                     `gorm:"size:16;not null" json:"role"`
	Content     string                          `gorm:"type:text;not null" json:"content"`
	Timestamp   time.Time                       `gorm:"not null" json:"timestamp"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
