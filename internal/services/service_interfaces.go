package services

import (
	"context"
	"io"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
)

type FileStore interface {
	Create(ctx context.Context, file *models.UploadedFile) (*models.UploadedFile, error)
	Get(ctx context.Context, id uuid.UUID) (*models.UploadedFile, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (*models.UploadedFile, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, text string, metadata models.FileMetadata) (*models.UploadedFile, error)
	MarkError(ctx context.Context, id uuid.UUID, reason string) (*models.UploadedFile, error)
	ListProcessed(ctx context.Context, chatID uuid.UUID) ([]models.UploadedFile, error)
	ListProcessedByIDs(ctx context.Context, chatID uuid.UUID, ids []uuid.UUID) ([]models.UploadedFile, error)
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.UploadedFile, error)
	CountByChat(ctx context.Context, chatID uuid.UUID) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type ConversationStore interface {
	CreateSession(ctx context.Context, owner uuid.UUID, title string, settings models.ChatSettings, welcome string) (*models.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role models.MessageRole, content string, attachments []models.Attachment) (*models.ChatSession, *models.Message, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.Message, error)
	LoadMessages(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error)
	LastMessage(ctx context.Context, sessionID uuid.UUID) (*models.Message, error)
	FindActive(ctx context.Context, sessionID, owner uuid.UUID) (*models.ChatSession, error)
	ListActive(ctx context.Context, owner uuid.UUID, query ChatListQuery) ([]models.ChatSession, int64, error)
	UpdateSettings(ctx context.Context, sessionID, owner uuid.UUID, patch SettingsPatch) (*models.ChatSession, error)
	SoftDelete(ctx context.Context, sessionID, owner uuid.UUID) error
	ClearMessages(ctx context.Context, sessionID, owner uuid.UUID) error
	RecordFile(ctx context.Context, sessionID uuid.UUID, fileType models.FileType) error
}

type DocumentProcessor interface {
	Process(ctx context.Context, raw []byte, declaredType models.FileType) (*ProcessResult, error)
}

type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type CloudStorageManager interface {
	UploadFile(ctx context.Context, objectName string, content io.Reader) error
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)
	DeleteFile(ctx context.Context, objectName string) error
}

type EventPublisher interface {
	Publish(topic string, msg interface{}) int
}
