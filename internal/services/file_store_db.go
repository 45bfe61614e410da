package services

import (
	"context"
	"errors"
	"time"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultFileStore persists uploaded files with gorm and guards every status
// change in the UPDATE's WHERE clause, so a terminal file is never rewritten.
type DefaultFileStore struct {
	db *gorm.DB
}

func NewFileStore(db *gorm.DB) *DefaultFileStore {
	return &DefaultFileStore{db: db}
}

var pendingStatuses = []models.FileStatus{models.FileStatusUploaded, models.FileStatusProcessing}

func (s *DefaultFileStore) Create(ctx context.Context, file *models.UploadedFile) (*models.UploadedFile, error) {
	file.Status = models.FileStatusUploaded
	file.IsActive = true
	file.ProcessingResult = models.ProcessingResult{}
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (s *DefaultFileStore) Get(ctx context.Context, id uuid.UUID) (*models.UploadedFile, error) {
	var file models.UploadedFile
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *DefaultFileStore) MarkProcessing(ctx context.Context, id uuid.UUID) (*models.UploadedFile, error) {
	return s.transition(ctx, id, []models.FileStatus{models.FileStatusUploaded}, map[string]interface{}{
		"status": models.FileStatusProcessing,
	})
}

func (s *DefaultFileStore) MarkProcessed(ctx context.Context, id uuid.UUID, text string, metadata models.FileMetadata) (*models.UploadedFile, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":                models.FileStatusProcessed,
		"result_extracted_text": text,
		"result_error":          nil,
		"result_processed_at":   now,
		"meta_pages":            metadata.Pages,
		"meta_rows":             metadata.Rows,
		"meta_columns":          metadata.Columns,
		"meta_encoding":         metadata.Encoding,
		"meta_language":         metadata.Language,
		"meta_version":          metadata.Version,
	}
	return s.transition(ctx, id, pendingStatuses, updates)
}

func (s *DefaultFileStore) MarkError(ctx context.Context, id uuid.UUID, reason string) (*models.UploadedFile, error) {
	updates := map[string]interface{}{
		"status":                models.FileStatusError,
		"result_extracted_text": nil,
		"result_error":          reason,
		"result_processed_at":   time.Now(),
	}
	return s.transition(ctx, id, pendingStatuses, updates)
}

func (s *DefaultFileStore) transition(ctx context.Context, id uuid.UUID, from []models.FileStatus, updates map[string]interface{}) (*models.UploadedFile, error) {
	result := s.db.WithContext(ctx).Model(&models.UploadedFile{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return s.Get(ctx, id)
}

func (s *DefaultFileStore) ListProcessed(ctx context.Context, chatID uuid.UUID) ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND status = ? AND is_active = ?", chatID, models.FileStatusProcessed, true).
		Order("created_at asc").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *DefaultFileStore) ListProcessedByIDs(ctx context.Context, chatID uuid.UUID, ids []uuid.UUID) ([]models.UploadedFile, error) {
	if len(ids) == 0 {
		return []models.UploadedFile{}, nil
	}
	var files []models.UploadedFile
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND status = ? AND is_active = ? AND id IN ?", chatID, models.FileStatusProcessed, true, ids).
		Order("created_at asc").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *DefaultFileStore) ListByChat(ctx context.Context, chatID uuid.UUID) ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND is_active = ?", chatID, true).
		Order("created_at asc").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *DefaultFileStore) CountByChat(ctx context.Context, chatID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UploadedFile{}).
		Where("chat_id = ? AND is_active = ?", chatID, true).
		Count(&count).Error
	return count, err
}

func (s *DefaultFileStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&models.UploadedFile{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}
