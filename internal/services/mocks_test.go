package services

import (
	"context"
	"testing"

	"docchat_go_backend/internal/database"
	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type MockLanguageModel struct {
	mock.Mock
}

func (m *MockLanguageModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(topic string, msg interface{}) int {
	args := m.Called(topic, msg)
	return args.Int(0)
}

type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) Process(ctx context.Context, raw []byte, declaredType models.FileType) (*ProcessResult, error) {
	args := m.Called(ctx, raw, declaredType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProcessResult), args.Error(1)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(database.Options{
		Driver:     "sqlite",
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, user models.User) *models.User {
	t.Helper()
	user.IsActive = true
	if user.Email == "" {
		user.Email = uuid.NewString() + "@example.com"
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func strPtr(s string) *string { return &s }
