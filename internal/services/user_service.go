package services

import (
	"context"
	"errors"
	"strings"

	"docchat_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// DisplayName resolves how the assistant addresses a user: full name, first
// name, username, then the local part of the email. fallback is used when
// none of those is set or the user is unknown.
func DisplayName(user *models.User, fallback string) string {
	if user == nil {
		return fallback
	}
	switch {
	case user.FirstName != "" && user.LastName != "":
		return user.FirstName + " " + user.LastName
	case user.FirstName != "":
		return user.FirstName
	case user.Username != "":
		return user.Username
	case user.Email != "":
		local, _, _ := strings.Cut(user.Email, "@")
		return local
	}
	return fallback
}
