package services

import (
	"gorm.io/gorm"

	"github.com/stockwatch/backend/internal/models"
)

// UserService defines the interface for user-related operations
type UserService interface {
	GetUserIDByUsername(username string) (uint, error)
}

// userService implements the UserService interface
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) UserService {
	return &userService{
		db: db,
	}
}

// GetUserIDByUsername retrieves a user's ID by their username
func (s *userService) GetUserIDByUsername(username string) (uint, error) {
	var user models.User
	result := s.db.Select("id").Where("username = ? AND is_active = ?", username, true).First(&user)
	if result.Error != nil {
		return 0, result.Error
	}
	return user.ID, nil
}
