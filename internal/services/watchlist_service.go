package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockwatch/backend/internal/apperrors"
	"github.com/stockwatch/backend/internal/models"
)

type WatchlistService struct {
	DB        *gorm.DB
	companies *CompanyService
}

func NewWatchlistService(db *gorm.DB, companies *CompanyService) *WatchlistService {
	return &WatchlistService{DB: db, companies: companies}
}

// Add puts a company on the user's watchlist. The insert ignores conflicts
// on the (user, company) unique index, so two concurrent adds of the same
// pair store exactly one row; created reports whether this call inserted it.
func (s *WatchlistService) Add(userID, companyID uint) (*models.WatchlistEntry, bool, error) {
	company, err := s.companies.GetCompanyByID(companyID)
	if err != nil {
		return nil, false, err
	}

	entry := models.WatchlistEntry{UserID: userID, CompanyID: companyID}
	result := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return nil, false, result.Error
	}

	created := result.RowsAffected == 1
	if !created {
		// Pair was already present; load the stored entry
		if err := s.DB.Where("user_id = ? AND company_id = ?", userID, companyID).First(&entry).Error; err != nil {
			return nil, false, err
		}
	}
	entry.Company = *company

	return &entry, created, nil
}

// List returns all watchlist entries for the user with company data
// preloaded, most recently added first.
func (s *WatchlistService) List(userID uint) ([]models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := s.DB.Preload("Company").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}

// Remove deletes the user's entry for the company. Removing a company that
// was never added is an error, unlike the idempotent Add.
func (s *WatchlistService) Remove(userID, companyID uint) error {
	result := s.DB.Where("user_id = ? AND company_id = ?", userID, companyID).
		Delete(&models.WatchlistEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
