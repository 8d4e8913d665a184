package models

import (
	"time"
)

// WatchlistEntry links a user to a company they track. The composite
// unique index keeps at most one entry per (user, company) pair; both
// foreign keys cascade on delete.
type WatchlistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_watchlist_user_company;not null" json:"userId"`
	CompanyID uint      `gorm:"uniqueIndex:idx_watchlist_user_company;not null" json:"companyId"`
	CreatedAt time.Time `json:"addedAt"`

	// Relations (for eager loading)
	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Company Company `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE" json:"company"`
}

func (WatchlistEntry) TableName() string {
	return "watchlist"
}
