package models

import (
	"time"
)

// Company is a catalog entry loaded by the bulk importer. Symbol and
// scripcode uniqueness is enforced by the database so concurrent imports
// cannot create duplicates.
type Company struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CompanyName string    `gorm:"column:company_name;size:255;index;not null" json:"company_name"`
	Symbol      string    `gorm:"size:50;uniqueIndex;not null" json:"symbol"`
	Scripcode   *string   `gorm:"size:50;uniqueIndex" json:"scripcode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}
