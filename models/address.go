package models

import (
	"time"
)

// Address is a service location owned by a customer
type Address struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	City      string    `gorm:"not null" json:"city"`
	Street    string    `gorm:"not null" json:"street"`
	Building  string    `json:"building"`
	Apartment string    `json:"apartment,omitempty"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Address model
func (Address) TableName() string {
	return "addresses"
}
