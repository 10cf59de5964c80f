package models

import (
	"time"

	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"gorm.io/gorm"
)

// User represents an account in the system (customer, technician, courier or admin)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Auth0ID   string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Phone     *string        `gorm:"index" json:"phone,omitempty"`
	Role      workflow.Role  `gorm:"not null;default:'individual'" json:"role"` // individual, company, technician, delivery, admin
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Actor returns the workflow identity of the user
func (u User) Actor() workflow.Actor {
	return workflow.Actor{Role: u.Role, ID: u.ID}
}
