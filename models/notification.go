package models

import (
	"time"
)

// Notification types
const (
	NotificationNewOrder          = "new_order"
	NotificationOrderUpdated      = "order_updated"
	NotificationOrderStatus       = "order_status_changed"
	NotificationPaymentRequested  = "payment_requested"
	NotificationDeliveryRequested = "delivery_requested"
	NotificationProfileUpdated    = "profile_updated"
)

// Notification is a message for one user, or for every user of a role when ForUserID is nil
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"not null;index" json:"type"`
	ForRole   string    `gorm:"not null;index" json:"for_role"`
	ForUserID *uint     `gorm:"index" json:"for_user_id"`
	Data      JSONMap   `gorm:"type:text" json:"data"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	DedupeKey *string   `gorm:"uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
