package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kendall-kelly/appliance-repair-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRequest describes one notification to store. A nil ForUserID
// addresses every user of ForRole. Requests sharing a DedupeKey are stored once.
type NotificationRequest struct {
	Message   string
	Type      string
	ForRole   string
	ForUserID *uint
	Data      map[string]any
	DedupeKey string
}

// NotificationService stores and reads user notifications
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a notification service on db
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

var notificationServiceInstance *NotificationService

// GetNotificationService returns the registered notification service
func GetNotificationService() *NotificationService {
	return notificationServiceInstance
}

// SetNotificationService registers the notification service
func SetNotificationService(service *NotificationService) {
	notificationServiceInstance = service
}

// Send stores the notification unless one with the same dedupe key exists.
// It reports whether a row was written.
func (s *NotificationService) Send(ctx context.Context, req NotificationRequest) (bool, error) {
	if strings.TrimSpace(req.Message) == "" || req.Type == "" || req.ForRole == "" {
		return false, errors.New("notification requires message, type and role")
	}

	db := s.db.WithContext(ctx)
	notification := &models.Notification{
		Message:   req.Message,
		Type:      req.Type,
		ForRole:   req.ForRole,
		ForUserID: req.ForUserID,
		Data:      models.JSONMap(req.Data),
	}

	if req.DedupeKey != "" {
		var existing int64
		if err := db.Model(&models.Notification{}).Where("dedupe_key = ?", req.DedupeKey).Count(&existing).Error; err != nil {
			return false, fmt.Errorf("check notification %s: %w", req.DedupeKey, err)
		}
		if existing > 0 {
			return false, nil
		}
		key := req.DedupeKey
		notification.DedupeKey = &key
		db = db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true})
	}

	res := db.Create(notification)
	if res.Error != nil {
		return false, fmt.Errorf("create notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SendNotification stores a notification that is not tied to an order event
func (s *NotificationService) SendNotification(ctx context.Context, message, typ, forRole string, forUserID *uint, data map[string]any) error {
	_, err := s.Send(ctx, NotificationRequest{
		Message:   message,
		Type:      typ,
		ForRole:   forRole,
		ForUserID: forUserID,
		Data:      data,
	})
	return err
}

// recipient scopes a query to notifications addressed to the user directly or
// broadcast to the user's role
func recipient(db *gorm.DB, role string, userID uint) *gorm.DB {
	return db.Where("for_role = ? AND (for_user_id = ? OR for_user_id IS NULL)", role, userID)
}

// ListForRecipient returns the recipient's notifications, newest first
func (s *NotificationService) ListForRecipient(ctx context.Context, role string, userID uint, unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification
	query := recipient(s.db.WithContext(ctx), role, userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if err := query.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks one of the recipient's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id uint, role string, userID uint) (*models.Notification, error) {
	var notification models.Notification
	err := recipient(s.db.WithContext(ctx), role, userID).First(&notification, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotificationNotFound, id)
		}
		return nil, fmt.Errorf("load notification %d: %w", id, err)
	}

	if !notification.IsRead {
		if err := s.db.WithContext(ctx).Model(&notification).Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("mark notification %d read: %w", id, err)
		}
		notification.IsRead = true
	}
	return &notification, nil
}

// MarkAllRead marks every unread notification of the recipient as read and
// returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, role string, userID uint) (int64, error) {
	res := recipient(s.db.WithContext(ctx).Model(&models.Notification{}), role, userID).
		Where("is_read = ?", false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
