package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence collaborator of the order workflow. Every method
// called on the Store handed to RunInTx's callback joins that transaction.
type Store interface {
	FindOrderByID(ctx context.Context, id uint) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	// SaveOrder writes the order only if it still has the expected status and
	// version, and bumps the version on success.
	SaveOrder(ctx context.Context, order *models.Order, expected workflow.Status, expectedVersion uint) error
	FindAddressByID(ctx context.Context, id uint) (*models.Address, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindTransactionByOrderID(ctx context.Context, orderID uint, purpose workflow.PaymentPurpose) (*models.Transaction, error)
	// CreateTransaction inserts the entry unless one with the same SourceKey
	// exists, and reports whether a row was written.
	CreateTransaction(ctx context.Context, txn *models.Transaction) (bool, error)
	SaveTransaction(ctx context.Context, txn *models.Transaction) error
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// OrderFilter selects the orders visible to an actor, one page at a time.
// A zero Limit returns every remaining order.
type OrderFilter struct {
	Actor  workflow.Actor
	Status workflow.Status
	Offset int
	Limit  int
}

// GormStore implements Store on top of gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindOrderByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return &order, nil
}

func (s *GormStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	switch filter.Actor.Role {
	case workflow.RoleAdmin:
	case workflow.RoleIndividual:
		query = query.Where("individual_id = ?", filter.Actor.ID)
	case workflow.RoleCompany:
		query = query.Where("company_id = ?", filter.Actor.ID)
	case workflow.RoleTechnician:
		query = query.Where("technician_id = ?", filter.Actor.ID)
	case workflow.RoleDelivery:
		query = query.Where("delivery_id = ?", filter.Actor.ID)
	default:
		return []models.Order{}, 0, nil
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query = query.Order("created_at DESC, id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	orders := []models.Order{}
	err := query.Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *GormStore) SaveOrder(ctx context.Context, order *models.Order, expected workflow.Status, expectedVersion uint) error {
	now := time.Now()
	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND version = ?", order.ID, expected, expectedVersion).
		Updates(map[string]any{
			"status":         order.Status,
			"version":        expectedVersion + 1,
			"technician_id":  order.TechnicianID,
			"delivery_id":    order.DeliveryID,
			"payment_amount": order.PaymentAmount,
			"payment_reason": order.PaymentReason,
			"cancel_reason":  order.CancelReason,
			"updated_at":     now,
		})
	if res.Error != nil {
		return fmt.Errorf("save order %d: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &workflow.ConcurrentModificationError{OrderID: order.ID, ExpectedStatus: expected}
	}
	order.Version = expectedVersion + 1
	order.UpdatedAt = now
	return nil
}

func (s *GormStore) FindAddressByID(ctx context.Context, id uint) (*models.Address, error) {
	var address models.Address
	if err := s.db.WithContext(ctx).First(&address, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrAddressNotFound, id)
		}
		return nil, fmt.Errorf("load address %d: %w", id, err)
	}
	return &address, nil
}

func (s *GormStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

func (s *GormStore) FindTransactionByOrderID(ctx context.Context, orderID uint, purpose workflow.PaymentPurpose) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND purpose = ?", orderID, purpose).
		Order("id DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d, purpose %s", ErrTransactionNotFound, orderID, purpose)
		}
		return nil, fmt.Errorf("load transaction for order %d: %w", orderID, err)
	}
	return &txn, nil
}

func (s *GormStore) CreateTransaction(ctx context.Context, txn *models.Transaction) (bool, error) {
	db := s.db.WithContext(ctx)
	if txn.SourceKey != nil {
		var existing int64
		if err := db.Model(&models.Transaction{}).Where("source_key = ?", *txn.SourceKey).Count(&existing).Error; err != nil {
			return false, fmt.Errorf("check transaction %s: %w", *txn.SourceKey, err)
		}
		if existing > 0 {
			return false, nil
		}
		db = db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_key"}}, DoNothing: true})
	}
	res := db.Create(txn)
	if res.Error != nil {
		return false, fmt.Errorf("create transaction: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := s.db.WithContext(ctx).Save(txn).Error; err != nil {
		return fmt.Errorf("save transaction %d: %w", txn.ID, err)
	}
	return nil
}

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
