package services

import (
	"context"
	"sync"
	"testing"

	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")

	// every connection to :memory: opens a fresh database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Order{},
		&models.Transaction{},
		&models.Notification{},
		&models.VerificationCode{},
	)
	require.NoError(t, err, "Failed to migrate test database")

	return db
}

// recordingPublisher keeps every published event and optionally handles it inline
type recordingPublisher struct {
	mu     sync.Mutex
	events []workflow.OrderTransitioned
	handle func(workflow.OrderTransitioned)
}

func (p *recordingPublisher) Publish(event workflow.OrderTransitioned) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	if p.handle != nil {
		p.handle(event)
	}
}

func (p *recordingPublisher) Events() []workflow.OrderTransitioned {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]workflow.OrderTransitioned, len(p.events))
	copy(out, p.events)
	return out
}

type serviceFixture struct {
	db            *gorm.DB
	store         *GormStore
	notifications *NotificationService
	dispatcher    *Dispatcher
	events        *recordingPublisher
	orders        *OrderService

	individual models.User
	company    models.User
	technician models.User
	courier    models.User
	admin      models.User
}

// newServiceFixture builds the order service on a fresh database. Events are
// handled synchronously by the dispatcher so tests can assert side effects.
func newServiceFixture(t *testing.T, prePayment string) *serviceFixture {
	t.Helper()

	db := setupServiceTestDB(t)
	f := &serviceFixture{
		db:            db,
		store:         NewGormStore(db),
		notifications: NewNotificationService(db),
	}
	f.dispatcher = NewDispatcher(f.notifications, f.store, nil, 8)
	f.events = &recordingPublisher{handle: func(event workflow.OrderTransitioned) {
		require.NoError(t, f.dispatcher.Handle(context.Background(), event))
	}}

	orders, err := NewOrderService(OrderServiceDeps{
		Store:            f.store,
		Events:           f.events,
		PrePaymentAmount: decimal.RequireFromString(prePayment),
	})
	require.NoError(t, err)
	f.orders = orders

	f.individual = createTestUser(t, db, "individual", workflow.RoleIndividual)
	f.company = createTestUser(t, db, "company", workflow.RoleCompany)
	f.technician = createTestUser(t, db, "technician", workflow.RoleTechnician)
	f.courier = createTestUser(t, db, "courier", workflow.RoleDelivery)
	f.admin = createTestUser(t, db, "admin", workflow.RoleAdmin)
	return f
}

func createTestUser(t *testing.T, db *gorm.DB, name string, role workflow.Role) models.User {
	t.Helper()
	user := models.User{
		Auth0ID: "auth0|" + name,
		Name:    name,
		Email:   name + "@example.com",
		Role:    role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func (f *serviceFixture) createOrder(t *testing.T, customer models.User, service workflow.ServiceType) *models.Order {
	t.Helper()
	order, err := f.orders.Create(context.Background(), CreateOrderCommand{
		Customer:    customer.Actor(),
		ServiceType: service,
		Category:    "washing machine",
		Brand:       "Bosch",
		Model:       "WAN28",
		Description: "drum does not spin",
	})
	require.NoError(t, err)
	return order
}

func (f *serviceFixture) step(t *testing.T, order *models.Order, user models.User, action workflow.Action, payload workflow.Payload) *models.Order {
	t.Helper()
	updated, err := f.orders.Transition(context.Background(), TransitionCommand{
		OrderID: order.ID,
		Actor:   user.Actor(),
		Action:  action,
		Payload: payload,
	})
	require.NoError(t, err, "%s by %s", action, user.Role)
	return updated
}

func (f *serviceFixture) transaction(t *testing.T, orderID uint, purpose workflow.PaymentPurpose) *models.Transaction {
	t.Helper()
	txn, err := f.store.FindTransactionByOrderID(context.Background(), orderID, purpose)
	require.NoError(t, err)
	return txn
}

func (f *serviceFixture) countTransactions(t *testing.T, orderID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func (f *serviceFixture) countNotifications(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&count).Error)
	return count
}

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
