package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	providerInternal = "internal"
	providerMock     = "mock"
)

// EventPublisher receives order events once their transaction has committed
type EventPublisher interface {
	Publish(event workflow.OrderTransitioned)
}

// OrderServiceDeps bundles collaborators required to construct the order service
type OrderServiceDeps struct {
	Store            Store
	Events           EventPublisher
	Logger           *zap.Logger
	Clock            func() time.Time
	PrePaymentAmount decimal.Decimal
}

// OrderService creates orders and moves them through the workflow
type OrderService struct {
	store      Store
	events     EventPublisher
	log        *zap.Logger
	clock      func() time.Time
	prePayment decimal.Decimal
}

// NewOrderService wires dependencies into an OrderService
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Store == nil {
		return nil, errors.New("order service: store is required")
	}
	if deps.PrePaymentAmount.IsNegative() {
		return nil, errors.New("order service: pre-payment amount must not be negative")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &OrderService{
		store:      deps.Store,
		events:     deps.Events,
		log:        logger,
		clock:      clock,
		prePayment: deps.PrePaymentAmount,
	}, nil
}

var orderServiceInstance *OrderService

// GetOrderService returns the order service registered at startup
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService registers the order service used by the HTTP handlers
func SetOrderService(service *OrderService) {
	orderServiceInstance = service
}

// CreateOrderCommand carries a customer's new order
type CreateOrderCommand struct {
	Customer    workflow.Actor
	ServiceType workflow.ServiceType
	AddressID   *uint
	Category    string
	Brand       string
	Model       string
	Description string
	MediaKeys   []string
}

// Create stores a new order in pending, or in waiting_pre_payment together
// with its pending pre-payment transaction when pre-payment applies.
func (s *OrderService) Create(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error) {
	if !cmd.Customer.Role.IsCustomer() || cmd.Customer.ID == 0 {
		return nil, &workflow.AuthorizationError{Role: cmd.Customer.Role, ActorID: cmd.Customer.ID}
	}

	verr := &workflow.ValidationError{Fields: map[string]string{}}
	if !cmd.ServiceType.Valid() {
		verr.Fields["service_type"] = "must be one of fix_off_site, fix_on_site, installation"
	}
	if strings.TrimSpace(cmd.Category) == "" {
		verr.Fields["category"] = "is required"
	}
	if strings.TrimSpace(cmd.Description) == "" {
		verr.Fields["description"] = "is required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	order := &models.Order{
		ServiceType: cmd.ServiceType,
		Status:      workflow.StatusPending,
		AddressID:   cmd.AddressID,
		Category:    strings.TrimSpace(cmd.Category),
		Brand:       strings.TrimSpace(cmd.Brand),
		Model:       strings.TrimSpace(cmd.Model),
		Description: strings.TrimSpace(cmd.Description),
		MediaKeys:   models.StringList(cmd.MediaKeys),
	}
	customerID := cmd.Customer.ID
	if cmd.Customer.Role == workflow.RoleCompany {
		order.CompanyID = &customerID
	} else {
		order.IndividualID = &customerID
	}

	prePay := cmd.ServiceType == workflow.ServiceFixOffSite && s.prePayment.IsPositive()
	if prePay {
		order.Status = workflow.StatusWaitingPrePayment
	}

	err := s.store.RunInTx(ctx, func(tx Store) error {
		if cmd.AddressID != nil {
			address, err := tx.FindAddressByID(ctx, *cmd.AddressID)
			if err != nil {
				return err
			}
			if address.UserID != customerID {
				return fmt.Errorf("%w: id %d", ErrAddressNotFound, *cmd.AddressID)
			}
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if !prePay {
			return nil
		}

		_, err := tx.CreateTransaction(ctx, &models.Transaction{
			Amount:     s.prePayment,
			Type:       models.TransactionDebit,
			Status:     models.TransactionPending,
			Provider:   providerInternal,
			Reason:     "pre-payment",
			Purpose:    workflow.PurposePrePayment,
			OrderID:    &order.ID,
			CustomerID: &customerID,
			SourceKey:  sourceKey(order.ID, workflow.PurposePrePayment),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("service_type", string(order.ServiceType)),
		zap.String("status", string(order.Status)),
	)

	event := s.newEvent(order, workflow.ActionCreate, "", cmd.Customer)
	if prePay {
		amount := s.prePayment
		event.Amount = &amount
		event.Reason = "pre-payment"
	}
	s.publish(event)

	return order, nil
}

// Get loads an order the actor is allowed to see, with the actions it may take on it
func (s *OrderService) Get(ctx context.Context, orderID uint, actor workflow.Actor) (*models.Order, []workflow.ActionView, error) {
	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	snapshot := order.Snapshot()
	if err := workflow.Authorize(snapshot, actor); err != nil {
		return nil, nil, err
	}
	return order, workflow.AllowedActions(snapshot, actor), nil
}

// List returns one page of the orders the actor can see, newest first
func (s *OrderService) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, &workflow.ValidationError{Fields: map[string]string{"status": "unknown status"}}
	}
	return s.store.ListOrders(ctx, filter)
}

// AllowedActions returns the actions the actor may take on the order right now
func (s *OrderService) AllowedActions(ctx context.Context, orderID uint, actor workflow.Actor) ([]workflow.ActionView, error) {
	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return workflow.AllowedActions(order.Snapshot(), actor), nil
}

// TransitionCommand requests one workflow action on one order
type TransitionCommand struct {
	OrderID uint
	Actor   workflow.Actor
	Action  workflow.Action
	Payload workflow.Payload
}

// Validate runs the guard against the order's current persisted state
func (s *OrderService) Validate(ctx context.Context, cmd TransitionCommand) (workflow.Descriptor, error) {
	order, err := s.store.FindOrderByID(ctx, cmd.OrderID)
	if err != nil {
		return workflow.Descriptor{}, err
	}
	return workflow.Validate(order.Snapshot(), workflow.Request{
		Action:  cmd.Action,
		Actor:   cmd.Actor,
		Payload: cmd.Payload,
	})
}

// Transition validates and applies one action
func (s *OrderService) Transition(ctx context.Context, cmd TransitionCommand) (*models.Order, error) {
	desc, err := s.Validate(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, desc)
}

// Apply commits a validated transition. The order must still be in the status
// and version the descriptor was validated against, otherwise a
// ConcurrentModificationError is returned and nothing is written. The event is
// published only after the commit succeeds.
func (s *OrderService) Apply(ctx context.Context, desc workflow.Descriptor) (*models.Order, error) {
	t := desc.Transition
	var updated *models.Order

	err := s.store.RunInTx(ctx, func(tx Store) error {
		order, err := tx.FindOrderByID(ctx, desc.OrderID)
		if err != nil {
			return err
		}
		if order.Status != t.From || order.Version != desc.Version {
			return &workflow.ConcurrentModificationError{
				OrderID:        order.ID,
				ExpectedStatus: t.From,
				ActualStatus:   order.Status,
			}
		}

		if t.Payload == workflow.PayloadAssignment {
			if err := checkAssignees(ctx, tx, order.ServiceType, desc.Payload); err != nil {
				return err
			}
		}

		applyPayload(order, t, desc.Payload)
		order.Status = t.To
		if t.To.RequiresTechnician() && order.TechnicianID == nil {
			return &workflow.InvalidTransitionError{OrderID: order.ID, Status: t.From, Action: t.Action}
		}

		if err := tx.SaveOrder(ctx, order, t.From, desc.Version); err != nil {
			return err
		}

		if t.Settles != "" {
			if err := s.settle(ctx, tx, order, t); err != nil {
				return err
			}
		}
		if t.Voids != "" {
			if err := void(ctx, tx, order.ID, t.Voids); err != nil {
				return err
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order transitioned",
		zap.Uint("order_id", updated.ID),
		zap.String("action", string(t.Action)),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("actor_role", string(desc.Actor.Role)),
		zap.Uint("actor_id", desc.Actor.ID),
	)

	s.publish(s.newEvent(updated, t.Action, t.From, desc.Actor))
	return updated, nil
}

// checkAssignees requires the assignment to name an existing technician and,
// off site, an existing courier
func checkAssignees(ctx context.Context, tx Store, service workflow.ServiceType, p workflow.Payload) error {
	verr := &workflow.ValidationError{Fields: map[string]string{}}

	check := func(field string, id uint, role workflow.Role, label string) error {
		user, err := tx.FindUserByID(ctx, id)
		switch {
		case errors.Is(err, ErrUserNotFound):
			verr.Fields[field] = "user does not exist"
		case err != nil:
			return err
		case user.Role != role:
			verr.Fields[field] = "must reference a " + label
		}
		return nil
	}

	if err := check("technician_id", p.TechnicianID, workflow.RoleTechnician, "technician"); err != nil {
		return err
	}
	if service == workflow.ServiceFixOffSite {
		if err := check("delivery_id", p.DeliveryID, workflow.RoleDelivery, "courier"); err != nil {
			return err
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func applyPayload(order *models.Order, t workflow.Transition, p workflow.Payload) {
	switch t.Payload {
	case workflow.PayloadAssignment:
		technicianID := p.TechnicianID
		order.TechnicianID = &technicianID
		if order.ServiceType == workflow.ServiceFixOffSite {
			deliveryID := p.DeliveryID
			order.DeliveryID = &deliveryID
		}
	case workflow.PayloadPayment:
		reason := p.Reason
		order.PaymentAmount = decimal.NewNullDecimal(*p.Amount)
		order.PaymentReason = &reason
	case workflow.PayloadReason:
		if p.Reason != "" && (t.To == workflow.StatusCancelled || t.To == workflow.StatusRepairCancelled) {
			reason := p.Reason
			order.CancelReason = &reason
		}
	}

	if t.Action == workflow.ActionRejectAssignment {
		order.TechnicianID = nil
	}
}

// settle marks the transaction named by t.Settles as paid within the
// transition's unit of work. A labor entry the dispatcher has not created yet
// is inserted already paid, under the key the dispatcher would use.
func (s *OrderService) settle(ctx context.Context, tx Store, order *models.Order, t workflow.Transition) error {
	now := s.clock()
	provider := providerInternal
	if t.Action == workflow.ActionMockPayOrder {
		provider = providerMock
	}

	txn, err := tx.FindTransactionByOrderID(ctx, order.ID, t.Settles)
	if errors.Is(err, ErrTransactionNotFound) && t.Settles == workflow.PurposeLabor && order.PaymentAmount.Valid {
		_, customerID := order.Customer()
		reason := ""
		if order.PaymentReason != nil {
			reason = *order.PaymentReason
		}
		created, createErr := tx.CreateTransaction(ctx, &models.Transaction{
			Amount:      order.PaymentAmount.Decimal,
			Type:        models.TransactionDebit,
			Status:      models.TransactionPaid,
			Provider:    provider,
			ProviderRef: uuid.NewString(),
			Reason:      reason,
			Purpose:     t.Settles,
			OrderID:     &order.ID,
			CustomerID:  &customerID,
			SourceKey:   sourceKey(order.ID, t.Settles),
			PaidAt:      &now,
		})
		if createErr != nil || created {
			return createErr
		}
		txn, err = tx.FindTransactionByOrderID(ctx, order.ID, t.Settles)
	}
	if err != nil {
		return err
	}

	if !txn.CanMoveTo(models.TransactionPaid) {
		return fmt.Errorf("%w: transaction %d is %s", ErrTransactionState, txn.ID, txn.Status)
	}
	txn.Status = models.TransactionPaid
	txn.Provider = provider
	txn.ProviderRef = uuid.NewString()
	txn.PaidAt = &now
	return tx.SaveTransaction(ctx, txn)
}

// void marks the order's pending transaction for purpose as failed. Orders
// without one, or whose entry already left pending, are left alone.
func void(ctx context.Context, tx Store, orderID uint, purpose workflow.PaymentPurpose) error {
	txn, err := tx.FindTransactionByOrderID(ctx, orderID, purpose)
	if errors.Is(err, ErrTransactionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if txn.Status != models.TransactionPending {
		return nil
	}
	txn.Status = models.TransactionFailed
	return tx.SaveTransaction(ctx, txn)
}

func (s *OrderService) newEvent(order *models.Order, action workflow.Action, from workflow.Status, actor workflow.Actor) workflow.OrderTransitioned {
	customerRole, customerID := order.Customer()
	event := workflow.OrderTransitioned{
		EventID:      uuid.New(),
		OrderID:      order.ID,
		Version:      order.Version,
		ServiceType:  order.ServiceType,
		Action:       action,
		FromStatus:   from,
		ToStatus:     order.Status,
		ActorRole:    actor.Role,
		ActorID:      actor.ID,
		CustomerRole: customerRole,
		CustomerID:   customerID,
		TechnicianID: order.TechnicianID,
		DeliveryID:   order.DeliveryID,
		OccurredAt:   s.clock(),
	}
	if order.PaymentAmount.Valid {
		amount := order.PaymentAmount.Decimal
		event.Amount = &amount
	}
	switch {
	case order.Status == workflow.StatusWaitingDecision || order.Status == workflow.StatusWaitingPayment || order.Status == workflow.StatusRepairingOffSite:
		if order.PaymentReason != nil {
			event.Reason = *order.PaymentReason
		}
	case order.CancelReason != nil:
		event.Reason = *order.CancelReason
	}
	return event
}

func (s *OrderService) publish(event workflow.OrderTransitioned) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}

func sourceKey(orderID uint, purpose workflow.PaymentPurpose) *string {
	key := fmt.Sprintf("order:%d:%s", orderID, purpose)
	return &key
}
