package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"go.uber.org/zap"
)

const broadcastRecipient = "all"

// Notifier stores notifications for the dispatcher
type Notifier interface {
	Send(ctx context.Context, req NotificationRequest) (bool, error)
}

// LedgerWriter records the transactions order transitions create
type LedgerWriter interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) (bool, error)
}

// Dispatcher turns committed order events into notifications and ledger
// entries. Handling the same event twice writes nothing new.
type Dispatcher struct {
	notifier Notifier
	ledger   LedgerWriter
	log      *zap.Logger

	mu      sync.RWMutex
	queue   chan workflow.OrderTransitioned
	closed  bool
	workers sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a buffered queue of queueSize events
func NewDispatcher(notifier Notifier, ledger LedgerWriter, logger *zap.Logger, queueSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		notifier: notifier,
		ledger:   ledger,
		log:      logger,
		queue:    make(chan workflow.OrderTransitioned, queueSize),
	}
}

// Start launches the queue worker. Events published before Start wait in the queue.
func (d *Dispatcher) Start() {
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for event := range d.queue {
			d.handleLogged(context.Background(), event)
		}
	}()
}

// Publish enqueues the event without blocking. When the queue is full the
// event is handled on its own goroutine; once the dispatcher is closed it is
// handled before Publish returns.
func (d *Dispatcher) Publish(event workflow.OrderTransitioned) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.handleLogged(context.Background(), event)
		return
	}
	defer d.mu.RUnlock()

	select {
	case d.queue <- event:
		return
	default:
		d.log.Warn("dispatch queue full, handling event inline",
			zap.Uint("order_id", event.OrderID),
			zap.String("to", string(event.ToStatus)),
		)
	}

	// Close cannot start waiting while the read lock is held
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		d.handleLogged(context.Background(), event)
	}()
}

// Close stops accepting queued events and waits for in-flight ones, or for ctx
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handleLogged(ctx context.Context, event workflow.OrderTransitioned) {
	if err := d.Handle(ctx, event); err != nil {
		failure := &DispatchFailure{EventID: event.EventID, OrderID: event.OrderID, ToStatus: event.ToStatus, Err: err}
		d.log.Error("order side effects failed",
			zap.String("event_id", event.EventID.String()),
			zap.Uint("order_id", event.OrderID),
			zap.String("to", string(event.ToStatus)),
			zap.Error(failure),
		)
	}
}

// Handle applies every side effect of the event. Each write is keyed so a
// repeated event is a no-op; all failures are collected and returned together.
func (d *Dispatcher) Handle(ctx context.Context, event workflow.OrderTransitioned) error {
	var errs []error

	for _, txn := range ledgerEntries(event) {
		if d.ledger == nil {
			break
		}
		if _, err := d.ledger.CreateTransaction(ctx, txn); err != nil {
			errs = append(errs, fmt.Errorf("transaction %s: %w", *txn.SourceKey, err))
		}
	}

	for _, req := range notificationsFor(event) {
		if d.notifier == nil {
			break
		}
		if _, err := d.notifier.Send(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("notification %s: %w", req.DedupeKey, err))
		}
	}

	return errors.Join(errs...)
}

func ledgerEntries(event workflow.OrderTransitioned) []*models.Transaction {
	var purpose workflow.PaymentPurpose
	switch event.ToStatus {
	case workflow.StatusRepairingOffSite:
		purpose = workflow.PurposeRepair
	case workflow.StatusWaitingPayment:
		purpose = workflow.PurposeLabor
	default:
		return nil
	}
	if event.Amount == nil {
		return nil
	}

	orderID := event.OrderID
	customerID := event.CustomerID
	return []*models.Transaction{{
		Amount:     *event.Amount,
		Type:       models.TransactionDebit,
		Status:     models.TransactionPending,
		Provider:   providerInternal,
		Reason:     event.Reason,
		Purpose:    purpose,
		OrderID:    &orderID,
		CustomerID: &customerID,
		SourceKey:  sourceKey(orderID, purpose),
	}}
}

func notificationsFor(event workflow.OrderTransitioned) []NotificationRequest {
	data := map[string]any{
		"order_id":     event.OrderID,
		"service_type": string(event.ServiceType),
		"action":       string(event.Action),
		"from_status":  string(event.FromStatus),
		"to_status":    string(event.ToStatus),
	}
	if event.Amount != nil {
		data["amount"] = event.Amount.StringFixed(2)
	}
	if event.Reason != "" {
		data["reason"] = event.Reason
	}

	var out []NotificationRequest
	add := func(typ, message, role string, userID *uint) {
		out = append(out, NotificationRequest{
			Message:   message,
			Type:      typ,
			ForRole:   role,
			ForUserID: userID,
			Data:      data,
			DedupeKey: dedupeKey(event, role, userID),
		})
	}

	if event.Created() {
		add(models.NotificationNewOrder,
			fmt.Sprintf("New %s order #%d", event.ServiceType, event.OrderID),
			string(workflow.RoleAdmin), nil)
	} else {
		add(models.NotificationOrderUpdated,
			fmt.Sprintf("Order #%d moved from %s to %s", event.OrderID, event.FromStatus, event.ToStatus),
			string(workflow.RoleAdmin), nil)
	}

	customerID := event.CustomerID
	switch {
	case event.ToStatus == workflow.StatusWaitingDecision || event.ToStatus == workflow.StatusWaitingPayment || event.ToStatus == workflow.StatusWaitingPrePayment:
		add(models.NotificationPaymentRequested,
			fmt.Sprintf("Order #%d requires payment of %s: %s", event.OrderID, data["amount"], event.Reason),
			string(event.CustomerRole), &customerID)
	case !event.Created() && event.ActorRole.Party() != workflow.PartyCustomer:
		add(models.NotificationOrderStatus,
			fmt.Sprintf("Your order #%d is now %s", event.OrderID, event.ToStatus),
			string(event.CustomerRole), &customerID)
	}

	if event.ToStatus == workflow.StatusAssigned {
		if event.TechnicianID != nil {
			add(models.NotificationNewOrder,
				fmt.Sprintf("Order #%d has been assigned to you", event.OrderID),
				string(workflow.RoleTechnician), event.TechnicianID)
		}
		if event.DeliveryID != nil {
			add(models.NotificationNewOrder,
				fmt.Sprintf("Order #%d needs a pickup", event.OrderID),
				string(workflow.RoleDelivery), event.DeliveryID)
		}
	} else if !event.Created() && event.TechnicianID != nil && event.ActorRole.Party() != workflow.PartyTechnician {
		add(models.NotificationOrderStatus,
			fmt.Sprintf("Order #%d is now %s", event.OrderID, event.ToStatus),
			string(workflow.RoleTechnician), event.TechnicianID)
	}

	switch event.ToStatus {
	case workflow.StatusToTechnician, workflow.StatusRepairCompleted, workflow.StatusRepairCancelled:
		if event.DeliveryID != nil {
			add(models.NotificationDeliveryRequested,
				fmt.Sprintf("Order #%d is ready for delivery (%s)", event.OrderID, event.ToStatus),
				string(workflow.RoleDelivery), event.DeliveryID)
		}
	}

	return out
}

// dedupeKey identifies one notification of one transition for one recipient.
// The order version separates repeated visits to the same status.
func dedupeKey(event workflow.OrderTransitioned, role string, userID *uint) string {
	recipient := broadcastRecipient
	if userID != nil {
		recipient = fmt.Sprintf("%d", *userID)
	}
	return fmt.Sprintf("order:%d:v%d:%s:%s:%s", event.OrderID, event.Version, event.ToStatus, role, recipient)
}
