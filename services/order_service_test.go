package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderService(t *testing.T) {
	_, err := NewOrderService(OrderServiceDeps{})
	assert.Error(t, err, "store is required")

	db := setupServiceTestDB(t)
	_, err = NewOrderService(OrderServiceDeps{Store: NewGormStore(db), PrePaymentAmount: decimal.NewFromInt(-1)})
	assert.Error(t, err, "negative pre-payment is rejected")

	service, err := NewOrderService(OrderServiceDeps{Store: NewGormStore(db)})
	require.NoError(t, err)
	assert.NotNil(t, service.log)
	assert.NotNil(t, service.clock)
}

func TestCreateOrder(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()

	t.Run("individual owns the order", func(t *testing.T) {
		order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
		assert.Equal(t, workflow.StatusPending, order.Status)
		assert.Equal(t, uint(0), order.Version)
		require.NotNil(t, order.IndividualID)
		assert.Equal(t, f.individual.ID, *order.IndividualID)
		assert.Nil(t, order.CompanyID)
		assert.Equal(t, int64(0), f.countTransactions(t, order.ID))
	})

	t.Run("company owns the order", func(t *testing.T) {
		order := f.createOrder(t, f.company, workflow.ServiceInstallation)
		require.NotNil(t, order.CompanyID)
		assert.Equal(t, f.company.ID, *order.CompanyID)
		assert.Nil(t, order.IndividualID)
	})

	t.Run("only customers create orders", func(t *testing.T) {
		_, err := f.orders.Create(ctx, CreateOrderCommand{
			Customer:    f.technician.Actor(),
			ServiceType: workflow.ServiceFixOnSite,
			Category:    "oven",
			Description: "no heat",
		})
		var authErr *workflow.AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("payload is validated", func(t *testing.T) {
		_, err := f.orders.Create(ctx, CreateOrderCommand{
			Customer:    f.individual.Actor(),
			ServiceType: "teleport",
			Description: "  ",
		})
		var verr *workflow.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "service_type")
		assert.Contains(t, verr.Fields, "category")
		assert.Contains(t, verr.Fields, "description")
	})

	t.Run("address must belong to the customer", func(t *testing.T) {
		address := models.Address{UserID: f.company.ID, City: "Almaty", Street: "Abay 1"}
		require.NoError(t, f.db.Create(&address).Error)

		_, err := f.orders.Create(ctx, CreateOrderCommand{
			Customer:    f.individual.Actor(),
			ServiceType: workflow.ServiceFixOnSite,
			AddressID:   &address.ID,
			Category:    "fridge",
			Description: "leaking",
		})
		assert.ErrorIs(t, err, ErrAddressNotFound)

		order, err := f.orders.Create(ctx, CreateOrderCommand{
			Customer:    f.company.Actor(),
			ServiceType: workflow.ServiceFixOnSite,
			AddressID:   &address.ID,
			Category:    "fridge",
			Description: "leaking",
			MediaKeys:   []string{"orders/2/a.png"},
		})
		require.NoError(t, err)
		assert.Equal(t, models.StringList{"orders/2/a.png"}, order.MediaKeys)
	})
}

func TestCreateOrderWithPrePayment(t *testing.T) {
	f := newServiceFixture(t, "20")

	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
	assert.Equal(t, workflow.StatusWaitingPrePayment, order.Status)

	txn := f.transaction(t, order.ID, workflow.PurposePrePayment)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, models.TransactionPending, txn.Status)
	assert.Equal(t, models.TransactionDebit, txn.Type)

	onSite := f.createOrder(t, f.individual, workflow.ServiceFixOnSite)
	assert.Equal(t, workflow.StatusPending, onSite.Status, "pre-payment applies to fix_off_site only")
	assert.Equal(t, int64(0), f.countTransactions(t, onSite.ID))

	events := f.events.Events()
	require.Len(t, events, 2)
	assert.True(t, events[0].Created())
	require.NotNil(t, events[0].Amount)
	assert.Equal(t, "20.00", events[0].Amount.StringFixed(2))
}

func TestOffSiteRepairLifecycle(t *testing.T) {
	f := newServiceFixture(t, "20")
	none := workflow.Payload{}

	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
	order = f.step(t, order, f.individual, workflow.ActionMockPayOrder, none)
	assert.Equal(t, workflow.StatusPending, order.Status)

	prePayment := f.transaction(t, order.ID, workflow.PurposePrePayment)
	assert.Equal(t, models.TransactionPaid, prePayment.Status)
	assert.Equal(t, providerMock, prePayment.Provider)
	assert.NotEmpty(t, prePayment.ProviderRef)
	assert.NotNil(t, prePayment.PaidAt)

	order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID, DeliveryID: f.courier.ID})
	require.NotNil(t, order.TechnicianID)
	require.NotNil(t, order.DeliveryID)
	assert.Equal(t, f.technician.ID, *order.TechnicianID)
	assert.Equal(t, f.courier.ID, *order.DeliveryID)

	order = f.step(t, order, f.courier, workflow.ActionPickupStarted, none)
	order = f.step(t, order, f.courier, workflow.ActionPickedUp, none)
	order = f.step(t, order, f.individual, workflow.ActionToTechnician, none)
	order = f.step(t, order, f.courier, workflow.ActionDeliveredToTechnician, none)
	order = f.step(t, order, f.technician, workflow.ActionInspection, none)
	order = f.step(t, order, f.technician, workflow.ActionWaitingDecision, workflow.Payload{Amount: money("150.00"), Reason: "replace motor"})
	assert.Equal(t, workflow.StatusWaitingDecision, order.Status)
	require.True(t, order.PaymentAmount.Valid)
	assert.True(t, order.PaymentAmount.Decimal.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, order.PaymentReason)
	assert.Equal(t, "replace motor", *order.PaymentReason)

	order = f.step(t, order, f.individual, workflow.ActionDecisionApprove, none)
	assert.Equal(t, workflow.StatusRepairingOffSite, order.Status)

	repair := f.transaction(t, order.ID, workflow.PurposeRepair)
	assert.Equal(t, models.TransactionPending, repair.Status)
	assert.True(t, repair.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "replace motor", repair.Reason)
	require.NotNil(t, repair.CustomerID)
	assert.Equal(t, f.individual.ID, *repair.CustomerID)

	order = f.step(t, order, f.technician, workflow.ActionRepairCompleted, none)
	order = f.step(t, order, f.courier, workflow.ActionReturnStarted, none)
	order = f.step(t, order, f.courier, workflow.ActionReturned, none)
	order = f.step(t, order, f.individual, workflow.ActionComplete, none)

	assert.Equal(t, workflow.StatusCompleted, order.Status)
	assert.Equal(t, uint(13), order.Version)
	assert.Equal(t, int64(2), f.countTransactions(t, order.ID))

	stored, err := f.store.FindOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, stored.Status)
	assert.Equal(t, uint(13), stored.Version)

	events := f.events.Events()
	require.Len(t, events, 14)
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].ToStatus, events[i].FromStatus, "events are published in commit order")
		assert.Equal(t, uint(i), events[i].Version)
	}

	customerNotes, err := f.notifications.ListForRecipient(context.Background(), string(workflow.RoleIndividual), f.individual.ID, false)
	require.NoError(t, err)
	paymentRequests := 0
	for _, n := range customerNotes {
		if n.Type == models.NotificationPaymentRequested {
			paymentRequests++
		}
	}
	assert.Equal(t, 2, paymentRequests, "pre-payment and repair decision")

	t.Run("re-handling every event writes nothing", func(t *testing.T) {
		notifications := f.countNotifications(t)
		transactions := f.countTransactions(t, order.ID)
		for _, event := range events {
			require.NoError(t, f.dispatcher.Handle(context.Background(), event))
		}
		assert.Equal(t, notifications, f.countNotifications(t))
		assert.Equal(t, transactions, f.countTransactions(t, order.ID))
	})

	t.Run("terminal order accepts nothing", func(t *testing.T) {
		_, err := f.orders.Transition(context.Background(), TransitionCommand{
			OrderID: order.ID,
			Actor:   f.admin.Actor(),
			Action:  workflow.ActionCancel,
		})
		var invalid *workflow.InvalidTransitionError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestOffSiteBrokenReturn(t *testing.T) {
	f := newServiceFixture(t, "0")
	none := workflow.Payload{}

	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
	order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID, DeliveryID: f.courier.ID})
	order = f.step(t, order, f.courier, workflow.ActionPickupStarted, none)
	order = f.step(t, order, f.courier, workflow.ActionPickedUp, none)
	order = f.step(t, order, f.individual, workflow.ActionToTechnician, none)
	order = f.step(t, order, f.courier, workflow.ActionDeliveredToTechnician, none)
	order = f.step(t, order, f.technician, workflow.ActionInspection, none)
	order = f.step(t, order, f.technician, workflow.ActionWaitingDecision, workflow.Payload{Amount: money("200"), Reason: "control board"})
	order = f.step(t, order, f.individual, workflow.ActionDecisionCancel, workflow.Payload{Reason: "too expensive"})

	assert.Equal(t, workflow.StatusRepairCancelled, order.Status)
	require.NotNil(t, order.CancelReason)
	assert.Equal(t, "too expensive", *order.CancelReason)

	order = f.step(t, order, f.courier, workflow.ActionReturnBrokenStarted, none)
	order = f.step(t, order, f.courier, workflow.ActionReturnedBroken, none)
	order = f.step(t, order, f.individual, workflow.ActionAcceptBrokenReturn, none)

	assert.Equal(t, workflow.StatusCancelled, order.Status)
	assert.Equal(t, int64(0), f.countTransactions(t, order.ID), "a declined repair is never charged")

	courierNotes, err := f.notifications.ListForRecipient(context.Background(), string(workflow.RoleDelivery), f.courier.ID, false)
	require.NoError(t, err)
	deliveries := 0
	for _, n := range courierNotes {
		if n.Type == models.NotificationDeliveryRequested {
			deliveries++
		}
	}
	assert.Equal(t, 2, deliveries, "to_technician and repair_cancelled")
}

func TestOnSiteRepairLifecycle(t *testing.T) {
	f := newServiceFixture(t, "20")
	none := workflow.Payload{}

	order := f.createOrder(t, f.company, workflow.ServiceFixOnSite)
	order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID})
	assert.Nil(t, order.DeliveryID)

	order = f.step(t, order, f.technician, workflow.ActionTechnicianComing, none)
	order = f.step(t, order, f.technician, workflow.ActionRepairingOnSite, none)
	order = f.step(t, order, f.technician, workflow.ActionWaitingPayment, workflow.Payload{Amount: money("80"), Reason: "labor"})

	labor := f.transaction(t, order.ID, workflow.PurposeLabor)
	assert.Equal(t, models.TransactionPending, labor.Status)
	assert.True(t, labor.Amount.Equal(decimal.NewFromInt(80)))

	order = f.step(t, order, f.company, workflow.ActionCompletedOnSite, none)
	assert.Equal(t, workflow.StatusCompletedOnSiteRepairing, order.Status)

	labor = f.transaction(t, order.ID, workflow.PurposeLabor)
	assert.Equal(t, models.TransactionPaid, labor.Status)
	assert.Equal(t, providerInternal, labor.Provider)
	assert.NotNil(t, labor.PaidAt)
	assert.Equal(t, int64(1), f.countTransactions(t, order.ID))
}

func TestInstallationSettlesBeforeDispatch(t *testing.T) {
	f := newServiceFixture(t, "0")
	f.events.handle = nil
	none := workflow.Payload{}

	order := f.createOrder(t, f.individual, workflow.ServiceInstallation)
	order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID})
	order = f.step(t, order, f.technician, workflow.ActionTechnicianComing, none)
	order = f.step(t, order, f.technician, workflow.ActionInstalling, none)
	order = f.step(t, order, f.technician, workflow.ActionWaitingPayment, workflow.Payload{Amount: money("60"), Reason: "mounting"})
	assert.Equal(t, int64(0), f.countTransactions(t, order.ID), "dispatcher has not run")

	order = f.step(t, order, f.individual, workflow.ActionCompletedOnSite, none)
	assert.Equal(t, workflow.StatusCompletedOnSiteInstallation, order.Status)

	labor := f.transaction(t, order.ID, workflow.PurposeLabor)
	assert.Equal(t, models.TransactionPaid, labor.Status)
	assert.True(t, labor.Amount.Equal(decimal.NewFromInt(60)))
	require.NotNil(t, labor.SourceKey)

	// the late dispatcher run finds the entry already written
	for _, event := range f.events.Events() {
		require.NoError(t, f.dispatcher.Handle(context.Background(), event))
	}
	assert.Equal(t, int64(1), f.countTransactions(t, order.ID))
	labor = f.transaction(t, order.ID, workflow.PurposeLabor)
	assert.Equal(t, models.TransactionPaid, labor.Status)
}

func TestRejectAssignmentAndReassign(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()
	other := createTestUser(t, f.db, "technician2", workflow.RoleTechnician)

	order := f.createOrder(t, f.individual, workflow.ServiceFixOnSite)
	order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID})
	order = f.step(t, order, f.technician, workflow.ActionRejectAssignment, workflow.Payload{Reason: "fully booked"})

	assert.Equal(t, workflow.StatusAssignmentRejected, order.Status)
	assert.Nil(t, order.TechnicianID)
	assert.Nil(t, order.CancelReason)

	_, _, err := f.orders.Get(ctx, order.ID, f.technician.Actor())
	var authErr *workflow.AuthorizationError
	assert.ErrorAs(t, err, &authErr, "the rejecting technician loses access")

	order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: other.ID})
	assert.Equal(t, workflow.StatusAssigned, order.Status)
	require.NotNil(t, order.TechnicianID)
	assert.Equal(t, other.ID, *order.TechnicianID)
}

func TestCancelFromPending(t *testing.T) {
	f := newServiceFixture(t, "0")

	order := f.createOrder(t, f.individual, workflow.ServiceFixOnSite)
	order = f.step(t, order, f.individual, workflow.ActionCancel, workflow.Payload{Reason: "found another shop"})

	assert.Equal(t, workflow.StatusCancelled, order.Status)
	require.NotNil(t, order.CancelReason)
	assert.Equal(t, "found another shop", *order.CancelReason)

	events := f.events.Events()
	last := events[len(events)-1]
	assert.Equal(t, "found another shop", last.Reason)
	assert.Equal(t, workflow.RoleIndividual, last.ActorRole)
}

func TestCancelBeforePrePaymentVoidsIt(t *testing.T) {
	f := newServiceFixture(t, "25")

	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
	require.Equal(t, workflow.StatusWaitingPrePayment, order.Status)
	assert.Equal(t, models.TransactionPending, f.transaction(t, order.ID, workflow.PurposePrePayment).Status)

	order = f.step(t, order, f.individual, workflow.ActionCancel, workflow.Payload{Reason: "changed my mind"})
	assert.Equal(t, workflow.StatusCancelled, order.Status)

	prePayment := f.transaction(t, order.ID, workflow.PurposePrePayment)
	assert.Equal(t, models.TransactionFailed, prePayment.Status)
	assert.Nil(t, prePayment.PaidAt)
	assert.Equal(t, int64(1), f.countTransactions(t, order.ID))
}

func TestAssignRequiresStaffUsers(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()

	tests := []struct {
		name      string
		service   workflow.ServiceType
		payload   workflow.Payload
		badFields map[string]string
	}{
		{
			name:      "customer as technician, missing courier",
			service:   workflow.ServiceFixOffSite,
			payload:   workflow.Payload{TechnicianID: f.individual.ID, DeliveryID: 9999},
			badFields: map[string]string{"technician_id": "must reference a technician", "delivery_id": "user does not exist"},
		},
		{
			name:      "technician as courier",
			service:   workflow.ServiceFixOffSite,
			payload:   workflow.Payload{TechnicianID: f.technician.ID, DeliveryID: f.technician.ID},
			badFields: map[string]string{"delivery_id": "must reference a courier"},
		},
		{
			name:      "courier as technician on site",
			service:   workflow.ServiceFixOnSite,
			payload:   workflow.Payload{TechnicianID: f.courier.ID},
			badFields: map[string]string{"technician_id": "must reference a technician"},
		},
		{
			name:      "unknown technician",
			service:   workflow.ServiceInstallation,
			payload:   workflow.Payload{TechnicianID: 9999},
			badFields: map[string]string{"technician_id": "user does not exist"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := f.createOrder(t, f.individual, tt.service)
			published := len(f.events.Events())

			_, err := f.orders.Transition(ctx, TransitionCommand{
				OrderID: order.ID,
				Actor:   f.admin.Actor(),
				Action:  workflow.ActionAssign,
				Payload: tt.payload,
			})
			var verr *workflow.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.badFields, verr.Fields)

			stored, err := f.store.FindOrderByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, workflow.StatusPending, stored.Status)
			assert.Equal(t, order.Version, stored.Version)
			assert.Nil(t, stored.TechnicianID)
			assert.Nil(t, stored.DeliveryID)
			assert.Len(t, f.events.Events(), published, "a rejected assignment publishes nothing")
		})
	}

	t.Run("staff assignment still works", func(t *testing.T) {
		order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
		order = f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID, DeliveryID: f.courier.ID})
		order = f.step(t, order, f.courier, workflow.ActionPickupStarted, workflow.Payload{})
		assert.Equal(t, workflow.StatusPickupStarted, order.Status)
	})
}

func TestConcurrentTransitionsOnlyOneWins(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()
	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)

	byAdmin, err := f.orders.Validate(ctx, TransitionCommand{OrderID: order.ID, Actor: f.admin.Actor(), Action: workflow.ActionCancel})
	require.NoError(t, err)
	byCustomer, err := f.orders.Validate(ctx, TransitionCommand{OrderID: order.ID, Actor: f.individual.Actor(), Action: workflow.ActionCancel})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, desc := range []workflow.Descriptor{byAdmin, byCustomer} {
		wg.Add(1)
		go func(i int, desc workflow.Descriptor) {
			defer wg.Done()
			_, errs[i] = f.orders.Apply(ctx, desc)
		}(i, desc)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		var conflict *workflow.ConcurrentModificationError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &conflict):
			conflicted++
			assert.Equal(t, workflow.StatusPending, conflict.ExpectedStatus)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	stored, err := f.store.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), stored.Version)
	assert.Len(t, f.events.Events(), 2, "the losing transition publishes nothing")
}

func TestStaleDescriptorIsRejected(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()
	order := f.createOrder(t, f.individual, workflow.ServiceFixOnSite)

	stale, err := f.orders.Validate(ctx, TransitionCommand{OrderID: order.ID, Actor: f.individual.Actor(), Action: workflow.ActionCancel})
	require.NoError(t, err)

	f.step(t, order, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID})

	_, err = f.orders.Apply(ctx, stale)
	var conflict *workflow.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, workflow.StatusAssigned, conflict.ActualStatus)

	stored, err := f.store.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusAssigned, stored.Status)
}

func TestSaveOrderChecksVersion(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()
	order := f.createOrder(t, f.individual, workflow.ServiceFixOnSite)

	order.Status = workflow.StatusCancelled
	err := f.store.SaveOrder(ctx, order, workflow.StatusPending, 5)
	var conflict *workflow.ConcurrentModificationError
	require.ErrorAs(t, err, &conflict)

	require.NoError(t, f.store.SaveOrder(ctx, order, workflow.StatusPending, 0))
	assert.Equal(t, uint(1), order.Version)
}

// failingStore fails SaveTransaction inside every unit of work
type failingStore struct {
	Store
	err error
}

func (s *failingStore) SaveTransaction(context.Context, *models.Transaction) error {
	return s.err
}

func (s *failingStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Store.RunInTx(ctx, func(tx Store) error {
		return fn(&failingStore{Store: tx, err: s.err})
	})
}

func TestSettlementFailureRollsBackTransition(t *testing.T) {
	f := newServiceFixture(t, "20")
	ctx := context.Background()
	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)

	boom := errors.New("ledger unavailable")
	broken, err := NewOrderService(OrderServiceDeps{
		Store:            &failingStore{Store: f.store, err: boom},
		Events:           f.events,
		PrePaymentAmount: decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	published := len(f.events.Events())

	_, err = broken.Transition(ctx, TransitionCommand{OrderID: order.ID, Actor: f.individual.Actor(), Action: workflow.ActionMockPayOrder})
	require.ErrorIs(t, err, boom)

	stored, err := f.store.FindOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusWaitingPrePayment, stored.Status, "status change is rolled back with the payment")
	assert.Equal(t, uint(0), stored.Version)
	assert.Equal(t, models.TransactionPending, f.transaction(t, order.ID, workflow.PurposePrePayment).Status)
	assert.Len(t, f.events.Events(), published, "nothing is published for a rolled back transition")
}

func TestSettleRejectsPaidTransaction(t *testing.T) {
	f := newServiceFixture(t, "20")
	ctx := context.Background()
	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)

	txn := f.transaction(t, order.ID, workflow.PurposePrePayment)
	txn.Status = models.TransactionPaid
	require.NoError(t, f.store.SaveTransaction(ctx, txn))

	_, err := f.orders.Transition(ctx, TransitionCommand{OrderID: order.ID, Actor: f.individual.Actor(), Action: workflow.ActionMockPayOrder})
	assert.ErrorIs(t, err, ErrTransactionState)
}

func TestGetOrder(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()
	order := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)

	got, actions, err := f.orders.Get(ctx, order.ID, f.individual.Actor())
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	require.Len(t, actions, 1)
	assert.Equal(t, workflow.ActionCancel, actions[0].Key)

	_, _, err = f.orders.Get(ctx, order.ID, f.company.Actor())
	var authErr *workflow.AuthorizationError
	assert.ErrorAs(t, err, &authErr)

	_, _, err = f.orders.Get(ctx, 9999, f.admin.Actor())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	views, err := f.orders.AllowedActions(ctx, order.ID, f.technician.Actor())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestListOrders(t *testing.T) {
	f := newServiceFixture(t, "0")
	ctx := context.Background()

	first := f.createOrder(t, f.individual, workflow.ServiceFixOffSite)
	f.createOrder(t, f.individual, workflow.ServiceFixOnSite)
	f.createOrder(t, f.company, workflow.ServiceInstallation)
	f.step(t, first, f.admin, workflow.ActionAssign, workflow.Payload{TechnicianID: f.technician.ID, DeliveryID: f.courier.ID})

	tests := []struct {
		name   string
		filter OrderFilter
		total  int64
		count  int
	}{
		{"admin sees everything", OrderFilter{Actor: f.admin.Actor()}, 3, 3},
		{"individual sees own", OrderFilter{Actor: f.individual.Actor()}, 2, 2},
		{"company sees own", OrderFilter{Actor: f.company.Actor()}, 1, 1},
		{"technician sees assigned", OrderFilter{Actor: f.technician.Actor()}, 1, 1},
		{"courier sees assigned", OrderFilter{Actor: f.courier.Actor()}, 1, 1},
		{"status filter", OrderFilter{Actor: f.admin.Actor(), Status: workflow.StatusPending}, 2, 2},
		{"paged", OrderFilter{Actor: f.admin.Actor(), Offset: 2, Limit: 2}, 3, 1},
		{"unknown role", OrderFilter{Actor: workflow.Actor{Role: "guest", ID: 1}}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, total, err := f.orders.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			assert.Len(t, orders, tt.count)
		})
	}

	_, _, err := f.orders.List(ctx, OrderFilter{Actor: f.admin.Actor(), Status: "done"})
	var verr *workflow.ValidationError
	assert.ErrorAs(t, err, &verr)
}
