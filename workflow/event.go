package workflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderTransitioned is emitted after a status change has been committed.
// FromStatus is empty for newly created orders.
type OrderTransitioned struct {
	EventID      uuid.UUID
	OrderID      uint
	Version      uint
	ServiceType  ServiceType
	Action       Action
	FromStatus   Status
	ToStatus     Status
	ActorRole    Role
	ActorID      uint
	CustomerRole Role
	CustomerID   uint
	TechnicianID *uint
	DeliveryID   *uint
	Amount       *decimal.Decimal
	Reason       string
	OccurredAt   time.Time
}

// Created reports whether the event records order creation
func (e OrderTransitioned) Created() bool {
	return e.FromStatus == ""
}
