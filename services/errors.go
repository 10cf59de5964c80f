package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
)

var (
	// ErrOrderNotFound indicates the order could not be located
	ErrOrderNotFound = errors.New("order: not found")
	// ErrAddressNotFound indicates the referenced address does not exist or belongs to someone else
	ErrAddressNotFound = errors.New("order: address not found")
	// ErrUserNotFound indicates no active user has the id
	ErrUserNotFound = errors.New("user: not found")
	// ErrTransactionNotFound indicates no ledger entry is linked to the order for the purpose
	ErrTransactionNotFound = errors.New("transaction: not found")
	// ErrTransactionState indicates the ledger entry cannot move to the requested status
	ErrTransactionState = errors.New("transaction: invalid status change")
	// ErrNotificationNotFound indicates the notification does not exist for the recipient
	ErrNotificationNotFound = errors.New("notification: not found")
)

// DispatchFailure records a side effect that failed after its transition was committed.
// It is logged, never returned to the caller of the transition.
type DispatchFailure struct {
	EventID  uuid.UUID
	OrderID  uint
	ToStatus workflow.Status
	Err      error
}

func (e *DispatchFailure) Error() string {
	return fmt.Sprintf("dispatch: side effects for order %d (%s) failed: %v", e.OrderID, e.ToStatus, e.Err)
}

func (e *DispatchFailure) Unwrap() error {
	return e.Err
}
