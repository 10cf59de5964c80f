package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// AuthorizationError means the actor is not entitled to act on the order
type AuthorizationError struct {
	OrderID uint
	Role    Role
	ActorID uint
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("workflow: %s %d is not allowed to act on order %d", e.Role, e.ActorID, e.OrderID)
}

// InvalidTransitionError means no transition is declared for the request
type InvalidTransitionError struct {
	OrderID uint
	Status  Status
	Action  Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow: action %q is not allowed for order %d in status %q", e.Action, e.OrderID, e.Status)
}

// ValidationError carries field-level payload problems
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "workflow: invalid payload (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConcurrentModificationError means the order changed between validation and commit.
// Callers may re-read the order and retry.
type ConcurrentModificationError struct {
	OrderID        uint
	ExpectedStatus Status
	ActualStatus   Status
}

func (e *ConcurrentModificationError) Error() string {
	if e.ActualStatus == "" {
		return fmt.Sprintf("workflow: order %d changed concurrently (expected status %q)", e.OrderID, e.ExpectedStatus)
	}
	return fmt.Sprintf("workflow: order %d changed concurrently (expected status %q, found %q)", e.OrderID, e.ExpectedStatus, e.ActualStatus)
}
