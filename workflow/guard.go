package workflow

import (
	"strings"

	"github.com/shopspring/decimal"
)

const maxReasonLength = 500

// MaxPaymentAmount is the largest amount a numeric(12,2) column holds
var MaxPaymentAmount = decimal.RequireFromString("9999999999.99")

// Order is the slice of persisted order state the workflow reasons about
type Order struct {
	ID           uint
	ServiceType  ServiceType
	Status       Status
	Version      uint
	IndividualID *uint
	CompanyID    *uint
	TechnicianID *uint
	DeliveryID   *uint
}

// Actor is the authenticated user requesting a transition
type Actor struct {
	Role Role
	ID   uint
}

// Payload is the optional body of a transition request
type Payload struct {
	Amount       *decimal.Decimal
	Reason       string
	TechnicianID uint
	DeliveryID   uint
}

// Request asks for one transition on one order
type Request struct {
	Action  Action
	Actor   Actor
	Payload Payload
}

// Descriptor is a validated transition, bound to the order status and version
// observed when it was checked
type Descriptor struct {
	OrderID    uint
	Transition Transition
	Version    uint
	Actor      Actor
	Payload    Payload
}

// Decision values accepted on the combined decision endpoint
const (
	DecisionApprove = "approve"
	DecisionCancel  = "cancel"
)

// ResolveDecision maps a customer decision onto its transition action
func ResolveDecision(decision string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case DecisionApprove:
		return ActionDecisionApprove, nil
	case DecisionCancel:
		return ActionDecisionCancel, nil
	}
	return "", &ValidationError{Fields: map[string]string{"decision": "must be one of approve, cancel"}}
}

// Authorize checks that the actor may act on the order at all. Customers must
// own it, technicians and couriers must be assigned to it, admins always pass.
func Authorize(order Order, actor Actor) error {
	if owns(order, actor) {
		return nil
	}
	return &AuthorizationError{OrderID: order.ID, Role: actor.Role, ActorID: actor.ID}
}

func owns(order Order, actor Actor) bool {
	if actor.ID == 0 {
		return false
	}
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleIndividual:
		return matches(order.IndividualID, actor.ID)
	case RoleCompany:
		return matches(order.CompanyID, actor.ID)
	case RoleTechnician:
		return matches(order.TechnicianID, actor.ID)
	case RoleDelivery:
		return matches(order.DeliveryID, actor.ID)
	}
	return false
}

func matches(ref *uint, id uint) bool {
	return ref != nil && *ref == id
}

// available filters declared transitions the order cannot take yet
func available(order Order, t Transition) bool {
	if t.To.RequiresTechnician() && t.Payload != PayloadAssignment && order.TechnicianID == nil {
		return false
	}
	return true
}

func find(order Order, party Party, action Action) (Transition, bool) {
	t, ok := Lookup(order.ServiceType, order.Status, party, action)
	if !ok || !available(order, t) {
		return Transition{}, false
	}
	return t, true
}

// Validate runs the authorization, transition and payload checks in that
// order and returns a descriptor the executor can apply.
func Validate(order Order, req Request) (Descriptor, error) {
	if err := Authorize(order, req.Actor); err != nil {
		return Descriptor{}, err
	}

	t, ok := find(order, req.Actor.Role.Party(), req.Action)
	if !ok {
		return Descriptor{}, &InvalidTransitionError{OrderID: order.ID, Status: order.Status, Action: req.Action}
	}

	payload, err := validatePayload(order, t, req.Payload)
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		OrderID:    order.ID,
		Transition: t,
		Version:    order.Version,
		Actor:      req.Actor,
		Payload:    payload,
	}, nil
}

// validatePayload checks the body against the transition's declared kind and
// returns only the fields that kind carries
func validatePayload(order Order, t Transition, p Payload) (Payload, error) {
	verr := &ValidationError{}
	out := Payload{}

	switch t.Payload {
	case PayloadPayment:
		switch {
		case p.Amount == nil:
			verr.add("payment_amount", "is required")
		case !p.Amount.Round(2).IsPositive():
			verr.add("payment_amount", "must be greater than zero")
		case p.Amount.Round(2).GreaterThan(MaxPaymentAmount):
			verr.add("payment_amount", "must be at most "+MaxPaymentAmount.StringFixed(2))
		default:
			amount := p.Amount.Round(2)
			out.Amount = &amount
		}
		out.Reason = strings.TrimSpace(p.Reason)
		if out.Reason == "" {
			verr.add("payment_reason", "is required")
		}

	case PayloadAssignment:
		if p.TechnicianID == 0 {
			verr.add("technician_id", "is required")
		}
		if order.ServiceType == ServiceFixOffSite {
			if p.DeliveryID == 0 {
				verr.add("delivery_id", "is required for fix_off_site orders")
			}
		} else if p.DeliveryID != 0 {
			verr.add("delivery_id", "is only allowed for fix_off_site orders")
		}
		out.TechnicianID = p.TechnicianID
		out.DeliveryID = p.DeliveryID

	case PayloadReason:
		out.Reason = strings.TrimSpace(p.Reason)
	}

	if len(out.Reason) > maxReasonLength {
		field := "reason"
		if t.Payload == PayloadPayment {
			field = "payment_reason"
		}
		verr.add(field, "must be at most 500 characters")
	}

	if err := verr.orNil(); err != nil {
		return Payload{}, err
	}
	return out, nil
}
