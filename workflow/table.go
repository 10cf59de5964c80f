package workflow

import (
	"strings"
	"unicode"
)

// Action identifies a transition a caller may request
type Action string

const (
	ActionAssign                Action = "assign"
	ActionCancel                Action = "cancel"
	ActionMockPayOrder          Action = "mockPayOrder"
	ActionRejectAssignment      Action = "rejectAssignment"
	ActionPickupStarted         Action = "pickupStarted"
	ActionPickedUp              Action = "pickedUp"
	ActionToTechnician          Action = "toTechnician"
	ActionDeliveredToTechnician Action = "deliveredToTechnician"
	ActionInspection            Action = "inspection"
	ActionWaitingDecision       Action = "waitingDecision"
	ActionDecisionApprove       Action = "decisionApprove"
	ActionDecisionCancel        Action = "decisionCancel"
	ActionRepairCompleted       Action = "repairCompleted"
	ActionReturnStarted         Action = "returnStarted"
	ActionReturned              Action = "returned"
	ActionComplete              Action = "complete"
	ActionReturnBrokenStarted   Action = "returnBrokenStarted"
	ActionReturnedBroken        Action = "returnedBroken"
	ActionAcceptBrokenReturn    Action = "acceptBrokenReturn"
	ActionTechnicianComing      Action = "technicianComing"
	ActionRepairingOnSite       Action = "repairingOnSite"
	ActionInstalling            Action = "installing"
	ActionWaitingPayment        Action = "waitingPayment"
	ActionCompletedOnSite       Action = "completedOnSite"

	// ActionCreate is only ever reported on events, never requested
	ActionCreate Action = "create"
)

// Slug renders the action as the kebab-case path segment used by the HTTP API
func (a Action) Slug() string {
	var b strings.Builder
	for i, r := range string(a) {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ActionFromSlug resolves a kebab-case path segment back to an action key
func ActionFromSlug(slug string) (Action, bool) {
	a, ok := actionsBySlug[slug]
	return a, ok
}

// PayloadKind describes the body a transition requires
type PayloadKind string

const (
	PayloadNone       PayloadKind = "none"
	PayloadAssignment PayloadKind = "assignment"
	PayloadPayment    PayloadKind = "payment"
	PayloadReason     PayloadKind = "reason"
)

// PaymentPurpose tags the ledger entry an order transition creates or settles
type PaymentPurpose string

const (
	PurposePrePayment PaymentPurpose = "pre_payment"
	PurposeRepair     PaymentPurpose = "repair"
	PurposeLabor      PaymentPurpose = "labor"
)

// Transition is one declared edge of an order's status graph
type Transition struct {
	Action  Action
	Label   string
	Service ServiceType
	From    Status
	To      Status
	Party   Party
	Payload PayloadKind
	// Settles names the pending transaction that must be marked paid in the
	// same unit of work as the status change.
	Settles PaymentPurpose
	// Voids names the pending transaction that must be marked failed in the
	// same unit of work as the status change.
	Voids PaymentPurpose
}

type tableKey struct {
	service ServiceType
	status  Status
}

type rule struct {
	services []ServiceType
	from     []Status
	party    Party
	action   Action
	label    string
	to       Status
	payload  PayloadKind
	settles  PaymentPurpose
}

var (
	allServices = ServiceTypes
	offSite     = []ServiceType{ServiceFixOffSite}
	onSite      = []ServiceType{ServiceFixOnSite}
	install     = []ServiceType{ServiceInstallation}
)

func from(statuses ...Status) []Status { return statuses }

var rules = []rule{
	// admin
	{allServices, from(StatusPending, StatusAssignmentRejected), PartyAdmin, ActionAssign, "Assign", StatusAssigned, PayloadAssignment, ""},
	{allServices, from(StatusPending, StatusAssigned, StatusAssignmentRejected), PartyAdmin, ActionCancel, "Cancel order", StatusCancelled, PayloadReason, ""},
	{offSite, from(StatusWaitingPrePayment), PartyAdmin, ActionCancel, "Cancel order", StatusCancelled, PayloadReason, ""},

	// customer, shared
	{allServices, from(StatusPending), PartyCustomer, ActionCancel, "Cancel order", StatusCancelled, PayloadReason, ""},

	// technician, shared
	{allServices, from(StatusAssigned), PartyTechnician, ActionRejectAssignment, "Reject assignment", StatusAssignmentRejected, PayloadReason, ""},

	// fix_off_site
	{offSite, from(StatusWaitingPrePayment), PartyCustomer, ActionCancel, "Cancel order", StatusCancelled, PayloadReason, ""},
	{offSite, from(StatusWaitingPrePayment), PartyCustomer, ActionMockPayOrder, "Pay", StatusPending, PayloadNone, PurposePrePayment},
	{offSite, from(StatusAssigned), PartyDelivery, ActionPickupStarted, "Start pickup", StatusPickupStarted, PayloadNone, ""},
	{offSite, from(StatusPickupStarted), PartyDelivery, ActionPickedUp, "Picked up", StatusPickedUp, PayloadNone, ""},
	{offSite, from(StatusPickedUp), PartyCustomer, ActionToTechnician, "Confirm handover", StatusToTechnician, PayloadNone, ""},
	{offSite, from(StatusToTechnician), PartyDelivery, ActionDeliveredToTechnician, "Delivered to technician", StatusDeliveredToTechnician, PayloadNone, ""},
	{offSite, from(StatusDeliveredToTechnician), PartyTechnician, ActionInspection, "Start inspection", StatusInspection, PayloadNone, ""},
	{offSite, from(StatusInspection), PartyTechnician, ActionWaitingDecision, "Request decision", StatusWaitingDecision, PayloadPayment, ""},
	{offSite, from(StatusWaitingDecision), PartyCustomer, ActionDecisionApprove, "Approve repair", StatusRepairingOffSite, PayloadNone, ""},
	{offSite, from(StatusWaitingDecision), PartyCustomer, ActionDecisionCancel, "Decline repair", StatusRepairCancelled, PayloadReason, ""},
	{offSite, from(StatusRepairingOffSite), PartyTechnician, ActionRepairCompleted, "Repair completed", StatusRepairCompleted, PayloadNone, ""},
	{offSite, from(StatusRepairCompleted), PartyDelivery, ActionReturnStarted, "Start return", StatusReturnStarted, PayloadNone, ""},
	{offSite, from(StatusReturnStarted), PartyDelivery, ActionReturned, "Returned", StatusReturned, PayloadNone, ""},
	{offSite, from(StatusReturned), PartyCustomer, ActionComplete, "Confirm completion", StatusCompleted, PayloadNone, ""},
	{offSite, from(StatusRepairCancelled), PartyDelivery, ActionReturnBrokenStarted, "Start return", StatusReturningBroken, PayloadNone, ""},
	{offSite, from(StatusReturningBroken), PartyDelivery, ActionReturnedBroken, "Returned", StatusReturnedBroken, PayloadNone, ""},
	{offSite, from(StatusReturnedBroken), PartyCustomer, ActionAcceptBrokenReturn, "Confirm return", StatusCancelled, PayloadNone, ""},

	// fix_on_site
	{onSite, from(StatusAssigned), PartyTechnician, ActionTechnicianComing, "On my way", StatusTechnicianComing, PayloadNone, ""},
	{onSite, from(StatusTechnicianComing), PartyTechnician, ActionRepairingOnSite, "Start repair", StatusRepairingOnSite, PayloadNone, ""},
	{onSite, from(StatusRepairingOnSite), PartyTechnician, ActionWaitingPayment, "Request payment", StatusWaitingPayment, PayloadPayment, ""},
	{onSite, from(StatusWaitingPayment), PartyCustomer, ActionCompletedOnSite, "Pay and complete", StatusCompletedOnSiteRepairing, PayloadNone, PurposeLabor},

	// installation
	{install, from(StatusAssigned), PartyTechnician, ActionTechnicianComing, "On my way", StatusTechnicianComing, PayloadNone, ""},
	{install, from(StatusTechnicianComing), PartyTechnician, ActionInstalling, "Start installation", StatusInstalling, PayloadNone, ""},
	{install, from(StatusInstalling), PartyTechnician, ActionWaitingPayment, "Request payment", StatusWaitingPayment, PayloadPayment, ""},
	{install, from(StatusWaitingPayment), PartyCustomer, ActionCompletedOnSite, "Pay and complete", StatusCompletedOnSiteInstallation, PayloadNone, PurposeLabor},
}

var (
	table         = buildTable(rules)
	actionsBySlug = buildSlugIndex(rules)
)

func buildTable(rules []rule) map[tableKey]map[Party][]Transition {
	out := make(map[tableKey]map[Party][]Transition)
	for _, r := range rules {
		for _, service := range r.services {
			for _, status := range r.from {
				key := tableKey{service: service, status: status}
				byParty, ok := out[key]
				if !ok {
					byParty = make(map[Party][]Transition)
					out[key] = byParty
				}
				byParty[r.party] = append(byParty[r.party], Transition{
					Action:  r.action,
					Label:   r.label,
					Service: service,
					From:    status,
					To:      r.to,
					Party:   r.party,
					Payload: r.payload,
					Settles: r.settles,
					Voids:   voids(status, r.to),
				})
			}
		}
	}
	return out
}

// voids reports the pending charge abandoned when an order leaves status for to.
// Cancelling before the pre-payment is made drops it.
func voids(status, to Status) PaymentPurpose {
	if status == StatusWaitingPrePayment && to == StatusCancelled {
		return PurposePrePayment
	}
	return ""
}

func buildSlugIndex(rules []rule) map[string]Action {
	out := make(map[string]Action, len(rules))
	for _, r := range rules {
		out[r.action.Slug()] = r.action
	}
	return out
}

// Lookup returns the transition declared for the exact quadruple. Anything
// not declared is forbidden.
func Lookup(service ServiceType, status Status, party Party, action Action) (Transition, bool) {
	for _, t := range table[tableKey{service: service, status: status}][party] {
		if t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// TransitionsFor returns the transitions the party may take from status
func TransitionsFor(service ServiceType, status Status, party Party) []Transition {
	declared := table[tableKey{service: service, status: status}][party]
	out := make([]Transition, len(declared))
	copy(out, declared)
	return out
}

// Transitions returns every declared transition for the service type
func Transitions(service ServiceType) []Transition {
	var out []Transition
	for _, status := range StatusesFor(service) {
		for _, party := range Parties {
			out = append(out, TransitionsFor(service, status, party)...)
		}
	}
	return out
}
