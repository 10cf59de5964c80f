package workflow

// ServiceType identifies how a repair order is fulfilled
type ServiceType string

const (
	ServiceFixOffSite   ServiceType = "fix_off_site"
	ServiceFixOnSite    ServiceType = "fix_on_site"
	ServiceInstallation ServiceType = "installation"
)

// ServiceTypes lists every supported service type
var ServiceTypes = []ServiceType{ServiceFixOffSite, ServiceFixOnSite, ServiceInstallation}

// Valid reports whether s is a known service type
func (s ServiceType) Valid() bool {
	_, ok := statusesByService[s]
	return ok
}

// Status is the lifecycle position of an order
type Status string

const (
	StatusPending                     Status = "pending"
	StatusWaitingPrePayment           Status = "waiting_pre_payment"
	StatusAssigned                    Status = "assigned"
	StatusAssignmentRejected          Status = "assignment_rejected"
	StatusPickupStarted               Status = "pickup_started"
	StatusPickedUp                    Status = "picked_up"
	StatusToTechnician                Status = "to_technician"
	StatusDeliveredToTechnician       Status = "delivered_to_technician"
	StatusInspection                  Status = "inspection"
	StatusWaitingDecision             Status = "waiting_decision"
	StatusRepairingOffSite            Status = "repairing_off_site"
	StatusRepairCancelled             Status = "repair_cancelled"
	StatusRepairCompleted             Status = "repair_completed"
	StatusReturnStarted               Status = "return_started"
	StatusReturned                    Status = "returned"
	StatusReturningBroken             Status = "returning_broken"
	StatusReturnedBroken              Status = "returned_broken"
	StatusTechnicianComing            Status = "technician_coming"
	StatusRepairingOnSite             Status = "repairing_on_site"
	StatusInstalling                  Status = "installing"
	StatusWaitingPayment              Status = "waiting_payment"
	StatusCompleted                   Status = "completed"
	StatusCompletedOnSiteRepairing    Status = "completed_on_site_repairing"
	StatusCompletedOnSiteInstallation Status = "completed_on_site_installation"
	StatusCancelled                   Status = "cancelled"
)

// AllStatuses is the full status enumeration in rough lifecycle order
var AllStatuses = []Status{
	StatusPending,
	StatusWaitingPrePayment,
	StatusAssigned,
	StatusAssignmentRejected,
	StatusPickupStarted,
	StatusPickedUp,
	StatusToTechnician,
	StatusDeliveredToTechnician,
	StatusInspection,
	StatusWaitingDecision,
	StatusRepairingOffSite,
	StatusRepairCancelled,
	StatusRepairCompleted,
	StatusReturnStarted,
	StatusReturned,
	StatusReturningBroken,
	StatusReturnedBroken,
	StatusTechnicianComing,
	StatusRepairingOnSite,
	StatusInstalling,
	StatusWaitingPayment,
	StatusCompleted,
	StatusCompletedOnSiteRepairing,
	StatusCompletedOnSiteInstallation,
	StatusCancelled,
}

var terminalStatuses = map[Status]bool{
	StatusCompleted:                   true,
	StatusCancelled:                   true,
	StatusCompletedOnSiteRepairing:    true,
	StatusCompletedOnSiteInstallation: true,
}

// statuses that do not need an assigned technician
var unassignedStatuses = map[Status]bool{
	StatusPending:            true,
	StatusWaitingPrePayment:  true,
	StatusAssignmentRejected: true,
	StatusCancelled:          true,
}

var statusesByService = map[ServiceType]map[Status]bool{
	ServiceFixOffSite: setOf(
		StatusPending, StatusWaitingPrePayment, StatusAssigned, StatusAssignmentRejected,
		StatusPickupStarted, StatusPickedUp, StatusToTechnician, StatusDeliveredToTechnician,
		StatusInspection, StatusWaitingDecision, StatusRepairingOffSite, StatusRepairCancelled,
		StatusRepairCompleted, StatusReturnStarted, StatusReturned, StatusReturningBroken,
		StatusReturnedBroken, StatusCompleted, StatusCancelled,
	),
	ServiceFixOnSite: setOf(
		StatusPending, StatusAssigned, StatusAssignmentRejected, StatusTechnicianComing,
		StatusRepairingOnSite, StatusWaitingPayment, StatusCompletedOnSiteRepairing, StatusCancelled,
	),
	ServiceInstallation: setOf(
		StatusPending, StatusAssigned, StatusAssignmentRejected, StatusTechnicianComing,
		StatusInstalling, StatusWaitingPayment, StatusCompletedOnSiteInstallation, StatusCancelled,
	),
}

func setOf(statuses ...Status) map[Status]bool {
	set := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave s
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// RequiresTechnician reports whether an order in s must have a technician assigned
func (s Status) RequiresTechnician() bool {
	return !unassignedStatuses[s]
}

// ValidFor reports whether s belongs to the status set of the service type
func (s Status) ValidFor(service ServiceType) bool {
	return statusesByService[service][s]
}

// StatusesFor returns the statuses an order of the given service type may occupy
func StatusesFor(service ServiceType) []Status {
	set := statusesByService[service]
	out := make([]Status, 0, len(set))
	for _, s := range AllStatuses {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

// Role is the account type of the acting user
type Role string

const (
	RoleIndividual Role = "individual"
	RoleCompany    Role = "company"
	RoleTechnician Role = "technician"
	RoleDelivery   Role = "delivery"
	RoleAdmin      Role = "admin"
)

// Roles lists every account role
var Roles = []Role{RoleIndividual, RoleCompany, RoleTechnician, RoleDelivery, RoleAdmin}

// Party is the class of actor a transition is declared for. Individual and
// company accounts both act as customers.
type Party string

const (
	PartyCustomer   Party = "customer"
	PartyTechnician Party = "technician"
	PartyDelivery   Party = "delivery"
	PartyAdmin      Party = "admin"
)

// Parties lists every actor class in routing order
var Parties = []Party{PartyCustomer, PartyTechnician, PartyDelivery, PartyAdmin}

// Party maps the role onto its actor class. Unknown roles map to "".
func (r Role) Party() Party {
	switch r {
	case RoleIndividual, RoleCompany:
		return PartyCustomer
	case RoleTechnician:
		return PartyTechnician
	case RoleDelivery:
		return PartyDelivery
	case RoleAdmin:
		return PartyAdmin
	}
	return ""
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r.Party() != ""
}

// IsCustomer reports whether the role places orders
func (r Role) IsCustomer() bool {
	return r.Party() == PartyCustomer
}
