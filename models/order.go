package models

import (
	"time"

	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order represents one repair or installation job. Exactly one of
// IndividualID and CompanyID is set. Version is bumped on every transition.
// MediaKeys holds storage keys; MediaURLs is filled with presigned URLs when
// the order is rendered.
type Order struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	ServiceType   workflow.ServiceType `gorm:"not null;index" json:"service_type"`
	Status        workflow.Status      `gorm:"not null;default:'pending';index" json:"status"`
	Version       uint                 `gorm:"not null;default:0" json:"version"`
	IndividualID  *uint                `gorm:"index;check:chk_orders_customer,(individual_id IS NULL) <> (company_id IS NULL)" json:"individual_id"`
	Individual    *User                `gorm:"foreignKey:IndividualID" json:"individual,omitempty"`
	CompanyID     *uint                `gorm:"index" json:"company_id"`
	Company       *User                `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	TechnicianID  *uint                `gorm:"index" json:"technician_id"`
	Technician    *User                `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`
	DeliveryID    *uint                `gorm:"index" json:"delivery_id"`
	Delivery      *User                `gorm:"foreignKey:DeliveryID" json:"delivery,omitempty"`
	AddressID     *uint                `gorm:"index" json:"address_id"`
	Address       *Address             `gorm:"foreignKey:AddressID" json:"address,omitempty"`
	Category      string               `gorm:"not null" json:"category"`
	Brand         string               `json:"brand"`
	Model         string               `json:"model"`
	Description   string               `gorm:"type:text;not null" json:"description"`
	MediaKeys     StringList           `gorm:"type:text" json:"-"`
	MediaURLs     []string             `gorm:"-" json:"media"`
	PaymentAmount decimal.NullDecimal  `gorm:"type:numeric(12,2)" json:"payment_amount"`
	PaymentReason *string              `json:"payment_reason"`
	CancelReason  *string              `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	DeletedAt     gorm.DeletedAt       `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// Snapshot returns the state the workflow guard evaluates
func (o Order) Snapshot() workflow.Order {
	return workflow.Order{
		ID:           o.ID,
		ServiceType:  o.ServiceType,
		Status:       o.Status,
		Version:      o.Version,
		IndividualID: o.IndividualID,
		CompanyID:    o.CompanyID,
		TechnicianID: o.TechnicianID,
		DeliveryID:   o.DeliveryID,
	}
}

// Customer returns the role and id of the owning customer
func (o Order) Customer() (workflow.Role, uint) {
	if o.IndividualID != nil {
		return workflow.RoleIndividual, *o.IndividualID
	}
	if o.CompanyID != nil {
		return workflow.RoleCompany, *o.CompanyID
	}
	return "", 0
}
