package models

import (
	"time"

	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TransactionDebit  = "debit"
	TransactionCredit = "credit"
)

// Transaction statuses
const (
	TransactionPending  = "pending"
	TransactionPaid     = "paid"
	TransactionFailed   = "failed"
	TransactionRefunded = "refunded"
)

var transactionTransitions = map[string][]string{
	TransactionPending: {TransactionPaid, TransactionFailed},
	TransactionPaid:    {TransactionRefunded, TransactionFailed},
}

// Transaction is a ledger entry, usually linked to an order. SourceKey dedupes
// entries written as order side effects.
type Transaction struct {
	ID          uint                    `gorm:"primaryKey" json:"id"`
	Amount      decimal.Decimal         `gorm:"type:numeric(12,2);not null" json:"amount"`
	Type        string                  `gorm:"not null" json:"type"`
	Status      string                  `gorm:"not null;default:'pending'" json:"status"`
	Provider    string                  `gorm:"not null" json:"provider"`
	ProviderRef string                  `gorm:"index" json:"provider_ref"`
	Reason      string                  `json:"reason"`
	Purpose     workflow.PaymentPurpose `gorm:"index" json:"purpose"`
	OrderID     *uint                   `gorm:"index" json:"order_id"`
	CustomerID  *uint                   `gorm:"index" json:"customer_id"`
	SourceKey   *string                 `gorm:"uniqueIndex" json:"-"`
	PaidAt      *time.Time              `json:"paid_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// CanMoveTo reports whether the ledger entry may move to status
func (t Transaction) CanMoveTo(status string) bool {
	for _, next := range transactionTransitions[t.Status] {
		if next == status {
			return true
		}
	}
	return false
}
