package models

import "time"

type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodCard  PaymentMethod = "card"
	MethodUPI   PaymentMethod = "upi"
	MethodSplit PaymentMethod = "split" // parent row of a split payment
)

// Valid reports whether m can be chosen by a payer (split is internal).
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI:
		return true
	}
	return false
}

type PaymentRecordStatus string

const (
	PaymentCompleted PaymentRecordStatus = "completed"
	PaymentRefunded  PaymentRecordStatus = "refunded"
)

type Payment struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	OrderID              uint                `gorm:"not null;index" json:"order_id"`
	Amount               float64             `gorm:"not null" json:"amount"`
	PaymentMethod        PaymentMethod       `gorm:"size:20;not null;index" json:"payment_method"`
	PaymentStatus        PaymentRecordStatus `gorm:"size:20;not null;index" json:"payment_status"`
	TransactionReference string              `gorm:"size:100" json:"transaction_reference"`
	CashReceived         *float64            `json:"cash_received"`
	ChangeAmount         *float64            `json:"change_amount"`
	PaidByName           string              `gorm:"size:100" json:"paid_by_name"`
	Notes                string              `gorm:"size:255" json:"notes"`
	CreatedBy            uint                `json:"created_by"`
	Splits               []PaymentSplit      `gorm:"constraint:OnDelete:CASCADE" json:"payment_splits,omitempty"`
	CreatedAt            time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

type PaymentSplit struct {
	ID                   uint          `gorm:"primaryKey" json:"id"`
	PaymentID            uint          `gorm:"not null;index" json:"payment_id"`
	SplitAmount          float64       `gorm:"not null" json:"split_amount"`
	PaymentMethod        PaymentMethod `gorm:"size:20;not null" json:"payment_method"`
	PaidByName           string        `gorm:"size:100" json:"paid_by_name"`
	TransactionReference string        `gorm:"size:100" json:"transaction_reference"`
	Notes                string        `gorm:"size:255" json:"notes"`
	CreatedAt            time.Time     `json:"created_at"`
}
