package models

import "time"

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableBilling   TableStatus = "billing"
	TableBilled    TableStatus = "billed"
	TableReserved  TableStatus = "reserved"
)

// Table stores only the manual status (available or reserved); occupied,
// billing and billed are derived from the table's active order.
type Table struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	TableNumber string      `gorm:"size:20;not null;uniqueIndex" json:"table_number"`
	Capacity    int         `gorm:"not null;default:4" json:"capacity"`
	Section     string      `gorm:"size:50" json:"section"`
	Status      TableStatus `gorm:"size:20;not null;default:available" json:"status"`
	IsActive    bool        `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
