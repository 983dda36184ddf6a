package models

import "time"

type StockTransactionType string

const (
	StockPurchase   StockTransactionType = "purchase"
	StockWastage    StockTransactionType = "wastage"
	StockAdjustment StockTransactionType = "adjustment"
)

// IngredientStock is the running balance per ingredient. It is only ever
// changed by appending a StockTransaction.
type IngredientStock struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	IngredientID    uint        `gorm:"not null;uniqueIndex" json:"ingredient_id"`
	Ingredient      *Ingredient `gorm:"constraint:OnDelete:CASCADE" json:"ingredient,omitempty"`
	CurrentQuantity float64     `gorm:"not null;default:0" json:"current_quantity"`
	MinimumQuantity float64     `gorm:"not null;default:0" json:"minimum_quantity"`
	UnitCostAvg     float64     `gorm:"not null;default:0" json:"unit_cost_avg"`
	LastUpdated     time.Time   `json:"last_updated"`
}

// IsLow reports whether the balance is under the minimum.
func (s IngredientStock) IsLow() bool {
	return s.CurrentQuantity < s.MinimumQuantity
}

type StockTransaction struct {
	ID              uint                 `gorm:"primaryKey" json:"id"`
	IngredientID    uint                 `gorm:"not null;index" json:"ingredient_id"`
	Ingredient      *Ingredient          `gorm:"constraint:OnDelete:CASCADE" json:"ingredient,omitempty"`
	TransactionType StockTransactionType `gorm:"size:20;not null;index" json:"transaction_type"`
	Quantity        float64              `gorm:"not null" json:"quantity"` // signed delta
	UnitCost        *float64             `json:"unit_cost"`
	ReferenceNo     string               `gorm:"size:100" json:"reference_no"`
	Notes           string               `gorm:"size:255" json:"notes"`
	CreatedBy       *uint                `json:"created_by"`
	CreatedAt       time.Time            `gorm:"index" json:"created_at"`
}

type StockSettings struct {
	IngredientID    uint      `gorm:"primaryKey" json:"ingredient_id"`
	MinStockLevel   float64   `gorm:"not null;default:0" json:"min_stock_level"`
	ReorderQuantity float64   `gorm:"not null;default:0" json:"reorder_quantity"`
	StorageLocation string    `gorm:"size:100" json:"storage_location"`
	Notes           string    `gorm:"size:255" json:"notes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (IngredientStock) TableName() string { return "ingredient_stock" }

func (StockSettings) TableName() string { return "stock_settings" }
