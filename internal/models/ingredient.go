package models

import "time"

type Ingredient struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:150;not null" json:"name"`
	// NameKey is the normalised name (lower-case, letters and digits only)
	// used for duplicate detection.
	NameKey      string    `gorm:"size:150;not null;uniqueIndex" json:"name_key"`
	Unit         string    `gorm:"size:20;not null" json:"unit"`
	Cost         float64   `gorm:"not null;default:0" json:"cost"` // per unit
	Category     string    `gorm:"size:100;not null;index" json:"category"`
	MinimumStock float64   `gorm:"not null;default:0" json:"minimum_stock"`
	VendorName   string    `gorm:"size:150" json:"vendor_name"`
	VendorPhone  string    `gorm:"size:30" json:"vendor_phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
