package models

import "time"

type UserRole string

const (
	RoleAdmin        UserRole = "admin"
	RoleServer       UserRole = "server"
	RoleKitchen      UserRole = "kitchen"
	RoleStoreManager UserRole = "store_manager"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleServer, RoleKitchen, RoleStoreManager:
		return true
	}
	return false
}

// User is a staff profile. Staff sign in with a 6-digit PIN; only its bcrypt
// hash is stored.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Role      UserRole  `gorm:"size:20;not null;index" json:"role"`
	PinHash   string    `gorm:"size:255;not null" json:"-"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
