package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleMasterAdmin Role = "master_admin"
	RoleAdmin       Role = "admin"
	RoleRider       Role = "rider"
	RoleCustomer    Role = "customer"
)

// CanModifyPolicy reports whether the role may change the rewards policy.
// Only the highest-privilege role can.
func (r Role) CanModifyPolicy() bool {
	return r == RoleMasterAdmin
}

// IsStaff reports whether the role has access to the admin panel.
func (r Role) IsStaff() bool {
	return r == RoleMasterAdmin || r == RoleAdmin
}

func (r Role) IsValid() bool {
	switch r {
	case RoleMasterAdmin, RoleAdmin, RoleRider, RoleCustomer:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Name      string         `json:"name"`
	Phone     string         `gorm:"index" json:"phone"`
	Role      Role           `gorm:"default:customer" json:"role"`
	IsBlocked bool           `gorm:"default:false" json:"is_blocked"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
