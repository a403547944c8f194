package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents user role type
type UserRole string

const (
	RoleMember        UserRole = "member"
	RoleDriver        UserRole = "driver"
	RoleProviderAdmin UserRole = "provider_admin"
	RoleSuperAdmin    UserRole = "super_admin"
)

// Valid reports whether the role is one the scheduler knows about.
func (r UserRole) Valid() bool {
	switch r {
	case RoleMember, RoleDriver, RoleProviderAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User represents an authenticated party: a member, a driver, a
// transportation-provider admin, or a system-wide super admin. Profile CRUD
// lives in the surrounding application; the scheduler only reads identity
// and role from JWT claims.
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	PhoneNumber string     `json:"phone_number" db:"phone_number"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	Role        UserRole   `json:"role" db:"role"`
	ProviderID  *uuid.UUID `json:"provider_id,omitempty" db:"provider_id"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
