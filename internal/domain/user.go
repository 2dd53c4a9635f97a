package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is what a clinic user may do.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleTherapist    Role = "therapist"
	RoleReceptionist Role = "receptionist"
	RoleParent       Role = "parent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTherapist, RoleReceptionist, RoleParent:
		return true
	}
	return false
}

// User is a member of one clinic. Parents count toward the user limit like
// staff.
type User struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
