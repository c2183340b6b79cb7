package domain

import (
	"slices"
	"time"
)

// Role constants define the allowed user roles.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []string {
	return []string{RoleCustomer, RoleSeller, RoleAdmin}
}

// IsValidRole checks whether role is one of ValidRoles.
func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles(), role)
}

// User represents a registered account. Admins are always approved and can
// be neither banned nor deleted.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsApproved   bool      `json:"is_approved"`
	IsBanned     bool      `json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ApprovedOnRegistration reports whether accounts of role start approved.
// Only sellers wait for an admin.
func ApprovedOnRegistration(role string) bool {
	return role != RoleSeller
}

// Identity is the authenticated caller as seen by the authorization gate.
// Approval and ban flags are read from the store on every request, never
// from the token.
type Identity struct {
	ID         string
	Email      string
	Role       string
	IsApproved bool
	IsBanned   bool
}

// IdentityOf builds the gate identity of u.
func IdentityOf(u *User) *Identity {
	return &Identity{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		IsApproved: u.IsApproved,
		IsBanned:   u.IsBanned,
	}
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// UserFilter narrows admin user listings.
type UserFilter struct {
	Role string
}
