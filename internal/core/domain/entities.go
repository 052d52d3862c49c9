package domain

import (
	"strings"
)

// Role represents user role in the system
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleStaff  Role = "STAFF"
	RoleAdmin  Role = "ADMIN"
)

// Capability is a single permission granted by a role.
type Capability uint8

const (
	CapBorrow Capability = 1 << iota
	CapManageCatalog
	CapViewAllLoans
	CapViewUsers
	CapManageUsers
)

var roleCapabilities = map[Role]Capability{
	RoleMember: CapBorrow,
	RoleStaff:  CapBorrow | CapManageCatalog | CapViewAllLoans | CapViewUsers,
	RoleAdmin:  CapBorrow | CapManageCatalog | CapViewAllLoans | CapViewUsers | CapManageUsers,
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether r grants every capability in c.
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r]&c == c
}

func (r Role) String() string {
	return string(r)
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role Role
}

// IsSelf reports whether the actor is the user with the given id.
func (a Actor) IsSelf(userID uint) bool {
	return a.ID == userID
}
