package domain

import "time"

// Role enumerates caller roles supplied by the identity layer.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleCommittee  Role = "COMMITTEE"
)

// IsHandler reports whether the role may own and work tickets.
func (r Role) IsHandler() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User models any authenticated principal: students who raise tickets and
// admins who handle them. Hostel feeds dynamic scope resolution during
// routing.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Hostel       *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the verified identity attached to every command.
type Actor struct {
	ID   string
	Role Role
}

// SystemActorID marks mutations performed by background jobs such as the
// overdue sweeper.
const SystemActorID = "SYSTEM"
