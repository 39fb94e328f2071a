package domain

import "time"

type Role string

const (
	RoleAppraiser  Role = "appraiser"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAppraiser, RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the authenticated principal performing an operation. Authorization
// only ever looks at the id and the role.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// SystemActor is used by maintenance commands that run outside a user session.
var SystemActor = Actor{ID: "system", Role: RoleAdmin}
