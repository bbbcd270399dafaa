package models

import "time"

// Role is a user's role within the admin panel.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
	RoleModerator  Role = "moderator"
	RoleViewer     Role = "viewer"
)

// User is the identity record the biometric service consumes from the user
// directory. The directory is the system of record for accounts; this service
// only reads identity and role, and writes the last-login timestamp.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
