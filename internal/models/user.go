package models

import (
	"time"
)

// Role is the part a user plays in the approval workflow
type Role string

const (
	RoleDesigner Role = "designer"
	RoleClient   Role = "client"
)

// ValidRoles defines allowed user roles
var ValidRoles = map[Role]bool{
	RoleDesigner: true,
	RoleClient:   true,
}

// Actor is the authenticated principal performing an operation,
// as supplied by the identity provider
type Actor struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// User is the profile recorded for an identity
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
