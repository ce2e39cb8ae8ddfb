package models

import (
	"fmt"
	"time"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleClient     Role = "client"
	RoleDriver     Role = "driver"
	RoleDispatcher Role = "dispatcher"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleClient, RoleDriver, RoleDispatcher:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// UserRole maps an account to its role.
type UserRole struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Actor is the authenticated identity performing an operation. UserID is the
// hosted auth provider's account id; for drivers and clients the lifecycle
// manager additionally resolves the matching directory record.
type Actor struct {
	UserID string
	Role   Role
	Email  string
}
