package domain

import "errors"

// Principal is the authenticated caller of the API.
type Principal struct {
	Subject string
	Role    Role
}

// Role represents a caller's access level
type Role string

const (
	// RoleAdmin can additionally freeze and unfreeze accounts
	RoleAdmin Role = "admin"

	// RoleOperator can open accounts and move money
	RoleOperator Role = "operator"

	// RoleViewer can only read balances, ledgers and transactions
	RoleViewer Role = "viewer"
)

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// Allows reports whether r grants at least the access of required.
func (r Role) Allows(required Role) bool {
	return r.rank() >= required.rank() && r.IsValid()
}

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleOperator:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
