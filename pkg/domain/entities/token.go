package entities

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDeployer Role = "deployer"
	RoleViewer   Role = "viewer"
)

// ParseRole validates a caller-supplied role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleDeployer, RoleViewer:
		return Role(s), nil
	}
	return "", NewValidationError("invalid role %q, must be one of admin, deployer, viewer", s)
}

// TokenRecord stores only the one-way hash of a bearer token. The raw value
// is handed out exactly once at creation time.
type TokenRecord struct {
	ID         uuid.UUID `json:"id"`
	TokenHash  string    `json:"token_hash"`
	Label      string    `json:"label"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// Public returns the record without the hash, for list responses.
func (t TokenRecord) Public() TokenView {
	return TokenView{
		ID:         t.ID,
		Label:      t.Label,
		Role:       t.Role,
		CreatedAt:  t.CreatedAt,
		LastUsedAt: t.LastUsedAt,
	}
}

// TokenView is the API-safe projection of a TokenRecord.
type TokenView struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}
