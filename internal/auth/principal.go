// Package auth maps a caller's session identity to a role and gates
// operations on it.
package auth

import (
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/models"
)

// Principal is the identity resolved once per request and passed explicitly
// into guarded operations. The zero value is the anonymous caller.
type Principal struct {
	UserID string
	Role   models.Role
	Name   string
}

// Anonymous is the principal of a caller without a valid session.
var Anonymous = Principal{}

// IsAuthenticated reports whether the principal carries an identity.
func (p Principal) IsAuthenticated() bool {
	return p.UserID != ""
}

// IsAdmin reports whether the principal is an authenticated Admin.
func (p Principal) IsAdmin() bool {
	return p.IsAuthenticated() && p.Role == models.RoleAdmin
}

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated(p Principal) error {
	if !p.IsAuthenticated() {
		return apperrors.Auth("authentication required")
	}
	return nil
}

// RequireAdmin rejects anonymous callers like RequireAuthenticated and
// returns an authorization error for authenticated non-admins.
func RequireAdmin(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Role != models.RoleAdmin {
		return apperrors.Authorization("only admins can perform this action")
	}
	return nil
}
