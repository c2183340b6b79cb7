// Package authz holds the authorization gate: pure predicates over the
// caller identity that services compose per operation.
package authz

import (
	"slices"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// Check is one predicate of the gate. It returns nil to pass.
type Check func(id *domain.Identity) error

// Authorize runs checks left to right and returns the first failure.
func Authorize(id *domain.Identity, checks ...Check) error {
	for _, check := range checks {
		if err := check(id); err != nil {
			return err
		}
	}
	return nil
}

// RequireAuthenticated passes for a present, non-banned identity.
func RequireAuthenticated() Check {
	return func(id *domain.Identity) error {
		if id == nil || id.ID == "" {
			return apperrors.Unauthenticated("authentication required")
		}
		if id.IsBanned {
			return apperrors.Unauthenticated("account is banned")
		}
		return nil
	}
}

// RequireRole passes when the identity holds one of roles.
func RequireRole(roles ...string) Check {
	return func(id *domain.Identity) error {
		if id == nil || !slices.Contains(roles, id.Role) {
			return apperrors.Forbidden("insufficient permissions")
		}
		return nil
	}
}

// RequireApproved passes for approved identities.
func RequireApproved() Check {
	return func(id *domain.Identity) error {
		if id == nil || !id.IsApproved {
			return apperrors.PendingApproval()
		}
		return nil
	}
}

// RequireOwnerOrAdmin passes when the identity owns the resource or is an
// admin.
func RequireOwnerOrAdmin(ownerID string) Check {
	return func(id *domain.Identity) error {
		if id == nil {
			return apperrors.Forbidden("not the owner of this resource")
		}
		if id.Role == domain.RoleAdmin || (ownerID != "" && id.ID == ownerID) {
			return nil
		}
		return apperrors.Forbidden("not the owner of this resource")
	}
}

// Common compositions.

// ApprovedSeller gates product creation.
func ApprovedSeller() []Check {
	return []Check{RequireAuthenticated(), RequireRole(domain.RoleSeller), RequireApproved()}
}

// Admin gates every admin operation.
func Admin() []Check {
	return []Check{RequireAuthenticated(), RequireRole(domain.RoleAdmin)}
}
