package approval

import (
	"context"
	"errors"
	"fmt"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"
)

// Authorizer decides whether a caller may drive approval decisions.
type Authorizer interface {
	Authorize(ctx context.Context, callerId string) error
}

// RoleAuthorizer grants access to users carrying the admin role.
type RoleAuthorizer struct {
	db store.EngineStore
}

func NewRoleAuthorizer(db store.EngineStore) *RoleAuthorizer {
	return &RoleAuthorizer{db: db}
}

func (a *RoleAuthorizer) Authorize(ctx context.Context, callerId string) error {
	if callerId == "" {
		return fmt.Errorf("%w: missing caller id", store.ErrUnauthorized)
	}
	user, err := a.db.GetUserById(ctx, callerId)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown caller %s", store.ErrUnauthorized, callerId)
	}
	if err != nil {
		return fmt.Errorf("failed to look up caller: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return fmt.Errorf("%w: user %s has role %s", store.ErrUnauthorized, callerId, user.Role)
	}
	return nil
}
