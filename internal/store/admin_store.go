package store

import (
	"context"
	"database/sql"
	"errors"
)

// Roles stored in admin_roles.role. Super admins hold all of them.
const (
	// RoleManageCredits: approve, reject, bulk decisions and the overdue sweep.
	RoleManageCredits = "CanManageCredits"

	// RoleManageSavings: freeze, unfreeze and interest crediting.
	RoleManageSavings = "CanManageSavings"

	// RoleViewAudit: reading the audit log.
	RoleViewAudit = "CanViewAudit"
)

type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

// IsAdmin reports whether userID is an admin and whether it is a super admin.
func (s *AdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `
		SELECT is_super
		FROM admins
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, isSuper, nil
}

func (s *AdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM admin_roles
		WHERE admin_user_id = $1 AND role = $2
	`, userID, role)
	return count > 0, err
}
