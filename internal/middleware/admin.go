package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// AdminStore answers who operates the back office. IsAdmin returns
// (admin, super admin, error); roles are the store.Role* names.
type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

type accessDenied struct {
	status int
	reason string
}

// authorizeAdmin decides whether userID may act under role. A nil result
// admits the caller.
func authorizeAdmin(ctx context.Context, admins AdminStore, userID, role string) (*accessDenied, error) {
	isAdmin, isSuper, err := admins.IsAdmin(ctx, userID)
	if err != nil {
		return &accessDenied{http.StatusInternalServerError, "unable to verify admin"}, err
	}
	if !isAdmin {
		return &accessDenied{http.StatusForbidden, "admin privileges required"}, nil
	}
	if isSuper || role == "" {
		return nil, nil
	}
	hasRole, err := admins.HasRole(ctx, userID, role)
	if err != nil {
		return &accessDenied{http.StatusInternalServerError, "unable to verify role"}, err
	}
	if !hasRole {
		return &accessDenied{http.StatusForbidden, "missing required role " + role}, nil
	}
	return nil, nil
}

// RequireAdmin guards the /admin routes. Super admins hold every role and an
// empty role admits any admin. Refusals are JSON bodies shaped like domain
// errors:
//
//	401 {"error":"Unauthorized","reason":"unauthorized"}            no user in context
//	403 {"error":"Forbidden","reason":"admin privileges required"}  not an admin
//	403 {"error":"Forbidden","reason":"missing required role X"}    admin without role X
//	500 {"error":"Internal","reason":"unable to verify ..."}        store failure
func RequireAdmin(admins AdminStore, role string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			denied, err := authorizeAdmin(r.Context(), admins, userID, role)
			if denied != nil {
				entry := log.WithFields(logrus.Fields{"user_id": userID, "role": role, "path": r.URL.Path})
				if err != nil {
					entry.WithError(err).Error("admin check failed")
				} else {
					entry.Warn("admin access denied")
				}
				deny(w, denied.status, denied.reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
