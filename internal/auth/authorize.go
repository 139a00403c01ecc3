package auth

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
)

// Ownable is implemented by resources that belong to a single user. It
// replaces field probing (author_id vs user_id) with an explicit contract.
type Ownable interface {
	OwnerID() uuid.UUID
}

// RequireRole fails with 403 unless the authenticated identity holds one of
// the given roles. It must run after Authenticate.
func RequireRole(roles ...db.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			user, ok := CurrentUser(r.Context())
			if !ok {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("missing access token"))
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			apperrors.WriteError(w, requestID, apperrors.Forbidden(
				fmt.Sprintf("requires role %s, caller has role %s", joinRoles(roles), user.Role)))
		})
	}
}

// AuthorizeOwner allows the request when the user owns the resource or holds
// the admin role. Callers must resolve not-found before this check so a 404
// is reported ahead of the ownership comparison.
func AuthorizeOwner(user *db.User, resource Ownable) error {
	if user == nil {
		return apperrors.Unauthorized("missing access token")
	}
	if user.Role == db.RoleAdmin {
		return nil
	}
	if resource.OwnerID() == user.ID {
		return nil
	}
	return apperrors.Forbidden("you do not have permission to modify this resource")
}

func joinRoles(roles []db.Role) string {
	out := ""
	for i, role := range roles {
		if i > 0 {
			out += "|"
		}
		out += string(role)
	}
	return out
}
