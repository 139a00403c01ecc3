package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
)

// AdminUserStore is the slice of the user repository the admin surface
// needs.
type AdminUserStore interface {
	List(ctx context.Context, limit, offset int) ([]*db.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*db.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

// AdminHandlers manages user accounts. All routes sit behind the admin
// role check.
type AdminHandlers struct {
	users AdminUserStore
}

func NewAdminHandlers(users AdminUserStore) *AdminHandlers {
	return &AdminHandlers{users: users}
}

func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) error {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		return apperrors.DatabaseError("failed to list users").WithCause(err)
	}

	infos := make([]*auth.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, auth.NewUserInfo(user))
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, infos)
	return nil
}

// SetUserActive activates or deactivates an account. Deactivated users
// fail authentication on their next request.
func (h *AdminHandlers) SetUserActive(w http.ResponseWriter, r *http.Request) error {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.ValidationError("invalid user id")
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	actor, _ := auth.CurrentUser(r.Context())
	if actor != nil && actor.ID == id && !req.Active {
		return apperrors.ValidationError("cannot deactivate your own account")
	}

	if err := h.users.SetActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return apperrors.UserNotFound()
		}
		return apperrors.DatabaseError("failed to update user").WithCause(err)
	}

	user, err := h.users.GetProfile(r.Context(), id)
	if err != nil {
		return apperrors.DatabaseError("failed to load user").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, auth.NewUserInfo(user))
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
