package comment

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	apperrors "github.com/openblog/backend/internal/errors"
)

const maxBodyLen = 10_000

type CreateCommentRequest struct {
	Body string `json:"body"`
}

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	blogID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.ValidationError("invalid blog id")
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.ValidationError("comment body is required")
	}
	if len(req.Body) > maxBodyLen {
		return apperrors.ValidationError("comment body is too long")
	}

	info, err := h.service.Create(r.Context(), user, blogID, req.Body)
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusCreated, info)
	return nil
}

func (h *Handlers) ListByBlog(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := auth.CurrentUser(r.Context())

	blogID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.ValidationError("invalid blog id")
	}

	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	infos, err := h.service.ListByBlog(r.Context(), viewer, blogID, limit, offset)
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, infos)
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.ValidationError("invalid comment id")
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteMessage(w, requestID, http.StatusOK, "comment deleted")
	return nil
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
