package blog

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/storage"
)

const (
	maxTitleLen   = 200
	maxContentLen = 200_000

	coverURLExpiry = 15 * time.Minute
)

var allowedCoverTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type CreateBlogRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type UpdateBlogRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	CoverKey *string `json:"coverKey"`
	Status   *string `json:"status"`
}

type CoverUploadRequest struct {
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

type CoverUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	CoverKey  string `json:"coverKey"`
	ExpiresIn int    `json:"expiresIn"`
}

type Handlers struct {
	service *Service
	store   *storage.Client
}

// NewHandlers wires the blog HTTP surface. store may be nil when no
// object storage is configured; cover endpoints then report an error.
func NewHandlers(service *Service, store *storage.Client) *Handlers {
	return &Handlers{service: service, store: store}
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	var req CreateBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if err := validateBlogFields(req.Title, req.Content); err != nil {
		return err
	}

	info, err := h.service.Create(r.Context(), user, CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Status:  db.BlogStatus(req.Status),
	})
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusCreated, info)
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := auth.CurrentUser(r.Context())
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	infos, err := h.service.List(r.Context(), viewer, limit, offset)
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, infos)
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := auth.CurrentUser(r.Context())
	slug := r.PathValue("slug")

	info, err := h.service.GetBySlug(r.Context(), viewer, slug)
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, info)
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	id, err := parseBlogID(r)
	if err != nil {
		return err
	}

	var req UpdateBlogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			return err
		}
	}
	if req.Content != nil && len(*req.Content) > maxContentLen {
		return apperrors.ValidationError("content is too long")
	}

	input := UpdateInput{
		Title:    req.Title,
		Content:  req.Content,
		CoverKey: req.CoverKey,
	}
	if req.Status != nil {
		status := db.BlogStatus(*req.Status)
		input.Status = &status
	}

	info, err := h.service.Update(r.Context(), user, id, input)
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, info)
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	id, err := parseBlogID(r)
	if err != nil {
		return err
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteMessage(w, requestID, http.StatusOK, "blog deleted")
	return nil
}

func (h *Handlers) Like(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	id, err := parseBlogID(r)
	if err != nil {
		return err
	}

	likes, err := h.service.Like(r.Context(), user, id)
	if err != nil {
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, map[string]any{"likeCount": likes})
	return nil
}

// CoverUploadURL hands the author a presigned PUT URL so the image
// bytes never pass through the API server.
func (h *Handlers) CoverUploadURL(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}
	if h.store == nil {
		return apperrors.StorageError("object storage is not configured")
	}

	id, err := parseBlogID(r)
	if err != nil {
		return err
	}

	var req CoverUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}
	contentType := strings.ToLower(req.ContentType)
	if _, ok := allowedCoverTypes[contentType]; !ok {
		return apperrors.ValidationError("unsupported cover image type")
	}

	// Ownership gate: only the author or an admin may attach a cover.
	blog, err := h.service.blogs.GetByID(r.Context(), id)
	if err != nil {
		return mapBlogError(err)
	}
	if err := auth.AuthorizeOwner(user, blog); err != nil {
		return err
	}

	key := storage.CoverKey(id, req.Filename)
	uploadURL, err := h.store.PresignPut(r.Context(), key, contentType, coverURLExpiry)
	if err != nil {
		return apperrors.StorageError("failed to create upload URL").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, CoverUploadResponse{
		UploadURL: uploadURL,
		CoverKey:  key,
		ExpiresIn: int(coverURLExpiry.Seconds()),
	})
	return nil
}

// CoverURL returns a time-limited download URL for a post's cover.
func (h *Handlers) CoverURL(w http.ResponseWriter, r *http.Request) error {
	if h.store == nil {
		return apperrors.StorageError("object storage is not configured")
	}

	viewer, _ := auth.CurrentUser(r.Context())
	slug := r.PathValue("slug")

	blog, err := h.service.Resolve(r.Context(), viewer, slug)
	if err != nil {
		return err
	}
	if blog.CoverKey == "" {
		return apperrors.NotFound("cover image")
	}

	url, err := h.store.PresignGet(r.Context(), blog.CoverKey, coverURLExpiry)
	if err != nil {
		return apperrors.StorageError("failed to create download URL").WithCause(err)
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, map[string]any{
		"url":       url,
		"expiresIn": int(coverURLExpiry.Seconds()),
	})
	return nil
}

func parseBlogID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid blog id")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func validateBlogFields(title, content string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	if len(content) > maxContentLen {
		return apperrors.ValidationError("content is too long")
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.ValidationError("title is required").WithDetails(map[string]any{"field": "title"})
	}
	if len(title) > maxTitleLen {
		return apperrors.ValidationError("title must be at most 200 characters").WithDetails(map[string]any{"field": "title"})
	}
	return nil
}
