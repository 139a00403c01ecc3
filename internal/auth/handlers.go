package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// RefreshTokenCookie carries the refresh token; scoped to the auth routes so
// it is never sent with ordinary API calls.
const RefreshTokenCookie = "refresh_token"

const refreshCookiePath = "/api/v1/auth"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type Handlers struct {
	service      *Service
	cookieSecure bool
}

func NewHandlers(service *Service, cookieSecure bool) *Handlers {
	return &Handlers{service: service, cookieSecure: cookieSecure}
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if err := validateRegisterRequest(&req); err != nil {
		return err
	}

	resp, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return apperrors.EmailExists()
		}
		return err
	}

	h.setSessionCookies(w, resp)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusCreated, resp)
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return apperrors.InvalidCredentials()
		case errors.Is(err, ErrAccountDeactivated):
			return apperrors.AccountDeactivated()
		}
		return err
	}

	h.setSessionCookies(w, resp)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, resp)
	return nil
}

// Refresh reads the refresh token from its cookie, falling back to the
// request body, and issues a fresh access token.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	refreshToken := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	if refreshToken == "" {
		return apperrors.ValidationError("refresh token is required")
	}

	resp, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrInvalidToken):
			return apperrors.InvalidToken("invalid or expired refresh token")
		case errors.Is(err, ErrAccountDeactivated):
			return apperrors.AccountDeactivated()
		}
		return err
	}

	h.setCookie(w, AccessTokenCookie, resp.AccessToken, "/", time.Duration(resp.ExpiresIn)*time.Second)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, resp)
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	user, ok := CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		return err
	}

	h.clearCookie(w, AccessTokenCookie, "/")
	h.clearCookie(w, RefreshTokenCookie, refreshCookiePath)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteMessage(w, requestID, http.StatusOK, "logged out")
	return nil
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	user, ok := CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, NewUserInfo(user))
	return nil
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) error {
	user, ok := CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Name == "" {
		return apperrors.ValidationError("name is required")
	}
	if !emailRegex.MatchString(req.Email) {
		return apperrors.ValidationError("invalid email format")
	}

	info, err := h.service.UpdateProfile(r.Context(), user.ID, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return apperrors.EmailExists()
		}
		return err
	}

	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteData(w, requestID, http.StatusOK, info)
	return nil
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	user, ok := CurrentUser(r.Context())
	if !ok {
		return apperrors.Unauthorized("missing access token")
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if len(req.NewPassword) < 8 {
		return apperrors.ValidationError("new password must be at least 8 characters")
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return apperrors.ValidationError("current password is incorrect")
		}
		return err
	}

	h.clearCookie(w, RefreshTokenCookie, refreshCookiePath)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteMessage(w, requestID, http.StatusOK, "password changed")
	return nil
}

func (h *Handlers) setSessionCookies(w http.ResponseWriter, resp *AuthResponse) {
	h.setCookie(w, AccessTokenCookie, resp.AccessToken, "/", time.Duration(resp.ExpiresIn)*time.Second)
	h.setCookie(w, RefreshTokenCookie, resp.RefreshToken, refreshCookiePath, h.service.issuer.RefreshTTL())
}

func (h *Handlers) setCookie(w http.ResponseWriter, name, value, path string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func validateRegisterRequest(req *RegisterRequest) error {
	if req.Name == "" {
		return apperrors.ValidationError("name is required").WithDetails(map[string]any{"field": "name"})
	}
	if len(req.Name) > 100 {
		return apperrors.ValidationError("name must be at most 100 characters").WithDetails(map[string]any{"field": "name"})
	}
	if req.Email == "" {
		return apperrors.ValidationError("email is required").WithDetails(map[string]any{"field": "email"})
	}
	if !emailRegex.MatchString(req.Email) {
		return apperrors.ValidationError("invalid email format").WithDetails(map[string]any{"field": "email"})
	}
	if req.Password == "" {
		return apperrors.ValidationError("password is required").WithDetails(map[string]any{"field": "password"})
	}
	if len(req.Password) < 8 {
		return apperrors.ValidationError("password must be at least 8 characters").WithDetails(map[string]any{"field": "password"})
	}
	return nil
}
