package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/openblog/backend/internal/errors"
)

func newTestHandlers() (*Handlers, *Service) {
	svc, _ := newTestService()
	return NewHandlers(svc, false), svc
}

func postJSON(t *testing.T, handler apperrors.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	apperrors.HandleFunc(handler).ServeHTTP(rec, req)
	return rec
}

func decodeAuthData(t *testing.T, rec *httptest.ResponseRecorder) *AuthResponse {
	t.Helper()
	var envelope struct {
		Success bool          `json:"success"`
		Data    *AuthResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success || envelope.Data == nil {
		t.Fatalf("expected success envelope with data, got %+v", envelope)
	}
	return envelope.Data
}

func TestRegisterLoginScenario(t *testing.T) {
	h, _ := newTestHandlers()

	rec := postJSON(t, h.Register, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.Login, "/api/v1/auth/login",
		`{"email":"alice@example.com","password":"Secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeAuthData(t, rec)
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("expected access and refresh tokens")
	}
	if resp.User == nil || resp.User.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", resp.User)
	}

	// The serialized user must not leak the password hash.
	if strings.Contains(rec.Body.String(), "passwordHash") || strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("response must not contain a password hash field")
	}

	// Both auth cookies are set.
	cookies := rec.Result().Cookies()
	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
		if !c.HttpOnly {
			t.Errorf("cookie %s should be HttpOnly", c.Name)
		}
	}
	if !names[AccessTokenCookie] || !names[RefreshTokenCookie] {
		t.Errorf("expected both auth cookies, got %v", names)
	}
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	h, _ := newTestHandlers()
	postJSON(t, h.Register, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)

	tests := []struct {
		name string
		body string
	}{
		{"wrong password", `{"email":"alice@example.com","password":"WrongPass"}`},
		{"unknown email", `{"email":"nobody@example.com","password":"Secret123"}`},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Login, "/api/v1/auth/login", tt.body)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if code := decodeErrorCodeFromBody(t, rec.Body.String()); code != apperrors.CodeInvalidCredentials {
				t.Errorf("expected INVALID_CREDENTIALS, got %s", code)
			}
			bodies = append(bodies, rec.Body.String())
		})
	}

	// Identical bodies, no hint whether the email exists.
	if len(bodies) == 2 && bodies[0] != bodies[1] {
		t.Error("wrong-password and unknown-email responses must be indistinguishable")
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandlers()

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@example.com","password":"Secret123"}`},
		{"bad email", `{"name":"A","email":"notanemail","password":"Secret123"}`},
		{"short password", `{"name":"A","email":"a@example.com","password":"short"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Register, "/api/v1/auth/register", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	h, _ := newTestHandlers()
	body := `{"name":"Alice","email":"alice@example.com","password":"Secret123"}`
	postJSON(t, h.Register, "/api/v1/auth/register", body)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := decodeErrorCodeFromBody(t, rec.Body.String()); code != apperrors.CodeEmailExists {
		t.Errorf("expected EMAIL_EXISTS, got %s", code)
	}
}

func TestRefreshWithCookie(t *testing.T) {
	h, _ := newTestHandlers()
	rec := postJSON(t, h.Register, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	resp := decodeAuthData(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: resp.RefreshToken})
	refreshRec := httptest.NewRecorder()
	apperrors.HandleFunc(h.Refresh).ServeHTTP(refreshRec, req)

	if refreshRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", refreshRec.Code, refreshRec.Body.String())
	}

	var envelope struct {
		Data RefreshResponse `json:"data"`
	}
	if err := json.NewDecoder(refreshRec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode refresh response: %v", err)
	}
	if envelope.Data.AccessToken == "" {
		t.Error("expected a new access token")
	}
}

func TestRefreshInvalidCookie(t *testing.T) {
	h, _ := newTestHandlers()
	postJSON(t, h.Register, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "tampered"})
	rec := httptest.NewRecorder()
	apperrors.HandleFunc(h.Refresh).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "accessToken") {
		t.Error("failed refresh must not issue a token")
	}
}

func TestRefreshBodyFallback(t *testing.T) {
	h, _ := newTestHandlers()
	rec := postJSON(t, h.Register, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	resp := decodeAuthData(t, rec)

	refreshRec := postJSON(t, h.Refresh, "/api/v1/auth/refresh",
		`{"refreshToken":"`+resp.RefreshToken+`"}`)
	if refreshRec.Code != http.StatusOK {
		t.Fatalf("expected 200 via body fallback, got %d", refreshRec.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	h, svc := newTestHandlers()
	rec := postJSON(t, h.Register, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"Secret123"}`)
	resp := decodeAuthData(t, rec)

	user, err := svc.ValidateAccessToken(t.Context(), resp.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(WithUser(req.Context(), user))
	logoutRec := httptest.NewRecorder()
	apperrors.HandleFunc(h.Logout).ServeHTTP(logoutRec, req)

	if logoutRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", logoutRec.Code)
	}

	cleared := 0
	for _, c := range logoutRec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 2 {
		t.Errorf("expected both cookies cleared, got %d", cleared)
	}
}
