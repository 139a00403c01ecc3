package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/openblog/backend/internal/db"
)

const BcryptCost = 12

// UserStore is the persistence surface the auth service needs. It is
// implemented by db.UserRepository; tests substitute an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*db.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetRefreshTokenHash(ctx context.Context, id uuid.UUID, tokenHash string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

type AuthResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresIn    int       `json:"expiresIn"`
	User         *UserInfo `json:"user"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

type UserInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty"`
}

func NewUserInfo(user *db.User) *UserInfo {
	return &UserInfo{
		ID:          user.ID.String(),
		Name:        user.Name,
		Email:       user.Email,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type Service struct {
	users  UserStore
	issuer *TokenIssuer
}

func NewService(users UserStore, issuer *TokenIssuer) *Service {
	return &Service{
		users:  users,
		issuer: issuer,
	}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &db.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         db.RoleReader,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.startSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			// Same error as a wrong password, no hint the email exists.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	now := time.Now()
	user.LastLoginAt = &now

	return s.startSession(ctx, user)
}

// Refresh verifies a refresh token and, when it matches the persisted
// reference on the user record, mints a new access token. The refresh token
// is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	// Logout clears the stored hash, which invalidates every previously
	// issued refresh token even before it expires.
	if user.RefreshTokenHash == "" || user.RefreshTokenHash != HashToken(refreshToken) {
		return nil, ErrInvalidToken
	}

	accessToken, _, err := s.issuer.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	return &RefreshResponse{
		AccessToken: accessToken,
		ExpiresIn:   s.issuer.AccessTTLSeconds(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.users.SetRefreshTokenHash(ctx, userID, "")
}

// ValidateAccessToken verifies a raw access token and resolves the user it
// references, excluding sensitive fields from the returned projection.
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*db.User, error) {
	claims, err := s.issuer.VerifyAccess(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	return user, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserInfo, error) {
	user, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewUserInfo(user), nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, name, email string) (*UserInfo, error) {
	if err := s.users.UpdateProfile(ctx, userID, name, email); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// ChangePassword verifies the current password before setting the new one,
// then revokes the stored refresh token so other devices must log in again.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, string(newHash)); err != nil {
		return err
	}

	return s.users.SetRefreshTokenHash(ctx, userID, "")
}

// startSession mints a token pair and persists the refresh reference.
func (s *Service) startSession(ctx context.Context, user *db.User) (*AuthResponse, error) {
	pair, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshTokenHash(ctx, user.ID, HashToken(pair.RefreshToken)); err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    s.issuer.AccessTTLSeconds(),
		User:         NewUserInfo(user),
	}, nil
}
