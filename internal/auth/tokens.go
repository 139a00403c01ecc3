package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openblog/backend/internal/db"
)

const issuerName = "openblog"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrAccountDeactivated = errors.New("account deactivated")
)

// AccessClaims is the claim set carried by short-lived access tokens.
type AccessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by long-lived refresh tokens.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenPair is the result of minting both tokens for a user.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// TokenIssuer mints and verifies access and refresh tokens. The two token
// kinds are signed with distinct secrets, so one cannot stand in for the
// other. Issuing has no side effects; persisting the refresh reference is
// the caller's job.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// Issue mints an access/refresh token pair for the given user identity.
func (i *TokenIssuer) Issue(userID uuid.UUID, role db.Role) (*TokenPair, error) {
	accessToken, expiresAt, err := i.IssueAccess(userID, role)
	if err != nil {
		return nil, err
	}

	now := i.now()
	refreshClaims := &RefreshClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuerName,
		},
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(i.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: expiresAt,
	}, nil
}

// IssueAccess mints only an access token, used by the refresh flow.
func (i *TokenIssuer) IssueAccess(userID uuid.UUID, role db.Role) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.accessTTL)
	claims := &AccessClaims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuerName,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// VerifyAccess checks an access token's signature and expiration. An expired
// token is reported as ErrTokenExpired so callers can trigger the refresh
// flow instead of forcing a logout; every other failure is ErrInvalidToken.
func (i *TokenIssuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	err := i.parse(tokenString, claims, i.accessSecret)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token against the refresh secret.
func (i *TokenIssuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	err := i.parse(tokenString, claims, i.refreshSecret)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// AccessTTLSeconds returns the access token lifetime for expiresIn fields.
func (i *TokenIssuer) AccessTTLSeconds() int {
	return int(i.accessTTL.Seconds())
}

// RefreshTTL returns the refresh token lifetime, used for cookie expiry.
func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// HashToken returns the SHA-256 hex digest of a token. Only the digest is
// persisted, never the token itself.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
