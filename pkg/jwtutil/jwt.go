package jwtutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
)

var (
	signingKey  []byte
	issuer      string
	sessionTTL  time.Duration
	maxLifetime time.Duration
)

// ErrSessionLifetimeExceeded is returned when a refresh would extend the
// session past the maximum lifetime counted from the original
// authentication. The user must authenticate again.
var ErrSessionLifetimeExceeded = errors.New("session lifetime exceeded")

// SessionClaims carries the user profile inside the session token so pages
// can render without a user lookup. AuthTime is the original authentication
// instant (unix seconds) and survives refreshes; it anchors the lifetime cap.
type SessionClaims struct {
	UserID            uint       `json:"user_id"`
	PhoneNumber       string     `json:"phone_number"`
	Email             string     `json:"email,omitempty"`
	Name              string     `json:"name,omitempty"`
	Role              string     `json:"role"`
	AddressStreet     string     `json:"address_street,omitempty"`
	AddressPostalCode string     `json:"address_postal_code,omitempty"`
	AddressRegion     string     `json:"address_region,omitempty"`
	TermsAccepted     bool       `json:"terms_accepted"`
	TermsVersion      string     `json:"terms_version,omitempty"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	UserCreatedAt     time.Time  `json:"user_created_at"`
	UserUpdatedAt     time.Time  `json:"user_updated_at"`
	AuthTime          int64      `json:"auth_time"`
	jwt.RegisteredClaims
}

// Initialize configures the package with the JWT settings. Must be called
// once at startup before tokens are generated or validated.
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	issuer = cfg.Issuer
	sessionTTL = cfg.SessionTTL
	maxLifetime = cfg.MaxLifetime
}

// GenerateToken creates a session token for the user. The expiry is the
// earlier of now+sessionTTL and authTime+maxLifetime, so silent refreshes
// never extend a session past the cap. Pass time.Now() as authTime for a
// fresh login and the AuthTime claim of the previous token for a refresh.
func GenerateToken(user *model.User, authTime time.Time) (string, error) {
	now := time.Now()
	capAt := authTime.Add(maxLifetime)
	if !now.Before(capAt) {
		return "", ErrSessionLifetimeExceeded
	}

	expiresAt := now.Add(sessionTTL)
	if expiresAt.After(capAt) {
		expiresAt = capAt
	}

	var email string
	if user.Email != nil {
		email = *user.Email
	}

	claims := SessionClaims{
		UserID:            user.ID,
		PhoneNumber:       user.PhoneNumber,
		Email:             email,
		Name:              user.Name,
		Role:              user.Role,
		AddressStreet:     user.AddressStreet,
		AddressPostalCode: user.AddressPostalCode,
		AddressRegion:     user.AddressRegion,
		TermsAccepted:     user.TermsAccepted,
		TermsVersion:      user.TermsVersion,
		LastLoginAt:       user.LastLoginAt,
		UserCreatedAt:     user.CreatedAt,
		UserUpdatedAt:     user.UpdatedAt,
		AuthTime:          authTime.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the session token
func ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
