package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes.
const (
	PurposeAccess = "access"
	PurposeReset  = "reset"
)

var errInvalidToken = errors.New("invalid token")

// Claims are the JWT claims of access and reset tokens.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a token service with the given signing secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID. Every token carries a unique jti so it can
// be revoked on its own.
func (s *TokenService) Issue(userID, email, purpose string, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies a token and checks that it was issued for purpose.
func (s *TokenService) Parse(tokenString, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose || claims.ID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}
