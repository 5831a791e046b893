package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/marketplace-messaging/config"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the claims carried by an access token. The account service
// issues tokens with either a numeric user_id claim or only an email subject.
type Claims struct {
	UserID *int64 `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates access tokens.
type JWTManager struct {
	secret   []byte
	method   jwt.SigningMethod
	duration time.Duration
	issuer   string
}

// NewJWTManager creates a JWTManager for the configured secret and algorithm.
func NewJWTManager(cfg config.JWT) (*JWTManager, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", cfg.Algorithm)
	}
	return &JWTManager{
		secret:   []byte(cfg.SecretKey),
		method:   method,
		duration: cfg.AccessTokenDuration(),
		issuer:   cfg.Issuer,
	}, nil
}

// GenerateAccessToken issues a token for userID with email as its subject.
func (m *JWTManager) GenerateAccessToken(userID int64, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: &userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return m.sign(claims)
}

// GenerateSubjectToken issues a token that only carries an email subject.
func (m *JWTManager) GenerateSubjectToken(email string) (string, error) {
	now := time.Now()
	return m.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

func (m *JWTManager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(m.method, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates the token and returns its claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{m.method.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == nil && claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
