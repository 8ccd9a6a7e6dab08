package auth

import (
	"errors"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeBearer = "bearer"

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 access tokens.
type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTIssuer(secret, issuer string) (*JWTIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	return &JWTIssuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func (i *JWTIssuer) Issue(subject, role string, ttl time.Duration) (domain.Token, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{AccessToken: signed, TokenType: tokenTypeBearer, ExpiresAt: expiresAt}, nil
}

func (i *JWTIssuer) Parse(tokenString string) (domain.Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return domain.Principal{}, err
	}
	if !parsed.Valid || c.Subject == "" {
		return domain.Principal{}, errors.New("invalid token claims")
	}
	return domain.Principal{Username: c.Subject, Role: c.Role}, nil
}
