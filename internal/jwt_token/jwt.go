package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "soulbound/pkg/domain-errors"
)

const (
	tokenIssuer   = "soulbound"
	tokenAudience = "governance"
)

// Claims carries the governance actor identity inside a bearer token.
type Claims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

// Service issues and validates short-lived governance bearer tokens.
// Tokens are signed with the deployment's governance secret, so holding
// the root admin token is what lets an operator delegate access.
type Service struct {
	signingKey []byte
}

func NewService(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("jwt service requires a signing key")
	}
	return &Service{signingKey: []byte(signingKey)}, nil
}

// Issue creates a token naming the acting operator, valid for expiresIn.
func (s *Service) Issue(actor string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Actor: actor,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Audience:  []string{tokenAudience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses and verifies a token, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.Actor == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no actor")
	}
	return claims, nil
}
