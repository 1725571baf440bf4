package security

import (
	"errors"
	"time"

	"parkwise-booking-core/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeService TokenType = "service"
)

const issuer = "parkwise-booking-core"

// ActorClaims identify who is calling: a customer or staff member with an access token, or
// an internal job with a service token.
type ActorClaims struct {
	ActorID string    `json:"actor_id"`
	Role    string    `json:"role"`
	Type    TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Actor converts the claims to a validated domain actor.
func (c *ActorClaims) Actor() (domain.Actor, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Actor{}, ErrInvalidToken
	}
	a := domain.Actor{ID: c.ActorID, Role: role}
	if err := a.Validate(); err != nil {
		return domain.Actor{}, ErrInvalidToken
	}
	return a, nil
}

type TokenManager interface {
	GenerateAccessToken(actor domain.Actor) (string, error)
	GenerateServiceToken(name string) (string, error)
	ValidateToken(tokenString string) (*ActorClaims, error)
}

type tokenManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokenManager(secret string, accessTTL time.Duration) TokenManager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &tokenManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

// GenerateAccessToken issues a token for a human actor. SYSTEM is reserved for service tokens.
func (m *tokenManager) GenerateAccessToken(actor domain.Actor) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	if actor.Role == domain.RoleSystem {
		return "", ErrWrongTokenType
	}
	return m.sign(actor.ID, actor.Role, TokenTypeAccess, m.accessTTL)
}

// GenerateServiceToken issues a short-lived SYSTEM token for internal callers such as the cron runner.
func (m *tokenManager) GenerateServiceToken(name string) (string, error) {
	return m.sign(name, domain.RoleSystem, TokenTypeService, 10*time.Minute)
}

func (m *tokenManager) sign(actorID string, role domain.Role, typ TokenType, ttl time.Duration) (string, error) {
	now := m.now()
	claims := ActorClaims{
		ActorID: actorID,
		Role:    string(role),
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{"booking-api"},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ActorID == "" {
		claims.ActorID = claims.Subject
	}
	// A SYSTEM role is only honoured on service tokens.
	role, _ := domain.ParseRole(claims.Role)
	if (claims.Type == TokenTypeService) != (role == domain.RoleSystem) {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
