package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-portal/internal/model"
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims carries the session identity inside an access token.
type Claims struct {
	UserID    int64      `json:"uid"`
	Role      model.Role `json:"role"`
	SessionID string     `json:"sid"`
	Guest     bool       `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager interface {
	Generate(session *model.Session) (string, error)
	Validate(token string) (*Claims, error)
}

type jwtManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenManager signs HS256 tokens. now may be nil to use time.Now.
func NewTokenManager(secret, issuer string, now func() time.Time) (TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if now == nil {
		now = time.Now
	}
	return &jwtManager{secret: []byte(secret), issuer: issuer, now: now}, nil
}

func (m *jwtManager) Generate(session *model.Session) (string, error) {
	claims := &Claims{
		UserID:    session.UserID,
		Role:      session.Role,
		SessionID: session.ID.String(),
		Guest:     session.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(session.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *jwtManager) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return nil, fmt.Errorf("%w: bad session id", ErrInvalidToken)
	}
	return claims, nil
}
