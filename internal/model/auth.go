package model

import (
	"time"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,emailshape"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required,oneof=patient doctor"`
}

// Session is the server-side record behind an access token.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"userId"`
	Role      Role      `json:"role"`
	Guest     bool      `json:"guest"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user,omitempty"`
	Guest     bool      `json:"guest,omitempty"`
}
