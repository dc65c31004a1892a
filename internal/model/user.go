package model

import (
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// User is a portal account. PasswordHash never leaves the service layer.
type User struct {
	ID             int64     `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	Name           string    `json:"name" db:"name"`
	Phone          string    `json:"phone" db:"phone"`
	Role           Role      `json:"role" db:"role"`
	Specialization string    `json:"specialization,omitempty" db:"specialization"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

func (u *User) IsDoctor() bool {
	return u.Role == RoleDoctor
}

// Clone returns a copy safe to hand out of a registry.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,emailshape"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
}

type UpdateUserRequest struct {
	Email          *string `json:"email" binding:"omitempty,emailshape"`
	Password       *string `json:"password" binding:"omitempty,min=6"`
	Name           *string `json:"name" binding:"omitempty,min=1"`
	Phone          *string `json:"phone" binding:"omitempty,min=1"`
	Specialization *string `json:"specialization"`
}
