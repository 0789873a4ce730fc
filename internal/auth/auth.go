package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERADOR"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOperator
}

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}

// Session is what a successful login hands back.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}
