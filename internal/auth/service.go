package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=auth

type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpsertUser(ctx context.Context, u *User) error
}

// Claims are carried by every access token.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	repo   Repository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(repo Repository, secret string, ttl time.Duration) *Service {
	return &Service{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Login checks the password and issues a token. Unknown, inactive and
// mismatching users all fail with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if !u.Active {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.issue(u)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", "user_id", u.ID, "role", u.Role)

	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

func (s *Service) issue(u *User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return signed, expires, nil
}

func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// Seed creates a user or resets the password, name and role of an existing
// one. Used to bootstrap the first account.
func (s *Service) Seed(ctx context.Context, email, name, password string, role Role) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}

	if err := s.repo.UpsertUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
