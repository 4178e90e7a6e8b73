// Package auth is the identity context: user registration, login, and
// the request middleware that resolves a bearer token into a
// principal. Business logic never reads authentication state directly;
// handlers pull the user ID out of the request context and pass it
// down as an explicit argument.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/banksys/banking-backend/internal/errs"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models"
)

// defaultRole is assigned to every self-registered user.
const defaultRole = "USER"

// Service issues and verifies credentials.
type Service struct {
	users  interfaces.UserStore
	secret []byte
	ttl    time.Duration
}

// NewService creates the auth service. secret signs HS256 tokens; ttl
// bounds their validity.
func NewService(users interfaces.UserStore, secret string, ttl time.Duration) *Service {
	return &Service{users: users, secret: []byte(secret), ttl: ttl}
}

// Register creates a user with a bcrypt-hashed password and returns a
// signed token. Duplicate usernames fail with ErrInvalidArgument.
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required: %w", errs.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         defaultRole,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", errs.Storage(err)
	}
	return s.issueToken(user.ID)
}

// Login verifies the password against the stored hash and returns a
// fresh token. Unknown users and wrong passwords are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", fmt.Errorf("bad credentials: %w", errs.ErrUnauthenticated)
		}
		return "", errs.Storage(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("bad credentials: %w", errs.ErrUnauthenticated)
	}
	return s.issueToken(user.ID)
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verifyToken parses and validates a signed token, returning the
// subject user ID.
func (s *Service) verifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid token: %w", errs.ErrUnauthenticated)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims: %w", errs.ErrUnauthenticated)
	}
	return claims.Subject, nil
}
