package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
)

// Service manages the operators allowed to read the logs and their bearer
// sessions.
type Service struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Session is a bearer token handed to an operator at login.
type Session struct {
	Token     string    `json:"token"`
	Operator  User      `json:"operator"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewService(db *sql.DB, ttl time.Duration) *Service {
	return &Service{db: db, ttl: ttl, now: time.Now}
}

// EnsureDefaultUser creates the first operator when there is none yet and
// reports whether it did.
func (s *Service) EnsureDefaultUser(ctx context.Context, username, password string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := s.CreateUser(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) CreateUser(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO users (username, password_hash) VALUES (?, ?)", username, string(hash))
	if err != nil {
		return fmt.Errorf("create user %s: %w", username, err)
	}
	return nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	var (
		user User
		hash string
	)
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load operator %s: %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	sess := &Session{Token: token, Operator: user, ExpiresAt: s.now().Add(s.ttl).UTC()}
	_, err = s.db.ExecContext(ctx, "INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)", token, user.ID, sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *Service) ValidateSession(ctx context.Context, token string) (*User, error) {
	var user User
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, s.expires_at
		FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ?
	`, token).Scan(&user.ID, &user.Username, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if s.now().After(expiresAt) {
		if err := s.Logout(ctx, token); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return &user, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
