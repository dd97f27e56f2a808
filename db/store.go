package db

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested row does not exist (or is not
	// visible to the caller's branch).
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would duplicate a unique fact.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when the row exists but belongs to another branch
	// or student.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalid is returned when input fails a domain rule.
	ErrInvalid = errors.New("invalid")
)

// Store is the relational persistence layer of the platform.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewStore wraps an open gorm handle.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{DB: db, Logger: logger, now: time.Now}
}

// Now returns the store's clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// SetClock replaces the store's clock; used by tests and tooling.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// notFound maps gorm's missing-row error to ErrNotFound and wraps the rest.
func notFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// HashPassword hashes a plain-text password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
