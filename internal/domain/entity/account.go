package entity

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyName    = errors.New("name must not be empty")
	ErrInvalidEmail = errors.New("email is not well-formed")
)

// Account is the aggregate root for the users domain.
// The password is kept only as a bcrypt hash; the raw secret never
// leaves NewAccount.
type Account struct {
	ID        string
	Name      string
	Password  string
	Email     string
	Profile   Profile
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount builds a fresh aggregate, validating invariants and hashing
// the raw password. It has no persistence knowledge.
func NewAccount(name, rawPassword, email string, profile Profile) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.NewString(),
		Name:      name,
		Password:  string(hash),
		Email:     email,
		Profile:   profile,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Restore rebuilds an aggregate from already-validated projected state,
// e.g. when the consumer replays an AccountCreated event.
func Restore(id, name, passwordHash, email string, profile Profile, active bool) *Account {
	return &Account{
		ID:       id,
		Name:     name,
		Password: passwordHash,
		Email:    email,
		Profile:  profile,
		Active:   active,
	}
}

// VerifyPassword checks a candidate secret against the stored hash.
func (a *Account) VerifyPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(candidate)) == nil
}
