// Package backend holds the pieces shared by the auth backend
// implementations: user records and credential validation.
package backend

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/jmcleod/incorpdash/session"
)

// MinPasswordLen is the minimum password length accepted by SignUp.
const MinPasswordLen = 8

// SigningKeyLen is the size of generated token signing keys.
const SigningKeyLen = 32

// User is the backend-side account record.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail trims, NFKC-normalizes and lower-cases an email address so
// visually identical addresses map to one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(email)))
}

// NewUser validates the credentials and returns a user with a bcrypt
// password hash and a fresh ID.
func NewUser(email, password string) (User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("%w: email is not valid", session.ErrInvalidInput)
	}
	if len(password) < MinPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", session.ErrInvalidInput, MinPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}
	return User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (u User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}
