package domain

import (
	"errors"
	"strings"
	"time"
)

// User validation errors
var (
	ErrEmptyEmail = errors.New("email cannot be empty")
)

// User is an identity record. Email is the unique key and doubles as the
// owner ID stamped on every task the user creates.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser creates a User with the given profile fields. The ID is assigned by
// the store.
func NewUser(email, name, image string, isAdmin bool, now time.Time) (*User, error) {
	user := &User{
		Email:     strings.TrimSpace(email),
		Name:      name,
		Image:     image,
		IsAdmin:   isAdmin,
		CreatedAt: now.UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.Email == "" {
		return NewValidationError("email", "is required", ErrEmptyEmail)
	}
	if !validateEmailFormat(u.Email) {
		return NewValidationError("email", "is not a valid address", ErrInvalidEmail)
	}
	return nil
}

// validateEmailFormat requires a local part, an "@" and a dotted domain.
func validateEmailFormat(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.Count(email, "@") != 1 {
		return false
	}

	domainPart := email[at+1:]
	dot := strings.IndexByte(domainPart, '.')
	return dot > 0 && dot < len(domainPart)-1
}
