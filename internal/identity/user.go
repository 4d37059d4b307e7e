package identity

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned when no user has the requested id or email.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when creating a user with a taken email.
	ErrEmailExists = errors.New("email already in use")

	// ErrInvalidEmail is returned for addresses that do not parse.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidCredentials is returned by SignIn for a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the custom claims copied into every ID token.
type Claims struct {
	Admin bool `json:"admin"`
}

// User is an identity record.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;not null"`
	DisplayName  string
	PasswordHash string `gorm:"not null" json:"-"`
	Admin        bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomClaims returns the claims stored on the user.
func (u *User) CustomClaims() Claims {
	return Claims{Admin: u.Admin}
}

// UserToCreate holds the fields of a new user.
type UserToCreate struct {
	Email       string
	Password    string
	DisplayName string
}

// UserToUpdate lists the fields to change. Nil fields are left untouched.
type UserToUpdate struct {
	Email       *string
	Password    *string
	DisplayName *string
}
