// Package identity stores user accounts and issues the signed ID tokens
// callers present to the API. Custom claims live on the user record and are
// copied into each token when it is issued.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"billing/internal/logger"
)

// Store manages users in a gorm database.
type Store struct {
	db     *gorm.DB
	tokens *TokenIssuer
	log    zerolog.Logger
}

// NewStore migrates the users table and returns a store.
func NewStore(db *gorm.DB, tokens *TokenIssuer) (*Store, error) {
	const op = "NewStore"

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("%s: failed to migrate users: %w", op, err)
	}
	return &Store{
		db:     db,
		tokens: tokens,
		log:    logger.WithComponent("identity"),
	}, nil
}

// CreateUser creates a user with a hashed password.
func (s *Store) CreateUser(ctx context.Context, in UserToCreate) (*User, error) {
	const op = "CreateUser"

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailExists)
		}
		return nil, fmt.Errorf("%s: failed to insert user: %w", op, err)
	}

	s.log.Info().Str("uid", u.ID).Str("email", u.Email).Msg("User created")
	return u, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	const op = "GetUser"

	var u User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %s: %w", op, id, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// GetUserByEmail returns the user registered with email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	const op = "GetUserByEmail"

	var u User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// ListUsers returns every user ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	const op = "ListUsers"

	var users []User
	if err := s.db.WithContext(ctx).Order("email").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of in to the user with id.
func (s *Store) UpdateUser(ctx context.Context, id string, in UserToUpdate) (*User, error) {
	const op = "UpdateUser"

	updates := map[string]interface{}{}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		updates["email"] = email
	}
	if in.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*in.DisplayName)
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		updates["password_hash"] = hash
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(updates) == 0 {
		return u, nil
	}

	if err := s.db.WithContext(ctx).Model(u).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user with id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	const op = "DeleteUser"

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %s: %w", op, id, ErrUserNotFound)
	}

	s.log.Info().Str("uid", id).Msg("User deleted")
	return nil
}

// SetCustomClaims replaces the custom claims of the user with id. Tokens
// issued earlier keep the claims they were signed with.
func (s *Store) SetCustomClaims(ctx context.Context, id string, claims Claims) error {
	const op = "SetCustomClaims"

	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("admin", claims.Admin)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %s: %w", op, id, ErrUserNotFound)
	}

	s.log.Info().Str("uid", id).Bool("admin", claims.Admin).Msg("Custom claims updated")
	return nil
}

// SignInResult is a freshly issued ID token.
type SignInResult struct {
	IDToken   string
	ExpiresIn int64 // seconds
	User      *User
}

// SignIn checks email and password and issues an ID token.
func (s *Store) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	const op = "SignIn"

	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.Warn().Str("uid", u.ID).Msg("Sign-in with wrong password")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, _, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SignInResult{
		IDToken:   token,
		ExpiresIn: int64(s.tokens.ttl.Seconds()),
		User:      u,
	}, nil
}

// VerifyIDToken verifies a token issued by SignIn.
func (s *Store) VerifyIDToken(_ context.Context, idToken string) (*Token, error) {
	return s.tokens.Verify(idToken)
}

var validate = validator.New()

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
