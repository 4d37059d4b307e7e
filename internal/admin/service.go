// Package admin implements the user administration operations: listing,
// creating, updating and deleting users, keeping the admin claim in sync
// with profile documents and sending onboarding email.
//
// Every operation except SignIn and Bootstrap requires a caller holding the
// admin claim. Multi-step operations are not transactional: a failure after
// the identity record is written leaves the earlier steps in place and is
// logged as a partial failure.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"billing/internal/identity"
	"billing/internal/logger"
	"billing/internal/mailer"
	"billing/internal/profiles"
)

// DefaultMinPasswordLength is the shortest password accepted.
const DefaultMinPasswordLength = 6

// IdentityStore is the identity provider the service manages users in.
type IdentityStore interface {
	CreateUser(ctx context.Context, in identity.UserToCreate) (*identity.User, error)
	GetUser(ctx context.Context, id string) (*identity.User, error)
	UpdateUser(ctx context.Context, id string, in identity.UserToUpdate) (*identity.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]identity.User, error)
	SetCustomClaims(ctx context.Context, id string, claims identity.Claims) error
	SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error)
}

// ProfileStore holds the per-user profile documents.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*profiles.Profile, error)
	List(ctx context.Context) (map[string]profiles.Profile, error)
	Set(ctx context.Context, p profiles.Profile) error
	Update(ctx context.Context, id string, fields profiles.Fields) error
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators of the service, constructed at startup.
type Deps struct {
	Identity          IdentityStore
	Profiles          ProfileStore
	Mailer            mailer.Mailer
	MinPasswordLength int
}

// Caller is the verified identity behind a request.
type Caller struct {
	UID   string
	Email string
	Admin bool
}

// CallerFromToken converts a verified ID token.
func CallerFromToken(t *identity.Token) *Caller {
	if t == nil {
		return nil
	}
	return &Caller{UID: t.UID, Email: t.Email, Admin: t.Claims.Admin}
}

// UserRecord is one entry of the user list.
type UserRecord struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	IsAdmin     bool     `json:"isAdmin"`
	Permissions []string `json:"permissions"`
}

// CreateUserRequest is the input of CreateUser.
type CreateUserRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6,max=72"`
	Name        string   `json:"name"`
	IsAdmin     bool     `json:"isAdmin"`
	Permissions []string `json:"permissions"`
}

// UpdateUserRequest is the input of UpdateUser.
type UpdateUserRequest struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name"`
	IsAdmin     bool     `json:"isAdmin"`
	Permissions []string `json:"permissions"`
}

// Service runs the admin operations.
type Service struct {
	deps Deps
	log  zerolog.Logger
}

// New creates the service.
func New(deps Deps) *Service {
	if deps.MinPasswordLength < DefaultMinPasswordLength {
		deps.MinPasswordLength = DefaultMinPasswordLength
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.NewNop()
	}
	return &Service{
		deps: deps,
		log:  logger.WithComponent("admin"),
	}
}

func requireAdmin(op string, caller *Caller) error {
	if caller == nil || caller.UID == "" {
		return newError(op, ErrUnauthenticated, nil)
	}
	if !caller.Admin {
		return newError(op, ErrPermissionDenied, nil)
	}
	return nil
}

// ListUsers returns every user merged with its profile document.
func (s *Service) ListUsers(ctx context.Context, caller *Caller) ([]UserRecord, error) {
	const op = "ListUsers"

	if err := requireAdmin(op, caller); err != nil {
		return nil, err
	}

	users, err := s.deps.Identity.ListUsers(ctx)
	if err != nil {
		return nil, s.internal(op, err)
	}
	docs, err := s.deps.Profiles.List(ctx)
	if err != nil {
		return nil, s.internal(op, err)
	}

	out := make([]UserRecord, 0, len(users))
	for _, u := range users {
		rec := UserRecord{
			ID:          u.ID,
			Email:       u.Email,
			Name:        u.DisplayName,
			IsAdmin:     u.Admin,
			Permissions: []string{},
		}
		if doc, ok := docs[u.ID]; ok {
			if doc.Name != "" {
				rec.Name = doc.Name
			}
			rec.IsAdmin = doc.IsAdmin
			rec.Permissions = append(rec.Permissions, doc.Permissions...)
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreateUser creates the identity, sets its admin claim and writes the
// profile document.
func (s *Service) CreateUser(ctx context.Context, caller *Caller, req CreateUserRequest) (string, error) {
	const op = "CreateUser"

	if err := requireAdmin(op, caller); err != nil {
		return "", err
	}
	return s.createUser(ctx, op, caller.UID, req)
}

// Bootstrap creates the first administrator. It is refused once any user exists.
func (s *Service) Bootstrap(ctx context.Context, req CreateUserRequest) (string, error) {
	const op = "Bootstrap"

	users, err := s.deps.Identity.ListUsers(ctx)
	if err != nil {
		return "", s.internal(op, err)
	}
	if len(users) > 0 {
		return "", newError(op, ErrPermissionDenied, errors.New("users already exist"))
	}

	req.IsAdmin = true
	return s.createUser(ctx, op, "bootstrap", req)
}

func (s *Service) createUser(ctx context.Context, op, actor string, req CreateUserRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return "", err
	}
	if err := checkPassword(req.Password, s.deps.MinPasswordLength); err != nil {
		return "", err
	}
	perms := cleanPermissions(req.Permissions)

	user, err := s.deps.Identity.CreateUser(ctx, identity.UserToCreate{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	})
	switch {
	case errors.Is(err, identity.ErrEmailExists):
		return "", newError(op, ErrAlreadyExists, err)
	case errors.Is(err, identity.ErrInvalidEmail):
		return "", NewValidationError("email", "email address is invalid")
	case err != nil:
		return "", s.internal(op, err)
	}

	log := logger.WithUserID(user.ID).With().Str("component", "admin").Str("actor", actor).Logger()

	if err := s.deps.Identity.SetCustomClaims(ctx, user.ID, identity.Claims{Admin: req.IsAdmin}); err != nil {
		log.Error().Err(err).Str("step", "set_claims").Msg("Partial failure creating user: identity created without claims")
		return "", s.internal(op, err)
	}

	err = s.deps.Profiles.Set(ctx, profiles.Profile{
		ID:          user.ID,
		Name:        req.Name,
		Email:       user.Email,
		IsAdmin:     req.IsAdmin,
		Permissions: perms,
	})
	if err != nil {
		log.Error().Err(err).Str("step", "write_profile").Msg("Partial failure creating user: identity created without profile")
		return "", s.internal(op, err)
	}

	log.Info().Str("email", user.Email).Bool("admin", req.IsAdmin).Msg("User created")
	return fmt.Sprintf("Usuário %s criado com sucesso.", user.Email), nil
}

// UpdateUser changes the name, admin claim and permissions of a user.
func (s *Service) UpdateUser(ctx context.Context, caller *Caller, req UpdateUserRequest) (string, error) {
	const op = "UpdateUser"

	if err := requireAdmin(op, caller); err != nil {
		return "", err
	}
	req.ID = strings.TrimSpace(req.ID)
	if err := validateStruct(req); err != nil {
		return "", err
	}
	name := strings.TrimSpace(req.Name)
	perms := cleanPermissions(req.Permissions)

	user, err := s.deps.Identity.UpdateUser(ctx, req.ID, identity.UserToUpdate{DisplayName: &name})
	if errors.Is(err, identity.ErrUserNotFound) {
		return "", newError(op, ErrNotFound, err)
	}
	if err != nil {
		return "", s.internal(op, err)
	}

	log := logger.WithUserID(user.ID).With().Str("component", "admin").Str("actor", caller.UID).Logger()

	if err := s.deps.Identity.SetCustomClaims(ctx, user.ID, identity.Claims{Admin: req.IsAdmin}); err != nil {
		log.Error().Err(err).Str("step", "set_claims").Msg("Partial failure updating user")
		return "", s.internal(op, err)
	}

	_, err = s.deps.Profiles.Get(ctx, user.ID)
	switch {
	case errors.Is(err, profiles.ErrNotFound):
		err = s.deps.Profiles.Set(ctx, profiles.Profile{
			ID:          user.ID,
			Name:        name,
			Email:       user.Email,
			IsAdmin:     req.IsAdmin,
			Permissions: perms,
		})
	case err == nil:
		p := []string(perms)
		err = s.deps.Profiles.Update(ctx, user.ID, profiles.Fields{
			Name:        &name,
			IsAdmin:     &req.IsAdmin,
			Permissions: &p,
		})
	}
	if err != nil {
		log.Error().Err(err).Str("step", "write_profile").Msg("Partial failure updating user")
		return "", s.internal(op, err)
	}

	log.Info().Bool("admin", req.IsAdmin).Strs("permissions", perms).Msg("User updated")
	return "Usuário atualizado com sucesso.", nil
}

// DeleteUser removes the identity and the profile document.
func (s *Service) DeleteUser(ctx context.Context, caller *Caller, id string) (string, error) {
	const op = "DeleteUser"

	if err := requireAdmin(op, caller); err != nil {
		return "", err
	}
	if err := checkID(id); err != nil {
		return "", err
	}

	err := s.deps.Identity.DeleteUser(ctx, id)
	if errors.Is(err, identity.ErrUserNotFound) {
		return "", newError(op, ErrNotFound, err)
	}
	if err != nil {
		return "", s.internal(op, err)
	}

	if err := s.deps.Profiles.Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("uid", id).Str("step", "delete_profile").Msg("Partial failure deleting user: profile left behind")
		return "", s.internal(op, err)
	}

	s.log.Info().Str("uid", id).Str("actor", caller.UID).Msg("User deleted")
	return "Usuário excluído com sucesso.", nil
}

// SendWelcomeEmail sends the onboarding message to an existing user.
func (s *Service) SendWelcomeEmail(ctx context.Context, caller *Caller, id string) (string, error) {
	const op = "SendWelcomeEmail"

	if err := requireAdmin(op, caller); err != nil {
		return "", err
	}
	if err := checkID(id); err != nil {
		return "", err
	}

	user, err := s.deps.Identity.GetUser(ctx, id)
	if errors.Is(err, identity.ErrUserNotFound) {
		return "", newError(op, ErrNotFound, err)
	}
	if err != nil {
		return "", s.internal(op, err)
	}

	name := user.DisplayName
	if doc, err := s.deps.Profiles.Get(ctx, id); err == nil && doc.Name != "" {
		name = doc.Name
	}

	if err := s.deps.Mailer.SendWelcome(ctx, mailer.Welcome{To: user.Email, Name: name}); err != nil {
		return "", s.internal(op, err)
	}
	return fmt.Sprintf("E-mail de boas-vindas enviado para %s.", user.Email), nil
}

// SyncAdminClaim mirrors the isAdmin flag of a written profile onto the
// identity's custom claims. It is registered as a profile write listener,
// skips the write when the claim already matches, and ignores profiles
// whose identity no longer exists.
func (s *Service) SyncAdminClaim(ctx context.Context, change profiles.Change) error {
	const op = "SyncAdminClaim"

	if change.After == nil {
		return nil
	}
	want := change.After.IsAdmin

	user, err := s.deps.Identity.GetUser(ctx, change.ID)
	if errors.Is(err, identity.ErrUserNotFound) {
		s.log.Warn().Str("uid", change.ID).Msg("Profile written for unknown user, claim not synced")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.Admin == want {
		s.log.Debug().Str("uid", user.ID).Bool("admin", want).Msg("Admin claim already in sync")
		return nil
	}

	if err := s.deps.Identity.SetCustomClaims(ctx, user.ID, identity.Claims{Admin: want}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Str("uid", user.ID).Bool("admin", want).Msg("Admin claim synced from profile")
	return nil
}

// SignIn exchanges email and password for an ID token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error) {
	const op = "SignIn"

	if strings.TrimSpace(email) == "" {
		return nil, NewValidationError("email", "email is required")
	}
	if password == "" {
		return nil, NewValidationError("password", "password is required")
	}

	res, err := s.deps.Identity.SignIn(ctx, email, password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return nil, newError(op, ErrUnauthenticated, err)
	}
	if err != nil {
		return nil, s.internal(op, err)
	}
	return res, nil
}

func (s *Service) internal(op string, err error) error {
	s.log.Error().Err(err).Str("op", op).Msg("Admin operation failed")
	return newError(op, ErrInternal, err)
}

func cleanPermissions(in []string) profiles.Permissions {
	out := profiles.Permissions{}
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
