// Package directory is the user store behind the auth service: registration,
// credential checks, token issuance and the user listings the dashboards use.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"onboard/internal/config"
	"onboard/internal/domain"
	"onboard/internal/engine"
	"onboard/internal/repo"
)

type Directory struct {
	Repo   repo.Repo
	Config *config.Config
	Log    zerolog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log zerolog.Logger) Directory {
	return Directory{Repo: repo.Repo{DB: db}, Config: cfg, Log: log, Now: time.Now}
}

func (d Directory) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

type RegisterOptions struct {
	Name      string
	Email     string
	Password  string
	Role      string
	ManagerID string
}

func validRole(role string) bool {
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee:
		return true
	}
	return false
}

func (d Directory) Register(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	if opts.Name == "" || opts.Email == "" || opts.Password == "" {
		return domain.User{}, engine.ValidationError{Message: "name, email and password are required"}
	}
	role := strings.ToUpper(strings.TrimSpace(opts.Role))
	if role == "" {
		role = domain.RoleEmployee
	}
	if !validRole(role) {
		return domain.User{}, engine.ValidationError{Message: "role must be ADMIN, MANAGER or EMPLOYEE"}
	}
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if _, err := d.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, engine.ValidationError{Message: "email already registered"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:            uuid.New().String(),
		Name:          opts.Name,
		Email:         email,
		PasswordHash:  string(hash),
		Role:          role,
		DateOfJoining: d.now().UTC().Format(time.RFC3339),
	}
	if opts.ManagerID != "" {
		u.ManagerID = &opts.ManagerID
	}
	if err := d.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	d.Log.Info().Str("user", u.ID).Str("role", u.Role).Msg("user registered")
	return u, nil
}

// Login checks the credentials and issues a signed token. Bad email and bad
// password return the same message so the endpoint does not leak which
// accounts exist.
func (d Directory) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	u, err := d.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, "", engine.ValidationError{Message: "invalid credentials"}
	}
	if err != nil {
		return domain.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, "", engine.ValidationError{Message: "invalid credentials"}
	}
	token, err := d.issueToken(u)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

func (d Directory) issueToken(u domain.User) (string, error) {
	ttl := time.Duration(d.Config.Auth.TokenTTLHours) * time.Hour
	now := d.now().UTC()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": u.Role,
		"name": u.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(d.Config.Auth.JWTSecret))
}

// ListUsers returns every user, newest hire first. role filters when set.
func (d Directory) ListUsers(ctx context.Context, role string) ([]domain.User, error) {
	if role != "" {
		role = strings.ToUpper(strings.TrimSpace(role))
		if !validRole(role) {
			return nil, engine.ValidationError{Message: "unknown role"}
		}
	}
	return d.Repo.ListUsers(ctx, role)
}

type UpdateUserOptions struct {
	Name       *string
	ManagerID  *string
	ManagerSet bool
}

func (d Directory) UpdateUser(ctx context.Context, id string, opts UpdateUserOptions) (domain.User, error) {
	if opts.Name == nil && !opts.ManagerSet {
		return domain.User{}, engine.ValidationError{Message: "nothing to update"}
	}
	if err := d.Repo.UpdateUser(ctx, id, opts.Name, opts.ManagerID, opts.ManagerSet); err != nil {
		return domain.User{}, err
	}
	return d.Repo.GetUser(ctx, id)
}
