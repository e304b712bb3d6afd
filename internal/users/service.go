// Package users owns accounts and credential checks. Accounts live in the
// relational store, not in a slot: password hashes have no business being
// broadcast to slot observers.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otesta/otesta-backend/pkg/config"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/security"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

// Service exposes account operations.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (Profile, error)
	ProfileByEmail(ctx context.Context, email string) (Profile, error)
	SeedAccounts(ctx context.Context) error
}

// ServiceParams groups dependencies for the users service.
type ServiceParams struct {
	Repository Repository
	Logger     *logger.Logger
	Password   config.PasswordConfig
	Seed       config.SeedConfig
	Now        func() time.Time
}

type service struct {
	repo     Repository
	logg     *logger.Logger
	password config.PasswordConfig
	seed     config.SeedConfig
	now      func() time.Time
}

// NewService builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repository,
		logg:     params.Logger,
		password: params.Password,
		seed:     params.Seed,
		now:      now,
	}, nil
}

// Authenticate verifies the credentials. Unknown accounts and wrong passwords
// share one error so callers cannot probe for registered emails.
func (s *service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return user.profile(), nil
}

func (s *service) ProfileByEmail(ctx context.Context, email string) (Profile, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Profile{}, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	if err != nil {
		return Profile{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return user.profile(), nil
}

// SeedAccounts upserts the demo admin and shopper accounts from config.
func (s *service) SeedAccounts(ctx context.Context) error {
	accounts := []struct {
		email    string
		name     string
		password string
		role     enums.UserRole
	}{
		{s.seed.AdminEmail, s.seed.AdminName, s.seed.AdminPassword, enums.UserRoleAdmin},
		{s.seed.DemoEmail, s.seed.DemoName, s.seed.DemoPassword, enums.UserRoleUser},
	}

	for _, account := range accounts {
		if account.email == "" || account.password == "" {
			continue
		}
		hash, err := security.HashPassword(account.password, s.password)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash seed password")
		}
		now := s.now().UTC()
		err = s.repo.Upsert(ctx, User{
			ID:           uuid.NewString(),
			Email:        normalizeEmail(account.email),
			FullName:     account.name,
			Role:         account.role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed account")
		}
		if s.logg != nil {
			s.logg.Info(s.logg.WithUserEmail(ctx, account.email), "seeded account")
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
