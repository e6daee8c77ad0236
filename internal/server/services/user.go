// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and account lookups.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

const (
	MaxUsernameLength = 32
	MaxEmailLength    = 64
)

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	AvatarURL string
}

func (r RegisterRequest) validate() error {
	var problems []string

	switch {
	case r.Username == "":
		problems = append(problems, "username is required")
	case strings.TrimSpace(r.Username) != r.Username:
		problems = append(problems, "username must not start or end with whitespace")
	case utf8.RuneCountInString(r.Username) > MaxUsernameLength:
		problems = append(problems, fmt.Sprintf("username must be at most %d characters", MaxUsernameLength))
	}

	switch {
	case !strings.Contains(r.Email, "@"):
		problems = append(problems, "email is invalid")
	case utf8.RuneCountInString(r.Email) > MaxEmailLength:
		problems = append(problems, fmt.Sprintf("email must be at most %d characters", MaxEmailLength))
	}

	if r.Password == "" {
		problems = append(problems, "password is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// UserService registers accounts and exchanges credentials for session
// tokens.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	identities  IdentityResolver
	hasher      auth.PasswordHasher
	codec       *auth.TokenCodec
	clock       abtime.AbstractTime
	tokenTTL    time.Duration
	logger      logging.Logger
}

// NewUserService looks accounts up through identities and writes them
// through the users repository of m.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, identities IdentityResolver, hasher auth.PasswordHasher,
	codec *auth.TokenCodec, clock abtime.AbstractTime, tokenTTL time.Duration, logger logging.Logger) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	return &UserService{
		db:          db,
		repomanager: m,
		identities:  identities,
		hasher:      hasher,
		codec:       codec,
		clock:       clock,
		tokenTTL:    tokenTTL,
		logger:      logger.With("module", "user_service"),
	}
}

// Register creates an account. Email is checked before username, and a
// race lost to a concurrent registration is reported with the same errors.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	_, err := s.identities.ByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	_, err = s.identities.ByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateUsername
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("check username: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     req.Username,
		Email:        req.Email,
		AvatarURL:    req.AvatarURL,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) || errors.Is(err, common.ErrDuplicateUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and issues a session token. An unknown
// username and a wrong password fail identically, including in timing.
// Recording the login time and upgrading an outdated hash are best effort.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.Session, error) {
	user, err := s.identities.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Verify(ctx, password, s.hasher.Dummy())
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	if user.Banned {
		return nil, common.ErrAccountDisabled
	}

	now := s.clock.Now()
	token, err := s.codec.Issue(user.Username, now, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.repomanager.Users(s.db).UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)

	return &models.Session{
		User:        user,
		AccessToken: token,
		ExpiresAt:   now.Add(s.tokenTTL),
	}, nil
}

func (s *UserService) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn(ctx, "failed to rehash password", "user_id", user.ID, "error", err)
		return
	}
	if err := s.repomanager.Users(s.db).UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.Warn(ctx, "failed to store rehashed password", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.logger.Info(ctx, "password hash upgraded", "user_id", user.ID)
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).FindByID(ctx, id)
}

// List pages through users ordered by id. A non-positive limit means
// common.DefaultPageSize and limits above common.MaxPageSize are capped.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]*models.User, error) {
	skip, limit, err := page(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).List(ctx, skip, limit)
}

func page(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, fmt.Errorf("%w: skip must not be negative", common.ErrValidation)
	}
	if limit <= 0 {
		limit = common.DefaultPageSize
	}
	if limit > common.MaxPageSize {
		limit = common.MaxPageSize
	}
	return skip, limit, nil
}
