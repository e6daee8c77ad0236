package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/thejerf/abtime"
)

// SessionGuard turns a presented bearer token into the current user.
type SessionGuard struct {
	codec    *auth.TokenCodec
	resolver IdentityResolver
	clock    abtime.AbstractTime
	logger   logging.Logger
}

func NewSessionGuard(codec *auth.TokenCodec, resolver IdentityResolver, clock abtime.AbstractTime, logger logging.Logger) *SessionGuard {
	return &SessionGuard{
		codec:    codec,
		resolver: resolver,
		clock:    clock,
		logger:   logger.With("module", "session_guard"),
	}
}

// Authenticate requires a valid token whose subject still exists and is not
// banned. Every token problem is reported as common.ErrUnauthenticated with
// the codec error wrapped for diagnostics.
func (g *SessionGuard) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrUnauthenticated
	}

	claims, err := g.codec.Decode(token, g.clock.Now())
	if err != nil {
		g.logger.Debug(ctx, "token rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}

	user, err := g.resolver.ByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			g.logger.Info(ctx, "token subject no longer exists", "username", claims.Subject)
			return nil, common.ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}

	if user.Banned {
		return nil, common.ErrAccountDisabled
	}
	return user, nil
}

// AuthenticateOptional treats an absent token as an anonymous request and
// returns (nil, nil). A present but bad token fails as in Authenticate.
func (g *SessionGuard) AuthenticateOptional(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return g.Authenticate(ctx, token)
}
