// Package rest exposes the community service over HTTP/JSON.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, skip, limit int) ([]*models.User, error)
}

type SessionGuard interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	AuthenticateOptional(ctx context.Context, token string) (*models.User, error)
}

type SecretService interface {
	Create(ctx context.Context, current *models.User, content string) (*models.Secret, error)
	Get(ctx context.Context, id int64) (*models.Secret, error)
	List(ctx context.Context, skip, limit int) ([]*models.Secret, error)
	UpdateContent(ctx context.Context, current *models.User, id int64, content string) (*models.Secret, error)
	Delete(ctx context.Context, current *models.User, id int64) error
}

type CommentService interface {
	Create(ctx context.Context, current *models.User, secretID int64, content string) (*models.Comment, error)
	Get(ctx context.Context, id int64) (*models.Comment, error)
	ListBySecret(ctx context.Context, secretID int64, skip, limit int) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, current *models.User, id int64, content string) (*models.Comment, error)
	Delete(ctx context.Context, current *models.User, id int64) error
}

type AvatarService interface {
	PresignUpload(ctx context.Context, current *models.User) (*services.AvatarUpload, error)
}

// Deps are the collaborators of the HTTP server. Limiter may be nil to
// disable login rate limiting.
type Deps struct {
	Users           UserService
	Guard           SessionGuard
	Secrets         SecretService
	Comments        CommentService
	Avatars         AvatarService
	Limiter         RateLimiter
	LoginRateLimit  int
	LoginRateWindow time.Duration
	Metrics         *Metrics
}

type HTTPServer struct {
	address string
	logger  logging.Logger

	users    UserService
	guard    SessionGuard
	secrets  SecretService
	comments CommentService
	avatars  AvatarService

	limiter         RateLimiter
	loginRateLimit  int
	loginRateWindow time.Duration
	metrics         *Metrics
}

func NewHTTPServer(address string, l logging.Logger, deps Deps) *HTTPServer {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &HTTPServer{
		address:         address,
		logger:          l.With("module", "http_server"),
		users:           deps.Users,
		guard:           deps.Guard,
		secrets:         deps.Secrets,
		comments:        deps.Comments,
		avatars:         deps.Avatars,
		limiter:         deps.Limiter,
		loginRateLimit:  deps.LoginRateLimit,
		loginRateWindow: deps.LoginRateWindow,
		metrics:         metrics,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
