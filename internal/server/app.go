// Package server wires configuration, storage, services and the HTTP and gRPC
// endpoints together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
	"github.com/dmitrijs2005/anoncommunity/internal/server/config"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/anoncommunity/internal/server/rest"
	"github.com/dmitrijs2005/anoncommunity/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/thejerf/abtime"

	gs "github.com/dmitrijs2005/anoncommunity/internal/server/grpc"
)

// openDB is a test seam for sql.Open.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	limiter rest.RateLimiter

	userService    *services.UserService
	guard          *services.SessionGuard
	secretService  *services.SecretService
	commentService *services.CommentService
	avatarService  *services.AvatarService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel, "anoncommunity")

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	hasher, err := auth.NewArgon2Hasher(c.Argon2Params(), logger)
	if err != nil {
		return nil, err
	}
	codec, err := auth.NewTokenCodec([]byte(c.SecretKey))
	if err != nil {
		return nil, err
	}
	clock := abtime.NewRealTime()
	identities := services.NewRepositoryResolver(db, rm)

	app := &App{
		config:         c,
		logger:         logger,
		db:             db,
		userService:    services.NewUserService(db, rm, identities, hasher, codec, clock, c.TokenTTL, logger),
		guard:          services.NewSessionGuard(codec, identities, clock, logger),
		secretService:  services.NewSecretService(db, rm, clock, logger),
		commentService: services.NewCommentService(db, rm, clock),
		avatarService:  services.NewAvatarService(db, rm, c, clock),
	}
	app.limiter = app.newRateLimiter(ctx, clock)
	return app, nil
}

// newRateLimiter prefers Redis when configured and falls back to process
// memory when it cannot be reached at startup.
func (app *App) newRateLimiter(ctx context.Context, clock abtime.AbstractTime) rest.RateLimiter {
	if app.config.RedisAddr != "" {
		rl, err := rest.NewRedisRateLimiter(ctx, app.config.RedisAddr, app.logger)
		if err == nil {
			return rl
		}
		app.logger.Warn(ctx, "redis unavailable, using in-memory rate limiter", "addr", app.config.RedisAddr, "error", err)
	}
	return rest.NewMemoryRateLimiter(clock)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, rest.Deps{
		Users:           app.userService,
		Guard:           app.guard,
		Secrets:         app.secretService,
		Comments:        app.commentService,
		Avatars:         app.avatarService,
		Limiter:         app.limiter,
		LoginRateLimit:  app.config.LoginRateLimit,
		LoginRateWindow: app.config.LoginRateWindow,
	})
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.guard)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or either server fails, then releases
// the limiter and the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.limiter.Close()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
