// Package server wires the portal together: database, blob store, session
// store, services and the HTTP and gRPC listeners.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/logging"
	"github.com/dmitrijs2005/enrollportal/internal/server/blobstore"
	"github.com/dmitrijs2005/enrollportal/internal/server/config"
	"github.com/dmitrijs2005/enrollportal/internal/server/dispatch"
	"github.com/dmitrijs2005/enrollportal/internal/server/httpapi"
	"github.com/dmitrijs2005/enrollportal/internal/server/orphans"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/enrollportal/internal/server/services"
	"github.com/dmitrijs2005/enrollportal/internal/server/sessions"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/enrollportal/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	repos   repomanager.RepositoryManager
	closers []func() error
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		repos:   repomanager.NewPostgresRepositoryManager(),
		closers: []func() error{db.Close},
	}, nil
}

// Close releases everything the app opened, newest first.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	return errors.Join(errs...)
}

// Migrate applies pending schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	app.logger.Info(ctx, "migrations applied")
	return nil
}

// ResetPassword sets a new password for an existing account.
func (app *App) ResetPassword(ctx context.Context, email, password string) error {
	users := services.NewUserService(services.NewCoordinator(app.db, app.repos, nil, nil, app.logger))
	return users.ResetPassword(ctx, email, password)
}

func (app *App) orphanReporter(ctx context.Context) orphans.Reporter {
	reporters := orphans.Multi{orphans.NewLogReporter(app.logger)}
	if app.config.AMQPURL == "" {
		return reporters
	}

	amqpReporter, err := orphans.DialAMQP(app.config.AMQPURL, app.config.OrphanQueue)
	if err != nil {
		app.logger.Warn(ctx, "orphan queue unavailable, logging only", "error", err)
		return reporters
	}
	app.closers = append(app.closers, amqpReporter.Close)
	return append(reporters, amqpReporter)
}

func (app *App) sessionStore(ctx context.Context) (sessions.Store, error) {
	if app.config.RedisAddr == "" {
		return sessions.NewMemoryStore(app.config.SessionTTL), nil
	}
	rdb, err := sessions.DialRedis(ctx, app.config.RedisAddr, app.config.RedisPassword, app.config.RedisDB)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, rdb.Close)
	return sessions.NewRedisStore(rdb, app.config.SessionTTL), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) buildHTTPHandler(ctx context.Context) (http.Handler, error) {
	store, err := blobstore.New(ctx, app.config)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	sessionStore, err := app.sessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	coord := services.NewCoordinator(app.db, app.repos, store, app.orphanReporter(ctx), app.logger)
	users := services.NewUserService(coord)
	projects := services.NewProjectService(coord)
	dispatcher := dispatch.New(users, projects, app.logger,
		dispatch.RejectUnknownActions(app.config.RejectUnknownActions))

	gin.SetMode(gin.ReleaseMode)
	srv := httpapi.NewServer(users, projects, dispatcher, sessionStore, httpapi.Options{
		SecretKey:       []byte(app.config.SecretKey),
		SessionTTL:      app.config.SessionTTL,
		CookieSecure:    app.config.CookieSecure,
		MaxRequestBytes: app.config.MaxRequestBytes,
	}, app.logger)
	return srv.Router(), nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc, h http.Handler) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCHealthAddr, app.logger, app.db, app.config.HealthCheckInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the schema and serves until ctx is done or a signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return err
	}
	handler, err := app.buildHTTPHandler(ctx)
	if err != nil {
		return err
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc, handler)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	return nil
}
