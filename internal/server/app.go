// Package server wires configuration, storage, token handling and the
// external gateways into the account service, then runs the HTTP API and
// the gRPC health endpoint until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/cloudsentiment/internal/logging"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/auth"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/config"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/httpapi"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/notify"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/objectstore"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/services"

	gs "github.com/dmitrijs2005/cloudsentiment/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	redis       *redis.Client
	revocations revocations.Repository
	accounts    *services.AccountService
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewJSONLogger(os.Stdout, c.LogLevel)
	}

	repos, err := repomanager.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app := &App{config: c, logger: logger, repos: repos}

	app.revocations = revocations.NewMemoryRepository()
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.revocations = revocations.NewRedisRepository(app.redis, "")
	}

	hasher, err := auth.NewPasswordHasher(c.PasswordHashAlgorithm, c.BcryptCost, c.Argon2Iterations, c.Argon2MemoryKiB)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	var objects objectstore.ObjectStore = objectstore.NewMemoryStore()
	if c.S3BaseEndpoint != "" {
		objects, err = objectstore.NewS3Store(ctx, objectstore.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("object store init error: %w", err)
		}
	}

	var notifier notify.Gateway = notify.NewLogGateway(logger, c.AppBaseURL)
	if c.SendGridAPIKey != "" {
		notifier = notify.NewSendGridGateway(c.SendGridAPIKey, c.MailFrom, c.AppBaseURL)
	}

	app.accounts = services.NewAccountService(services.Dependencies{
		Accounts:          repos.Accounts(),
		Revocations:       app.revocations,
		Hasher:            hasher,
		Tokens:            auth.NewTokenCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.VerificationTokenValidityDuration),
		Objects:           objects,
		Notifier:          notifier,
		Logger:            logger,
		DependencyTimeout: c.DependencyTimeout,
	})

	return app, nil
}

// ready fails when the account store or the revocation store is unreachable.
func (app *App) ready(ctx context.Context) error {
	if err := app.repos.Ping(ctx); err != nil {
		return fmt.Errorf("account store: %w", err)
	}
	if err := app.revocations.Ping(ctx); err != nil {
		return fmt.Errorf("revocation store: %w", err)
	}
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run serves HTTP and gRPC health until ctx is cancelled, a signal arrives or
// either server fails. The storage handles are closed before returning.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	httpServer := httpapi.NewServer(app.config.HTTPAddr, app.accounts, app.ready, app.logger)
	healthServer := gs.NewHealthServer(app.config.GRPCHealthAddr, app.logger, app.ready)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		if err := fn(ctx); err != nil {
			app.logger.Error(ctx, name+" server error", "error", err)
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
			cancelFunc()
		}
	}

	wg.Add(2)
	go run("http", httpServer.Run)
	go run("grpc", healthServer.Run)
	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")

	return errors.Join(errs...)
}
